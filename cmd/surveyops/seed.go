package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"surveyops/internal/seed"
)

var (
	seedFile    string
	seedBuiltIn string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load drone and mission fixtures into the store",
	Long:  "seed applies a YAML fixture file or a built-in fixture to the configured store. Mission start times are relative to now.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var f *seed.Fixture
		switch {
		case seedFile != "":
			loaded, err := seed.Load(seedFile)
			if err != nil {
				return err
			}
			f = loaded
		case seedBuiltIn != "":
			b, ok := seed.BuiltIn()[seedBuiltIn]
			if !ok {
				return fmt.Errorf("unknown fixture %q (have %s)", seedBuiltIn, builtInNames())
			}
			f = &b
		default:
			return fmt.Errorf("pass --file or --builtin")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := f.Apply(ctx, st, time.Now(), cfg.PathOptions()...)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range res.Missions {
			fmt.Fprintf(out, "%s\t%-12s\t%s\t%s\n", m.ID, m.Status, m.Schedule.DateTime.Local().Format(time.DateTime), m.Name)
		}
		return nil
	},
}

func builtInNames() string {
	return strings.Join(slices.Sorted(maps.Keys(seed.BuiltIn())), ", ")
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "Path to a fixture YAML file")
	seedCmd.Flags().StringVar(&seedBuiltIn, "builtin", "", "Name of a built-in fixture")
	seedCmd.MarkFlagsMutuallyExclusive("file", "builtin")
}
