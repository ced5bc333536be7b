package main

import (
	"github.com/spf13/cobra"

	"surveyops/internal/sim"
)

var (
	replayInput   string
	replaySpeed   float64
	replayOutputs []string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a track log file",
	Long:  "replay feeds track rows from a JSONL log file back into the configured outputs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		outputs := cfg.Output.Writers
		if cmd.Flags().Changed("output") {
			outputs = replayOutputs
		}
		mw, cleanup, err := newWriters(ctx, cfg, outputs, nil)
		if err != nil {
			return err
		}
		defer cleanup()
		return sim.ReplayLogFile(ctx, replayInput, mw, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to track log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().StringSliceVar(&replayOutputs, "output", nil, "Track outputs: stdout, json, file, greptime, redis")
	_ = replayCmd.MarkFlagRequired("input")
}
