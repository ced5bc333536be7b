package main

import (
	"github.com/spf13/cobra"

	"surveyops/internal/admin"
	"surveyops/internal/logging"
	"surveyops/internal/mission"
	"surveyops/internal/monitor"
	"surveyops/internal/sim"
)

var (
	serveAddr    string
	serveOutputs []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mission dashboard",
	Long:  "serve runs the HTTP dashboard, polls the mission store and simulates started missions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logging.FromContext(ctx)

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		missions, err := st.ListMissions(ctx)
		if err != nil {
			return err
		}

		outputs := cfg.Output.Writers
		if cmd.Flags().Changed("output") {
			outputs = serveOutputs
		}
		feed := admin.NewFeed()
		mw, cleanup, err := newWriters(ctx, cfg, outputs, missions, feed)
		if err != nil {
			return err
		}
		defer cleanup()

		mon := monitor.New(st, mw,
			monitor.WithEventWriter(mw),
			monitor.WithPollInterval(cfg.Monitor.PollInterval),
			monitor.WithPathOptions(cfg.PathOptions()...),
			monitor.WithDriverOptions(sim.WithTickInterval(cfg.Simulation.TickInterval)),
		)
		defer mon.Stop()
		if err := mon.Refresh(ctx); err != nil {
			return err
		}
		for _, m := range mon.Missions() {
			if m.Status != mission.StatusInProgress {
				continue
			}
			log.Info("resuming in-progress mission", "mission_id", m.ID)
			if err := mon.Select(ctx, m.ID); err != nil {
				log.Error("resume failed", "mission_id", m.ID, "err", err)
			}
			break
		}
		go mon.Poll(ctx)

		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		srv := admin.NewServer(mon, st, feed, admin.WithPathOptions(cfg.PathOptions()...))
		mw.SetAdminStatus(true)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Dashboard listen address")
	serveCmd.Flags().StringSliceVar(&serveOutputs, "output", nil, "Track outputs: stdout, json, file, greptime, redis, tui")
}
