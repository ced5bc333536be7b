package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"surveyops/internal/logging"
	"surveyops/internal/mission"
	"surveyops/internal/monitor"
	"surveyops/internal/seed"
	"surveyops/internal/sim"
	"surveyops/internal/telemetry"
)

var (
	simMissionID string
	simFixture   string
	simOutputs   []string
	simTick      time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Fly one mission through the simulator",
	Long:  "simulate starts (or resumes) a mission, streams its track to the configured outputs and exits once the mission completes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logging.FromContext(ctx)

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		id := simMissionID
		if simFixture != "" {
			f, ok := seed.BuiltIn()[simFixture]
			if !ok {
				return fmt.Errorf("unknown fixture %q", simFixture)
			}
			res, err := f.Apply(ctx, st, time.Now(), cfg.PathOptions()...)
			if err != nil {
				return err
			}
			if id == "" {
				id = pickMission(res.Missions)
			}
		}
		if id == "" {
			return fmt.Errorf("no mission to simulate: pass --mission or --fixture")
		}
		m, err := st.GetMission(ctx, id)
		if err != nil {
			return err
		}

		outputs := cfg.Output.Writers
		if cmd.Flags().Changed("output") {
			outputs = simOutputs
		}
		mw, cleanup, err := newWriters(ctx, cfg, outputs, []mission.Mission{m})
		if err != nil {
			return err
		}
		defer cleanup()

		tick := cfg.Simulation.TickInterval
		if cmd.Flags().Changed("tick") {
			tick = simTick
		}
		done := make(chan telemetry.MissionEventRow, 1)
		events := sim.NewMultiWriter(nil, []sim.MissionEventWriter{finishWatcher{id: id, done: done}, mw})
		mon := monitor.New(st, mw,
			monitor.WithEventWriter(events),
			monitor.WithPathOptions(cfg.PathOptions()...),
			monitor.WithDriverOptions(sim.WithTickInterval(tick)),
		)
		defer mon.Stop()

		if m.Status == mission.StatusInProgress {
			err = mon.Select(ctx, id)
		} else {
			_, err = mon.Start(ctx, id)
		}
		if err != nil {
			return err
		}

		select {
		case ev := <-done:
			log.Info("simulation finished", "mission_id", id, "status", ev.To)
		case <-ctx.Done():
			log.Info("simulation interrupted", "mission_id", id)
		}
		return nil
	},
}

// pickMission prefers an in-progress mission, then one that may start now.
func pickMission(ms []mission.Mission) string {
	now := time.Now()
	for _, m := range ms {
		if m.Status == mission.StatusInProgress {
			return m.ID
		}
	}
	for _, m := range ms {
		if m.Status == mission.StatusScheduled && !m.Schedule.DateTime.After(now) {
			return m.ID
		}
	}
	return ""
}

// finishWatcher signals when the watched mission reaches a terminal status.
type finishWatcher struct {
	id   string
	done chan telemetry.MissionEventRow
}

func (w finishWatcher) WriteMissionEvent(e telemetry.MissionEventRow) error {
	if e.MissionID != w.id || e.Error != "" {
		return nil
	}
	switch mission.Status(e.To) {
	case mission.StatusCompleted, mission.StatusAborted:
		select {
		case w.done <- e:
		default:
		}
	}
	return nil
}

func init() {
	simulateCmd.Flags().StringVar(&simMissionID, "mission", "", "Mission id to simulate")
	simulateCmd.Flags().StringVar(&simFixture, "fixture", "", "Seed a built-in fixture first (vineyard, solar-farm)")
	simulateCmd.Flags().StringSliceVar(&simOutputs, "output", nil, "Track outputs: stdout, json, file, greptime, redis, tui")
	simulateCmd.Flags().DurationVar(&simTick, "tick", time.Second, "Simulation tick interval (e.g. 500ms, 2s)")
}
