package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"golang.org/x/term"

	"surveyops/internal/config"
	"surveyops/internal/logging"
	"surveyops/internal/mission"
	"surveyops/internal/sim"
)

// isTerminal is replaced in tests.
var isTerminal = func(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

// newWriters fans the configured outputs plus extra into one writer. The
// returned cleanup closes every writer holding resources.
func newWriters(ctx context.Context, c *config.Config, outputs []string, missions []mission.Mission, extra ...sim.TrackWriter) (*sim.MultiWriter, func(), error) {
	tws, err := buildWriters(ctx, c, outputs, missions)
	if err != nil {
		return nil, nil, err
	}
	tws = append(tws, extra...)
	mw := sim.NewMultiWriter(tws, nil)
	return mw, func() { _ = mw.Close() }, nil
}

// buildWriters creates one writer per output name. stdout prints colored
// lines on a terminal and JSON otherwise; tui needs a terminal and replaces
// any stdout output.
func buildWriters(ctx context.Context, c *config.Config, outputs []string, missions []mission.Mission) ([]sim.TrackWriter, error) {
	log := logging.FromContext(ctx)
	tty := isTerminal(os.Stdout)
	useTUI := slices.Contains(outputs, "tui")
	if useTUI && !tty {
		log.Warn("tui output needs a terminal, falling back to stdout")
		useTUI = false
	}

	var (
		out    []sim.TrackWriter
		stdout bool
	)
	closeAll := func() {
		_ = sim.NewMultiWriter(out, nil).Close()
	}
	for _, name := range outputs {
		switch name {
		case "stdout", "json", "tui":
			if stdout || useTUI {
				continue
			}
			stdout = true
			if name == "stdout" && tty {
				out = append(out, sim.NewColorStdoutWriter(missions))
			} else {
				out = append(out, sim.NewJSONStdoutWriter())
			}
		case "file":
			fw, err := sim.NewFileWriter(c.Output.TrackFile, c.Output.EventFile)
			if err != nil {
				closeAll()
				return nil, err
			}
			out = append(out, fw)
		case "greptime":
			if c.Output.GreptimeEndpoint == "" {
				log.Warn("greptime output without endpoint, skipping")
				continue
			}
			gw, err := sim.NewGreptimeDBWriter(c.Output.GreptimeEndpoint, c.Output.GreptimeDatabase)
			if err != nil {
				closeAll()
				return nil, err
			}
			out = append(out, gw)
		case "redis":
			if c.Output.RedisAddr == "" {
				log.Warn("redis output without address, skipping")
				continue
			}
			out = append(out, sim.NewRedisWriter(c.Output.RedisAddr, c.Output.RedisTTL))
		default:
			closeAll()
			return nil, fmt.Errorf("unknown output %q", name)
		}
	}
	if useTUI {
		out = append(out, sim.NewTUIWriter(missions, c.PathOptions()...))
	}
	return out, nil
}
