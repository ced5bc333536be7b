// ColorStdoutWriter prints human-friendly, colorized track rows to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"surveyops/internal/mission"
	"surveyops/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorWhite   = "\x1b[37m"
	colorGray    = "\x1b[90m"
)

var missionPalette = []string{colorRed, colorGreen, colorYellow, colorBlue, colorMagenta, colorCyan}

// palette hands out one color per mission id.
type palette struct {
	mu     sync.Mutex
	colors map[string]string
	next   int
}

func (p *palette) get(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.colors == nil {
		p.colors = make(map[string]string)
	}
	if c, ok := p.colors[id]; ok {
		return c
	}
	c := missionPalette[p.next%len(missionPalette)]
	p.colors[id] = c
	p.next++
	return c
}

// ColorStdoutWriter prints track rows using ANSI colors. The first write
// prints an overview of the monitored missions.
type ColorStdoutWriter struct {
	missions []mission.Mission
	out      io.Writer
	once     sync.Once
	colors   palette
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(missions []mission.Mission) *ColorStdoutWriter {
	return &ColorStdoutWriter{missions: missions, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if len(w.missions) == 0 {
		return
	}
	fmt.Fprintln(w.out, "Missions:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tName\tPattern\tAltitude\tStatus\tScheduled\n")
	for _, m := range w.missions {
		col := w.colors.get(m.ID)
		fmt.Fprintf(tw, "%s%s%s\t%s\t%s\t%.0fm\t%s\t%s\n", col, m.ID, colorReset, m.Name,
			m.FlightParameters.FlightPattern, m.FlightParameters.Altitude, m.Status,
			m.Schedule.DateTime.Format(time.RFC3339))
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

// Write outputs a single track row in colorized format.
func (w *ColorStdoutWriter) Write(row telemetry.TrackRow) error {
	w.once.Do(w.printOverview)
	fmt.Fprintln(w.out, formatTrackLine(row, w.colors.get(row.MissionID)))
	return nil
}

// WriteBatch outputs multiple track rows.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.TrackRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteMissionEvent prints a mission transition.
func (w *ColorStdoutWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	w.once.Do(w.printOverview)
	fmt.Fprintln(w.out, formatEventLine(e, w.colors.get(e.MissionID)))
	return nil
}

func formatTrackLine(row telemetry.TrackRow, missionColor string) string {
	return fmt.Sprintf("%s[%s]%s %smission=%s%s %sdrone=%s%s %slng=%.5f%s %slat=%.5f%s %salt=%.1f%s %sstep=%d/%d%s %sprogress=%s %d%%%s",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		missionColor, row.MissionID, colorReset,
		colorWhite, row.DroneID, colorReset,
		colorYellow, row.Lng, colorReset,
		colorGreen, row.Lat, colorReset,
		colorMagenta, row.Alt, colorReset,
		colorBlue, row.StepIndex, max(row.PathLength-1, 0), colorReset,
		colorCyan, progressBar(row.CompletionPercent, 10), row.CompletionPercent, colorReset)
}

func formatEventLine(e telemetry.MissionEventRow, missionColor string) string {
	toColor := colorGreen
	switch mission.Status(e.To) {
	case mission.StatusAborted, mission.StatusCancelled:
		toColor = colorRed
	case mission.StatusInProgress:
		toColor = colorYellow
	}
	line := fmt.Sprintf("%s[%s]%s %sMISSION%s %s%s%s %s %s -> %s%s%s",
		colorGray, e.Timestamp.Format(time.RFC3339), colorReset,
		colorBlue, colorReset,
		missionColor, e.MissionID, colorReset,
		e.Event, e.From, toColor, e.To, colorReset)
	if e.Error != "" {
		line += fmt.Sprintf(" %serr=%s%s", colorRed, e.Error, colorReset)
	}
	return line
}

func progressBar(pct, width int) string {
	filled := pct * width / 100
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
