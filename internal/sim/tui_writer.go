package sim

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"surveyops/internal/flightpath"
	"surveyops/internal/geo"
	"surveyops/internal/mission"
	"surveyops/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// trackMsg carries a track row for the map and progress bar.
type trackMsg struct{ telemetry.TrackRow }

// eventMsg carries a mission transition and its log line.
type eventMsg struct {
	line string
	row  telemetry.MissionEventRow
}

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

const (
	progressWidth = 40
	mapMargin     = 0.05
)

// TUIWriter renders the monitored missions using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	colors     *palette
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. opts are
// the path options used by the simulation so the map matches the driver.
func NewTUIWriter(missions []mission.Mission, opts ...flightpath.Option) *TUIWriter {
	w := &TUIWriter{colors: &palette{}, done: make(chan struct{})}
	w.sendSignal.Store(true)
	for _, m := range missions {
		w.colors.get(m.ID)
	}
	p := tea.NewProgram(newTUIModel(missions, w.colors, opts...), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements TrackWriter.
func (w *TUIWriter) Write(row telemetry.TrackRow) error {
	w.program.Send(logMsg{line: formatTrackLine(row, w.colors.get(row.MissionID))})
	w.program.Send(trackMsg{row})
	return nil
}

// WriteBatch outputs multiple track rows.
func (w *TUIWriter) WriteBatch(rows []telemetry.TrackRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteMissionEvent implements MissionEventWriter.
func (w *TUIWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	w.program.Send(eventMsg{line: formatEventLine(e, w.colors.get(e.MissionID)), row: e})
	return nil
}

// SetAdminStatus updates the admin UI indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

// missionView is the TUI's picture of one mission.
type missionView struct {
	m       mission.Mission
	path    []flightpath.Waypoint
	ring    []flightpath.Waypoint
	trail   []flightpath.Waypoint
	pos     *flightpath.Waypoint
	percent int
}

type tuiModel struct {
	missions     []*missionView
	index        map[string]int
	colors       *palette
	table        table.Model
	bar          progress.Model
	vp           viewport.Model
	logs         []string
	focus        int
	admin        bool
	wrap         bool
	autoscroll   bool
	showMap      bool
	help         bool
	header       string
	headerHeight int
	width        int
	height       int
}

func newTUIModel(missions []mission.Mission, colors *palette, opts ...flightpath.Option) tuiModel {
	if colors == nil {
		colors = &palette{}
	}
	cols := []table.Column{
		{Title: "Mission", Width: 14},
		{Title: "Name", Width: 18},
		{Title: "Pattern", Width: 11},
		{Title: "Status", Width: 12},
		{Title: "Progress", Width: 8},
	}
	m := tuiModel{
		index:      make(map[string]int),
		colors:     colors,
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
	for _, ms := range missions {
		v := m.view(ms.ID)
		v.m = ms
		v.path, _ = ms.Path(opts...)
		if ring, err := ms.SurveyArea.Ring(); err == nil {
			for _, p := range ring {
				v.ring = append(v.ring, flightpath.Waypoint{Lng: p[0], Lat: p[1]})
			}
		}
	}
	m.table = table.New(table.WithColumns(cols), table.WithRows(m.tableRows()), table.WithHeight(min(len(missions), 8)+1))
	return m
}

// view returns the mission view for id, adding a placeholder when the
// mission was not part of the initial list.
func (m *tuiModel) view(id string) *missionView {
	if i, ok := m.index[id]; ok {
		return m.missions[i]
	}
	v := &missionView{m: mission.Mission{ID: id}}
	m.index[id] = len(m.missions)
	m.missions = append(m.missions, v)
	return v
}

func (m tuiModel) focused() *missionView {
	if m.focus < 0 || m.focus >= len(m.missions) {
		return nil
	}
	return m.missions[m.focus]
}

func (m tuiModel) tableRows() []table.Row {
	rows := make([]table.Row, 0, len(m.missions))
	for _, v := range m.missions {
		rows = append(rows, table.Row{
			v.m.ID, v.m.Name, string(v.m.FlightParameters.FlightPattern),
			string(v.m.Status), fmt.Sprintf("%d%%", v.percent),
		})
	}
	return rows
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.bar.Width = min(progressWidth, max(msg.Width-20, 10))
		m.resize()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "h", "?", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.resize()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
		case "m":
			m.showMap = !m.showMap
		case "tab":
			if len(m.missions) > 0 {
				m.focus = (m.focus + 1) % len(m.missions)
				m.table.SetCursor(m.focus)
				m.resize()
			}
		case "h", "?":
			m.help = true
		default:
			if !m.autoscroll {
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
	case logMsg:
		m.logs = append(m.logs, msg.line)
		m.refreshViewport()
	case trackMsg:
		v := m.view(msg.MissionID)
		wp := flightpath.Waypoint{Lng: msg.Lng, Lat: msg.Lat, Altitude: msg.Alt}
		v.pos = &wp
		if msg.StepIndex == 0 {
			v.trail = v.trail[:0]
		}
		v.trail = append(v.trail, wp)
		v.percent = msg.CompletionPercent
		if f := m.focused(); f == nil || f.pos == nil {
			m.focus = m.index[msg.MissionID]
			m.table.SetCursor(m.focus)
		}
		m.table.SetRows(m.tableRows())
		m.refreshHeader()
	case eventMsg:
		v := m.view(msg.row.MissionID)
		if msg.row.Error == "" {
			v.m.Status = mission.Status(msg.row.To)
		}
		m.table.SetRows(m.tableRows())
		m.logs = append(m.logs, msg.line)
		m.refreshHeader()
		m.refreshViewport()
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func (m *tuiModel) resize() {
	m.header = m.renderHeader()
	m.headerHeight = lipgloss.Height(m.header)
	h := m.height - m.headerHeight - lipgloss.Height(m.renderBottom()) - 2
	m.vp.Height = max(h, 0)
	m.refreshViewport()
}

// refreshHeader re-renders the header, resizing the log only when its
// height changed.
func (m *tuiModel) refreshHeader() {
	h := m.headerHeight
	m.header = m.renderHeader()
	m.headerHeight = lipgloss.Height(m.header)
	if m.height > 0 && h != m.headerHeight {
		m.resize()
	}
}

func (m *tuiModel) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			l = wordwrap.String(l, m.vp.Width)
		}
		lines = append(lines, l)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	body := m.vp.View()
	if m.showMap {
		body = m.renderMap()
	}
	return strings.Join([]string{m.header, divider, body, divider, m.renderBottom()}, "\n")
}

func (m tuiModel) renderHeader() string {
	parts := []string{m.table.View()}
	if v := m.focused(); v != nil {
		col := m.colors.get(v.m.ID)
		line := fmt.Sprintf("%s%s%s %s", col, v.m.ID, colorReset, v.m.Name)
		if v.m.Description != "" {
			line += " - " + v.m.Description
		}
		if m.wrap && m.width > 0 {
			line = wordwrap.String(line, m.width)
		}
		parts = append(parts, line, m.bar.ViewAs(float64(v.percent)/100))
	}
	return strings.Join(parts, "\n")
}

func (m tuiModel) renderBottom() string {
	indicator := func(on bool) string {
		c := lipgloss.Color("9")
		if on {
			c = lipgloss.Color("10")
		}
		return lipgloss.NewStyle().Foreground(c).Render("●")
	}
	var all []mission.Mission
	for _, v := range m.missions {
		all = append(all, v.m)
	}
	sum := mission.Summarize(all)
	state := fmt.Sprintf("%sMISSIONS%s %stotal=%d%s %sactive=%d%s %sdone=%d%s %saborted=%d%s %ssuccess=%.1f%%%s",
		colorBlue, colorReset,
		colorWhite, sum.Total, colorReset,
		colorYellow, sum.ByStatus[mission.StatusInProgress], colorReset,
		colorGreen, sum.ByStatus[mission.StatusCompleted], colorReset,
		colorRed, sum.ByStatus[mission.StatusAborted], colorReset,
		colorCyan, sum.SuccessRate, colorReset)
	return fmt.Sprintf("%s | Admin UI %s | Wrap %s | Scroll %s | Map %s | Help %s",
		state, indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll), indicator(m.showMap), indicator(m.help))
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q    quit",
		" w    toggle wrap",
		" s    toggle auto-scroll",
		" m    toggle map view",
		" tab  focus next mission",
		" h/?  toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}

// renderMap draws the focused mission's survey area, flight path, trail
// and drone onto a character grid.
func (m tuiModel) renderMap() string {
	v := m.focused()
	if v == nil || (len(v.path) == 0 && v.pos == nil) {
		return "No position data"
	}
	width := max(m.vp.Width, 10)
	height := max(m.height-m.headerHeight-lipgloss.Height(m.renderBottom())-5, 3)

	pts := append(append(append([]flightpath.Waypoint(nil), v.ring...), v.path...), v.trail...)
	if v.pos != nil {
		pts = append(pts, *v.pos)
	}
	box := flightpath.Bounds(pts)
	padLng := math.Max(box.Width()*mapMargin, 1e-5)
	padLat := math.Max(box.Height()*mapMargin, 1e-5)
	box = geo.Box{MinLng: box.MinLng - padLng, MaxLng: box.MaxLng + padLng, MinLat: box.MinLat - padLat, MaxLat: box.MaxLat + padLat}

	grid := make([][]string, height)
	for i := range grid {
		row := make([]string, width)
		for j := range row {
			row[j] = " "
		}
		grid[i] = row
	}
	plot := func(w flightpath.Waypoint, s string) {
		x := int((w.Lng - box.MinLng) / box.Width() * float64(width-1))
		y := int((box.MaxLat - w.Lat) / box.Height() * float64(height-1))
		if y >= 0 && y < height && x >= 0 && x < width {
			grid[y][x] = s
		}
	}
	col := m.colors.get(v.m.ID)
	for _, w := range v.ring {
		plot(w, colorGray+"o"+colorReset)
	}
	for _, w := range v.path {
		plot(w, "·")
	}
	for _, w := range v.trail {
		plot(w, col+"*"+colorReset)
	}
	if v.pos != nil {
		plot(*v.pos, colorWhite+"@"+colorReset)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("lat %.5f..%.5f lng %.5f..%.5f N↑\n", box.MaxLat, box.MinLat, box.MinLng, box.MaxLng))
	for _, row := range grid {
		b.WriteString(strings.Join(row, ""))
		b.WriteByte('\n')
	}
	midLat := (box.MaxLat + box.MinLat) / 2
	mPerChar := box.Width() * 111320 * math.Cos(midLat*math.Pi/180) / float64(width)
	barChars := int(math.Min(10, float64(width)/3))
	b.WriteString(fmt.Sprintf("Scale: |%s| %.0fm\n", strings.Repeat("-", barChars), mPerChar*float64(barChars)))
	b.WriteString(fmt.Sprintf("%so%s=survey_area ·=path %s*%s=trail %s@%s=drone", colorGray, colorReset, col, colorReset, colorWhite, colorReset))
	if v.pos != nil {
		b.WriteString(fmt.Sprintf(" alt=%.0fm %d%%", v.pos.Altitude, v.percent))
	}
	return b.String()
}
