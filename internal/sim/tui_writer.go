package sim

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"dronefleet/internal/fleet"
	"dronefleet/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// Commander applies an operator command chosen in the TUI.
type Commander func(id, action string) error

// snapshotMsg carries one snapshot of the fleet.
type snapshotMsg struct{ rows []telemetry.TelemetryRow }

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

const (
	maxLogLines  = 500
	nameWidth    = 16
	tableMinRows = 3
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pausedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	returningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	lowBattStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// TUIWriter renders fleet snapshots using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. When the
// user quits the TUI the process receives an interrupt so the engine shuts
// down with it.
func NewTUIWriter(clusterID string, cmd Commander) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(clusterID, cmd), tea.WithAltScreen())
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

// Write sends a single row as a one-drone snapshot.
func (w *TUIWriter) Write(row telemetry.TelemetryRow) error {
	return w.WriteBatch([]telemetry.TelemetryRow{row})
}

// WriteBatch sends a snapshot to the TUI.
func (w *TUIWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	cp := make([]telemetry.TelemetryRow, len(rows))
	copy(cp, rows)
	w.program.Send(snapshotMsg{rows: cp})
	return nil
}

// Log shows line in the event log.
func (w *TUIWriter) Log(line string) {
	w.program.Send(logMsg{line: line})
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

type tuiModel struct {
	clusterID  string
	command    Commander
	table      table.Model
	vp         viewport.Model
	rows       []telemetry.TelemetryRow
	statuses   map[string]string
	logs       []string
	lastUpdate time.Time
	wrap       bool
	autoscroll bool
	help       bool
	width      int
	height     int
}

func newTUIModel(clusterID string, cmd Commander) tuiModel {
	cols := []table.Column{
		{Title: "Name", Width: nameWidth},
		{Title: "Status", Width: 10},
		{Title: "Temp °C", Width: 8},
		{Title: "Battery %", Width: 9},
		{Title: "Signal dBm", Width: 10},
	}
	t := table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(tableMinRows+1))
	return tuiModel{
		clusterID:  clusterID,
		command:    cmd,
		table:      t,
		vp:         viewport.New(0, 0),
		statuses:   make(map[string]string),
		autoscroll: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.resize()
		m.refreshViewport()
	case snapshotMsg:
		m.applySnapshot(msg.rows)
		m.resize()
		m.refreshViewport()
	case logMsg:
		m.appendLog(msg.line)
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
		case "s":
			m.autoscroll = !m.autoscroll
			m.refreshViewport()
		case "?":
			m.help = !m.help
		case "p":
			return m, m.sendCommand(string(fleet.ActionPause))
		case "r":
			return m, m.sendCommand(string(fleet.ActionReturn))
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *tuiModel) applySnapshot(rows []telemetry.TelemetryRow) {
	m.rows = rows
	trows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		if prev, ok := m.statuses[r.DroneID]; ok && prev != r.Status {
			m.appendLog(fmt.Sprintf("[%s] %s %s -> %s", r.Timestamp.Format(time.TimeOnly), r.Name, prev, r.Status))
		}
		m.statuses[r.DroneID] = r.Status
		trows = append(trows, table.Row{
			truncate.StringWithTail(r.Name, nameWidth, "…"),
			r.Status,
			fmt.Sprintf("%.1f", r.Temperature),
			fmt.Sprintf("%.0f", r.Battery),
			fmt.Sprintf("%.0f", r.Signal),
		})
		if !r.Timestamp.IsZero() {
			m.lastUpdate = r.Timestamp
		}
	}
	m.table.SetRows(trows)
}

// sendCommand returns a command applying action to the selected drone.
func (m tuiModel) sendCommand(action string) tea.Cmd {
	if m.command == nil || len(m.rows) == 0 {
		return nil
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	row := m.rows[i]
	apply := m.command
	return func() tea.Msg {
		if err := apply(row.DroneID, action); err != nil {
			return logMsg{line: fmt.Sprintf("%s %s failed: %v", action, row.Name, err)}
		}
		return logMsg{line: fmt.Sprintf("%s sent to %s", action, row.Name)}
	}
}

func (m *tuiModel) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func (m *tuiModel) resize() {
	rows := len(m.rows)
	if rows < tableMinRows {
		rows = tableMinRows
	}
	m.table.SetHeight(rows + 1)
	h := m.height - lipgloss.Height(m.renderHeader()) - lipgloss.Height(m.table.View()) - 4
	if h < 1 {
		h = 1
	}
	m.vp.Height = h
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) renderHeader() string {
	h := m.summary()
	title := headerStyle.Render("Fleet " + m.clusterID)
	stats := fmt.Sprintf("total %d  active %d  %s  %s  %s",
		h.Total, h.Active,
		pausedStyle.Render(fmt.Sprintf("paused %d", h.Paused)),
		returningStyle.Render(fmt.Sprintf("returning %d", h.Returning)),
		lowBattStyle.Render(fmt.Sprintf("low battery %d", h.LowBattery)))
	if !m.lastUpdate.IsZero() {
		stats += "  updated " + m.lastUpdate.Format(time.TimeOnly)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, stats)
}

func (m tuiModel) summary() FleetHealth {
	h := FleetHealth{Total: len(m.rows)}
	for _, r := range m.rows {
		switch fleet.Status(r.Status) {
		case fleet.StatusActive:
			h.Active++
		case fleet.StatusPaused:
			h.Paused++
		case fleet.StatusReturning:
			h.Returning++
		}
		if r.Battery <= LowBatteryThreshold {
			h.LowBattery++
		}
	}
	return h
}

func (m tuiModel) View() string {
	if m.help {
		return strings.Join([]string{
			headerStyle.Render("Keys"),
			"↑/↓  select drone",
			"p    pause selected drone",
			"r    return selected drone to base",
			"w    toggle log wrap",
			"s    toggle log autoscroll",
			"?    toggle help",
			"q    quit",
		}, "\n")
	}
	divider := strings.Repeat("─", m.width)
	return strings.Join([]string{
		m.renderHeader(),
		m.table.View(),
		divider,
		m.vp.View(),
		helpStyle.Render("p pause · r return · w wrap · s scroll · ? help · q quit"),
	}, "\n")
}
