package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/oscillator/pkg/control"
	"github.com/gwillem/oscillator/pkg/motion"
	"github.com/gwillem/oscillator/pkg/rig"
)

const (
	refreshInterval = 100 * time.Millisecond

	headerHeight = 3 // title + status + blank line
	helpHeight   = 5
	footerHeight = 7 // log box height
	maxLogs      = 5
	borderSize   = 2
	infoWidth    = 30

	// Supply voltage above which VIN is shown as a warning.
	vinWarn = 28.0
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	valueStyle  = lipgloss.NewStyle().Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
	lineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
)

type keyMap struct {
	Oscillate key.Binding
	Rotate    key.Binding
	Manual    key.Binding
	Stop      key.Binding
	Pause     key.Binding
	Help      key.Binding
	Quit      key.Binding
	Interrupt key.Binding

	JogNegative key.Binding
	JogPositive key.Binding
	SpeedUp     key.Binding
	SpeedDown   key.Binding
	AccelUp     key.Binding
	AccelDown   key.Binding
	Zero        key.Binding
	GoZero      key.Binding

	manual   bool
	rotating bool
}

func defaultKeyMap() keyMap {
	return keyMap{
		Oscillate:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "oscillate")),
		Rotate:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rotate")),
		Manual:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual")),
		Stop:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "stop")),
		Pause:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Interrupt:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "exit")),
		JogNegative: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "jog -")),
		JogPositive: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "jog +")),
		SpeedUp:     key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "faster")),
		SpeedDown:   key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "slower")),
		AccelUp:     key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "more accel")),
		AccelDown:   key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "less accel")),
		Zero:        key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "set zero")),
		GoZero:      key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "go to zero")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	if k.manual {
		return []key.Binding{k.JogNegative, k.JogPositive, k.Stop, k.Quit, k.Help}
	}
	if k.rotating {
		return []key.Binding{k.SpeedUp, k.SpeedDown, k.Stop, k.Pause, k.Quit, k.Help}
	}
	return []key.Binding{k.Oscillate, k.Rotate, k.Manual, k.Stop, k.Pause, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	if k.manual {
		return [][]key.Binding{
			{k.JogNegative, k.JogPositive, k.Stop},
			{k.SpeedUp, k.SpeedDown, k.AccelUp, k.AccelDown},
			{k.Zero, k.GoZero, k.Pause, k.Quit},
		}
	}
	if k.rotating {
		return [][]key.Binding{
			{k.SpeedUp, k.SpeedDown},
			{k.Stop, k.Pause},
			{k.Help, k.Quit, k.Interrupt},
		}
	}
	return [][]key.Binding{
		{k.Oscillate, k.Rotate, k.Manual},
		{k.Stop, k.Pause},
		{k.Help, k.Quit, k.Interrupt},
	}
}

// manualActions maps the manual mode keys to latch actions.
func (k keyMap) manualActions() []struct {
	binding key.Binding
	action  motion.Action
} {
	return []struct {
		binding key.Binding
		action  motion.Action
	}{
		{k.JogNegative, motion.JogNegative},
		{k.JogPositive, motion.JogPositive},
		{k.SpeedUp, motion.SpeedUp},
		{k.SpeedDown, motion.SpeedDown},
		{k.AccelUp, motion.AccelUp},
		{k.AccelDown, motion.AccelDown},
		{k.Stop, motion.Stop},
		{k.Zero, motion.Zero},
		{k.GoZero, motion.GoZero},
		{k.Quit, motion.Quit},
	}
}

// dashboardController is the part of the controller the dashboard drives.
type dashboardController interface {
	Snapshot() motion.Snapshot
	Settings() motion.Settings
	Submit(cmd control.Command) error
	Press(a motion.Action)
	Logs() <-chan string
}

type dashboardModel struct {
	ctrl     dashboardController
	settings motion.Settings
	scale    rig.Scale
	chart    *streamlinechart.Model
	keys     keyMap
	help     help.Model

	snap       motion.Snapshot
	lastUpdate time.Time
	width      int
	height     int
	logs       []string
	quitting   bool
}

type tickMsg time.Time
type logMsg string

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForLog(ctrl dashboardController) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func newDashboard(ctrl dashboardController) dashboardModel {
	s := ctrl.Settings()
	lo := float64(min(s.X1, s.X2, 0))
	hi := float64(max(s.X1, s.X2, s.StepsPerRev))
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(lo, hi),
	)
	chart.SetDataSetStyles("position", runes.ThinLineStyle, lineStyle)

	return dashboardModel{
		ctrl:     ctrl,
		settings: s,
		scale:    rig.Scale{StepsPerRev: s.StepsPerRev},
		chart:    &chart,
		keys:     defaultKeyMap(),
		help:     help.New(),
		snap:     ctrl.Snapshot(),
	}
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *dashboardModel) manual() bool {
	return m.snap.Running && m.snap.Mode == motion.ModeManual
}

func (m *dashboardModel) rotating() bool {
	return m.snap.Running && m.snap.Mode == motion.ModeContinuous
}

// plotValue is the charted position. Continuous rotation is shown as the
// angle within one revolution.
func (m *dashboardModel) plotValue() float64 {
	pos := m.snap.Position
	if m.snap.Mode == motion.ModeContinuous && m.settings.StepsPerRev > 0 {
		pos %= m.settings.StepsPerRev
		if pos < 0 {
			pos += m.settings.StepsPerRev
		}
	}
	return float64(pos)
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 60, 16
	}
	width = max(m.width-infoWidth-borderSize-2, 30)
	height = max(m.height-headerHeight-helpHeight-footerHeight-borderSize, 8)
	return width, height
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(tick(), waitForLog(m.ctrl))
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.snap = m.ctrl.Snapshot()
		m.keys.manual = m.manual()
		m.keys.rotating = m.rotating()
		// Freeze the chart while nothing changes.
		if !m.snap.UpdatedAt.Equal(m.lastUpdate) {
			m.chart.PushDataSet("position", m.plotValue())
			m.chart.DrawAll()
			m.lastUpdate = m.snap.UpdatedAt
		}
		return m, tick()

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Interrupt) {
		m.quitting = true
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if key.Matches(msg, m.keys.Pause) {
		m.submit(control.TogglePause{})
		return m, nil
	}

	if m.manual() {
		for _, ma := range m.keys.manualActions() {
			if key.Matches(msg, ma.binding) {
				m.ctrl.Press(ma.action)
				return m, nil
			}
		}
		return m, nil
	}

	s := m.settings
	switch {
	case m.rotating() && key.Matches(msg, m.keys.SpeedUp):
		m.ctrl.Press(motion.SpeedUp)
	case m.rotating() && key.Matches(msg, m.keys.SpeedDown):
		m.ctrl.Press(motion.SpeedDown)
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Stop):
		m.submit(control.Stop{})
	case key.Matches(msg, m.keys.Oscillate):
		m.submit(control.StartOscillation{X1: s.X1, X2: s.X2, Cycles: s.Cycles})
	case key.Matches(msg, m.keys.Rotate):
		m.submit(control.StartContinuous{Speed: s.RotationSpeed, Cycles: s.Cycles})
	case key.Matches(msg, m.keys.Manual):
		m.submit(control.StartManual{})
	}
	return m, nil
}

func (m *dashboardModel) submit(cmd control.Command) {
	if err := m.ctrl.Submit(cmd); err != nil {
		m.addLog(err.Error())
	}
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Oscillator"))
	sb.WriteString(" - " + m.snap.Mode.Title())
	if m.snap.Paused {
		sb.WriteString(warnStyle.Render("PAUSED"))
	}
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(m.snap.Status))
	if m.snap.Error != "" {
		sb.WriteString("  " + errorStyle.Render(m.snap.Error))
	}
	sb.WriteString("\n\n")

	// Chart and readouts side by side
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, chartStyle.Render(m.chart.View()), " ", m.renderInfo()))
	sb.WriteString("\n")

	// Key help
	sb.WriteString(m.help.View(m.keys))
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'o', 'r' or 'm' to start a run, 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) renderInfo() string {
	s := m.snap
	link := "connected"
	if !s.Connected {
		link = "offline"
	}
	rows := [][]string{
		{"Position", fmt.Sprintf("%d", s.Position)},
		{"Turns", fmt.Sprintf("%.3f rev", m.scale.Revolutions(s.Position))},
		{"Speed", fmt.Sprintf("%.1f rpm", m.scale.RPM(s.Velocity))},
		{"Target", fmt.Sprintf("%.1f rpm", m.scale.RPM(s.TargetVelocity))},
		{"Cycles", fmt.Sprintf("%d / %s", s.Cycles, s.Goal)},
		{"VIN", fmt.Sprintf("%.1f V", s.Voltage)},
		{"Current", fmt.Sprintf("%d mA", s.CurrentLimit)},
		{"Link", link},
	}
	const vinRow = 5

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Width(infoWidth).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case col == 0:
				return labelStyle
			case row == vinRow && s.Voltage > vinWarn:
				return warnStyle
			case row == len(rows)-1 && !s.Connected:
				return warnStyle
			default:
				return valueStyle
			}
		})
	return t.Render()
}

// runDashboard shows the dashboard until the user quits. A non-nil cmd is
// submitted first.
func runDashboard(s *session, cmd control.Command) error {
	if cmd != nil {
		if err := s.ctrl.Submit(cmd); err != nil {
			return err
		}
	}
	p := tea.NewProgram(newDashboard(s.ctrl), tea.WithAltScreen(), tea.WithContext(s.ctx))
	if _, err := p.Run(); err != nil && s.ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
