package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/armctl/pkg/input"
	"github.com/gwillem/armctl/pkg/robot"
	"github.com/gwillem/armctl/pkg/session"
	"github.com/gwillem/armctl/pkg/teleop"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors, in configured joint order.
var jointColors = []string{"196", "208", "226", "46", "51", "201", "141"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	modeStyles  = map[session.Mode]lipgloss.Style{
		session.Idle:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		session.Recording: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		session.Playing:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
	}
)

type tuiConfig struct {
	src      *input.ChanSource
	states   <-chan teleop.State
	logs     <-chan string
	done     <-chan error
	bindings []input.Binding
	hz       int
	port     string
}

type tuiModel struct {
	cfg           tuiConfig
	chart         *streamlinechart.Model
	width         int      // terminal width
	height        int      // terminal height
	logs          []string // last N log messages
	state         teleop.State
	lastPositions map[robot.JointID]int // track previous positions to detect movement
	dropped       int
	finished      bool
	runErr        error
}

func (m *tuiModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if any joint position has changed from the last state
func (m *tuiModel) hasMovement(joints []teleop.JointState) bool {
	if m.lastPositions == nil {
		return true
	}
	for _, j := range joints {
		if last, ok := m.lastPositions[j.ID]; !ok || last != j.Position {
			return true
		}
	}
	return false
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string
type doneMsg struct{ err error }

func waitForState(ch <-chan teleop.State) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ch)
	}
}

func waitForLog(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ch)
	}
}

func waitForDone(ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{err: <-ch}
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *tuiModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m *tuiModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newTUIModel(cfg tuiConfig) tuiModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, 180),
	)
	return tuiModel{
		cfg:   cfg,
		chart: &chart,
	}
}

func (m *tuiModel) styleJoints(joints []teleop.JointState) {
	lo, hi := 0, 0
	for i, j := range joints {
		color := jointColors[i%len(jointColors)]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		m.chart.SetDataSetStyles(string(j.ID), runes.ThinLineStyle, style)
		if i == 0 || j.Min < lo {
			lo = j.Min
		}
		if i == 0 || j.Max > hi {
			hi = j.Max
		}
	}
	if hi > lo {
		m.chart.SetYRange(float64(lo), float64(hi))
		m.chart.SetViewYRange(float64(lo), float64(hi))
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.cfg.states),
		waitForLog(m.cfg.logs),
		waitForDone(m.cfg.done),
	)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		// Every key goes to the controller; the key map decides what it means.
		if !m.cfg.src.Push(input.KeyID(msg.String())) {
			m.dropped++
		}
		return m, nil

	case stateMsg:
		state := teleop.State(msg)
		if m.lastPositions == nil {
			m.styleJoints(state.Joints)
		}
		// Only update chart if there's movement (freeze when idle)
		if m.hasMovement(state.Joints) {
			positions := make(map[robot.JointID]int, len(state.Joints))
			for _, j := range state.Joints {
				m.chart.PushDataSet(string(j.ID), float64(j.Position))
				positions[j.ID] = j.Position
			}
			m.chart.DrawAll()
			m.lastPositions = positions
		}
		m.state = state
		return m, waitForState(m.cfg.states)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.cfg.logs)

	case doneMsg:
		m.finished = true
		m.runErr = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.finished {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("armctl"))
	sb.WriteString(fmt.Sprintf(" - %s - %d Hz  ", m.cfg.port, m.cfg.hz))
	sb.WriteString(modeStyles[m.state.Mode].Render(strings.ToUpper(m.state.Mode.String())))
	if m.state.Frames > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  %d frames", m.state.Frames)))
	}
	if m.dropped > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  %d keys dropped", m.dropped)))
	}
	sb.WriteString("\n\n")

	if m.state.Help {
		sb.WriteString(renderHelp(m.cfg.bindings))
	} else {
		sb.WriteString(chartStyle.Render(m.chart.View()))
	}
	sb.WriteString("\n")

	sb.WriteString(renderLegend(m.state.Joints))
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press '?' for help, 'esc' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend(joints []teleop.JointState) string {
	var items []string
	for i, j := range joints {
		color := jointColors[i%len(jointColors)]
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+fmt.Sprintf("%s %d", j.ID, j.Position))
	}
	return strings.Join(items, "  ")
}

func renderHelp(bindings []input.Binding) string {
	rows := make([][]string, 0, len(bindings))
	for _, b := range bindings {
		rows = append(rows, []string{string(b.Key), b.Intent.String()})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Key", "Action").
		Rows(rows...).
		Render()
}
