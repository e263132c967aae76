package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/ipc"
)

// Source is where the dashboard reads the mapper state from.
type Source interface {
	GetStatus() (*coordinator.Status, error)
	GetMonitors() (*ipc.MonitorsData, error)
	Stop(origin string) (bool, error)
}

type tickMsg time.Time

type snapshotMsg struct {
	status   *coordinator.Status
	monitors *ipc.MonitorsData
	err      error
}

type stopResultMsg struct {
	accepted bool
	err      error
}

// model is the root bubbletea model for the dashboard.
type model struct {
	src      Source
	interval time.Duration

	activeTab Tab
	status    *coordinator.Status
	monitors  *ipc.MonitorsData
	connErr   error
	notice    string

	// Stop asks for confirmation first.
	confirmStop bool

	// Terminal dimensions
	width  int
	height int
}

func newModel(src Source, interval time.Duration) model {
	return model{src: src, interval: interval, activeTab: TabSinks}
}

func (m model) fetch() tea.Msg {
	st, err := m.src.GetStatus()
	if err != nil {
		return snapshotMsg{err: err}
	}
	mons, err := m.src.GetMonitors()
	if err != nil {
		// Monitors are unknown until the first run has started.
		mons = nil
	}
	return snapshotMsg{status: st, monitors: mons}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) stop() tea.Msg {
	accepted, err := m.src.Stop("dashboard")
	return stopResultMsg{accepted: accepted, err: err}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetch, m.tick())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.confirmStop {
			m.confirmStop = false
			m.notice = ""
			if msg.String() == "y" {
				return m, m.stop
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1":
			m.activeTab = TabSinks
		case "2":
			m.activeTab = TabMonitors
		case "3":
			m.activeTab = TabRouting
		case "r":
			return m, m.fetch
		case "S":
			if m.connErr == nil && m.status != nil {
				m.confirmStop = true
				m.notice = "stop the mapper and close every sink? (y/n)"
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch, m.tick())

	case snapshotMsg:
		m.connErr = msg.err
		if msg.err == nil {
			m.status = msg.status
			if msg.monitors != nil {
				m.monitors = msg.monitors
			}
		}
		return m, nil

	case stopResultMsg:
		switch {
		case msg.err != nil:
			m.notice = "stop failed: " + msg.err.Error()
		case msg.accepted:
			m.notice = "stopping"
		default:
			m.notice = "a shutdown is already in progress"
		}
		return m, m.fetch
	}

	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.status, m.connErr, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.notice, m.width)

	usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
	contentHeight := m.height - usedHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch {
	case m.connErr != nil:
		content = renderEmpty(fmt.Sprintf("cannot reach the mapper: %v", m.connErr), m.width, contentHeight)
	case m.status == nil:
		content = renderEmpty("connecting...", m.width, contentHeight)
	default:
		content = m.renderTab(contentHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		lipgloss.NewStyle().Height(contentHeight).MaxHeight(contentHeight).Render(content),
		helpBar,
	)
}

func (m model) renderTab(height int) string {
	switch m.activeTab {
	case TabSinks:
		if len(m.status.Sinks) == 0 {
			return renderEmpty("no sinks are open", m.width, height)
		}
		return renderSinks(m.status)
	case TabMonitors:
		if m.monitors == nil || len(m.monitors.Monitors) == 0 {
			return renderEmpty("monitors have not been enumerated yet", m.width, height)
		}
		return renderMonitors(m.monitors)
	case TabRouting:
		if len(m.status.Branches) == 0 {
			return renderEmpty("no routing graph is running", m.width, height)
		}
		return renderRouting(m.status)
	}
	return ""
}

// Run shows a live dashboard of the mapper behind src, refreshing every
// interval, until the user quits.
func Run(src Source, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	_, err := tea.NewProgram(newModel(src, interval), tea.WithAltScreen()).Run()
	return err
}
