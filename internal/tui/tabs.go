package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/projectmapper/internal/coordinator"
)

// Tab identifies a TUI tab.
type Tab int

const (
	TabSinks Tab = iota
	TabMonitors
	TabRouting
	tabCount // sentinel for iteration
)

func (t Tab) String() string {
	switch t {
	case TabSinks:
		return "Sinks"
	case TabMonitors:
		return "Monitors"
	case TabRouting:
		return "Routing"
	default:
		return "?"
	}
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			MarginBottom(1)

	tabGap = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		SetString(" ")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// renderTabBar renders the tab bar with the given active tab and width.
func renderTabBar(active Tab, width int) string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		label := fmt.Sprintf("%d:%s", int(i)+1, i)
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, intersperse(tabs, tabGap.Render())...)
	return tabBarStyle.Width(width).Render(row)
}

// intersperse inserts sep between each element of items.
func intersperse(items []string, sep string) []string {
	if len(items) <= 1 {
		return items
	}
	result := make([]string, 0, len(items)*2-1)
	for i, item := range items {
		if i > 0 {
			result = append(result, sep)
		}
		result = append(result, item)
	}
	return result
}

// renderEmpty centers msg in the content area.
func renderEmpty(msg string, width, height int) string {
	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Foreground(lipgloss.Color("241")).
		Align(lipgloss.Center, lipgloss.Center)
	return style.Render(msg)
}

func renderStatusBar(st *coordinator.Status, connErr error, width int) string {
	var status string
	if connErr != nil || st == nil {
		dot := dimStyle.Render("●")
		status = dot + " mapper not running"
	} else {
		dot := okStyle.Render("●")
		if st.Phase != coordinator.PhaseRunning {
			dot = warnStyle.Render("●")
		}
		parts := []string{dot + " " + st.Phase.String(), "run:" + shortID(st.RunID)}
		if st.Uptime != "" {
			parts = append(parts, "up:"+st.Uptime)
		}
		if st.Cause != "" {
			parts = append(parts, "cause:"+st.Cause)
		}
		status = strings.Join(parts, "  ")
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(status)
}

// renderHelpBar renders the bottom help/keybinding bar.
func renderHelpBar(notice string, width int) string {
	help := "tab/shift-tab: switch tabs  1-3: jump to tab  r: refresh  S: stop mapper  q/ctrl-c: quit"
	if notice != "" {
		help = notice
	}
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
