package tui

import (
	"fmt"
	"strings"

	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/ipc"
	"github.com/1broseidon/projectmapper/internal/presentation"
)

func renderSinks(st *coordinator.Status) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-5s %-16s %-9s %-28s %-11s %10s %8s",
		"SINK", "NAME", "STATE", "TARGET", "SIZE", "FRAMES", "DROPPED")))
	b.WriteString("\n")
	for _, s := range st.Sinks {
		line := fmt.Sprintf("%-5d %-16s %-9s %-28s %-11s %10d %8d",
			s.SinkID, truncate(s.Name, 16), s.State, truncate(s.Target, 28),
			fmt.Sprintf("%dx%d", s.Width, s.Height), s.FramesSubmitted, s.FramesDropped)
		b.WriteString(stateStyle(s.State, line))
		b.WriteString("\n")
		if s.Error != "" {
			b.WriteString(errStyle.Render("      " + s.Error))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func stateStyle(s presentation.State, line string) string {
	switch s {
	case presentation.StateRunning:
		return line
	case presentation.StateClosing, presentation.StateClosed:
		return dimStyle.Render(line)
	default:
		return warnStyle.Render(line)
	}
}

func renderMonitors(data *ipc.MonitorsData) string {
	var b strings.Builder
	for i, m := range data.Monitors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(headerStyle.Render(m.Name))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  at %d,%d  %dx%d", m.X, m.Y, m.Width, m.Height)))
		b.WriteString("\n")
		for _, mode := range m.Modes {
			label := fmt.Sprintf("  %dx%d@%d", mode.Width, mode.Height, mode.RefreshHz)
			if mode == m.Current {
				b.WriteString(okStyle.Render(label + " *"))
			} else {
				b.WriteString(label)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderRouting(st *coordinator.Status) string {
	names := make(map[uint32]string, len(st.Sinks))
	for _, s := range st.Sinks {
		names[s.SinkID] = s.Name
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("REGION  SOURCE -> SINK"))
	b.WriteString("\n")
	for _, br := range st.Branches {
		sink := fmt.Sprintf("sink %d", br.SinkID)
		if n := names[br.SinkID]; n != "" {
			sink += " (" + n + ")"
		}
		fmt.Fprintf(&b, "%-7s source %d -> %s\n", truncate(br.Name, 7), br.SourceID, sink)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "~"
}
