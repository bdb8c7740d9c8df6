package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	workspaceHeaderStyle = lipgloss.NewStyle().Bold(true)
	activeThreadStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	unreadMarkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func (m *Model) renderSidebar(width int) string {
	var b strings.Builder
	for i, workspace := range m.workspaces {
		header := workspace.Name
		if i == m.wsIndex {
			header = "▸ " + header
		} else {
			header = "  " + header
		}
		b.WriteString(workspaceHeaderStyle.Render(truncateLine(header, width)))
		b.WriteString("\n")
		if i != m.wsIndex {
			continue
		}
		active := m.engine.ActiveThreadID(workspace.ID)
		for _, info := range m.engine.Threads(workspace.ID) {
			line := "    " + threadMarker(info.Status.IsProcessing, info.Status.HasUnread, m.loader.View()) + info.Name
			line = truncateLine(line, width)
			switch {
			case info.ID == active:
				line = activeThreadStyle.Render(line)
			case info.Status.HasUnread:
				line = unreadMarkStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	if b.Len() == 0 {
		return "no workspaces"
	}
	return strings.TrimRight(b.String(), "\n")
}

// threadMarker prefixes a thread line with its live state: a spinner
// while the agent works, a dot for unread output, nothing otherwise.
func threadMarker(processing, unread bool, spinnerFrame string) string {
	switch {
	case processing:
		return spinnerFrame + " "
	case unread:
		return "● "
	default:
		return "  "
	}
}

func truncateLine(line string, width int) string {
	if width <= 0 || runewidth.StringWidth(line) <= width {
		return line
	}
	return runewidth.Truncate(line, width, "…")
}
