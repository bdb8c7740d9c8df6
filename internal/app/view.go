package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
	approvalStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)
	composerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(lipgloss.Color("240"))
)

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	content := m.viewport.View()
	if approval := m.approvalBanner(); approval != "" {
		content = approval + "\n" + content
	}

	main := content
	if width := m.sidebarWidth(); width > 0 {
		sidebar := sidebarStyle.Width(width).Height(m.viewport.Height).Render(m.renderSidebar(width))
		main = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	}

	composer := composerStyle.Width(m.width - 1).Render(m.composer.View())

	return strings.Join([]string{main, composer, m.statusLine()}, "\n")
}

func (m *Model) statusLine() string {
	var parts []string
	if m.busy > 0 {
		parts = append(parts, m.loader.View())
	}
	if workspace, ok := m.activeWorkspace(); ok {
		parts = append(parts, workspace.Name)
		if usage, ok := m.engine.TokenUsage(m.engine.ActiveThreadID(workspace.ID)); ok && usage.Total > 0 {
			parts = append(parts, fmt.Sprintf("%s tok", formatTokens(usage.Total)))
		}
		if limits, ok := m.engine.RateLimits(workspace.ID); ok && limits.Primary != nil {
			parts = append(parts, fmt.Sprintf("%.0f%% used", limits.Primary.UsedPercent))
		}
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	if m.model != "" {
		parts = append(parts, m.model)
	}
	parts = append(parts, "q quit  i compose  n new  r reload  s stop  a archive  m model")
	return statusStyle.MaxWidth(m.width).Render(strings.Join(parts, " | "))
}

func (m *Model) approvalBanner() string {
	approvals := m.engine.Approvals()
	if len(approvals) == 0 {
		return ""
	}
	first := approvals[0]
	label := "Approval requested: " + approvalSummary(first)
	if len(approvals) > 1 {
		label += fmt.Sprintf(" (+%d more)", len(approvals)-1)
	}
	label += "  [y]es / [n]o"
	return approvalStyle.MaxWidth(m.transcriptWidth()).Render(label)
}

func formatTokens(total int64) string {
	switch {
	case total >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(total)/1_000_000)
	case total >= 1_000:
		return fmt.Sprintf("%.1fk", float64(total)/1_000)
	default:
		return fmt.Sprintf("%d", total)
	}
}
