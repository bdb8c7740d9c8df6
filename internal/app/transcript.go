package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"monitor/internal/types"
)

var (
	userHeaderStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	reasoningStyle       = lipgloss.NewStyle().Faint(true)
	toolHeaderStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	toolOutputStyle      = lipgloss.NewStyle().Faint(true)
	reviewStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const toolOutputTail = 12

// renderTranscript rebuilds the viewport content for the active thread.
func (m *Model) renderTranscript() {
	threadID := m.activeThreadID()
	if threadID == "" {
		m.viewport.SetContent("No thread selected. Press n to start one.")
		return
	}
	width := m.transcriptWidth()
	var content string
	if m.showDebug {
		content = renderDebugPanel(m.engine.DebugEvents(), width)
	} else {
		items := m.engine.Items(threadID)
		if max := m.cfg.TranscriptMaxItems(); len(items) > max {
			items = items[len(items)-max:]
		}
		content = renderItems(items, width)
	}
	if content == "" {
		content = "Empty thread."
	}
	m.viewport.SetContent(content)
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func renderItems(items []types.ConversationItem, width int) string {
	var blocks []string
	for _, item := range items {
		if block := renderItem(item, width); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func renderItem(item types.ConversationItem, width int) string {
	switch item.Kind {
	case types.ItemKindMessage:
		if item.Role == types.RoleUser {
			return userHeaderStyle.Render("You") + "\n" + xansi.Hardwrap(item.Text, width, true)
		}
		return assistantHeaderStyle.Render("Agent") + "\n" + renderMarkdown(item.Text, width)
	case types.ItemKindReasoning:
		text := item.Summary
		if text == "" {
			text = item.Content
		}
		if text == "" {
			return ""
		}
		return reasoningStyle.Render(xansi.Hardwrap("◦ "+firstLine(text), width, true))
	case types.ItemKindTool:
		return renderToolItem(item, width)
	case types.ItemKindReview:
		prefix := "Review: "
		if item.ReviewState == types.ReviewCompleted {
			prefix = "Review done: "
		}
		return reviewStyle.Render(xansi.Hardwrap(prefix+item.Text, width, true))
	default:
		return ""
	}
}

func renderToolItem(item types.ConversationItem, width int) string {
	header := item.Title
	if header == "" {
		header = item.ToolType
	}
	if item.Detail != "" {
		header += "  " + item.Detail
	}
	if item.Status != "" && item.Status != "completed" {
		header += "  [" + item.Status + "]"
	}
	block := toolHeaderStyle.Render(xansi.Hardwrap("$ "+header, width, true))

	if output := tailLines(item.Output, toolOutputTail); output != "" {
		block += "\n" + toolOutputStyle.Render(xansi.Hardwrap(output, width, true))
	}
	for _, change := range item.Changes {
		block += "\n" + toolOutputStyle.Render(truncateLine("  "+change.Kind+" "+change.Path, width))
	}
	return block
}

func renderDebugPanel(events []types.DebugEvent, width int) string {
	if len(events) == 0 {
		return "No protocol events yet."
	}
	var b strings.Builder
	b.WriteString("Protocol events (newest last)\n")
	for _, ev := range events {
		line := fmt.Sprintf("%d %s %s", ev.Seq, ev.Method, ev.Detail)
		if ev.ThreadID != "" {
			line += " thread=" + ev.ThreadID
		}
		b.WriteString(truncateLine(line, width))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// plainTranscript renders the thread without styling for the clipboard.
func plainTranscript(items []types.ConversationItem) string {
	var b strings.Builder
	for _, item := range items {
		switch item.Kind {
		case types.ItemKindMessage:
			who := "agent"
			if item.Role == types.RoleUser {
				who = "you"
			}
			fmt.Fprintf(&b, "[%s]\n%s\n\n", who, item.Text)
		case types.ItemKindTool:
			fmt.Fprintf(&b, "$ %s\n", item.Title)
			if item.Output != "" {
				b.WriteString(item.Output)
				if !strings.HasSuffix(item.Output, "\n") {
					b.WriteString("\n")
				}
			}
			b.WriteString("\n")
		case types.ItemKindReview:
			fmt.Fprintf(&b, "[review] %s\n\n", item.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func approvalSummary(approval types.ApprovalRequest) string {
	var params map[string]any
	if len(approval.Params) > 0 {
		_ = json.Unmarshal(approval.Params, &params)
	}
	if command, ok := params["command"].(string); ok && command != "" {
		return command
	}
	switch approval.Method {
	case "item/fileChange/requestApproval":
		return "apply file changes"
	case "item/commandExecution/requestApproval":
		return "run command"
	default:
		return approval.Method
	}
}

func tailLines(text string, n int) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	kept := lines[len(lines)-n:]
	return fmt.Sprintf("… (%d lines)\n%s", len(lines)-n, strings.Join(kept, "\n"))
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
