package thread

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"monitor/internal/types"
)

// normalizeThreadItem turns one raw backend item payload into a
// ConversationItem. The backend has produced two spellings of the same
// shapes over time (camelCase live events, snake_case turn history);
// both are accepted. Unknown types yield no item rather than an error.
func normalizeThreadItem(raw map[string]any) (types.ConversationItem, bool) {
	if raw == nil {
		return types.ConversationItem{}, false
	}
	id := stringField(raw, "id", "itemId", "item_id")
	switch normalizeItemType(stringField(raw, "type")) {
	case "agentmessage":
		return types.ConversationItem{
			ID:   id,
			Kind: types.ItemKindMessage,
			Role: types.RoleAssistant,
			Text: itemText(raw),
		}, true
	case "usermessage":
		return types.ConversationItem{
			ID:   id,
			Kind: types.ItemKindMessage,
			Role: types.RoleUser,
			Text: itemText(raw),
		}, true
	case "reasoning":
		return types.ConversationItem{
			ID:      id,
			Kind:    types.ItemKindReasoning,
			Summary: joinedText(raw["summary"]),
			Content: joinedText(raw["content"]),
		}, true
	case "commandexecution":
		command := stringField(raw, "command", "commandDisplay", "command_display")
		item := types.ConversationItem{
			ID:       id,
			Kind:     types.ItemKindTool,
			ToolType: "command",
			Title:    command,
			Status:   stringField(raw, "status"),
			Output:   stringField(raw, "aggregatedOutput", "aggregated_output", "output"),
		}
		if code, ok := coerceInt64(raw["exitCode"]); ok {
			item.Detail = fmt.Sprintf("exit %d", code)
		} else if code, ok := coerceInt64(raw["exit_code"]); ok {
			item.Detail = fmt.Sprintf("exit %d", code)
		}
		return item, true
	case "filechange":
		changes := normalizeFileChanges(raw["changes"])
		return types.ConversationItem{
			ID:       id,
			Kind:     types.ItemKindTool,
			ToolType: "fileChange",
			Title:    fileChangeTitle(changes),
			Status:   stringField(raw, "status"),
			Changes:  changes,
		}, true
	case "mcptoolcall":
		server := stringField(raw, "server")
		tool := stringField(raw, "tool")
		title := tool
		if server != "" && tool != "" {
			title = server + "." + tool
		} else if title == "" {
			title = server
		}
		return types.ConversationItem{
			ID:       id,
			Kind:     types.ItemKindTool,
			ToolType: "mcpToolCall",
			Title:    title,
			Status:   stringField(raw, "status"),
			Output:   stringField(raw, "output", "result"),
		}, true
	case "websearch":
		return types.ConversationItem{
			ID:       id,
			Kind:     types.ItemKindTool,
			ToolType: "webSearch",
			Title:    stringField(raw, "query"),
			Status:   stringField(raw, "status"),
		}, true
	case "todolist":
		return types.ConversationItem{
			ID:       id,
			Kind:     types.ItemKindTool,
			ToolType: "todoList",
			Title:    "Plan",
			Detail:   todoSummary(raw["items"]),
			Status:   stringField(raw, "status"),
		}, true
	case "error":
		return types.ConversationItem{
			ID:   id,
			Kind: types.ItemKindMessage,
			Role: types.RoleAssistant,
			Text: stringField(raw, "message", "text"),
		}, true
	case "enteredreviewmode":
		text := stringField(raw, "review", "prompt", "text")
		if text == "" {
			text = "Review started"
		}
		return types.ConversationItem{
			ID:          id,
			Kind:        types.ItemKindReview,
			ReviewState: types.ReviewStarted,
			Text:        text,
		}, true
	case "exitedreviewmode":
		return types.ConversationItem{
			ID:          id,
			Kind:        types.ItemKindReview,
			ReviewState: types.ReviewCompleted,
			Text:        reviewOutcome(raw["review"]),
		}, true
	default:
		return types.ConversationItem{}, false
	}
}

// itemsFromTurnHistory flattens a resume snapshot (thread with turns,
// each turn carrying items) into a single ordered item list.
func itemsFromTurnHistory(turns []map[string]any) []types.ConversationItem {
	var items []types.ConversationItem
	for _, turn := range turns {
		rawItems, _ := turn["items"].([]any)
		for _, entry := range rawItems {
			payload, _ := entry.(map[string]any)
			if item, ok := normalizeThreadItem(payload); ok && item.ID != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

// normalizeTokenUsage extracts a per-thread usage snapshot, tolerating
// the field spellings and nestings the backend has shipped.
func normalizeTokenUsage(raw map[string]any) types.TokenUsage {
	usage := nestedMap(raw, "tokenUsage", "token_usage", "usage")
	if usage == nil {
		usage = raw
	}
	totals := nestedMap(usage, "total", "totals")
	if totals == nil {
		totals = usage
	}
	out := types.TokenUsage{
		Total:       coerceInt64OrZero(totals, "totalTokens", "total_tokens", "total"),
		Input:       coerceInt64OrZero(totals, "inputTokens", "input_tokens", "input"),
		CachedInput: coerceInt64OrZero(totals, "cachedInputTokens", "cached_input_tokens", "cachedInput", "cached_input"),
		Output:      coerceInt64OrZero(totals, "outputTokens", "output_tokens", "output"),
	}
	out.ContextWindow = coerceInt64OrZero(usage, "contextWindow", "context_window")
	if out.ContextWindow == 0 {
		out.ContextWindow = coerceInt64OrZero(raw, "contextWindow", "context_window")
	}
	if out.Total == 0 {
		out.Total = out.Input + out.CachedInput + out.Output
	}
	return out
}

// normalizeRateLimits extracts a per-workspace rate-limit snapshot.
func normalizeRateLimits(raw map[string]any) types.RateLimitSnapshot {
	limits := nestedMap(raw, "rateLimits", "rate_limits")
	if limits == nil {
		limits = raw
	}
	return types.RateLimitSnapshot{
		Primary:   normalizeRateLimitWindow(nestedMap(limits, "primary")),
		Secondary: normalizeRateLimitWindow(nestedMap(limits, "secondary")),
	}
}

func normalizeRateLimitWindow(raw map[string]any) *types.RateLimitWindow {
	if raw == nil {
		return nil
	}
	window := &types.RateLimitWindow{
		WindowMinutes: coerceInt64OrZero(raw, "windowMinutes", "window_minutes", "windowDurationMins"),
		ResetsAt:      coerceInt64OrZero(raw, "resetsAt", "resets_at", "resetsInSeconds", "resets_in_seconds"),
	}
	if value, ok := coerceFloat(firstPresent(raw, "usedPercent", "used_percent", "percentUsed")); ok {
		window.UsedPercent = value
	}
	return window
}

func normalizeItemType(raw string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", ""))
}

// itemText accepts both a plain text field and the structured content
// list shape ([{type: "text", text: ...}]).
func itemText(raw map[string]any) string {
	if text := stringField(raw, "text"); text != "" {
		return text
	}
	return joinedText(raw["content"])
}

func joinedText(raw any) string {
	switch value := raw.(type) {
	case string:
		return value
	case []any:
		var parts []string
		for _, entry := range value {
			switch part := entry.(type) {
			case string:
				if part != "" {
					parts = append(parts, part)
				}
			case map[string]any:
				if text := stringField(part, "text"); text != "" {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func normalizeFileChanges(raw any) []types.FileChange {
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	var changes []types.FileChange
	for _, entry := range entries {
		payload, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		change := types.FileChange{
			Path: stringField(payload, "path", "file"),
			Kind: stringField(payload, "kind", "type"),
			Diff: stringField(payload, "diff"),
		}
		if change.Path != "" {
			changes = append(changes, change)
		}
	}
	return changes
}

func fileChangeTitle(changes []types.FileChange) string {
	switch len(changes) {
	case 0:
		return "File changes"
	case 1:
		return changes[0].Path
	default:
		return fmt.Sprintf("%s (+%d more)", changes[0].Path, len(changes)-1)
	}
}

func todoSummary(raw any) string {
	entries, ok := raw.([]any)
	if !ok {
		return ""
	}
	total := 0
	done := 0
	for _, entry := range entries {
		payload, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		total++
		if completed, _ := payload["completed"].(bool); completed {
			done++
		}
	}
	if total == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d done", done, total)
}

func reviewOutcome(raw any) string {
	switch value := raw.(type) {
	case string:
		if value != "" {
			return value
		}
	case map[string]any:
		if text := stringField(value, "text", "overallExplanation", "overall_explanation"); text != "" {
			return text
		}
	}
	return "Review completed"
}

func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func nestedMap(raw map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if value, ok := raw[key].(map[string]any); ok {
			return value
		}
	}
	return nil
}

func firstPresent(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			return value
		}
	}
	return nil
}

func coerceInt64OrZero(raw map[string]any, keys ...string) int64 {
	if value, ok := coerceInt64(firstPresent(raw, keys...)); ok {
		return value
	}
	return 0
}

// coerceInt64 accepts the numeric encodings seen in the wild: JSON
// numbers, json.Number, and string-encoded integers.
func coerceInt64(raw any) (int64, bool) {
	switch value := raw.(type) {
	case float64:
		return int64(value), true
	case int:
		return int64(value), true
	case int64:
		return value, true
	case json.Number:
		if parsed, err := value.Int64(); err == nil {
			return parsed, true
		}
		if parsed, err := value.Float64(); err == nil {
			return int64(parsed), true
		}
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return 0, false
		}
		if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return parsed, true
		}
		if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return int64(parsed), true
		}
	}
	return 0, false
}

func coerceFloat(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		if parsed, err := value.Float64(); err == nil {
			return parsed, true
		}
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return 0, false
		}
		if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
