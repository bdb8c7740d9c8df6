package thread

import (
	"testing"

	"monitor/internal/types"
)

func TestNormalizeThreadItemAcceptsBothSpellings(t *testing.T) {
	live := map[string]any{"id": "m1", "type": "agentMessage", "text": "hello"}
	history := map[string]any{"id": "m1", "type": "agent_message", "text": "hello"}

	for _, raw := range []map[string]any{live, history} {
		item, ok := normalizeThreadItem(raw)
		if !ok {
			t.Fatalf("normalize rejected %v", raw)
		}
		if item.Kind != types.ItemKindMessage || item.Role != types.RoleAssistant || item.Text != "hello" {
			t.Fatalf("item = %+v", item)
		}
	}
}

func TestNormalizeCommandExecution(t *testing.T) {
	raw := map[string]any{
		"id":               "c1",
		"type":             "command_execution",
		"command":          "ls -la",
		"status":           "completed",
		"aggregatedOutput": "total 0\n",
		"exitCode":         float64(0),
	}
	item, ok := normalizeThreadItem(raw)
	if !ok {
		t.Fatalf("normalize rejected command execution")
	}
	if item.Kind != types.ItemKindTool || item.ToolType != "command" {
		t.Fatalf("item = %+v", item)
	}
	if item.Title != "ls -la" || item.Output != "total 0\n" || item.Detail != "exit 0" {
		t.Fatalf("item = %+v", item)
	}
}

func TestNormalizeReasoningJoinsParts(t *testing.T) {
	raw := map[string]any{
		"id":      "r1",
		"type":    "reasoning",
		"summary": []any{"first", map[string]any{"text": "second"}},
	}
	item, ok := normalizeThreadItem(raw)
	if !ok {
		t.Fatalf("normalize rejected reasoning")
	}
	if item.Kind != types.ItemKindReasoning {
		t.Fatalf("kind = %q", item.Kind)
	}
	if item.Summary != "first\nsecond" {
		t.Fatalf("summary = %q", item.Summary)
	}
}

func TestNormalizeReviewMarkers(t *testing.T) {
	started, ok := normalizeThreadItem(map[string]any{"id": "v1", "type": "enteredReviewMode"})
	if !ok || started.Kind != types.ItemKindReview || started.ReviewState != types.ReviewStarted {
		t.Fatalf("started = %+v ok=%v", started, ok)
	}
	ended, ok := normalizeThreadItem(map[string]any{"id": "v2", "type": "exited_review_mode"})
	if !ok || ended.ReviewState != types.ReviewCompleted {
		t.Fatalf("ended = %+v ok=%v", ended, ok)
	}
}

func TestNormalizeUnknownTypeDropped(t *testing.T) {
	if _, ok := normalizeThreadItem(map[string]any{"id": "x", "type": "holographicDisplay"}); ok {
		t.Fatalf("unknown item type should be dropped")
	}
}

func TestItemsFromTurnHistoryFlattens(t *testing.T) {
	turns := []map[string]any{
		{"items": []any{
			map[string]any{"id": "u1", "type": "user_message", "text": "q"},
			map[string]any{"id": "a1", "type": "agent_message", "text": "a"},
		}},
		{"items": []any{
			map[string]any{"id": "u2", "type": "user_message", "text": "q2"},
			map[string]any{"type": "agent_message", "text": "no id, dropped"},
		}},
	}
	items := itemsFromTurnHistory(turns)
	want := []string{"u1", "a1", "u2"}
	if len(items) != len(want) {
		t.Fatalf("len = %d, want %d", len(items), len(want))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("items[%d].ID = %q, want %q", i, items[i].ID, id)
		}
	}
}

func TestNormalizeTokenUsage(t *testing.T) {
	usage := normalizeTokenUsage(map[string]any{
		"threadId": "t1",
		"tokenUsage": map[string]any{
			"total": map[string]any{
				"inputTokens":       float64(1200),
				"cachedInputTokens": float64(800),
				"outputTokens":      float64(300),
			},
			"contextWindow": float64(272000),
		},
	})
	if usage.Input != 1200 || usage.CachedInput != 800 || usage.Output != 300 {
		t.Fatalf("usage = %+v", usage)
	}
	if usage.Total != 2300 {
		t.Fatalf("total = %d, want sum of parts when absent", usage.Total)
	}
	if usage.ContextWindow != 272000 {
		t.Fatalf("context window = %d", usage.ContextWindow)
	}
}

func TestNormalizeRateLimits(t *testing.T) {
	snapshot := normalizeRateLimits(map[string]any{
		"rateLimits": map[string]any{
			"primary": map[string]any{
				"usedPercent":   22.5,
				"windowMinutes": float64(300),
				"resetsAt":      float64(1767225600),
			},
		},
	})
	if snapshot.Primary == nil {
		t.Fatalf("primary window missing")
	}
	if snapshot.Primary.UsedPercent != 22.5 || snapshot.Primary.WindowMinutes != 300 {
		t.Fatalf("primary = %+v", snapshot.Primary)
	}
	if snapshot.Secondary != nil {
		t.Fatalf("secondary should be nil when absent")
	}
}
