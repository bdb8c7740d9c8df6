package thread

import (
	"encoding/json"
	"testing"
)

func notify(t *testing.T, engine *Engine, workspaceID, method string, params map[string]any) {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	engine.HandleNotification(workspaceID, method, raw)
}

func TestHandleNotificationDeltaStream(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})

	notify(t, engine, "ws", "item/agentMessage/delta", map[string]any{
		"threadId": "t1", "itemId": "m1", "delta": "Hel",
	})
	notify(t, engine, "ws", "item/agentMessage/delta", map[string]any{
		"threadId": "t1", "itemId": "m1", "delta": "lo",
	})

	items := engine.Items("t1")
	if len(items) != 1 || items[0].Text != "Hello" {
		t.Fatalf("items = %+v", items)
	}
	if !engine.Status("t1").IsProcessing {
		t.Fatalf("delta must imply processing")
	}

	notify(t, engine, "ws", "item/completed", map[string]any{
		"threadId": "t1",
		"item":     map[string]any{"id": "m1", "type": "agentMessage", "text": "Hello there"},
	})
	items = engine.Items("t1")
	if items[0].Text != "Hello there" {
		t.Fatalf("final text = %q", items[0].Text)
	}
	if engine.Status("t1").IsProcessing {
		t.Fatalf("completion must clear processing")
	}
	// t1 is the workspace's only thread, so it is active: no unread.
	if engine.Status("t1").HasUnread {
		t.Fatalf("active thread must not gain unread")
	}
}

func TestCompletionOnBackgroundThreadSetsUnread(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})
	engine.dispatch(
		EnsureThread{WorkspaceID: "ws", ThreadID: "t1"},
		EnsureThread{WorkspaceID: "ws", ThreadID: "t2"},
	)

	notify(t, engine, "ws", "turn/completed", map[string]any{
		"threadId": "t2", "turn": map[string]any{"id": "turn-5"},
	})
	if !engine.Status("t2").HasUnread {
		t.Fatalf("background completion must set unread")
	}
	if engine.Status("t1").HasUnread {
		t.Fatalf("active thread untouched")
	}

	engine.SetActiveThread("ws", "t2")
	if engine.Status("t2").HasUnread {
		t.Fatalf("selection must clear unread")
	}
}

func TestTurnLifecycle(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})

	notify(t, engine, "ws", "turn/started", map[string]any{
		"threadId": "t1", "turn": map[string]any{"id": "turn-1"},
	})
	if engine.ActiveTurnID("t1") != "turn-1" {
		t.Fatalf("turn = %q", engine.ActiveTurnID("t1"))
	}
	if !engine.Status("t1").IsProcessing {
		t.Fatalf("turn/started must mark processing")
	}

	notify(t, engine, "ws", "turn/completed", map[string]any{
		"threadId": "t1", "turn": map[string]any{"id": "turn-1"},
	})
	if engine.ActiveTurnID("t1") != "" || engine.Status("t1").IsProcessing {
		t.Fatalf("turn/completed must clear turn and processing together")
	}
}

func TestTurnStartedWithoutIDOnlyMarksProcessing(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})

	notify(t, engine, "ws", "turn/started", map[string]any{"threadId": "t1"})
	if !engine.Status("t1").IsProcessing {
		t.Fatalf("turn/started must mark processing even without a turn id")
	}
	if engine.ActiveTurnID("t1") != "" {
		t.Fatalf("no turn id must be recorded, got %q", engine.ActiveTurnID("t1"))
	}

	notify(t, engine, "ws", "turn/completed", map[string]any{"threadId": "t1"})
	if engine.Status("t1").IsProcessing {
		t.Fatalf("turn/completed must clear processing")
	}
}

func TestReviewModeMarkers(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})

	notify(t, engine, "ws", "item/started", map[string]any{
		"threadId": "t1",
		"item":     map[string]any{"id": "v1", "type": "enteredReviewMode"},
	})
	if !engine.Status("t1").IsReviewing {
		t.Fatalf("entering review mode must set the flag")
	}
	if len(engine.Items("t1")) != 0 {
		t.Fatalf("review start marker should not enter the transcript")
	}

	notify(t, engine, "ws", "item/completed", map[string]any{
		"threadId": "t1",
		"item": map[string]any{
			"id": "v2", "type": "exitedReviewMode",
			"review": map[string]any{"text": "Looks good overall."},
		},
	})
	status := engine.Status("t1")
	if status.IsReviewing {
		t.Fatalf("exit must clear reviewing")
	}
	if status.IsProcessing {
		t.Fatalf("exit must force processing off")
	}
	items := engine.Items("t1")
	if len(items) != 1 || items[0].Text != "Looks good overall." {
		t.Fatalf("review outcome missing, items = %+v", items)
	}
}

func TestToolOutputDeltaRouting(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})

	notify(t, engine, "ws", "item/started", map[string]any{
		"threadId": "t1",
		"item":     map[string]any{"id": "c1", "type": "commandExecution", "command": "make"},
	})
	notify(t, engine, "ws", "item/commandExecution/outputDelta", map[string]any{
		"threadId": "t1", "itemId": "c1", "delta": "compiling",
	})
	notify(t, engine, "ws", "item/commandExecution/outputDelta", map[string]any{
		"threadId": "t1", "itemId": "c1", "delta": "... done",
	})

	items := engine.Items("t1")
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Output != "compiling... done" {
		t.Fatalf("output = %q", items[0].Output)
	}
}

func TestDuplicateEventsAreIdempotent(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})
	payload := map[string]any{
		"threadId": "t1",
		"item":     map[string]any{"id": "u1", "type": "userMessage", "text": "hello"},
	}
	notify(t, engine, "ws", "item/completed", payload)
	notify(t, engine, "ws", "item/completed", payload)

	if got := len(engine.Items("t1")); got != 1 {
		t.Fatalf("duplicate item event produced %d items", got)
	}
	if got := len(engine.Threads("ws")); got != 1 {
		t.Fatalf("duplicate ensure produced %d threads", got)
	}
}

func TestTokenUsageAndRateLimitNotifications(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})

	notify(t, engine, "ws", "thread/tokenUsage/updated", map[string]any{
		"threadId": "t1",
		"tokenUsage": map[string]any{
			"total": map[string]any{"inputTokens": float64(10), "outputTokens": float64(5)},
		},
	})
	usage, ok := engine.TokenUsage("t1")
	if !ok || usage.Input != 10 || usage.Output != 5 || usage.Total != 15 {
		t.Fatalf("usage = %+v ok=%v", usage, ok)
	}

	notify(t, engine, "ws", "account/rateLimits/updated", map[string]any{
		"rateLimits": map[string]any{"primary": map[string]any{"usedPercent": 75.0}},
	})
	limits, ok := engine.RateLimits("ws")
	if !ok || limits.Primary == nil || limits.Primary.UsedPercent != 75.0 {
		t.Fatalf("limits = %+v ok=%v", limits, ok)
	}
}

func TestUnknownNotificationOnlyLogs(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})
	before := engine.Version()
	notify(t, engine, "ws", "thread/somethingNew", map[string]any{"threadId": "t1"})
	if len(engine.Threads("ws")) != 0 {
		t.Fatalf("unknown method must not create state")
	}
	// The debug trail still records it.
	events := engine.DebugEvents()
	if len(events) == 0 || events[len(events)-1].Method != "thread/somethingNew" {
		t.Fatalf("debug trail missing, events = %+v", events)
	}
	if engine.Version() == before {
		t.Fatalf("debug trail should bump the version for the panel")
	}
}

func TestWorkspaceDisconnectedClearsSpinners(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})
	engine.dispatch(
		EnsureThread{WorkspaceID: "ws", ThreadID: "t1"},
		SetActiveTurn{ThreadID: "t1", TurnID: "turn-1"},
	)

	engine.WorkspaceDisconnected("ws", nil)
	if engine.Status("t1").IsProcessing || engine.ActiveTurnID("t1") != "" {
		t.Fatalf("disconnect must clear in-flight state")
	}
}

func TestApprovalRequestQueue(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})
	params := json.RawMessage(`{"threadId":"t1","command":"rm -rf build"}`)

	engine.ApprovalRequested("ws", 3, "item/commandExecution/requestApproval", params)
	engine.ApprovalRequested("ws", 3, "item/commandExecution/requestApproval", params)
	engine.ApprovalRequested("ws", 4, "item/fileChange/requestApproval", nil)

	approvals := engine.Approvals()
	if len(approvals) != 2 {
		t.Fatalf("approvals = %+v", approvals)
	}
	if approvals[0].RequestID != 3 || approvals[1].RequestID != 4 {
		t.Fatalf("queue order wrong: %+v", approvals)
	}

	var decoded map[string]any
	if err := json.Unmarshal(approvals[0].Params, &decoded); err != nil {
		t.Fatalf("params should round-trip: %v", err)
	}
	if decoded["command"] != "rm -rf build" {
		t.Fatalf("params = %v", decoded)
	}
}

func TestItemUpsertedIgnoresMalformedItem(t *testing.T) {
	engine := newTestEngine(&fakeBackend{})
	engine.ItemUpserted("ws", "t1", nil, false)
	engine.ItemUpserted("ws", "t1", map[string]any{"type": "mystery"}, true)
	if len(engine.Threads("ws")) != 0 {
		t.Fatalf("malformed items must not create threads")
	}
}
