package thread

import (
	"encoding/json"
	"time"

	"monitor/internal/logging"
	"monitor/internal/types"
)

// Event ingestion. Each callback is idempotent against duplicated or
// reordered notifications: every handler ensures the thread exists
// before touching it, and the reducer tolerates unknown item ids.

// WorkspaceConnected records that a workspace's app-server session is
// up. No state change beyond the debug trail; threads appear lazily as
// events arrive.
func (e *Engine) WorkspaceConnected(workspaceID string) {
	e.logger.Info("workspace connected", logging.F("workspace", workspaceID))
	e.recordDebug(workspaceID, "", "workspace/connected", "")
}

// WorkspaceDisconnected clears the in-flight flags of the workspace's
// threads so the UI never shows a spinner for a dead session.
func (e *Engine) WorkspaceDisconnected(workspaceID string, err error) {
	if err != nil {
		e.logger.Warn("workspace disconnected", logging.F("workspace", workspaceID), logging.F("error", err))
	}
	e.mu.Lock()
	for _, threadID := range e.state.ThreadsByWorkspace[workspaceID] {
		e.dispatchLocked(ClearActiveTurn{ThreadID: threadID})
	}
	e.mu.Unlock()
	e.recordDebug(workspaceID, "", "workspace/disconnected", "")
}

func (e *Engine) AgentMessageDelta(workspaceID, threadID, itemID, delta string) {
	e.dispatch(
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		AppendAgentDelta{ThreadID: threadID, ItemID: itemID, Delta: delta},
		MarkProcessing{ThreadID: threadID, Processing: true},
	)
}

func (e *Engine) AgentMessageCompleted(workspaceID, threadID, itemID, text string) {
	actions := []Action{
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		CompleteAgentMessage{ThreadID: threadID, ItemID: itemID, Text: text},
		MarkProcessing{ThreadID: threadID, Processing: false},
	}
	if !e.isActiveThread(threadID) {
		actions = append(actions, MarkUnread{ThreadID: threadID, Unread: true})
	}
	e.dispatch(actions...)
}

func (e *Engine) ReasoningSummaryDelta(workspaceID, threadID, itemID, delta string) {
	e.dispatch(
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		AppendReasoningSummary{ThreadID: threadID, ItemID: itemID, Delta: delta},
		MarkProcessing{ThreadID: threadID, Processing: true},
	)
}

func (e *Engine) ReasoningContentDelta(workspaceID, threadID, itemID, delta string) {
	e.dispatch(
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		AppendReasoningContent{ThreadID: threadID, ItemID: itemID, Delta: delta},
		MarkProcessing{ThreadID: threadID, Processing: true},
	)
}

func (e *Engine) ToolOutputDelta(workspaceID, threadID, itemID, delta string) {
	e.dispatch(
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		AppendToolOutput{ThreadID: threadID, ItemID: itemID, Delta: delta},
		MarkProcessing{ThreadID: threadID, Processing: true},
	)
}

// ItemUpserted handles item/started and item/completed. Review marker
// items flip the reviewing flag instead of entering the transcript;
// leaving review mode also force-clears isProcessing because the
// server ends the review turn without a separate completion.
func (e *Engine) ItemUpserted(workspaceID, threadID string, raw map[string]any, completed bool) {
	item, ok := normalizeThreadItem(raw)
	if !ok {
		return
	}
	if item.Kind == types.ItemKindReview {
		switch item.ReviewState {
		case types.ReviewStarted:
			e.dispatch(
				EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
				MarkReviewing{ThreadID: threadID, Reviewing: true},
			)
		case types.ReviewCompleted:
			actions := []Action{
				EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
				MarkReviewing{ThreadID: threadID, Reviewing: false},
				MarkProcessing{ThreadID: threadID, Processing: false},
			}
			if item.Text != "" {
				actions = append(actions, UpsertItem{ThreadID: threadID, Item: item})
			}
			e.dispatch(actions...)
		}
		return
	}
	if completed && item.Kind == types.ItemKindMessage && item.Role == types.RoleAssistant {
		e.AgentMessageCompleted(workspaceID, threadID, item.ID, item.Text)
		return
	}
	e.dispatch(
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		UpsertItem{ThreadID: threadID, Item: item},
	)
}

// TurnStarted records the in-flight turn. A notification without a
// turn id still flips the processing flag; it just cannot be
// interrupted until an id arrives.
func (e *Engine) TurnStarted(workspaceID, threadID, turnID string) {
	actions := []Action{EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID}}
	if turnID != "" {
		actions = append(actions, SetActiveTurn{ThreadID: threadID, TurnID: turnID})
	} else {
		actions = append(actions, MarkProcessing{ThreadID: threadID, Processing: true})
	}
	e.dispatch(actions...)
}

func (e *Engine) TurnCompleted(workspaceID, threadID, turnID string) {
	actions := []Action{
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		ClearActiveTurn{ThreadID: threadID},
	}
	if !e.isActiveThread(threadID) {
		actions = append(actions, MarkUnread{ThreadID: threadID, Unread: true})
	}
	e.dispatch(actions...)
}

func (e *Engine) TokenUsageUpdated(workspaceID, threadID string, raw map[string]any) {
	e.dispatch(
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		SetTokenUsage{ThreadID: threadID, Usage: normalizeTokenUsage(raw)},
	)
}

func (e *Engine) RateLimitsUpdated(workspaceID string, raw map[string]any) {
	e.dispatch(SetRateLimits{WorkspaceID: workspaceID, Limits: normalizeRateLimits(raw)})
}

// ApprovalRequested queues a server-side approval request until the
// user answers it through RespondToApproval.
func (e *Engine) ApprovalRequested(workspaceID string, requestID int, method string, params json.RawMessage) {
	e.dispatch(AddApproval{Approval: types.ApprovalRequest{
		WorkspaceID: workspaceID,
		RequestID:   requestID,
		Method:      method,
		Params:      params,
		CreatedAt:   time.Now(),
	}})
	e.recordDebug(workspaceID, "", method, "approval requested")
}

// HandleNotification routes one server notification to its callback.
// Unknown methods land in the debug trail only, so new server event
// types degrade gracefully.
func (e *Engine) HandleNotification(workspaceID, method string, params json.RawMessage) {
	var body map[string]any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &body); err != nil {
			e.logger.Warn("bad notification params",
				logging.F("workspace", workspaceID),
				logging.F("method", method),
				logging.F("error", err))
			return
		}
	}
	threadID := stringField(body, "threadId")
	itemID := stringField(body, "itemId")
	delta := stringField(body, "delta")

	switch method {
	case "item/agentMessage/delta":
		e.AgentMessageDelta(workspaceID, threadID, itemID, delta)
	case "item/reasoning/summaryTextDelta":
		e.ReasoningSummaryDelta(workspaceID, threadID, itemID, delta)
	case "item/reasoning/textDelta":
		e.ReasoningContentDelta(workspaceID, threadID, itemID, delta)
	case "item/commandExecution/outputDelta", "item/fileChange/outputDelta", "item/mcpToolCall/outputDelta":
		e.ToolOutputDelta(workspaceID, threadID, itemID, delta)
	case "item/started", "item/updated", "item/completed":
		if item := nestedMap(body, "item"); item != nil {
			e.ItemUpserted(workspaceID, threadID, item, method == "item/completed")
		}
	case "turn/started":
		e.TurnStarted(workspaceID, threadID, turnIDField(body))
	case "turn/completed", "turn/failed":
		e.TurnCompleted(workspaceID, threadID, turnIDField(body))
	case "thread/tokenUsage/updated":
		e.TokenUsageUpdated(workspaceID, threadID, body)
	case "account/rateLimits/updated":
		e.RateLimitsUpdated(workspaceID, body)
	default:
		e.logger.Debug("unhandled notification",
			logging.F("workspace", workspaceID),
			logging.F("method", method))
	}
	e.recordDebug(workspaceID, threadID, method, debugDetail(itemID, delta))
}

// turnIDField tolerates both spellings the server has used: a flat
// turnId and a nested turn object.
func turnIDField(body map[string]any) string {
	if id := stringField(body, "turnId"); id != "" {
		return id
	}
	return stringField(nestedMap(body, "turn"), "id")
}

func debugDetail(itemID, delta string) string {
	switch {
	case itemID == "":
		return ""
	case delta == "":
		return itemID
	default:
		return itemID + " +" + truncateForDebug(delta)
	}
}

func truncateForDebug(s string) string {
	const max = 40
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
