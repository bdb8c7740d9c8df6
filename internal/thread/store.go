package thread

import "monitor/internal/types"

const placeholderThreadName = "New conversation"

// Reduce maps (state, action) to the next state. It is total and never
// fails: unknown actions and no-op transitions return the state pointer
// unchanged, so callers can detect change by reference equality.
func Reduce(state *State, action Action) *State {
	if state == nil {
		state = NewState()
	}
	switch a := action.(type) {
	case EnsureThread:
		return reduceEnsureThread(state, a)
	case SetActiveThread:
		return reduceSetActiveThread(state, a)
	case RemoveThread:
		return reduceRemoveThread(state, a)
	case RemoveWorkspace:
		return reduceRemoveWorkspace(state, a)
	case SetThreadName:
		if a.Name == "" || state.Names[a.ThreadID] == a.Name {
			return state
		}
		next := state.clone()
		next.Names[a.ThreadID] = a.Name
		return next
	case AppendAgentDelta:
		return reduceAppendAgentDelta(state, a)
	case CompleteAgentMessage:
		return reduceCompleteAgentMessage(state, a)
	case AppendReasoningSummary:
		return reduceAppendReasoning(state, a.ThreadID, a.ItemID, a.Delta, false)
	case AppendReasoningContent:
		return reduceAppendReasoning(state, a.ThreadID, a.ItemID, a.Delta, true)
	case AppendToolOutput:
		return reduceAppendToolOutput(state, a)
	case UpsertItem:
		return reduceUpsertItem(state, a)
	case ReplaceItems:
		next := state.clone()
		next.Items[a.ThreadID] = a.Items
		return next
	case MarkProcessing:
		return reduceStatus(state, a.ThreadID, func(st types.ThreadStatus) types.ThreadStatus {
			st.IsProcessing = a.Processing
			return st
		})
	case MarkReviewing:
		return reduceStatus(state, a.ThreadID, func(st types.ThreadStatus) types.ThreadStatus {
			st.IsReviewing = a.Reviewing
			return st
		})
	case MarkUnread:
		return reduceStatus(state, a.ThreadID, func(st types.ThreadStatus) types.ThreadStatus {
			st.HasUnread = a.Unread
			return st
		})
	case SetActiveTurn:
		// A turn event without an id must not shadow a recorded turn or
		// leave a "" entry behind; ClearActiveTurn is the only eraser.
		if a.TurnID == "" {
			return state
		}
		st := state.Status[a.ThreadID]
		if state.ActiveTurns[a.ThreadID] == a.TurnID && st.IsProcessing {
			return state
		}
		next := state.clone()
		next.ActiveTurns[a.ThreadID] = a.TurnID
		st.IsProcessing = true
		next.Status[a.ThreadID] = st
		return next
	case ClearActiveTurn:
		return reduceClearActiveTurn(state, a)
	case SetTokenUsage:
		next := state.clone()
		next.TokenUsage[a.ThreadID] = a.Usage
		return next
	case SetRateLimits:
		next := state.clone()
		next.RateLimits[a.WorkspaceID] = a.Limits
		return next
	case SetModels:
		if len(a.Models) == 0 {
			return state
		}
		next := state.clone()
		next.Models[a.WorkspaceID] = a.Models
		return next
	case AddApproval:
		return reduceAddApproval(state, a)
	case RemoveApproval:
		return reduceRemoveApproval(state, a)
	default:
		return state
	}
}

func reduceEnsureThread(state *State, a EnsureThread) *State {
	if a.ThreadID == "" || a.WorkspaceID == "" {
		return state
	}
	if state.hasThread(a.ThreadID) {
		return state
	}
	next := state.clone()
	threads := state.ThreadsByWorkspace[a.WorkspaceID]
	next.ThreadsByWorkspace[a.WorkspaceID] = append(append([]string{}, threads...), a.ThreadID)
	next.WorkspaceByThread[a.ThreadID] = a.WorkspaceID
	next.Names[a.ThreadID] = placeholderThreadName
	next.Status[a.ThreadID] = types.ThreadStatus{}
	if next.ActiveThreadByWorkspace[a.WorkspaceID] == "" {
		next.ActiveThreadByWorkspace[a.WorkspaceID] = a.ThreadID
	}
	return next
}

func reduceSetActiveThread(state *State, a SetActiveThread) *State {
	if state.ActiveThreadByWorkspace[a.WorkspaceID] == a.ThreadID {
		return state
	}
	next := state.clone()
	next.ActiveThreadByWorkspace[a.WorkspaceID] = a.ThreadID
	if a.ThreadID != "" {
		st := next.Status[a.ThreadID]
		st.HasUnread = false
		next.Status[a.ThreadID] = st
	}
	return next
}

func reduceRemoveThread(state *State, a RemoveThread) *State {
	if !state.hasThread(a.ThreadID) {
		return state
	}
	next := state.clone()
	threads := state.ThreadsByWorkspace[a.WorkspaceID]
	kept := make([]string, 0, len(threads))
	for _, id := range threads {
		if id != a.ThreadID {
			kept = append(kept, id)
		}
	}
	next.ThreadsByWorkspace[a.WorkspaceID] = kept
	delete(next.WorkspaceByThread, a.ThreadID)
	delete(next.Names, a.ThreadID)
	delete(next.Items, a.ThreadID)
	delete(next.Status, a.ThreadID)
	delete(next.ActiveTurns, a.ThreadID)
	delete(next.TokenUsage, a.ThreadID)
	if next.ActiveThreadByWorkspace[a.WorkspaceID] == a.ThreadID {
		if len(kept) > 0 {
			next.ActiveThreadByWorkspace[a.WorkspaceID] = kept[0]
		} else {
			next.ActiveThreadByWorkspace[a.WorkspaceID] = ""
		}
	}
	return next
}

func reduceRemoveWorkspace(state *State, a RemoveWorkspace) *State {
	threads, ok := state.ThreadsByWorkspace[a.WorkspaceID]
	if !ok && state.RateLimits[a.WorkspaceID] == (types.RateLimitSnapshot{}) && len(state.Models[a.WorkspaceID]) == 0 {
		return state
	}
	next := state.clone()
	for _, id := range threads {
		delete(next.WorkspaceByThread, id)
		delete(next.Names, id)
		delete(next.Items, id)
		delete(next.Status, id)
		delete(next.ActiveTurns, id)
		delete(next.TokenUsage, id)
	}
	delete(next.ThreadsByWorkspace, a.WorkspaceID)
	delete(next.ActiveThreadByWorkspace, a.WorkspaceID)
	delete(next.RateLimits, a.WorkspaceID)
	delete(next.Models, a.WorkspaceID)
	kept := make([]types.ApprovalRequest, 0, len(state.Approvals))
	for _, approval := range state.Approvals {
		if approval.WorkspaceID != a.WorkspaceID {
			kept = append(kept, approval)
		}
	}
	next.Approvals = kept
	return next
}

func reduceAppendAgentDelta(state *State, a AppendAgentDelta) *State {
	if a.Delta == "" {
		return state
	}
	next := state.clone()
	items := append([]types.ConversationItem{}, state.Items[a.ThreadID]...)
	if idx := state.itemIndex(a.ThreadID, a.ItemID); idx >= 0 {
		if items[idx].Kind != types.ItemKindMessage {
			return state
		}
		items[idx].Text += a.Delta
	} else {
		items = append(items, types.ConversationItem{
			ID:   a.ItemID,
			Kind: types.ItemKindMessage,
			Role: types.RoleAssistant,
			Text: a.Delta,
		})
	}
	next.Items[a.ThreadID] = items
	return next
}

func reduceCompleteAgentMessage(state *State, a CompleteAgentMessage) *State {
	idx := state.itemIndex(a.ThreadID, a.ItemID)
	if idx >= 0 {
		existing := state.Items[a.ThreadID][idx]
		if existing.Kind != types.ItemKindMessage {
			return state
		}
		// An empty completion after streamed deltas must not wipe the
		// accumulated text.
		if a.Text == "" || existing.Text == a.Text {
			return state
		}
		next := state.clone()
		items := append([]types.ConversationItem{}, state.Items[a.ThreadID]...)
		items[idx].Text = a.Text
		next.Items[a.ThreadID] = items
		return next
	}
	next := state.clone()
	next.Items[a.ThreadID] = append(append([]types.ConversationItem{}, state.Items[a.ThreadID]...), types.ConversationItem{
		ID:   a.ItemID,
		Kind: types.ItemKindMessage,
		Role: types.RoleAssistant,
		Text: a.Text,
	})
	return next
}

func reduceAppendReasoning(state *State, threadID, itemID, delta string, content bool) *State {
	if delta == "" {
		return state
	}
	next := state.clone()
	items := append([]types.ConversationItem{}, state.Items[threadID]...)
	if idx := state.itemIndex(threadID, itemID); idx >= 0 {
		if items[idx].Kind != types.ItemKindReasoning {
			return state
		}
		if content {
			items[idx].Content += delta
		} else {
			items[idx].Summary += delta
		}
	} else {
		item := types.ConversationItem{ID: itemID, Kind: types.ItemKindReasoning}
		if content {
			item.Content = delta
		} else {
			item.Summary = delta
		}
		items = append(items, item)
	}
	next.Items[threadID] = items
	return next
}

func reduceAppendToolOutput(state *State, a AppendToolOutput) *State {
	if a.Delta == "" {
		return state
	}
	idx := state.itemIndex(a.ThreadID, a.ItemID)
	if idx < 0 || state.Items[a.ThreadID][idx].Kind != types.ItemKindTool {
		return state
	}
	next := state.clone()
	items := append([]types.ConversationItem{}, state.Items[a.ThreadID]...)
	items[idx].Output += a.Delta
	next.Items[a.ThreadID] = items
	return next
}

func reduceUpsertItem(state *State, a UpsertItem) *State {
	if a.Item.ID == "" {
		return state
	}
	next := state.clone()
	items := append([]types.ConversationItem{}, state.Items[a.ThreadID]...)
	if idx := state.itemIndex(a.ThreadID, a.Item.ID); idx >= 0 {
		items[idx] = overlayItem(items[idx], a.Item)
	} else {
		items = append(items, a.Item)
	}
	next.Items[a.ThreadID] = items
	return next
}

func reduceStatus(state *State, threadID string, apply func(types.ThreadStatus) types.ThreadStatus) *State {
	current := state.Status[threadID]
	updated := apply(current)
	if updated == current {
		return state
	}
	next := state.clone()
	next.Status[threadID] = updated
	return next
}

func reduceClearActiveTurn(state *State, a ClearActiveTurn) *State {
	_, hasTurn := state.ActiveTurns[a.ThreadID]
	status := state.Status[a.ThreadID]
	if !hasTurn && !status.IsProcessing {
		return state
	}
	next := state.clone()
	delete(next.ActiveTurns, a.ThreadID)
	status.IsProcessing = false
	next.Status[a.ThreadID] = status
	return next
}

func reduceAddApproval(state *State, a AddApproval) *State {
	for _, existing := range state.Approvals {
		if existing.WorkspaceID == a.Approval.WorkspaceID && existing.RequestID == a.Approval.RequestID {
			return state
		}
	}
	next := state.clone()
	next.Approvals = append(append([]types.ApprovalRequest{}, state.Approvals...), a.Approval)
	return next
}

func reduceRemoveApproval(state *State, a RemoveApproval) *State {
	idx := -1
	for i, existing := range state.Approvals {
		if existing.WorkspaceID == a.WorkspaceID && existing.RequestID == a.RequestID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return state
	}
	next := state.clone()
	kept := make([]types.ApprovalRequest, 0, len(state.Approvals)-1)
	kept = append(kept, state.Approvals[:idx]...)
	kept = append(kept, state.Approvals[idx+1:]...)
	next.Approvals = kept
	return next
}

// overlayItem merges an incoming item into an existing one by id.
// Populated incoming fields win; empty incoming fields never erase
// existing content.
func overlayItem(existing, incoming types.ConversationItem) types.ConversationItem {
	merged := existing
	if incoming.Kind != "" {
		merged.Kind = incoming.Kind
	}
	if incoming.Role != "" {
		merged.Role = incoming.Role
	}
	if incoming.Text != "" {
		merged.Text = incoming.Text
	}
	if incoming.Summary != "" {
		merged.Summary = incoming.Summary
	}
	if incoming.Content != "" {
		merged.Content = incoming.Content
	}
	if incoming.ToolType != "" {
		merged.ToolType = incoming.ToolType
	}
	if incoming.Title != "" {
		merged.Title = incoming.Title
	}
	if incoming.Detail != "" {
		merged.Detail = incoming.Detail
	}
	if incoming.Status != "" {
		merged.Status = incoming.Status
	}
	if incoming.Output != "" {
		merged.Output = incoming.Output
	}
	if len(incoming.Changes) > 0 {
		merged.Changes = incoming.Changes
	}
	if incoming.ReviewState != "" {
		merged.ReviewState = incoming.ReviewState
	}
	return merged
}
