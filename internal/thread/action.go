package thread

import "monitor/internal/types"

// Action is one state transition request. Reduce applies it; unknown
// action types are no-ops.
type Action interface {
	isAction()
}

// EnsureThread inserts a thread with a synthesized name only if absent.
// If the workspace has no active thread yet the new thread is adopted as
// active; an existing active selection is never overwritten.
type EnsureThread struct {
	WorkspaceID string
	ThreadID    string
}

// SetActiveThread switches the workspace's selection and clears the
// unread flag of the newly active thread.
type SetActiveThread struct {
	WorkspaceID string
	ThreadID    string
}

// RemoveThread drops the thread and everything keyed by it. If it was
// active, the first remaining thread in list order takes over.
type RemoveThread struct {
	WorkspaceID string
	ThreadID    string
}

// RemoveWorkspace cascades RemoveThread over every thread of the
// workspace and drops its rate-limit and approval entries.
type RemoveWorkspace struct {
	WorkspaceID string
}

type SetThreadName struct {
	ThreadID string
	Name     string
}

// AppendAgentDelta concatenates a streamed fragment onto the message
// with ItemID, creating an assistant message when none exists yet.
type AppendAgentDelta struct {
	ThreadID string
	ItemID   string
	Delta    string
}

// CompleteAgentMessage replaces the message text with the final text
// unless the final text is empty, in which case streamed content wins.
type CompleteAgentMessage struct {
	ThreadID string
	ItemID   string
	Text     string
}

type AppendReasoningSummary struct {
	ThreadID string
	ItemID   string
	Delta    string
}

type AppendReasoningContent struct {
	ThreadID string
	ItemID   string
	Delta    string
}

// AppendToolOutput appends to an existing tool item only; output for an
// unknown item id is dropped.
type AppendToolOutput struct {
	ThreadID string
	ItemID   string
	Delta    string
}

// UpsertItem inserts the item at the end or merges it into the existing
// item with the same id without erasing populated fields.
type UpsertItem struct {
	ThreadID string
	Item     types.ConversationItem
}

// ReplaceItems swaps the whole item list; only resume reconciliation
// uses this.
type ReplaceItems struct {
	ThreadID string
	Items    []types.ConversationItem
}

type MarkProcessing struct {
	ThreadID   string
	Processing bool
}

type MarkReviewing struct {
	ThreadID  string
	Reviewing bool
}

type MarkUnread struct {
	ThreadID string
	Unread   bool
}

type SetActiveTurn struct {
	ThreadID string
	TurnID   string
}

// ClearActiveTurn drops the in-flight turn id and clears IsProcessing in
// the same transition, so the two can never be observed out of sync.
type ClearActiveTurn struct {
	ThreadID string
}

type SetTokenUsage struct {
	ThreadID string
	Usage    types.TokenUsage
}

type SetRateLimits struct {
	WorkspaceID string
	Limits      types.RateLimitSnapshot
}

// SetModels replaces the workspace's model catalog wholesale.
type SetModels struct {
	WorkspaceID string
	Models      []types.ModelInfo
}

type AddApproval struct {
	Approval types.ApprovalRequest
}

type RemoveApproval struct {
	WorkspaceID string
	RequestID   int
}

func (EnsureThread) isAction()           {}
func (SetActiveThread) isAction()        {}
func (RemoveThread) isAction()           {}
func (RemoveWorkspace) isAction()        {}
func (SetThreadName) isAction()          {}
func (AppendAgentDelta) isAction()       {}
func (CompleteAgentMessage) isAction()   {}
func (AppendReasoningSummary) isAction() {}
func (AppendReasoningContent) isAction() {}
func (AppendToolOutput) isAction()       {}
func (UpsertItem) isAction()             {}
func (ReplaceItems) isAction()           {}
func (MarkProcessing) isAction()         {}
func (MarkReviewing) isAction()          {}
func (MarkUnread) isAction()             {}
func (SetActiveTurn) isAction()          {}
func (ClearActiveTurn) isAction()        {}
func (SetTokenUsage) isAction()          {}
func (SetRateLimits) isAction()          {}
func (SetModels) isAction()              {}
func (AddApproval) isAction()            {}
func (RemoveApproval) isAction()         {}
