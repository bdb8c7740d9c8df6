package thread

import "monitor/internal/types"

// State is the single source of truth for every thread's conversation.
// It is only ever produced by Reduce; callers must treat it as immutable.
type State struct {
	// ThreadsByWorkspace holds thread ids in list order per workspace.
	ThreadsByWorkspace map[string][]string
	// WorkspaceByThread is set at thread creation and never changes.
	WorkspaceByThread map[string]string
	// ActiveThreadByWorkspace points at the selected thread per workspace.
	ActiveThreadByWorkspace map[string]string

	Names       map[string]string
	Items       map[string][]types.ConversationItem
	Status      map[string]types.ThreadStatus
	ActiveTurns map[string]string
	TokenUsage  map[string]types.TokenUsage
	RateLimits  map[string]types.RateLimitSnapshot
	Models      map[string][]types.ModelInfo
	Approvals   []types.ApprovalRequest
}

func NewState() *State {
	return &State{
		ThreadsByWorkspace:      map[string][]string{},
		WorkspaceByThread:       map[string]string{},
		ActiveThreadByWorkspace: map[string]string{},
		Names:                   map[string]string{},
		Items:                   map[string][]types.ConversationItem{},
		Status:                  map[string]types.ThreadStatus{},
		ActiveTurns:             map[string]string{},
		TokenUsage:              map[string]types.TokenUsage{},
		RateLimits:              map[string]types.RateLimitSnapshot{},
		Models:                  map[string][]types.ModelInfo{},
	}
}

// clone copies the map headers so the reducer can write without touching
// the previous state. Slice and struct values are copied on write only.
func (s *State) clone() *State {
	next := &State{
		ThreadsByWorkspace:      make(map[string][]string, len(s.ThreadsByWorkspace)),
		WorkspaceByThread:       make(map[string]string, len(s.WorkspaceByThread)),
		ActiveThreadByWorkspace: make(map[string]string, len(s.ActiveThreadByWorkspace)),
		Names:                   make(map[string]string, len(s.Names)),
		Items:                   make(map[string][]types.ConversationItem, len(s.Items)),
		Status:                  make(map[string]types.ThreadStatus, len(s.Status)),
		ActiveTurns:             make(map[string]string, len(s.ActiveTurns)),
		TokenUsage:              make(map[string]types.TokenUsage, len(s.TokenUsage)),
		RateLimits:              make(map[string]types.RateLimitSnapshot, len(s.RateLimits)),
		Models:                  make(map[string][]types.ModelInfo, len(s.Models)),
		Approvals:               s.Approvals,
	}
	for k, v := range s.ThreadsByWorkspace {
		next.ThreadsByWorkspace[k] = v
	}
	for k, v := range s.WorkspaceByThread {
		next.WorkspaceByThread[k] = v
	}
	for k, v := range s.ActiveThreadByWorkspace {
		next.ActiveThreadByWorkspace[k] = v
	}
	for k, v := range s.Names {
		next.Names[k] = v
	}
	for k, v := range s.Items {
		next.Items[k] = v
	}
	for k, v := range s.Status {
		next.Status[k] = v
	}
	for k, v := range s.ActiveTurns {
		next.ActiveTurns[k] = v
	}
	for k, v := range s.TokenUsage {
		next.TokenUsage[k] = v
	}
	for k, v := range s.RateLimits {
		next.RateLimits[k] = v
	}
	for k, v := range s.Models {
		next.Models[k] = v
	}
	return next
}

func (s *State) hasThread(threadID string) bool {
	_, ok := s.WorkspaceByThread[threadID]
	return ok
}

// itemIndex returns the position of an item id within a thread, or -1.
func (s *State) itemIndex(threadID, itemID string) int {
	for i, item := range s.Items[threadID] {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}
