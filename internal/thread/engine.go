package thread

import (
	"fmt"
	"sync"
	"time"

	"monitor/internal/logging"
	"monitor/internal/types"
)

const debugEventLimit = 200

// Engine owns the single thread State. Every mutation flows through
// dispatch, which applies the reducer synchronously; consumers only see
// copies via the projection methods, and the operation methods in
// ops.go are the only writers beside event ingestion.
type Engine struct {
	mu      sync.Mutex
	state   *State
	version uint64

	backend Backend
	logger  logging.Logger

	opts   TurnOptions
	loaded map[string]bool

	localSeq uint64
	debugSeq uint64
	debug    []types.DebugEvent
}

// TurnOptions carries the model settings attached to every turn/start.
type TurnOptions struct {
	Model      string
	Effort     string
	AccessMode string
}

func NewEngine(backend Backend, logger logging.Logger, opts TurnOptions) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		state:   NewState(),
		backend: backend,
		logger:  logger,
		opts:    opts,
		loaded:  map[string]bool{},
	}
}

// dispatch applies actions in order under the engine lock and bumps the
// version when any of them changed the state.
func (e *Engine) dispatch(actions ...Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatchLocked(actions...)
}

func (e *Engine) dispatchLocked(actions ...Action) {
	before := e.state
	for _, action := range actions {
		e.state = Reduce(e.state, action)
	}
	if e.state != before {
		e.version++
	}
}

// Version increments whenever observable state changes; the UI polls it
// to decide when to re-render.
func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// SetBackend wires the protocol layer in after construction; the
// supervisor needs the engine as its event handler, so one of the two
// has to be attached late.
func (e *Engine) SetBackend(backend Backend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backend = backend
}

func (e *Engine) SetTurnOptions(opts TurnOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts = opts
}

func (e *Engine) turnOptions() TurnOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// ThreadInfo is the sidebar projection of one thread.
type ThreadInfo struct {
	ID     string
	Name   string
	Status types.ThreadStatus
}

func (e *Engine) ActiveThreadID(workspaceID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ActiveThreadByWorkspace[workspaceID]
}

func (e *Engine) Threads(workspaceID string) []ThreadInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.state.ThreadsByWorkspace[workspaceID]
	out := make([]ThreadInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, ThreadInfo{
			ID:     id,
			Name:   e.state.Names[id],
			Status: e.state.Status[id],
		})
	}
	return out
}

func (e *Engine) Items(threadID string) []types.ConversationItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.ConversationItem{}, e.state.Items[threadID]...)
}

func (e *Engine) Status(threadID string) types.ThreadStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Status[threadID]
}

func (e *Engine) ThreadName(threadID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Names[threadID]
}

func (e *Engine) ActiveTurnID(threadID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ActiveTurns[threadID]
}

func (e *Engine) TokenUsage(threadID string) (types.TokenUsage, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	usage, ok := e.state.TokenUsage[threadID]
	return usage, ok
}

func (e *Engine) RateLimits(workspaceID string) (types.RateLimitSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	limits, ok := e.state.RateLimits[workspaceID]
	return limits, ok
}

// Models returns the workspace's server-reported model catalog; empty
// until LoadModels has succeeded.
func (e *Engine) Models(workspaceID string) []types.ModelInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.ModelInfo{}, e.state.Models[workspaceID]...)
}

func (e *Engine) Approvals() []types.ApprovalRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.ApprovalRequest{}, e.state.Approvals...)
}

// DebugEvents returns the recent protocol activity ring, newest last.
func (e *Engine) DebugEvents() []types.DebugEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.DebugEvent{}, e.debug...)
}

// SetActiveThread is the selection entry point for consumers.
func (e *Engine) SetActiveThread(workspaceID, threadID string) {
	e.dispatch(SetActiveThread{WorkspaceID: workspaceID, ThreadID: threadID})
}

// RemoveWorkspace drops all engine state for a deleted workspace.
func (e *Engine) RemoveWorkspace(workspaceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.state.ThreadsByWorkspace[workspaceID] {
		delete(e.loaded, id)
	}
	e.dispatchLocked(RemoveWorkspace{WorkspaceID: workspaceID})
}

func (e *Engine) nextLocalID(kind string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.localSeq++
	return fmt.Sprintf("local-%s-%d", kind, e.localSeq)
}

// recordDebug keeps a bounded trail of protocol events for the debug
// panel and for post-mortem log correlation.
func (e *Engine) recordDebug(workspaceID, threadID, method, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.debugSeq++
	e.debug = append(e.debug, types.DebugEvent{
		WorkspaceID: workspaceID,
		ThreadID:    threadID,
		Method:      method,
		Detail:      detail,
		TS:          time.Now().UTC().Format(time.RFC3339Nano),
		Seq:         e.debugSeq,
	})
	if len(e.debug) > debugEventLimit {
		e.debug = e.debug[len(e.debug)-debugEventLimit:]
	}
	e.version++
}

// isActiveThread reports whether the thread is the current selection of
// its own workspace.
func (e *Engine) isActiveThread(threadID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	workspaceID := e.state.WorkspaceByThread[threadID]
	return workspaceID != "" && e.state.ActiveThreadByWorkspace[workspaceID] == threadID
}
