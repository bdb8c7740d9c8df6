package types

type DebugEvent struct {
	WorkspaceID string `json:"workspace_id"`
	ThreadID    string `json:"thread_id,omitempty"`
	Method      string `json:"method"`
	Detail      string `json:"detail,omitempty"`
	TS          string `json:"ts"`
	Seq         uint64 `json:"seq"`
}
