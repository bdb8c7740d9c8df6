package types

import (
	"encoding/json"
	"time"
)

// ApprovalRequest is a server-issued request for a user decision. The
// request id is unique per workspace; queue order is FIFO by arrival.
type ApprovalRequest struct {
	WorkspaceID string          `json:"workspace_id"`
	RequestID   int             `json:"request_id"`
	Method      string          `json:"method"`
	Params      json.RawMessage `json:"params,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
