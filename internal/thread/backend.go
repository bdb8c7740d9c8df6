package thread

import (
	"context"

	"monitor/internal/types"
)

// ResumedThread is the server's full record of one thread: its id plus
// the raw turn history, each turn a decoded JSON object carrying an
// "items" array.
type ResumedThread struct {
	ID    string
	Turns []map[string]any
}

// ThreadPage is one page of thread/list results.
type ThreadPage struct {
	Data       []types.ThreadSummary
	NextCursor string
}

// Backend is the protocol surface the engine drives. The app-server
// supervisor implements it; tests substitute an in-memory fake.
type Backend interface {
	StartThread(ctx context.Context, workspaceID string) (threadID string, err error)
	ResumeThread(ctx context.Context, workspaceID, threadID string) (*ResumedThread, error)
	ListThreads(ctx context.Context, workspaceID, cursor string, pageSize int) (*ThreadPage, error)
	ArchiveThread(ctx context.Context, workspaceID, threadID string) error
	SendUserMessage(ctx context.Context, workspaceID, threadID, text string, opts TurnOptions) (turnID string, err error)
	StartReview(ctx context.Context, workspaceID, threadID string, target ReviewTarget, delivery string) error
	InterruptTurn(ctx context.Context, workspaceID, threadID, turnID string) error
	RespondToApproval(ctx context.Context, workspaceID string, requestID int, decision string) error
	ReadRateLimits(ctx context.Context, workspaceID string) (map[string]any, error)
	ListModels(ctx context.Context, workspaceID string) ([]types.ModelInfo, error)
}
