package types

type ThreadStatus struct {
	IsProcessing bool `json:"is_processing"`
	IsReviewing  bool `json:"is_reviewing"`
	HasUnread    bool `json:"has_unread"`
}

// TokenUsage is a per-thread snapshot, replaced wholesale on each update.
type TokenUsage struct {
	Total         int64 `json:"total"`
	Input         int64 `json:"input"`
	CachedInput   int64 `json:"cached_input"`
	Output        int64 `json:"output"`
	ContextWindow int64 `json:"context_window,omitempty"`
}

type RateLimitWindow struct {
	UsedPercent   float64 `json:"used_percent"`
	WindowMinutes int64   `json:"window_minutes,omitempty"`
	ResetsAt      int64   `json:"resets_at,omitempty"`
}

// RateLimitSnapshot is per-workspace account usage, replaced wholesale.
type RateLimitSnapshot struct {
	Primary   *RateLimitWindow `json:"primary,omitempty"`
	Secondary *RateLimitWindow `json:"secondary,omitempty"`
}

// ThreadSummary is one entry of a thread/list page.
type ThreadSummary struct {
	ID        string `json:"id"`
	Preview   string `json:"preview"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	Cwd       string `json:"cwd,omitempty"`
}
