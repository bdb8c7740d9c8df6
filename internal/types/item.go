package types

type ItemKind string

const (
	ItemKindMessage   ItemKind = "message"
	ItemKindReasoning ItemKind = "reasoning"
	ItemKindTool      ItemKind = "tool"
	ItemKindReview    ItemKind = "review"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ReviewState string

const (
	ReviewStarted   ReviewState = "started"
	ReviewCompleted ReviewState = "completed"
)

type FileChange struct {
	Path string `json:"path"`
	Kind string `json:"kind,omitempty"`
	Diff string `json:"diff,omitempty"`
}

// ConversationItem is one unit of thread history. Kind selects which of
// the variant fields are meaningful; ID is the sole upsert/merge key and
// is unique within a thread.
type ConversationItem struct {
	ID   string   `json:"id"`
	Kind ItemKind `json:"kind"`

	// message
	Role MessageRole `json:"role,omitempty"`
	Text string      `json:"text,omitempty"`

	// reasoning
	Summary string `json:"summary,omitempty"`
	Content string `json:"content,omitempty"`

	// tool
	ToolType string       `json:"tool_type,omitempty"`
	Title    string       `json:"title,omitempty"`
	Detail   string       `json:"detail,omitempty"`
	Status   string       `json:"status,omitempty"`
	Output   string       `json:"output,omitempty"`
	Changes  []FileChange `json:"changes,omitempty"`

	// review
	ReviewState ReviewState `json:"review_state,omitempty"`
}
