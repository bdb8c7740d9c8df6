package types

// ModelInfo is one model the server offers for starting turns.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
