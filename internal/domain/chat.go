package domain

import "encoding/json"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one chat message tagged with the speaker role. It is the shape
// used for the turns this service adds to a conversation and the shape
// callers are expected to send back as history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the provider-agnostic chat completion call.
// Messages are raw JSON so caller-supplied history is forwarded verbatim.
type CompletionRequest struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []json.RawMessage
}

// ContentBlock is one block of an assistant reply.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Completion is the decoded upstream reply.
type Completion struct {
	ID           string
	Model        string
	StopReason   string
	Content      []ContentBlock
	InputTokens  int
	OutputTokens int
}
