package domain

// Invocation is the usage record kept for one chat request.
// It never holds message content.
type Invocation struct {
	PK           string
	SK           string
	RequestID    string
	Origin       string
	StatusCode   int
	Outcome      string
	Model        string
	InputTokens  int
	OutputTokens int
	HistoryTurns int
	LatencyMs    int64
	CreatedAt    string
	TTL          int64
}
