package model

// TurnState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex is required as long as it is never touched outside handlers.
type TurnState struct {
	ConversationID string
	Query          string
	History        []string // persisted utterances, oldest first, without Query
	Status         ConversationStatus
	Pointer        MissingField
	Context        []string

	// Accumulated total LLM cost (USD) across model invocations for this turn
	TotalCostUSD float64
}

// Transcript is the history followed by the current query.
func (s *TurnState) Transcript() []string {
	out := make([]string, 0, len(s.History)+1)
	out = append(out, s.History...)
	if s.Query != "" {
		out = append(out, s.Query)
	}
	return out
}

// QueryInput represents one inbound turn.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}
