package domain

// RequestState is a stage of a mailbox usage request.
type RequestState string

// Request states, in pipeline order. Failed may follow any non-terminal state.
const (
	StateUnauthenticated RequestState = "unauthenticated"
	StateTokenExchanged  RequestState = "token_exchanged"
	StateFoldersListed   RequestState = "folders_listed"
	StateAggregated      RequestState = "aggregated"
	StateFlattened       RequestState = "flattened"
	StateResponded       RequestState = "responded"
	StateFailed          RequestState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s RequestState) Terminal() bool {
	return s == StateResponded || s == StateFailed
}

// StageObserver is notified each time the pipeline reaches a new state.
type StageObserver func(state RequestState)
