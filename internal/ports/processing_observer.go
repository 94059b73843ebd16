package ports

import "time"

// Row ingestion results passed to IncrementRowsByResult.
const (
	RowResultOK           = "ok"
	RowResultBlankAddress = "blank_address"
)

// ProcessingObserver defines the interface for observing ingestion and
// evaluation results.
type ProcessingObserver interface {
	// IncrementRowsByResult records the result of ingesting a row
	// (e.g. "ok", "blank_address").
	//
	// Thread Safety: Implementations MUST be safe for concurrent calls.
	IncrementRowsByResult(result string, n int)

	// ObserveEvaluation records how long one evaluation pass took.
	ObserveEvaluation(d time.Duration)
}
