// Package ports defines the detection engine interfaces.
//
// ThreatEvaluator is the primary interface for the rule engine.
// Implementations turn a fully materialized record table into threat records.
package ports

import (
	"context"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

// ThreatEvaluator defines the interface for threshold rule engines.
//
// Implementations:
//   - detection.Evaluator: parameterized port scan / brute force / flood rules
//
// Thread Safety: Implementations MUST be safe for concurrent Evaluate() calls.
// The HTTP server evaluates uploads from multiple goroutines simultaneously.
type ThreatEvaluator interface {
	// Evaluate applies every rule to records.
	//
	// Parameters:
	//   - ctx: Context for cancellation between rules
	//   - records: Parsed log table (immutable, do not modify)
	//
	// Returns:
	//   - Threat records in a deterministic order
	//   - ctx.Err() if cancelled before all rules ran
	//
	// Contract:
	//   - MUST NOT modify records
	//   - Every returned record has Count > Threshold
	Evaluate(ctx context.Context, records []domain.LogRecord) ([]domain.ThreatRecord, error)
}
