// Package ports defines the primary and secondary port interfaces following
// hexagonal architecture (ports and adapters pattern).
//
// Interfaces are small; implementations live in internal/adapters/ and the
// delivery packages (tui, server).
package ports

import (
	"context"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

// Reporter consumes the outcome of one analysis pass.
//
// Implementations:
//   - JSONReporter: JSON document to file or stdout
//   - ConsoleReporter: styled table and deny chart for terminals
//   - MemoryReporter: keeps the latest results for the TUI and the API
type Reporter interface {
	// Report renders or stores result. The result must not be modified.
	Report(ctx context.Context, result *domain.Result) error

	// Close releases resources (open files, buffered writers).
	Close() error
}

// ThreatSubscriber is notified once per emitted threat record.
// Used to feed metrics without coupling them to reporters.
type ThreatSubscriber interface {
	OnThreat(threat domain.ThreatRecord)
}
