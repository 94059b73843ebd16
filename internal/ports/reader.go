package ports

import (
	"context"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

// RecordSource loads a complete firewall log table into memory.
type RecordSource interface {
	Load(ctx context.Context) ([]domain.LogRecord, error)
	Name() string
}
