package input

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

var (
	ErrEmptyInput       = errors.New("empty input: header row required")
	ErrMissingColumn    = errors.New("missing required column")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidPort      = errors.New("invalid port")
)

// IsMalformed reports whether err stems from the content of the log rather
// than from the environment reading it.
func IsMalformed(err error) bool {
	var parseErr *csv.ParseError
	switch {
	case errors.As(err, &parseErr):
		return true
	case errors.Is(err, ErrEmptyInput), errors.Is(err, ErrMissingColumn),
		errors.Is(err, ErrInvalidTimestamp), errors.Is(err, ErrInvalidPort):
		return true
	}
	return false
}

// Column names of the firewall log header.
const (
	ColTimestamp   = "timestamp"
	ColSource      = "src_ip"
	ColDestination = "dst_ip"
	ColPort        = "port"
	ColAction      = "action"
	ColReason      = "reason"
)

// Header is the column order written by the generator.
var Header = []string{ColTimestamp, ColSource, ColDestination, ColPort, ColAction, ColReason}

var requiredColumns = []string{ColTimestamp, ColSource, ColPort, ColAction, ColReason}

var ipv4Pattern = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
}

// ExtractAddress returns the first dotted quad found in raw, or "" when
// there is none.
func ExtractAddress(raw string) string {
	return ipv4Pattern.FindString(raw)
}

// ParseTimestamp accepts the date-time layouts produced by common CSV
// exporters. Timestamps without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
}

func parsePort(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	port, err := strconv.Atoi(raw)
	if err != nil {
		// spreadsheet exports turn 22 into 22.0
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPort, raw)
		}
		port = int(f)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidPort, port)
	}
	return port, nil
}

// RowParser maps CSV rows onto LogRecords using a header row.
type RowParser struct {
	index map[string]int
}

// NewRowParser locates the log columns in header. Column order does not
// matter and names are matched case-insensitively; dst_ip is optional.
func NewRowParser(header []string) (*RowParser, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return &RowParser{index: index}, nil
}

func (p *RowParser) field(fields []string, col string) string {
	i, ok := p.index[col]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// Parse converts one data row. line is the 1-based data row number used
// in error messages.
//
// A source field without a dotted quad is blanked, never rejected. Bad
// timestamps and ports are errors.
func (p *RowParser) Parse(fields []string, line int) (domain.LogRecord, error) {
	ts, err := ParseTimestamp(p.field(fields, ColTimestamp))
	if err != nil {
		return domain.LogRecord{}, fmt.Errorf("row %d: %w", line, err)
	}
	port, err := parsePort(p.field(fields, ColPort))
	if err != nil {
		return domain.LogRecord{}, fmt.Errorf("row %d: %w", line, err)
	}

	rawSource := p.field(fields, ColSource)
	source := ExtractAddress(rawSource)
	if source == "" {
		log.Debug().Int("row", line).Str("src_ip", rawSource).Msg("Blanked malformed source address")
	}

	return domain.LogRecord{
		Timestamp:          ts,
		SourceAddress:      source,
		DestinationAddress: p.field(fields, ColDestination),
		Port:               port,
		Action:             domain.ParseAction(p.field(fields, ColAction)),
		Reason:             p.field(fields, ColReason),
		Line:               line,
	}, nil
}

// ctxCheckInterval is how many rows are read between context checks.
const ctxCheckInterval = 4096

// ReadRecords reads a complete CSV log with header from r.
//
// Returns:
//   - All parsed records in file order
//   - ErrEmptyInput when r has no header row
//   - A wrapped parse error naming the row for malformed rows
func ReadRecords(ctx context.Context, r io.Reader) ([]domain.LogRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	parser, err := NewRowParser(header)
	if err != nil {
		return nil, err
	}

	var records []domain.LogRecord
	for line := 1; ; line++ {
		if line%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		rec, err := parser.Parse(fields, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
