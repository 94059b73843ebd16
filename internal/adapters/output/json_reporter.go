// Package output provides result reporters and metrics for fwradar.
//
// This file implements report destinations:
//   - JSONReporter: JSON document to file or stdout
//   - MemoryReporter: bounded history of results for the TUI and the API
//
// Thread Safety: All implementations are safe for concurrent Report() calls.
package output

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/xoelrdgz/fwradar/internal/adapters/detection"
	"github.com/xoelrdgz/fwradar/internal/domain"
)

// Report is the JSON document written for one analysis pass.
type Report struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Source      string                  `json:"source"`
	Rules       []detection.RuleSummary `json:"rules"`
	Threats     []domain.ThreatRecord   `json:"threats"`
	DenyCounts  []domain.DenyCount      `json:"deny_counts"`
	Stats       domain.Stats            `json:"stats"`
}

// NewReport builds the document for result. Nil slices become empty arrays.
func NewReport(result *domain.Result, rules []detection.RuleSummary) Report {
	r := Report{
		GeneratedAt: result.GeneratedAt,
		Source:      result.Source,
		Rules:       rules,
		Threats:     result.Threats,
		DenyCounts:  result.DenyCounts,
		Stats:       result.Stats,
	}
	if r.Rules == nil {
		r.Rules = []detection.RuleSummary{}
	}
	if r.Threats == nil {
		r.Threats = []domain.ThreatRecord{}
	}
	if r.DenyCounts == nil {
		r.DenyCounts = []domain.DenyCount{}
	}
	return r
}

// JSONReporter writes each result as one JSON document.
type JSONReporter struct {
	bufWriter *bufio.Writer
	file      *os.File // nil for stdout or a caller-supplied writer
	encoder   *json.Encoder
	rules     []detection.RuleSummary
	mu        sync.Mutex
}

// JSONReporterConfig configures JSON report output.
type JSONReporterConfig struct {
	FilePath string                  // Output file path (empty for stdout)
	Writer   io.Writer               // Overrides FilePath and stdout when set
	Pretty   bool                    // Indent the document
	Rules    []detection.RuleSummary // Active rules embedded in every report
}

// NewJSONReporter creates a JSON report output.
//
// Output Priority:
//  1. config.Writer if set
//  2. File if config.FilePath is set (truncated, 0600)
//  3. Stdout otherwise
func NewJSONReporter(config JSONReporterConfig) (*JSONReporter, error) {
	var writer io.Writer
	var file *os.File

	switch {
	case config.Writer != nil:
		writer = config.Writer
	case config.FilePath != "":
		var err error
		file, err = os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, err
		}
		writer = file
	default:
		writer = os.Stdout
	}

	bufWriter := bufio.NewWriterSize(writer, 64*1024)
	r := &JSONReporter{
		bufWriter: bufWriter,
		file:      file,
		rules:     config.Rules,
		encoder:   json.NewEncoder(bufWriter),
	}
	if config.Pretty {
		r.encoder.SetIndent("", "  ")
	}
	return r, nil
}

// Report encodes result and flushes it to the destination.
func (r *JSONReporter) Report(ctx context.Context, result *domain.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.encoder.Encode(NewReport(result, r.rules)); err != nil {
		return err
	}
	return r.bufWriter.Flush()
}

// Close flushes remaining data and closes the file, if any.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.bufWriter.Flush(); err != nil {
		return err
	}
	if r.file != nil {
		if err := r.file.Sync(); err != nil {
			return err
		}
		return r.file.Close()
	}
	return nil
}

// MemoryReporter keeps the most recent results in a fixed-size ring buffer.
//
// Thread Safety: Safe for concurrent access via RWMutex.
type MemoryReporter struct {
	results    []*domain.Result
	head       int
	count      int
	maxResults int
	threats    int64
	mu         sync.RWMutex
}

// NewMemoryReporter creates an in-memory result buffer.
// maxResults defaults to 16 if <= 0.
func NewMemoryReporter(maxResults int) *MemoryReporter {
	if maxResults <= 0 {
		maxResults = 16
	}
	return &MemoryReporter{
		results:    make([]*domain.Result, maxResults),
		maxResults: maxResults,
	}
}

// Report stores result, overwriting the oldest one when full.
func (m *MemoryReporter) Report(_ context.Context, result *domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results[m.head] = result
	m.head = (m.head + 1) % m.maxResults
	if m.count < m.maxResults {
		m.count++
	}
	return nil
}

func (m *MemoryReporter) Close() error {
	return nil
}

// Latest returns the most recent result, or nil when nothing was reported.
func (m *MemoryReporter) Latest() *domain.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 {
		return nil
	}
	return m.results[(m.head-1+m.maxResults)%m.maxResults]
}

// Results returns stored results, oldest first.
func (m *MemoryReporter) Results() []*domain.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Result, m.count)
	start := 0
	if m.count == m.maxResults {
		start = m.head
	}
	for i := 0; i < m.count; i++ {
		out[i] = m.results[(start+i)%m.maxResults]
	}
	return out
}

func (m *MemoryReporter) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// ThreatsSeen returns how many threat records were delivered through OnThreat.
func (m *MemoryReporter) ThreatsSeen() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.threats
}

// OnThreat implements ports.ThreatSubscriber.
func (m *MemoryReporter) OnThreat(domain.ThreatRecord) {
	m.mu.Lock()
	m.threats++
	m.mu.Unlock()
}
