package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// QuarantineWriter records analysis jobs that crashed a worker as JSON lines
// so the offending upload can be reproduced later.
type QuarantineWriter struct {
	file    *os.File
	writer  *bufio.Writer
	mu      sync.Mutex
	count   atomic.Int64
	enabled bool
	path    string
}

type QuarantineEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	WorkerID   int       `json:"worker_id"`
	PanicError string    `json:"panic_error"`
	StackTrace string    `json:"stack_trace,omitempty"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	FirstRow   string    `json:"first_row,omitempty"`
}

// NewQuarantineWriter opens path for appending. An empty path returns a
// disabled writer.
func NewQuarantineWriter(path string) (*QuarantineWriter, error) {
	if path == "" {
		return &QuarantineWriter{enabled: false}, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Msg("Quarantine writer initialized for crashed jobs")

	return &QuarantineWriter{
		file:    file,
		writer:  bufio.NewWriterSize(file, 16*1024),
		enabled: true,
		path:    path,
	}, nil
}

// WriteCrashedJob appends one entry and syncs it to disk.
func (w *QuarantineWriter) WriteCrashedJob(workerID int, panicErr interface{}, stack []byte, job *Job) error {
	if !w.enabled {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	panicStr := "unknown panic"
	if panicErr != nil {
		switch v := panicErr.(type) {
		case error:
			panicStr = v.Error()
		case string:
			panicStr = v
		default:
			panicStr = fmt.Sprintf("%v", v)
		}
	}

	qe := QuarantineEntry{
		Timestamp:  time.Now(),
		WorkerID:   workerID,
		PanicError: panicStr,
		StackTrace: string(stack),
	}
	if job != nil {
		qe.Source = job.Source
		qe.Rows = len(job.Records)
		if len(job.Records) > 0 {
			r := job.Records[0]
			qe.FirstRow = fmt.Sprintf("%s,%s,%s,%d,%s,%s",
				r.Timestamp.Format(time.RFC3339), r.SourceAddress, r.DestinationAddress, r.Port, r.Action, r.Reason)
		}
	}

	line, err := json.Marshal(qe)
	if err != nil {
		return err
	}
	if _, err := w.writer.Write(line); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}

	w.count.Add(1)

	log.Warn().
		Int("worker_id", workerID).
		Str("panic", panicStr).
		Str("source", qe.Source).
		Int64("quarantine_count", w.count.Load()).
		Msg("Crashed job quarantined")

	return nil
}

func (w *QuarantineWriter) Close() error {
	if !w.enabled {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}

	if count := w.count.Load(); count > 0 {
		log.Warn().
			Int64("crashed_jobs", count).
			Str("path", w.path).
			Msg("Quarantine file contains jobs requiring analysis")
	}
	return w.file.Close()
}

func (w *QuarantineWriter) Count() int64 {
	return w.count.Load()
}

func (w *QuarantineWriter) Enabled() bool {
	return w.enabled
}
