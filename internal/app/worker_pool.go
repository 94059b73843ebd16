package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

var (
	ErrPoolSaturated = errors.New("analysis queue is full")
	ErrPoolStopped   = errors.New("worker pool is not running")
	ErrJobPanicked   = errors.New("analysis job crashed")
)

// Job is one table submitted for analysis.
type Job struct {
	Source  string
	Records []domain.LogRecord

	ctx    context.Context
	result chan jobResult
}

type jobResult struct {
	result *domain.Result
	err    error
}

// AnalyzeFunc evaluates one table. Analyzer.Analyze satisfies it.
type AnalyzeFunc func(ctx context.Context, source string, records []domain.LogRecord) (*domain.Result, error)

// WorkerPool bounds the number of concurrent analyses.
//
// Features:
//   - Fixed worker count for predictable memory use per upload
//   - Backpressure with a submit timeout, then ErrPoolSaturated
//   - Panic recovery with quarantine file and worker restart
//
// Thread Safety: All public methods are safe for concurrent access.
type WorkerPool struct {
	workerCount int
	inputChan   chan *Job
	analyze     AnalyzeFunc
	bufferSize  int

	submitTimeout time.Duration

	quarantine *QuarantineWriter
	processed  atomic.Int64
	rejected   atomic.Int64
	panics     atomic.Int64
	busy       atomic.Int32

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
	running  bool
	mu       sync.RWMutex
}

// WorkerPoolConfig defines worker pool configuration options.
type WorkerPoolConfig struct {
	WorkerCount    int           // Concurrent analyses (default: 4)
	BufferSize     int           // Queued jobs beyond the running ones (default: 16)
	SubmitTimeout  time.Duration // Backpressure wait before rejecting (default: 2s)
	QuarantinePath string        // Crashed job log (empty disables)
}

func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:   4,
		BufferSize:    16,
		SubmitTimeout: 2 * time.Second,
	}
}

func NewWorkerPool(config WorkerPoolConfig, analyze AnalyzeFunc) *WorkerPool {
	def := DefaultWorkerPoolConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if config.BufferSize < 0 {
		config.BufferSize = def.BufferSize
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = def.SubmitTimeout
	}

	wp := &WorkerPool{
		workerCount:   config.WorkerCount,
		inputChan:     make(chan *Job, config.BufferSize),
		analyze:       analyze,
		bufferSize:    config.BufferSize,
		submitTimeout: config.SubmitTimeout,
		stopChan:      make(chan struct{}),
	}

	if config.QuarantinePath != "" {
		quarantine, err := NewQuarantineWriter(config.QuarantinePath)
		if err != nil {
			log.Error().Err(err).Str("path", config.QuarantinePath).Msg("Failed to create quarantine writer")
		} else {
			wp.quarantine = quarantine
		}
	}
	return wp
}

// Start launches the workers. Idempotent.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	if wp.running {
		wp.mu.Unlock()
		return
	}
	wp.running = true
	wp.mu.Unlock()

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	log.Info().
		Int("workers", wp.workerCount).
		Int("queue", wp.bufferSize).
		Dur("submit_timeout", wp.submitTimeout).
		Msg("Worker pool started")
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	var current *Job

	defer func() {
		if r := recover(); r != nil {
			wp.panics.Add(1)
			wp.busy.Add(-1)
			log.Error().
				Interface("panic", r).
				Int("worker_id", id).
				Msg("Worker panic recovered")

			if wp.quarantine != nil && wp.quarantine.Enabled() {
				if err := wp.quarantine.WriteCrashedJob(id, r, debug.Stack(), current); err != nil {
					log.Error().Err(err).Int("worker_id", id).Msg("Failed to quarantine crashed job")
				}
			}
			if current != nil {
				current.result <- jobResult{err: fmt.Errorf("%w: %v", ErrJobPanicked, r)}
			}

			wp.wg.Add(1)
			go wp.worker(ctx, id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wp.stopChan:
			return
		case job := <-wp.inputChan:
			current = job
			wp.busy.Add(1)

			var out jobResult
			if err := job.ctx.Err(); err != nil {
				out.err = err
			} else {
				out.result, out.err = wp.analyze(job.ctx, job.Source, job.Records)
			}

			wp.busy.Add(-1)
			wp.processed.Add(1)
			current = nil
			job.result <- out
		}
	}
}

// Submit queues a job and waits for its result.
//
// Returns:
//   - The analysis result
//   - ErrPoolStopped if the pool is not running
//   - ErrPoolSaturated if no queue slot freed up within the submit timeout
//   - ErrJobPanicked if the analysis crashed
//   - ctx.Err() if the caller gave up
func (wp *WorkerPool) Submit(ctx context.Context, source string, records []domain.LogRecord) (*domain.Result, error) {
	wp.mu.RLock()
	running := wp.running
	wp.mu.RUnlock()
	if !running {
		return nil, ErrPoolStopped
	}

	job := &Job{Source: source, Records: records, ctx: ctx, result: make(chan jobResult, 1)}

	select {
	case wp.inputChan <- job:
	default:
		timer := time.NewTimer(wp.submitTimeout)
		select {
		case wp.inputChan <- job:
			timer.Stop()
		case <-timer.C:
			wp.rejected.Add(1)
			return nil, ErrPoolSaturated
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-wp.stopChan:
			timer.Stop()
			return nil, ErrPoolStopped
		}
	}

	select {
	case r := <-job.result:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wp.stopChan:
		select {
		case r := <-job.result:
			return r.result, r.err
		default:
			return nil, ErrPoolStopped
		}
	}
}

// Stop waits for running jobs and releases the quarantine file.
// Queued jobs that never started are failed with ErrPoolStopped.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.running = false
		wp.mu.Unlock()

		close(wp.stopChan)
		wp.wg.Wait()

	drain:
		for {
			select {
			case job := <-wp.inputChan:
				job.result <- jobResult{err: ErrPoolStopped}
			default:
				break drain
			}
		}

		if wp.quarantine != nil {
			if err := wp.quarantine.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close quarantine writer")
			}
		}

		log.Info().
			Int64("processed", wp.processed.Load()).
			Int64("rejected", wp.rejected.Load()).
			Int64("panics", wp.panics.Load()).
			Msg("Worker pool stopped")
	})
}

func (wp *WorkerPool) IsRunning() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.running
}

func (wp *WorkerPool) QueueLength() int   { return len(wp.inputChan) }
func (wp *WorkerPool) QueueCapacity() int { return wp.bufferSize }
func (wp *WorkerPool) Busy() int          { return int(wp.busy.Load()) }
func (wp *WorkerPool) Processed() int64   { return wp.processed.Load() }
func (wp *WorkerPool) Rejected() int64    { return wp.rejected.Load() }
func (wp *WorkerPool) Panics() int64      { return wp.panics.Load() }

// Utilization returns the share of workers busy, in percent.
func (wp *WorkerPool) Utilization() float64 {
	return float64(wp.busy.Load()) / float64(wp.workerCount) * 100
}
