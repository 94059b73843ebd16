// Package app wires record sources, the rule evaluator and reporters into
// analysis runs, and owns configuration loading and hot reload.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/fwradar/internal/adapters/detection"
	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/internal/ports"
)

// Analyzer runs one batch analysis: load, evaluate, summarize, report.
//
// Thread Safety: Analyze and Run are safe for concurrent calls once the
// collaborators are registered.
type Analyzer struct {
	evaluator   ports.ThreatEvaluator
	reporters   []ports.Reporter
	subscribers []ports.ThreatSubscriber
	observers   []ports.ProcessingObserver
	mu          sync.RWMutex
}

func NewAnalyzer(evaluator ports.ThreatEvaluator, reporters ...ports.Reporter) *Analyzer {
	return &Analyzer{evaluator: evaluator, reporters: reporters}
}

func (a *Analyzer) AddReporter(r ports.Reporter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reporters = append(a.reporters, r)
}

func (a *Analyzer) AddThreatSubscriber(sub ports.ThreatSubscriber) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscribers = append(a.subscribers, sub)
}

func (a *Analyzer) AddObserver(obs ports.ProcessingObserver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, obs)
}

// snapshotter is implemented by evaluators that can be swapped at runtime.
// Analyze works on one snapshot so threats, windows and timeline agree.
type snapshotter interface {
	Snapshot() ports.ThreatEvaluator
}

func (a *Analyzer) snapshot() ports.ThreatEvaluator {
	if s, ok := a.evaluator.(snapshotter); ok {
		if ev := s.Snapshot(); ev != nil {
			return ev
		}
	}
	return a.evaluator
}

// windowOf asks the evaluator for its granularity when it exposes one.
func windowOf(evaluator ports.ThreatEvaluator) time.Duration {
	if w, ok := evaluator.(interface{ Window() time.Duration }); ok {
		if d := w.Window(); d > 0 {
			return d
		}
	}
	return domain.DefaultWindow
}

// Analyze evaluates an already loaded table without reporting it.
//
// Returns:
//   - Result with threats, deny counts, timeline and stats
//   - Evaluation error (including ctx.Err())
func (a *Analyzer) Analyze(ctx context.Context, source string, records []domain.LogRecord) (*domain.Result, error) {
	a.mu.RLock()
	subscribers := a.subscribers
	observers := a.observers
	a.mu.RUnlock()

	evaluator := a.snapshot()
	start := time.Now()
	threats, err := evaluator.Evaluate(ctx, records)
	elapsed := time.Since(start)
	if err != nil {
		a.recordAnalysis(observers, err)
		return nil, fmt.Errorf("evaluate %s: %w", source, err)
	}

	window := windowOf(evaluator)
	stats := domain.Stats{
		RowsRead:      len(records),
		WindowsSeen:   detection.CountWindows(records, window),
		ThreatsByType: make(map[domain.ThreatType]int),
	}
	for i := range records {
		if !records[i].HasSource() {
			stats.BlankSources++
		}
		if records[i].IsDeny() {
			stats.DenyRows++
		}
	}
	for _, th := range threats {
		stats.ThreatsByType[th.Type]++
	}

	result := &domain.Result{
		Source:      source,
		GeneratedAt: time.Now().UTC(),
		Threats:     threats,
		DenyCounts:  detection.DenyCounts(records),
		Timeline:    detection.DenyTimeline(records, window),
		Stats:       stats,
	}

	for _, obs := range observers {
		obs.IncrementRowsByResult(ports.RowResultOK, stats.RowsRead-stats.BlankSources)
		obs.IncrementRowsByResult(ports.RowResultBlankAddress, stats.BlankSources)
		obs.ObserveEvaluation(elapsed)
	}
	for _, th := range threats {
		for _, sub := range subscribers {
			sub.OnThreat(th)
		}
	}
	a.recordAnalysis(observers, nil)

	log.Info().
		Str("source", source).
		Int("rows", stats.RowsRead).
		Int("deny_rows", stats.DenyRows).
		Int("blank_sources", stats.BlankSources).
		Int("threats", len(threats)).
		Dur("elapsed", elapsed).
		Msg("Analysis complete")

	return result, nil
}

// recordAnalysis notifies observers that count whole analysis passes.
func (a *Analyzer) recordAnalysis(observers []ports.ProcessingObserver, err error) {
	for _, obs := range observers {
		if rec, ok := obs.(interface{ RecordAnalysis(error) }); ok {
			rec.RecordAnalysis(err)
		}
	}
}

// Run loads src, analyzes it and hands the result to every reporter.
//
// Returns:
//   - The result, also when reporting partly failed
//   - Load or evaluation error, or all reporter errors joined
func (a *Analyzer) Run(ctx context.Context, src ports.RecordSource) (*domain.Result, error) {
	records, err := src.Load(ctx)
	if err != nil {
		a.mu.RLock()
		a.recordAnalysis(a.observers, err)
		a.mu.RUnlock()
		return nil, fmt.Errorf("load %s: %w", src.Name(), err)
	}
	log.Debug().Str("source", src.Name()).Int("records", len(records)).Msg("Log loaded")

	result, err := a.Analyze(ctx, src.Name(), records)
	if err != nil {
		return nil, err
	}
	return result, a.Report(ctx, result)
}

// Report delivers result to every reporter. A failing reporter does not
// stop the others.
func (a *Analyzer) Report(ctx context.Context, result *domain.Result) error {
	a.mu.RLock()
	reporters := a.reporters
	a.mu.RUnlock()

	var errs []error
	for _, r := range reporters {
		if err := r.Report(ctx, result); err != nil {
			log.Error().Err(err).Type("reporter", r).Msg("Reporter failed")
			errs = append(errs, fmt.Errorf("report: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every reporter.
func (a *Analyzer) Close() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var errs []error
	for _, r := range a.reporters {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
