package detection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

// Evaluator applies an ordered rule set to a record table.
//
// Rules are read-only and independent, so with Parallel set each rule runs
// in its own goroutine. The output is sorted either way, which makes
// parallel and sequential runs indistinguishable.
//
// Thread Safety: Evaluate is safe for concurrent calls.
type Evaluator struct {
	rules    []Rule
	window   time.Duration
	parallel bool
}

// EvaluatorConfig configures an Evaluator.
type EvaluatorConfig struct {
	Rules    RuleConfig
	Parallel bool
}

// NewEvaluator builds the rule set described by config.
func NewEvaluator(config EvaluatorConfig) *Evaluator {
	window := config.Rules.Window
	if window <= 0 {
		window = domain.DefaultWindow
	}
	return &Evaluator{
		rules:    BuildRules(config.Rules),
		window:   window,
		parallel: config.Parallel,
	}
}

// NewEvaluatorWithRules wraps a custom rule set.
func NewEvaluatorWithRules(rules []Rule, window time.Duration, parallel bool) *Evaluator {
	if window <= 0 {
		window = domain.DefaultWindow
	}
	return &Evaluator{rules: rules, window: window, parallel: parallel}
}

// Evaluate runs every rule over records.
//
// Returns:
//   - Threats ordered by rule, window, source address and port
//   - ctx.Err() if the context is cancelled before all rules finished
func (e *Evaluator) Evaluate(ctx context.Context, records []domain.LogRecord) ([]domain.ThreatRecord, error) {
	perRule := make([][]domain.ThreatRecord, len(e.rules))

	if e.parallel {
		var wg sync.WaitGroup
		for i := range e.rules {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				if ctx.Err() != nil {
					return
				}
				perRule[idx] = e.rules[idx].Evaluate(records, e.window)
			}(i)
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	} else {
		for i := range e.rules {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			perRule[i] = e.rules[i].Evaluate(records, e.window)
		}
	}

	var threats []domain.ThreatRecord
	for i, found := range perRule {
		sortThreats(found)
		threats = append(threats, found...)
		log.Debug().
			Str("rule", string(e.rules[i].Type)).
			Int("threshold", e.rules[i].Threshold).
			Int("flagged", len(found)).
			Msg("Rule evaluated")
	}
	return threats, nil
}

// Window returns the aggregation granularity.
func (e *Evaluator) Window() time.Duration {
	return e.window
}

// RuleSummary describes one active rule for reports and the API. It carries
// every setting that changes what the rule flags.
type RuleSummary struct {
	Type      domain.ThreatType `json:"type"`
	Level     domain.AlertLevel `json:"level"`
	Threshold int               `json:"threshold"`
	ByPort    bool              `json:"by_port"`
	Port      *int              `json:"port,omitempty"`
	Reasons   []string          `json:"reasons,omitempty"`
	Window    string            `json:"window"`
}

func (e *Evaluator) Rules() []RuleSummary {
	out := make([]RuleSummary, len(e.rules))
	for i, r := range e.rules {
		out[i] = RuleSummary{
			Type:      r.Type,
			Level:     r.Level,
			Threshold: r.Threshold,
			ByPort:    r.ByPort,
			Reasons:   append([]string(nil), r.Reasons...),
			Window:    e.window.String(),
		}
		if r.FixedPort != nil {
			out[i].Port = domain.IntPtr(*r.FixedPort)
		}
	}
	return out
}

func sortThreats(threats []domain.ThreatRecord) {
	sort.Slice(threats, func(i, j int) bool {
		a, b := threats[i], threats[j]
		if !a.Window.Equal(b.Window) {
			return a.Window.Before(b.Window)
		}
		if a.SourceAddress != b.SourceAddress {
			return a.SourceAddress < b.SourceAddress
		}
		return portValue(a.Port) < portValue(b.Port)
	})
}

func portValue(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
