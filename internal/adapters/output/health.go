package output

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/internal/ports"
)

type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Status  string        `json:"status"`
	Latency time.Duration `json:"latency_ns"`
	Uptime  time.Duration `json:"uptime_ns"`
	Reason  string        `json:"reason,omitempty"`
}

// HealthChecker exercises the active evaluator with a tiny canned table.
// Results are cached for CheckInterval so checks stay cheap under load.
type HealthChecker struct {
	evaluator  func() ports.ThreatEvaluator
	maxLatency time.Duration
	startTime  time.Time

	lastCheck     HealthStatus
	lastCheckTime time.Time
	lastCheckMu   sync.RWMutex
	checkInterval time.Duration
}

type HealthCheckerConfig struct {
	MaxLatency    time.Duration
	CheckInterval time.Duration
}

func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		MaxLatency:    500 * time.Millisecond,
		CheckInterval: 5 * time.Second,
	}
}

// NewHealthChecker creates a checker. evaluator is called on every check so
// a hot-reloaded rule set is the one being checked.
func NewHealthChecker(evaluator func() ports.ThreatEvaluator, config HealthCheckerConfig) *HealthChecker {
	return &HealthChecker{
		evaluator:     evaluator,
		maxLatency:    config.MaxLatency,
		checkInterval: config.CheckInterval,
		startTime:     time.Now(),
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.lastCheckMu.RLock()
	if !h.lastCheckTime.IsZero() && time.Since(h.lastCheckTime) < h.checkInterval {
		cached := h.lastCheck
		h.lastCheckMu.RUnlock()
		return cached
	}
	h.lastCheckMu.RUnlock()

	status := h.performCheck(ctx)

	h.lastCheckMu.Lock()
	h.lastCheck = status
	h.lastCheckTime = time.Now()
	h.lastCheckMu.Unlock()

	return status
}

func (h *HealthChecker) performCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{Uptime: time.Since(h.startTime)}

	var evaluator ports.ThreatEvaluator
	if h.evaluator != nil {
		evaluator = h.evaluator()
	}
	if evaluator == nil {
		status.Status = "OFFLINE"
		status.Reason = "no rule set loaded"
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.maxLatency)
	defer cancel()

	start := time.Now()
	_, err := evaluator.Evaluate(checkCtx, sampleRecords)
	status.Latency = time.Since(start)

	if err != nil {
		status.Status = "FAILING"
		status.Reason = fmt.Sprintf("sample evaluation failed: %v", err)
		return status
	}
	if status.Latency > h.maxLatency {
		status.Status = "SLOW"
		status.Reason = fmt.Sprintf("latency %v exceeds threshold %v", status.Latency, h.maxLatency)
		return status
	}

	status.Healthy = true
	status.Status = "HEALTHY"
	return status
}

// sampleRecords is a minimal table touching every rule filter.
var sampleRecords = func() []domain.LogRecord {
	ts := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.LogRecord{
		{Timestamp: ts, SourceAddress: "192.0.2.1", Port: 22, Action: domain.ActionDeny, Reason: "PORT_SCAN"},
		{Timestamp: ts, SourceAddress: "192.0.2.1", Port: 22, Action: domain.ActionDeny, Reason: "AUTH_FAIL"},
		{Timestamp: ts, SourceAddress: "192.0.2.2", Port: 80, Action: domain.ActionAccept, Reason: "OK"},
	}
}()

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(struct {
		Healthy       bool    `json:"healthy"`
		Status        string  `json:"status"`
		LatencyMS     float64 `json:"latency_ms"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Reason        string  `json:"reason,omitempty"`
	}{
		Healthy:       status.Healthy,
		Status:        status.Status,
		LatencyMS:     float64(status.Latency) / float64(time.Millisecond),
		UptimeSeconds: status.Uptime.Seconds(),
		Reason:        status.Reason,
	})
}
