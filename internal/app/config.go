package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/fwradar/internal/adapters/detection"
	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/internal/ports"
)

// DetectionConfig is the detection section of the configuration.
// Zero thresholds inherit the value from Profile.
type DetectionConfig struct {
	Profile  string
	Window   time.Duration
	Parallel bool

	PortScanThreshold     int
	PortScanReasons       []string
	BruteForceThreshold   int
	BruteForceReason      string
	BruteForcePort        int
	TrafficFloodThreshold int
}

// GetCurrentDetectionConfig reads the detection keys from viper.
func GetCurrentDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Profile:               viper.GetString("detection.profile"),
		Window:                viper.GetDuration("detection.window"),
		Parallel:              viper.GetBool("detection.parallel"),
		PortScanThreshold:     viper.GetInt("detection.port_scan.threshold"),
		PortScanReasons:       viper.GetStringSlice("detection.port_scan.reasons"),
		BruteForceThreshold:   viper.GetInt("detection.brute_force.threshold"),
		BruteForceReason:      viper.GetString("detection.brute_force.reason"),
		BruteForcePort:        viper.GetInt("detection.brute_force.port"),
		TrafficFloodThreshold: viper.GetInt("detection.traffic_flood.threshold"),
	}
}

// ValidateDetectionConfig rejects settings that cannot yield a rule set.
func ValidateDetectionConfig(c DetectionConfig) error {
	if _, err := detection.ProfileThresholds(c.Profile); err != nil {
		return &ConfigValidationError{Field: "detection.profile", Value: c.Profile,
			Reason: "must be one of " + strings.Join(detection.ProfileNames(), ", ")}
	}
	if c.Window < time.Second || c.Window > 24*time.Hour {
		return &ConfigValidationError{Field: "detection.window", Value: c.Window, Reason: "must be between 1s and 24h"}
	}

	thresholds := []struct {
		field string
		value int
	}{
		{"detection.port_scan.threshold", c.PortScanThreshold},
		{"detection.brute_force.threshold", c.BruteForceThreshold},
		{"detection.traffic_flood.threshold", c.TrafficFloodThreshold},
	}
	for _, th := range thresholds {
		if th.value < 0 {
			return &ConfigValidationError{Field: th.field, Value: th.value, Reason: "must not be negative (0 uses the profile)"}
		}
	}

	if len(c.PortScanReasons) == 0 {
		return &ConfigValidationError{Field: "detection.port_scan.reasons", Value: c.PortScanReasons, Reason: "must list at least one reason"}
	}
	for _, r := range c.PortScanReasons {
		if strings.TrimSpace(r) == "" {
			return &ConfigValidationError{Field: "detection.port_scan.reasons", Value: c.PortScanReasons, Reason: "must not contain empty reasons"}
		}
	}
	if strings.TrimSpace(c.BruteForceReason) == "" {
		return &ConfigValidationError{Field: "detection.brute_force.reason", Value: c.BruteForceReason, Reason: "must not be empty"}
	}
	if c.BruteForcePort < 1 || c.BruteForcePort > 65535 {
		return &ConfigValidationError{Field: "detection.brute_force.port", Value: c.BruteForcePort, Reason: "must be between 1 and 65535"}
	}
	return nil
}

// RuleConfig resolves the profile and overrides into a rule configuration.
func (c DetectionConfig) RuleConfig() (detection.RuleConfig, error) {
	if err := ValidateDetectionConfig(c); err != nil {
		return detection.RuleConfig{}, err
	}
	th, _ := detection.ProfileThresholds(c.Profile)
	if c.PortScanThreshold > 0 {
		th.PortScan = c.PortScanThreshold
	}
	if c.BruteForceThreshold > 0 {
		th.BruteForce = c.BruteForceThreshold
	}
	if c.TrafficFloodThreshold > 0 {
		th.TrafficFlood = c.TrafficFloodThreshold
	}

	reasons := make([]string, len(c.PortScanReasons))
	for i, r := range c.PortScanReasons {
		reasons[i] = strings.TrimSpace(r)
	}
	return detection.RuleConfig{
		Thresholds:       th,
		PortScanReasons:  reasons,
		BruteForceReason: strings.TrimSpace(c.BruteForceReason),
		BruteForcePort:   c.BruteForcePort,
		Window:           c.Window,
	}, nil
}

// NewEvaluator builds an evaluator from c.
func NewEvaluator(c DetectionConfig) (*detection.Evaluator, error) {
	rc, err := c.RuleConfig()
	if err != nil {
		return nil, err
	}
	return detection.NewEvaluator(detection.EvaluatorConfig{Rules: rc, Parallel: c.Parallel}), nil
}

type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return "config validation error: " + e.Field + " = " +
		formatValue(e.Value) + " - " + e.Reason
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case []string:
		return "[" + strings.Join(val, ", ") + "]"
	default:
		return fmt.Sprint(val)
	}
}

// EvaluatorFactory builds a fresh evaluator from the current configuration.
type EvaluatorFactory func() (*detection.Evaluator, error)

// HotReloadConfig holds the live evaluator and swaps it when the config
// file changes. Readers never block: each Evaluate call uses whichever
// evaluator was current when it started.
type HotReloadConfig struct {
	evaluator atomic.Pointer[detection.Evaluator]
	reloads   atomic.Int64

	factory    EvaluatorFactory
	configPath string
	mu         sync.Mutex
	stopOnce   sync.Once
	stopped    atomic.Bool
}

type HotReloadOptions struct {
	ConfigPath string
	Factory    EvaluatorFactory // Defaults to the viper detection config
}

// ViperEvaluatorFactory validates the current viper settings and builds an
// evaluator from them.
func ViperEvaluatorFactory() (*detection.Evaluator, error) {
	return NewEvaluator(GetCurrentDetectionConfig())
}

func NewHotReloadConfig(initial *detection.Evaluator, opts HotReloadOptions) *HotReloadConfig {
	if opts.Factory == nil {
		opts.Factory = ViperEvaluatorFactory
	}
	h := &HotReloadConfig{factory: opts.Factory, configPath: opts.ConfigPath}
	h.evaluator.Store(initial)
	return h
}

// Current returns the live evaluator.
func (h *HotReloadConfig) Current() *detection.Evaluator {
	return h.evaluator.Load()
}

// Reloads counts successful swaps.
func (h *HotReloadConfig) Reloads() int64 {
	return h.reloads.Load()
}

// Evaluate implements ports.ThreatEvaluator on the live evaluator.
func (h *HotReloadConfig) Evaluate(ctx context.Context, records []domain.LogRecord) ([]domain.ThreatRecord, error) {
	return h.evaluator.Load().Evaluate(ctx, records)
}

// Snapshot returns the live evaluator as a port, for callers that need
// several answers from the same rule set.
func (h *HotReloadConfig) Snapshot() ports.ThreatEvaluator {
	if ev := h.evaluator.Load(); ev != nil {
		return ev
	}
	return nil
}

func (h *HotReloadConfig) Window() time.Duration {
	return h.evaluator.Load().Window()
}

func (h *HotReloadConfig) Rules() []detection.RuleSummary {
	return h.evaluator.Load().Rules()
}

// StartWatching reloads on every config file change until Stop.
func (h *HotReloadConfig) StartWatching() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if h.stopped.Load() {
			return
		}
		log.Info().
			Str("file", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed, reloading...")

		if err := h.Reload(); err != nil {
			log.Error().Err(err).Msg("Rejecting reload, keeping current rule set")
		}
	})

	viper.WatchConfig()
	log.Info().Str("config", h.configPath).Msg("Hot-reload config watching started")
}

// Reload builds a new evaluator and swaps it in. On error the current
// evaluator stays active.
func (h *HotReloadConfig) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := h.factory()
	if err != nil {
		return err
	}
	h.evaluator.Store(next)
	h.reloads.Add(1)

	for _, r := range next.Rules() {
		log.Info().
			Str("rule", string(r.Type)).
			Int("threshold", r.Threshold).
			Str("window", r.Window).
			Msg("Rule reloaded")
	}
	return nil
}

func (h *HotReloadConfig) Stop() {
	h.stopOnce.Do(func() {
		h.stopped.Store(true)
		log.Info().Msg("Hot-reload config watcher stopped")
	})
}
