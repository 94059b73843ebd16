package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/fwradar/internal/adapters/detection"
	"github.com/xoelrdgz/fwradar/internal/adapters/input"
	"github.com/xoelrdgz/fwradar/internal/adapters/output"
	"github.com/xoelrdgz/fwradar/internal/app"
	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/pkg/lru"
)

// DefaultMaxUploadBytes caps one uploaded log.
const DefaultMaxUploadBytes int64 = 64 << 20

const cacheHeader = "X-Fwradar-Cache"

type response struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type rulesResponse struct {
	Rules   []detection.RuleSummary `json:"rules"`
	Reloads int64                   `json:"reloads"`
}

// Submitter runs one analysis, normally through app.WorkerPool.
type Submitter interface {
	Submit(ctx context.Context, source string, records []domain.LogRecord) (*domain.Result, error)
}

// RuleProvider exposes the active rule set.
type RuleProvider interface {
	Rules() []detection.RuleSummary
}

type APIConfig struct {
	Submitter      Submitter
	Rules          RuleProvider
	Memory         *output.MemoryReporter // optional, backs /api/v1/results/latest
	Health         http.Handler           // optional
	Metrics        http.Handler           // optional
	MaxUploadBytes int64
	CacheSize      int // Results kept for repeated uploads (0 disables)
}

type API struct {
	submitter      Submitter
	rules          RuleProvider
	memory         *output.MemoryReporter
	health         http.Handler
	metrics        http.Handler
	maxUploadBytes int64
	cache          *lru.Cache[string, *domain.Result]
}

func NewAPI(config APIConfig) *API {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}
	api := &API{
		submitter:      config.Submitter,
		rules:          config.Rules,
		memory:         config.Memory,
		health:         config.Health,
		metrics:        config.Metrics,
		maxUploadBytes: config.MaxUploadBytes,
	}
	if config.CacheSize > 0 {
		api.cache = lru.New[string, *domain.Result](config.CacheSize)
	}
	return api
}

func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.POST("/analyze", a.analyze)
	api.GET("/rules", a.listRules)
	api.GET("/results/latest", a.latestResult)

	if a.health != nil {
		router.GET("/healthz", gin.WrapH(a.health))
	} else {
		router.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, response{Ok: true})
		})
	}
	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics))
	}
}

func (a *API) analyze(c *gin.Context) {
	top := -1
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, response{Error: "top must be a non-negative integer"})
			return
		}
		top = n
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUploadBytes)

	name, body, err := a.uploadBody(c)
	if err != nil {
		a.fail(c, err)
		return
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		a.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	rules := a.activeRules()
	key := cacheKey(name, data, rules)

	result, cached := a.cachedResult(key)
	if cached {
		c.Header(cacheHeader, "HIT")
	} else {
		records, err := input.NewCSVStreamSource(name, bytes.NewReader(data)).Load(ctx)
		if err != nil {
			a.fail(c, err)
			return
		}
		result, err = a.submitter.Submit(ctx, name, records)
		if err != nil {
			a.fail(c, err)
			return
		}
		if a.cache != nil {
			a.cache.Add(key, result)
			c.Header(cacheHeader, "MISS")
		}
	}

	if a.memory != nil {
		_ = a.memory.Report(ctx, result)
	}

	report := output.NewReport(result, rules)
	if top >= 0 {
		report.DenyCounts = result.TopDenies(top)
		if report.DenyCounts == nil {
			report.DenyCounts = []domain.DenyCount{}
		}
	}

	log.Info().
		Str("source", name).
		Int("rows", result.Stats.RowsRead).
		Int("threats", len(result.Threats)).
		Bool("cached", cached).
		Msg("Upload analyzed")

	c.JSON(http.StatusOK, report)
}

func (a *API) cachedResult(key string) (*domain.Result, bool) {
	if a.cache == nil {
		return nil, false
	}
	return a.cache.Get(key)
}

// cacheKey identifies an upload under a rule set. The rules are hashed in
// their JSON form, so a reload that changes any threshold, reason, port or
// window yields a different key.
func cacheKey(name string, data []byte, rules []detection.RuleSummary) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	_ = json.NewEncoder(h).Encode(rules)
	return hex.EncodeToString(h.Sum(nil))
}

// uploadBody returns the CSV stream of the request: the multipart field
// "file" when the request is multipart, the raw body otherwise.
func (a *API) uploadBody(c *gin.Context) (string, io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if mediaType != "multipart/form-data" {
		return "upload", c.Request.Body, nil
	}

	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, &badRequestError{msg: "multipart field \"file\" is required", err: err}
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	return header.Filename, f, nil
}

func (a *API) listRules(c *gin.Context) {
	resp := rulesResponse{Rules: a.activeRules()}
	if r, ok := a.rules.(interface{ Reloads() int64 }); ok {
		resp.Reloads = r.Reloads()
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) latestResult(c *gin.Context) {
	if a.memory == nil {
		c.JSON(http.StatusNotFound, response{Error: "no results retained"})
		return
	}
	latest := a.memory.Latest()
	if latest == nil {
		c.JSON(http.StatusNotFound, response{Error: "no analysis yet"})
		return
	}
	c.JSON(http.StatusOK, output.NewReport(latest, a.activeRules()))
}

func (a *API) activeRules() []detection.RuleSummary {
	if a.rules == nil {
		return []detection.RuleSummary{}
	}
	return a.rules.Rules()
}

type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func (a *API) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Analysis failed")
	}
	c.JSON(status, response{Error: err.Error()})
}

func statusFor(err error) int {
	var badReq *badRequestError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &badReq), input.IsMalformed(err):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrPoolSaturated), errors.Is(err, app.ErrPoolStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
