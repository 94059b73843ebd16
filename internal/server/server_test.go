package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/fwradar/internal/adapters/detection"
	"github.com/xoelrdgz/fwradar/internal/adapters/output"
	"github.com/xoelrdgz/fwradar/internal/app"
	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/internal/ports"
)

const csvHeader = "timestamp,src_ip,dst_ip,port,action,reason\n"

func attackCSV() string {
	var sb strings.Builder
	sb.WriteString(csvHeader)
	for i := 0; i < 9; i++ {
		fmt.Fprintf(&sb, "2025-11-28 09:00:%02d,203.0.113.50,192.168.1.1,22,DENY,PORT_SCAN\n", i)
	}
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&sb, "2025-11-28 09:00:%02d,198.51.100.1,192.168.1.1,22,DENY,AUTH_FAIL\n", i)
	}
	for i := 0; i < 41; i++ {
		fmt.Fprintf(&sb, "2025-11-28 09:00:%02d,10.0.0.5,192.168.1.1,80,DENY,FLOOD\n", i)
	}
	sb.WriteString("2025-11-28 09:01:00,192.168.1.10,192.168.1.1,443,ACCEPT,OK\n")
	return sb.String()
}

type testStack struct {
	server  *Server
	metrics *output.PrometheusMetrics
	memory  *output.MemoryReporter
	pool    *app.WorkerPool
}

func newTestStack(t *testing.T, maxUpload int64, cacheSize int) *testStack {
	t.Helper()

	evaluator := detection.NewEvaluator(detection.EvaluatorConfig{Rules: detection.DefaultRuleConfig()})
	metrics := output.NewPrometheusMetrics("fwradar")
	memory := output.NewMemoryReporter(4)

	analyzer := app.NewAnalyzer(evaluator)
	analyzer.AddObserver(metrics)
	analyzer.AddThreatSubscriber(metrics)

	pool := app.NewWorkerPool(app.WorkerPoolConfig{WorkerCount: 2, BufferSize: 4}, analyzer.Analyze)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	health := output.NewHealthChecker(func() ports.ThreatEvaluator { return evaluator }, output.DefaultHealthCheckerConfig())

	api := NewAPI(APIConfig{
		Submitter:      pool,
		Rules:          evaluator,
		Memory:         memory,
		Health:         health,
		Metrics:        metrics.Handler(),
		MaxUploadBytes: maxUpload,
		CacheSize:      cacheSize,
	})
	return &testStack{
		server:  NewServer(Config{Addr: "127.0.0.1:0"}, api),
		metrics: metrics,
		memory:  memory,
		pool:    pool,
	}
}

func (s *testStack) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeReport(t *testing.T, body io.Reader) output.Report {
	t.Helper()
	var report output.Report
	require.NoError(t, json.NewDecoder(body).Decode(&report))
	return report
}

func TestAnalyzeRawBody(t *testing.T) {
	stack := newTestStack(t, 0, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(attackCSV()))
	req.Header.Set("Content-Type", "text/csv")
	rec := stack.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeReport(t, rec.Body)

	require.Len(t, report.Threats, 3)
	assert.Equal(t, domain.ThreatTypePortScan, report.Threats[0].Type)
	assert.Equal(t, "203.0.113.50", report.Threats[0].SourceAddress)
	assert.Equal(t, 9, report.Threats[0].Count)
	assert.Equal(t, domain.ThreatTypeBruteForce, report.Threats[1].Type)
	assert.Equal(t, 5, report.Threats[1].Count)
	assert.Equal(t, domain.ThreatTypeTrafficFlood, report.Threats[2].Type)
	assert.Equal(t, 41, report.Threats[2].Count)
	assert.Nil(t, report.Threats[2].Port)

	require.Len(t, report.DenyCounts, 3)
	assert.Equal(t, domain.DenyCount{SourceAddress: "10.0.0.5", Count: 41}, report.DenyCounts[0])
	assert.Equal(t, 56, report.Stats.RowsRead)
	assert.Equal(t, 55, report.Stats.DenyRows)
	assert.Len(t, report.Rules, 3)
}

func TestAnalyzeMultipart(t *testing.T) {
	stack := newTestStack(t, 0, 0)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "edge-fw.csv")
	require.NoError(t, err)
	_, err = io.WriteString(part, attackCSV())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?top=1", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := stack.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeReport(t, rec.Body)
	assert.Equal(t, "edge-fw.csv", report.Source)
	assert.Len(t, report.Threats, 3)
	require.Len(t, report.DenyCounts, 1)
	assert.Equal(t, "10.0.0.5", report.DenyCounts[0].SourceAddress)
}

func TestAnalyzeMultipartMissingField(t *testing.T) {
	stack := newTestStack(t, 0, 0)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := stack.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file")
}

func TestAnalyzeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"missing column", "a,b,c\n1,2,3\n"},
		{"bad timestamp", csvHeader + "yesterday,10.0.0.5,192.168.1.1,22,DENY,AUTH_FAIL\n"},
		{"bad port", csvHeader + "2025-11-28 09:00:00,10.0.0.5,192.168.1.1,ssh,DENY,AUTH_FAIL\n"},
		{"short row", csvHeader + "2025-11-28 09:00:00,10.0.0.5\n"},
	}
	stack := newTestStack(t, 0, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(tt.body))
			rec := stack.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var resp response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Ok)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAnalyzeTooLarge(t *testing.T) {
	stack := newTestStack(t, 128, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(attackCSV()))
	rec := stack.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyzeInvalidTop(t *testing.T) {
	stack := newTestStack(t, 0, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?top=many", strings.NewReader(attackCSV()))
	rec := stack.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeInvalidTopDoesNoWork(t *testing.T) {
	stack := newTestStack(t, 0, 4)

	for _, top := range []string{"many", "-1"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?top="+top, strings.NewReader(attackCSV()))
		rec := stack.do(req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, rec.Header().Get(cacheHeader))
	}
	assert.Zero(t, stack.memory.Count())
	assert.Equal(t, http.StatusNotFound, stack.do(httptest.NewRequest(http.MethodGet, "/api/v1/results/latest", nil)).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(attackCSV()))
	rec := stack.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get(cacheHeader))
}

type stubSubmitter struct {
	err error
}

func (s stubSubmitter) Submit(context.Context, string, []domain.LogRecord) (*domain.Result, error) {
	return nil, s.err
}

func TestAnalyzeSubmitErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{app.ErrPoolSaturated, http.StatusServiceUnavailable},
		{app.ErrPoolStopped, http.StatusServiceUnavailable},
		{fmt.Errorf("worker 1: %w", app.ErrJobPanicked), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			api := NewAPI(APIConfig{Submitter: stubSubmitter{err: tt.err}})
			srv := NewServer(Config{}, api)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(attackCSV()))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRulesEndpoint(t *testing.T) {
	stack := newTestStack(t, 0, 0)

	rec := stack.do(httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rulesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rules, 3)

	thresholds := map[domain.ThreatType]int{}
	for _, r := range resp.Rules {
		thresholds[r.Type] = r.Threshold
	}
	assert.Equal(t, 8, thresholds[domain.ThreatTypePortScan])
	assert.Equal(t, 4, thresholds[domain.ThreatTypeBruteForce])
	assert.Equal(t, 40, thresholds[domain.ThreatTypeTrafficFlood])
}

func TestLatestResult(t *testing.T) {
	stack := newTestStack(t, 0, 0)

	rec := stack.do(httptest.NewRequest(http.MethodGet, "/api/v1/results/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = stack.do(httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(attackCSV())))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = stack.do(httptest.NewRequest(http.MethodGet, "/api/v1/results/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeReport(t, rec.Body)
	assert.Len(t, report.Threats, 3)
	assert.Equal(t, 1, stack.memory.Count())
}

func TestHealthAndMetrics(t *testing.T) {
	stack := newTestStack(t, 0, 0)

	rec := stack.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status output.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)

	rec = stack.do(httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(attackCSV())))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = stack.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `fwradar_analyses_total{outcome="success"} 1`)
	assert.Contains(t, body, `fwradar_threats_detected_total{type="TRAFFIC_FLOOD"} 1`)
	assert.Contains(t, body, `fwradar_rows_processed_total{result="ok"} 56`)
}

func TestHealthzWithoutChecker(t *testing.T) {
	srv := NewServer(Config{}, NewAPI(APIConfig{Submitter: stubSubmitter{}}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerRunShutdown(t *testing.T) {
	srv := NewServer(Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, NewAPI(APIConfig{Submitter: stubSubmitter{}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestAnalyzeCachesRepeatedUploads(t *testing.T) {
	stack := newTestStack(t, 0, 8)

	post := func() *httptest.ResponseRecorder {
		return stack.do(httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(attackCSV())))
	}

	first := post()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get(cacheHeader))

	second := post()
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(cacheHeader))
	assert.Len(t, decodeReport(t, second.Body).Threats, 3)

	// Only the first upload reached the evaluator.
	assert.Equal(t, int64(1), stack.pool.Processed())
}

func TestCacheKeyDependsOnRules(t *testing.T) {
	data := []byte(attackCSV())
	strict := detection.NewEvaluator(detection.EvaluatorConfig{Rules: detection.DefaultRuleConfig()}).Rules()

	relaxedCfg := detection.DefaultRuleConfig()
	relaxedCfg.Thresholds, _ = detection.ProfileThresholds(detection.ProfileRelaxed)
	relaxed := detection.NewEvaluator(detection.EvaluatorConfig{Rules: relaxedCfg}).Rules()

	assert.Equal(t, cacheKey("a.csv", data, strict), cacheKey("a.csv", data, strict))
	assert.NotEqual(t, cacheKey("a.csv", data, strict), cacheKey("a.csv", data, relaxed))
	assert.NotEqual(t, cacheKey("a.csv", data, strict), cacheKey("b.csv", data, strict))
}

func TestCacheKeyDependsOnSignatures(t *testing.T) {
	data := []byte(attackCSV())
	rulesOf := func(cfg detection.RuleConfig) []detection.RuleSummary {
		return detection.NewEvaluator(detection.EvaluatorConfig{Rules: cfg}).Rules()
	}
	base := cacheKey("a.csv", data, rulesOf(detection.DefaultRuleConfig()))

	// separately built equal rule sets hash alike
	assert.Equal(t, base, cacheKey("a.csv", data, rulesOf(detection.DefaultRuleConfig())))

	scanReasons := detection.DefaultRuleConfig()
	scanReasons.PortScanReasons = []string{"PORT_SCAN"}
	assert.NotEqual(t, base, cacheKey("a.csv", data, rulesOf(scanReasons)))

	authReason := detection.DefaultRuleConfig()
	authReason.BruteForceReason = "LOGIN_FAIL"
	assert.NotEqual(t, base, cacheKey("a.csv", data, rulesOf(authReason)))

	port := detection.DefaultRuleConfig()
	port.BruteForcePort = 2222
	assert.NotEqual(t, base, cacheKey("a.csv", data, rulesOf(port)))
}
