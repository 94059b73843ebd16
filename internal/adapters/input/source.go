package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

var ErrRemoteStatus = errors.New("unexpected remote status")

// CSVFileSource loads a log table from a local CSV file.
type CSVFileSource struct {
	path string
}

func NewCSVFileSource(path string) *CSVFileSource {
	return &CSVFileSource{path: path}
}

func (s *CSVFileSource) Load(ctx context.Context) ([]domain.LogRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadRecords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	log.Info().Str("file", s.path).Int("records", len(records)).Msg("Loaded log entries")
	return records, nil
}

func (s *CSVFileSource) Name() string {
	return filepath.Base(s.path)
}

// CSVStreamSource loads a log table from an arbitrary reader, e.g. an
// HTTP upload. It can be loaded once.
type CSVStreamSource struct {
	name   string
	reader io.Reader
}

func NewCSVStreamSource(name string, r io.Reader) *CSVStreamSource {
	return &CSVStreamSource{name: name, reader: r}
}

func (s *CSVStreamSource) Load(ctx context.Context) ([]domain.LogRecord, error) {
	return ReadRecords(ctx, s.reader)
}

func (s *CSVStreamSource) Name() string {
	return s.name
}

// RemoteCSVSource downloads a log table over HTTP(S) with retries.
type RemoteCSVSource struct {
	url    string
	client *retryablehttp.Client
}

// RemoteConfig configures remote downloads.
type RemoteConfig struct {
	RetryMax     int           // Retries after the first attempt (default: 3)
	RetryWaitMin time.Duration // Minimum backoff (default: 500ms)
	RetryWaitMax time.Duration // Maximum backoff (default: 5s)
	Timeout      time.Duration // Per-attempt timeout (default: 30s)
}

func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		Timeout:      30 * time.Second,
	}
}

func NewRemoteCSVSource(url string, config RemoteConfig) *RemoteCSVSource {
	client := retryablehttp.NewClient()
	client.RetryMax = config.RetryMax
	if config.RetryWaitMin > 0 {
		client.RetryWaitMin = config.RetryWaitMin
	}
	if config.RetryWaitMax > 0 {
		client.RetryWaitMax = config.RetryWaitMax
	}
	if config.Timeout > 0 {
		client.HTTPClient.Timeout = config.Timeout
	}
	client.Logger = nil
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Warn().Str("url", req.URL.String()).Int("attempt", attempt).Msg("Retrying log download")
		}
	}
	return &RemoteCSVSource{url: url, client: client}
}

func (s *RemoteCSVSource) Load(ctx context.Context) ([]domain.LogRecord, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrRemoteStatus, s.url, resp.StatusCode)
	}

	records, err := ReadRecords(ctx, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.url, err)
	}
	log.Info().Str("url", s.url).Int("records", len(records)).Msg("Downloaded log entries")
	return records, nil
}

func (s *RemoteCSVSource) Name() string {
	return s.url
}

// IsRemote reports whether location should be fetched over HTTP.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
