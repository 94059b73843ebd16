package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/fwradar/internal/adapters/output"
	"github.com/xoelrdgz/fwradar/internal/app"
	"github.com/xoelrdgz/fwradar/internal/ports"
	"github.com/xoelrdgz/fwradar/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyzer over HTTP",
	Long: `Start the HTTP API. Logs are uploaded to POST /api/v1/analyze as a
multipart "file" field or as a raw text/csv body. Detection settings are
reloaded when the config file changes.

Endpoints:
  POST /api/v1/analyze         analyze an uploaded log
  GET  /api/v1/rules           active rule thresholds
  GET  /api/v1/results/latest  most recent analysis
  GET  /healthz                evaluator health check
  GET  /metrics                Prometheus metrics`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.Int("workers", 4, "concurrent analyses")

	viper.BindPFlag("server.addr", f.Lookup("addr"))
	viper.BindPFlag("server.workers", f.Lookup("workers"))
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogging(false)

	evaluator, err := app.NewEvaluator(app.GetCurrentDetectionConfig())
	if err != nil {
		return err
	}

	hot := app.NewHotReloadConfig(evaluator, app.HotReloadOptions{ConfigPath: viper.ConfigFileUsed()})
	if viper.ConfigFileUsed() != "" {
		hot.StartWatching()
	}
	defer hot.Stop()

	metrics := output.NewPrometheusMetrics("fwradar")
	memory := output.NewMemoryReporter(viper.GetInt("server.history"))

	analyzer := app.NewAnalyzer(hot)
	analyzer.AddObserver(metrics)
	analyzer.AddThreatSubscriber(metrics)
	analyzer.AddThreatSubscriber(memory)

	ctx, cancel := app.SignalContext(context.Background())
	defer cancel()

	pool := app.NewWorkerPool(app.WorkerPoolConfig{
		WorkerCount:    viper.GetInt("server.workers"),
		BufferSize:     viper.GetInt("server.queue_size"),
		QuarantinePath: viper.GetString("server.quarantine_path"),
	}, analyzer.Analyze)
	pool.Start(ctx)
	defer pool.Stop()

	health := output.NewHealthChecker(func() ports.ThreatEvaluator { return hot }, output.DefaultHealthCheckerConfig())

	api := server.NewAPI(server.APIConfig{
		Submitter:      pool,
		Rules:          hot,
		Memory:         memory,
		Health:         health,
		Metrics:        metrics.Handler(),
		MaxUploadBytes: viper.GetInt64("server.max_upload_bytes"),
		CacheSize:      viper.GetInt("server.cache_size"),
	})
	srv := server.NewServer(server.Config{Addr: viper.GetString("server.addr")}, api)

	log.Info().
		Str("addr", srv.Addr()).
		Int("workers", viper.GetInt("server.workers")).
		Str("config", viper.ConfigFileUsed()).
		Msg("fwradar server starting")

	return srv.Run(ctx)
}
