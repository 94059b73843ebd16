package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/fwradar/internal/adapters/detection"
	"github.com/xoelrdgz/fwradar/internal/adapters/input"
	"github.com/xoelrdgz/fwradar/internal/adapters/output"
	"github.com/xoelrdgz/fwradar/internal/app"
	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/internal/ports"
	"github.com/xoelrdgz/fwradar/internal/tui"
)

var (
	logFile         string
	noTUI           bool
	jsonOut         bool
	generateMissing bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Find threat patterns in a firewall log",
	Long: `Load a CSV firewall log (timestamp, src_ip, dst_ip, port, action, reason),
evaluate the detection rules and report the flagged windows together with
the sources that were denied most often.

Examples:
  fwradar analyze --log ./firewall.csv
  fwradar analyze --log ./firewall.csv --profile relaxed --no-tui
  fwradar analyze --log https://logs.example.com/edge.csv --json
  fwradar analyze --log ./missing.csv --generate-missing --seed 7`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&logFile, "log", "l", "", "log file path or http(s) URL")
	f.BoolVar(&noTUI, "no-tui", false, "disable the TUI and print a table to stdout")
	f.BoolVar(&jsonOut, "json", false, "emit the report as JSON")
	f.StringP("output", "o", "", "write the JSON report to this file")
	f.Int("top", 10, "deny sources listed in the summary")
	f.BoolVar(&generateMissing, "generate-missing", false, "write a synthetic log when the local file does not exist")
	f.Int64("seed", 42, "generator seed used with --generate-missing")

	viper.BindPFlag("log.path", f.Lookup("log"))
	viper.BindPFlag("output.json.enabled", f.Lookup("json"))
	viper.BindPFlag("output.json.path", f.Lookup("output"))
	viper.BindPFlag("report.top", f.Lookup("top"))
	viper.BindPFlag("generator.seed", f.Lookup("seed"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	jsonPath := viper.GetString("output.json.path")
	jsonEnabled := jsonOut || viper.GetBool("output.json.enabled") || jsonPath != ""
	// JSON on stdout replaces the interactive and table displays.
	jsonStdout := jsonEnabled && jsonPath == ""
	interactive := !noTUI && !jsonStdout

	setupLogging(!interactive)
	if interactive && zerolog.GlobalLevel() < zerolog.WarnLevel {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	logPath := viper.GetString("log.path")
	if logFile != "" {
		logPath = logFile
	}
	if logPath == "" {
		return fmt.Errorf("log file path required: use --log")
	}

	evaluator, err := app.NewEvaluator(app.GetCurrentDetectionConfig())
	if err != nil {
		return err
	}
	rules := evaluator.Rules()

	ctx, cancel := app.SignalContext(context.Background())
	defer cancel()

	src, err := openSource(logPath)
	if err != nil {
		return err
	}

	log.Info().
		Str("source", src.Name()).
		Str("profile", viper.GetString("detection.profile")).
		Bool("tui", interactive).
		Msg("fwradar started")

	analyzer := app.NewAnalyzer(evaluator)
	defer analyzer.Close()

	if jsonEnabled {
		jsonReporter, err := output.NewJSONReporter(output.JSONReporterConfig{
			FilePath: jsonPath,
			Pretty:   true,
			Rules:    rules,
		})
		if err != nil {
			return fmt.Errorf("failed to create JSON reporter: %w", err)
		}
		analyzer.AddReporter(jsonReporter)
	}

	topN := viper.GetInt("report.top")
	floodThreshold := thresholdOf(rules, domain.ThreatTypeTrafficFlood)

	if !interactive {
		if !jsonStdout {
			analyzer.AddReporter(output.NewConsoleReporter(output.ConsoleReporterConfig{
				TopN:           topN,
				Window:         evaluator.Window().String(),
				FloodThreshold: floodThreshold,
			}))
		}
		_, err := analyzer.Run(ctx, src)
		return err
	}

	tuiApp := tui.NewApp(tui.AppConfig{
		Source:         src.Name(),
		Window:         evaluator.Window(),
		TopN:           topN,
		FloodThreshold: floodThreshold,
	})
	analyzer.AddReporter(tuiApp)

	runErr := make(chan error, 1)
	go func() {
		result, err := analyzer.Run(ctx, src)
		if err != nil && result == nil {
			tuiApp.Fail(err)
		}
		runErr <- err
	}()

	var tuiErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("TUI panic recovered")
				tuiErr = fmt.Errorf("TUI panic: %v", r)
			}
		}()
		tuiErr = tuiApp.Run()
	}()
	cancel()

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return errors.Join(err, tuiErr)
	}
	return tuiErr
}

// openSource resolves the --log location. A missing local file is
// generated first when --generate-missing is set.
func openSource(location string) (ports.RecordSource, error) {
	if input.IsRemote(location) {
		return input.NewRemoteCSVSource(location, input.DefaultRemoteConfig()), nil
	}

	_, err := os.Stat(location)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && generateMissing:
		config := input.DefaultGeneratorConfig()
		config.Seed = viper.GetInt64("generator.seed")
		config.Rows = viper.GetInt("generator.rows")
		config.Bursts = true
		rows, err := input.GenerateFile(location, config)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", location, err)
		}
		log.Info().Str("path", location).Int("rows", rows).Int64("seed", config.Seed).Msg("Generated synthetic log")
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("log file %s not found (use --generate-missing to create one)", filepath.Clean(location))
	default:
		return nil, err
	}
	return input.NewCSVFileSource(location), nil
}

func thresholdOf(rules []detection.RuleSummary, t domain.ThreatType) int {
	for _, r := range rules {
		if r.Type == t {
			return r.Threshold
		}
	}
	return 0
}
