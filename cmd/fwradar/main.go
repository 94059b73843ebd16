package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "fwradar",
	Short: "Firewall log threat pattern finder",
	Long: `fwradar reads a firewall log export, buckets DENY events into
one-minute windows per source address and flags the windows that cross
a counting threshold.

Detection Rules:
  - Port Scan: DENY with reason PORT_SCAN or INVALID, per source, port and window
  - Brute Force: DENY with reason AUTH_FAIL on port 22, per source and window
  - Traffic Flood: every DENY, per source and window

Threshold Profiles:
  - strict (default): 8 / 4 / 40
  - relaxed: 10 / 5 / 50`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fwradar %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("profile", "strict", "threshold profile: strict or relaxed")
	pf.Int("port-scan-threshold", 0, "override the port scan threshold (0 uses the profile)")
	pf.Int("brute-force-threshold", 0, "override the brute force threshold (0 uses the profile)")
	pf.Int("flood-threshold", 0, "override the traffic flood threshold (0 uses the profile)")
	pf.Bool("parallel", false, "evaluate rules concurrently")

	viper.BindPFlag("logging.level", pf.Lookup("log-level"))
	viper.BindPFlag("detection.profile", pf.Lookup("profile"))
	viper.BindPFlag("detection.port_scan.threshold", pf.Lookup("port-scan-threshold"))
	viper.BindPFlag("detection.brute_force.threshold", pf.Lookup("brute-force-threshold"))
	viper.BindPFlag("detection.traffic_flood.threshold", pf.Lookup("flood-threshold"))
	viper.BindPFlag("detection.parallel", pf.Lookup("parallel"))

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/fwradar")
	}

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("log.path", "./testdata/firewall.csv")
	viper.SetDefault("detection.profile", "strict")
	viper.SetDefault("detection.window", "1m")
	viper.SetDefault("detection.parallel", false)
	viper.SetDefault("detection.port_scan.threshold", 0)
	viper.SetDefault("detection.port_scan.reasons", []string{"PORT_SCAN", "INVALID"})
	viper.SetDefault("detection.brute_force.threshold", 0)
	viper.SetDefault("detection.brute_force.reason", "AUTH_FAIL")
	viper.SetDefault("detection.brute_force.port", 22)
	viper.SetDefault("detection.traffic_flood.threshold", 0)
	viper.SetDefault("report.top", 10)
	viper.SetDefault("output.json.enabled", false)
	viper.SetDefault("output.json.path", "")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.workers", 4)
	viper.SetDefault("server.queue_size", 16)
	viper.SetDefault("server.max_upload_bytes", 64<<20)
	viper.SetDefault("server.quarantine_path", "")
	viper.SetDefault("server.history", 20)
	viper.SetDefault("server.cache_size", 32)
	viper.SetDefault("generator.rows", 1000)
	viper.SetDefault("generator.seed", 42)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}

	viper.SetEnvPrefix("FWRADAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setupLogging configures the global logger. Console mode writes
// human-readable lines; otherwise JSON lines go to stderr.
func setupLogging(console bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch viper.GetString("logging.level") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
