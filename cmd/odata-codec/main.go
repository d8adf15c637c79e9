package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zmcp/odata-codec/internal/config"
)

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "odata-codec",
	Short: "OData payload codec - read and write OData v3/v4 JSON and Atom payloads",
	Long: `OData payload codec - read and write OData v3/v4 JSON and Atom payloads.

Decodes a payload with one content type and protocol version and writes it
with another, or takes apart a context URL.

Examples:
  odata-codec transcode --kind entity --from application/json --to application/atom+xml person.json
  odata-codec transcode --kind entityset --from-version 3 --to-version 4 < feed.json
  odata-codec context 'http://host/service/$metadata#Customers(1)/Orders/$entity'`,
	SilenceUsage: true,
}

var transcodeCmd = &cobra.Command{
	Use:   "transcode [file]",
	Short: "Decode a payload and encode it again in another format or version",
	Long: `Decode a payload and encode it again in another format or version.

Reads the file argument, or standard input when none is given, and writes the
result to standard output. Warnings about skipped content go to standard error
with --verbose.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTranscode,
}

var contextCmd = &cobra.Command{
	Use:   "context <url>",
	Short: "Print the parts of a context URL as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runContext,
}

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()

	flags := transcodeCmd.Flags()
	flags.StringVarP(&cfg.Kind, "kind", "k", "", "Payload kind: entity, entityset, delta, property, links or error")
	flags.StringVar(&cfg.From, "from", cfg.From, "Content type of the input payload")
	flags.StringVar(&cfg.To, "to", cfg.To, "Content type of the output payload")
	flags.StringVar(&cfg.FromVersion, "from-version", "", "Protocol version of the input (defaults to --version)")
	flags.StringVar(&cfg.ToVersion, "to-version", "", "Protocol version of the output (defaults to --version)")
	flags.BoolVar(&cfg.ServerMode, "server-mode", false, "Write server-only fields: self/edit links, operations and eTags")
	flags.IntVar(&cfg.MaxDepth, "max-depth", 0, "Maximum nesting of entities, links and values (0 = default)")
	flags.StringVar(&cfg.Metadata, "metadata", "", "Path to a $metadata document declaring enum types and type definitions")
	flags.BoolVar(&cfg.LegacyDates, "legacy-dates", false, "Write v3 JSON date-times as /Date(ms)/")
	flags.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print JSON output")
	flags.BoolVar(&cfg.Metrics, "metrics", false, "Print codec metrics to stderr when done")

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&cfg.Version, "version", cfg.Version, "OData protocol version: 3 or 4")
	persistent.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output to stderr")
	persistent.BoolVar(&cfg.Trace, "trace", false, "Write a JSON-lines trace of codec operations")
	persistent.StringVar(&cfg.TraceDir, "trace-dir", "", "Directory of the trace file (default: OS temp dir)")

	// Bind flags to viper for environment variable support
	for key, flag := range map[string]string{
		"kind":         "kind",
		"from":         "from",
		"to":           "to",
		"from_version": "from-version",
		"to_version":   "to-version",
		"server_mode":  "server-mode",
		"max_depth":    "max-depth",
		"metadata":     "metadata",
		"legacy_dates": "legacy-dates",
		"pretty":       "pretty",
		"metrics":      "metrics",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
	for key, flag := range map[string]string{
		"version":   "version",
		"verbose":   "verbose",
		"trace":     "trace",
		"trace_dir": "trace-dir",
	} {
		_ = viper.BindPFlag(key, persistent.Lookup(flag))
	}

	// Set up environment variable mapping
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("ODATA")
	viper.AutomaticEnv()

	rootCmd.AddCommand(transcodeCmd, contextCmd)
}

// loadConfig merges flags, environment and .env values into cfg
func loadConfig() error {
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
