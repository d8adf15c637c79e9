package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	json "github.com/go-json-experiment/json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zmcp/odata-codec/internal/config"
	"github.com/zmcp/odata-codec/internal/contexturl"
	"github.com/zmcp/odata-codec/internal/debug"
	"github.com/zmcp/odata-codec/internal/dispatch"
	"github.com/zmcp/odata-codec/internal/metadata"
	"github.com/zmcp/odata-codec/internal/models"
)

func runTranscode(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	kind, err := dispatch.ParseKind(cfg.Kind)
	if err != nil {
		return err
	}
	fromVersion, toVersion, err := cfg.Versions()
	if err != nil {
		return err
	}

	trace, err := debug.NewTraceLogger(cfg.Trace, cfg.TraceDir)
	if err != nil {
		return err
	}
	defer trace.Close()
	if name := trace.GetFilename(); name != "" && cfg.Verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Writing trace to %s\n", name)
	}
	logger := newLogger(cfg, trace)
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	dispatch.InitMetrics(registry)
	common := []dispatch.Option{
		dispatch.WithServerMode(cfg.ServerMode),
		dispatch.WithMaxDepth(cfg.MaxDepth),
		dispatch.WithLegacyDates(cfg.LegacyDates),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(dispatch.GetMetrics()),
	}
	if cfg.Metadata != "" {
		data, err := os.ReadFile(cfg.Metadata)
		if err != nil {
			return fmt.Errorf("failed to read metadata: %w", err)
		}
		resolver, err := metadata.Load(data, logger.Named("metadata"))
		if err != nil {
			return err
		}
		common = append(common, dispatch.WithResolver(resolver))
	}
	reader := dispatch.New(append(common, dispatch.WithVersion(fromVersion))...)
	writer := dispatch.New(append(common, dispatch.WithVersion(toVersion))...)

	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	start := time.Now()
	payload, err := decode(reader, kind, bytes.NewReader(input), cfg.From)
	trace.LogOperation("decode", string(kind), cfg.From, int64(len(input)), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", kind, err)
	}

	var out bytes.Buffer
	start = time.Now()
	err = encode(writer, kind, &out, cfg.To, payload)
	trace.LogOperation("encode", string(kind), cfg.To, int64(out.Len()), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}

	if err := writeOutput(cmd.OutOrStdout(), out.Bytes(), cfg); err != nil {
		return err
	}
	if cfg.Metrics {
		return printMetrics(cmd.ErrOrStderr(), registry)
	}
	return nil
}

// newLogger builds a console logger on stderr for --verbose, teed into the trace
func newLogger(cfg *config.Config, trace *debug.TraceLogger) *zap.Logger {
	cores := []zapcore.Core{trace.Logger().Core()}
	if cfg.Verbose {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), zapcore.DebugLevel))
	}
	return zap.New(zapcore.NewTee(cores...))
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func writeOutput(w io.Writer, data []byte, cfg *config.Config) error {
	f, err := dispatch.FormatFromContentType(cfg.To)
	if err != nil {
		return err
	}
	if f == dispatch.FormatJSON && cfg.Pretty {
		data = pretty.Pretty(data)
	} else {
		data = append(data, '\n')
	}
	_, err = w.Write(data)
	return err
}

func decode(d *dispatch.Dispatcher, kind dispatch.Kind, r io.Reader, contentType string) (interface{}, error) {
	switch kind {
	case dispatch.KindEntity:
		return d.DecodeEntity(r, contentType)
	case dispatch.KindEntitySet:
		return d.DecodeEntitySet(r, contentType)
	case dispatch.KindDelta:
		return d.DecodeDelta(r, contentType)
	case dispatch.KindProperty:
		return d.DecodeProperty(r, contentType)
	case dispatch.KindLinks:
		return d.DecodeLinks(r, contentType)
	case dispatch.KindError:
		return d.DecodeError(r, contentType)
	}
	return nil, fmt.Errorf("unknown payload kind %q", kind)
}

func encode(d *dispatch.Dispatcher, kind dispatch.Kind, w io.Writer, contentType string, payload interface{}) error {
	switch p := payload.(type) {
	case *models.Entity:
		return d.EncodeEntity(w, contentType, p)
	case *models.EntitySet:
		return d.EncodeEntitySet(w, contentType, p)
	case *models.Delta:
		return d.EncodeDelta(w, contentType, p)
	case *models.Property:
		return d.EncodeProperty(w, contentType, p)
	case *models.LinkCollection:
		return d.EncodeLinks(w, contentType, p)
	case *models.ODataError:
		return d.EncodeError(w, contentType, p)
	}
	return fmt.Errorf("unknown payload kind %q", kind)
}

// printMetrics writes the non-zero counters of registry, one per line
func printMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil || m.GetCounter().GetValue() == 0 {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func runContext(cmd *cobra.Command, args []string) error {
	ctx, err := contexturl.Parse(args[0])
	if err != nil {
		return err
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to render context URL: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(pretty.Pretty(data))
	return err
}
