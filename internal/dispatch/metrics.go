package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zmcp/odata-codec/internal/models"
)

// Metric label values
const (
	DirectionEncode = "encode"
	DirectionDecode = "decode"

	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds the Prometheus collectors of the codec layer
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	warningsTotal     *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// InitMetrics registers the codec metrics with registerer, or the default
// registerer when nil. Later calls are no-ops.
func InitMetrics(registerer prometheus.Registerer) {
	metricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		metricsInstance = newMetricsWithFactory(promauto.With(registerer))
	})
}

// GetMetrics returns the singleton, initialising it on the default registerer if needed
func GetMetrics() *Metrics {
	InitMetrics(nil)
	return metricsInstance
}

func newMetricsWithFactory(factory promauto.Factory) *Metrics {
	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "odata",
				Subsystem: "codec",
				Name:      "operations_total",
				Help:      "Total number of payload encode and decode operations",
			},
			[]string{"format", "kind", "direction", "result"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "odata",
				Subsystem: "codec",
				Name:      "operation_duration_seconds",
				Help:      "Duration of payload encode and decode operations",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"format", "kind", "direction"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "odata",
				Subsystem: "codec",
				Name:      "errors_total",
				Help:      "Total number of failed operations by error class",
			},
			[]string{"format", "kind", "error_type"},
		),
		warningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "odata",
				Subsystem: "codec",
				Name:      "warnings_total",
				Help:      "Total number of recoverable conditions logged while coding payloads",
			},
			[]string{"format"},
		),
	}
}

// RecordOperation records the outcome and duration of one encode or decode call
func (m *Metrics) RecordOperation(format Format, kind Kind, direction string, duration time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
		m.errorsTotal.WithLabelValues(format.String(), string(kind), ErrorType(err)).Inc()
	}
	m.operationsTotal.WithLabelValues(format.String(), string(kind), direction, result).Inc()
	m.operationDuration.WithLabelValues(format.String(), string(kind), direction).Observe(duration.Seconds())
}

// RecordWarning counts one logged warning
func (m *Metrics) RecordWarning(format Format) {
	m.warningsTotal.WithLabelValues(format.String()).Inc()
}

var errorTypes = []struct {
	err  error
	name string
}{
	{models.ErrMalformedValue, "malformed_value"},
	{models.ErrHeterogeneousCollection, "heterogeneous_collection"},
	{models.ErrExpectedEntityFoundSet, "expected_entity_found_set"},
	{models.ErrUnresolvedReference, "unresolved_reference"},
	{models.ErrUnsupportedGeometry, "unsupported_geometry"},
	{models.ErrIO, "io"},
	{models.ErrMaxDepth, "max_depth"},
	{models.ErrUnsupportedVersion, "unsupported_version"},
	{models.ErrMalformedPayload, "malformed_payload"},
}

// ErrorType maps an error to its metric label
func ErrorType(err error) string {
	for _, t := range errorTypes {
		if errors.Is(err, t.err) {
			return t.name
		}
	}
	return "other"
}
