package dispatch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testMetrics() *Metrics {
	return newMetricsWithFactory(promauto.With(prometheus.NewRegistry()))
}

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		expected    Format
		wantErr     bool
	}{
		{"", FormatJSON, false},
		{"application/json", FormatJSON, false},
		{"application/json;odata.metadata=minimal;charset=utf-8", FormatJSON, false},
		{"application/json;odata=fullmetadata", FormatJSON, false},
		{"application/json;odata=verbose", 0, true},
		{"application/atom+xml;type=entry", FormatAtom, false},
		{"application/xml", FormatAtom, false},
		{"text/xml; charset=utf-8", FormatAtom, false},
		{"text/plain", 0, true},
		{"application/", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			f, err := FormatFromContentType(tt.contentType)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedContentType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("EntitySet")
	require.NoError(t, err)
	assert.Equal(t, KindEntitySet, k)

	_, err = ParseKind("feed")
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, constants.ContentTypeODataJSONV4, ContentType(FormatJSON, KindEntity, constants.V4))
	assert.Equal(t, constants.ContentTypeODataJSONV3, ContentType(FormatJSON, KindError, constants.V3))
	assert.Equal(t, constants.ContentTypeAtomEntry, ContentType(FormatAtom, KindEntity, constants.V4))
	assert.Equal(t, constants.ContentTypeAtomFeed, ContentType(FormatAtom, KindDelta, constants.V4))
	assert.Equal(t, constants.ContentTypeAtomFeed, ContentType(FormatAtom, KindLinks, constants.V4))
	assert.Equal(t, constants.ContentTypeXML, ContentType(FormatAtom, KindLinks, constants.V3))
	assert.Equal(t, constants.ContentTypeXML, ContentType(FormatAtom, KindProperty, constants.V4))
}

func TestDispatcher_RoutesByContentType(t *testing.T) {
	d := New(WithVersion(constants.V4))
	e := &models.Entity{ID: "People(1)", Properties: []*models.Property{
		{Name: "Name", Value: models.NewPrimitive(constants.EdmString, "Ada")},
	}}

	var js bytes.Buffer
	require.NoError(t, d.EncodeEntity(&js, "application/json", e))
	assert.True(t, strings.HasPrefix(js.String(), "{"), js.String())

	var xml bytes.Buffer
	require.NoError(t, d.EncodeEntity(&xml, constants.ContentTypeAtomEntry, e))
	assert.True(t, strings.HasPrefix(xml.String(), "<?xml"), xml.String())

	fromJSON, err := d.DecodeEntity(&js, "application/json")
	require.NoError(t, err)
	fromAtom, err := d.DecodeEntity(&xml, constants.ContentTypeAtomEntry)
	require.NoError(t, err)
	assert.Equal(t, "Ada", fromJSON.Property("Name").Value.Primitive)
	assert.Equal(t, "Ada", fromAtom.Property("Name").Value.Primitive)
}

func TestDispatcher_UnsupportedContentType(t *testing.T) {
	m := testMetrics()
	d := New(WithMetrics(m))
	_, err := d.DecodeEntity(strings.NewReader("{}"), "text/csv")
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
	assert.Equal(t, 0, testutil.CollectAndCount(m.operationsTotal))
}

func TestDispatcher_Metrics(t *testing.T) {
	m := testMetrics()
	d := New(WithVersion(constants.V3), WithMetrics(m))

	_, err := d.DecodeProperty(strings.NewReader(`{"value":"x"}`), "application/json")
	require.NoError(t, err)
	_, err = d.DecodeProperty(strings.NewReader(`{"value":}`), "application/json")
	require.Error(t, err)
	err = d.EncodeDelta(&bytes.Buffer{}, constants.ContentTypeAtomFeed, &models.Delta{})
	assert.ErrorIs(t, err, models.ErrUnsupportedVersion)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("json", "property", DirectionDecode, ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("json", "property", DirectionDecode, ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("json", "property", "malformed_payload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("atom", "delta", "unsupported_version")))
}

func TestDispatcher_CountsWarnings(t *testing.T) {
	m := testMetrics()
	core, logs := observer.New(zapcore.WarnLevel)
	d := New(WithMetrics(m), WithLogger(zap.New(core)))

	_, err := d.DecodeEntity(strings.NewReader(`{"@odata.id":"People(1)","Name":"Ada","@odata.bogus":1}`), "application/json")
	require.NoError(t, err)
	_, err = d.DecodeEntitySet(strings.NewReader(`<feed xmlns="http://www.w3.org/2005/Atom"><generator>x</generator></feed>`), "application/atom+xml")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.warningsTotal.WithLabelValues("json")))
	assert.Equal(t, 1, logs.FilterMessage("skipping unknown control field").Filter(loggerNamed("json")).Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.warningsTotal.WithLabelValues("atom")))
	assert.Equal(t, 1, logs.Filter(loggerNamed("atom")).Len())
}

func loggerNamed(name string) func(observer.LoggedEntry) bool {
	return func(e observer.LoggedEntry) bool { return e.LoggerName == name }
}

func TestDispatcher_WarningsCountedWithoutLogger(t *testing.T) {
	m := testMetrics()
	d := New(WithMetrics(m))
	_, err := d.DecodeEntitySet(strings.NewReader(`<feed xmlns="http://www.w3.org/2005/Atom"><generator>x</generator></feed>`), "application/xml")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.warningsTotal.WithLabelValues("atom")))
}

func TestDispatcher_Options(t *testing.T) {
	d := New(WithVersion(constants.V3), WithServerMode(true), WithMaxDepth(3))
	assert.Equal(t, constants.V3, d.Version())
	assert.True(t, d.opts.ServerMode)
	assert.Equal(t, 3, d.opts.MaxDepth)

	c, err := d.Codec("application/xml")
	require.NoError(t, err)
	assert.Same(t, d.codecs[FormatAtom], c)
}

func TestGetMetrics_Singleton(t *testing.T) {
	assert.Same(t, GetMetrics(), GetMetrics())
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "max_depth", ErrorType(models.WrapStage(models.StageEntity, "", models.ErrMaxDepth)))
	assert.Equal(t, "malformed_value", ErrorType(models.NewMalformedValue("x", "Edm.Int32", nil)))
	assert.Equal(t, "other", ErrorType(assert.AnError))
}
