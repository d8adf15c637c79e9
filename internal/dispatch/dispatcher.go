// Package dispatch is the entry point of the codec: it picks the JSON or Atom
// implementation from a payload's content type and records codec metrics.
package dispatch

import (
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zmcp/odata-codec/internal/atom"
	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/edm"
	"github.com/zmcp/odata-codec/internal/jsonfmt"
	"github.com/zmcp/odata-codec/internal/models"
)

// Codec is the surface shared by the concrete format implementations
type Codec interface {
	EncodeEntity(w io.Writer, e *models.Entity) error
	DecodeEntity(r io.Reader) (*models.Entity, error)
	EncodeEntitySet(w io.Writer, s *models.EntitySet) error
	DecodeEntitySet(r io.Reader) (*models.EntitySet, error)
	EncodeDelta(w io.Writer, d *models.Delta) error
	DecodeDelta(r io.Reader) (*models.Delta, error)
	EncodeProperty(w io.Writer, p *models.Property) error
	DecodeProperty(r io.Reader) (*models.Property, error)
	EncodeLinks(w io.Writer, lc *models.LinkCollection) error
	DecodeLinks(r io.Reader) (*models.LinkCollection, error)
	EncodeError(w io.Writer, e *models.ODataError) error
	DecodeError(r io.Reader) (*models.ODataError, error)
}

var (
	_ Codec = (*jsonfmt.Codec)(nil)
	_ Codec = (*atom.Codec)(nil)
)

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithVersion selects the protocol version, V4 by default
func WithVersion(v constants.Version) Option {
	return func(d *Dispatcher) {
		d.opts.Version = v
	}
}

// WithServerMode enables the server-only fields: self/edit links, operations and eTags
func WithServerMode(server bool) Option {
	return func(d *Dispatcher) {
		d.opts.ServerMode = server
	}
}

// WithResolver sets the EDM type resolver
func WithResolver(r edm.Resolver) Option {
	return func(d *Dispatcher) {
		d.opts.Resolver = r
	}
}

// WithLogger sets the logger warnings are written to
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.opts.Logger = logger
	}
}

// WithMaxDepth bounds entity, link and value nesting
func WithMaxDepth(depth int) Option {
	return func(d *Dispatcher) {
		d.opts.MaxDepth = depth
	}
}

// WithLegacyDates makes v3 JSON write date-times as /Date(ms)/
func WithLegacyDates(legacy bool) Option {
	return func(d *Dispatcher) {
		d.opts.LegacyDates = legacy
	}
}

// WithMetrics records operations and warnings on m
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Dispatcher routes payloads to the JSON or Atom codec. It is safe for concurrent use.
type Dispatcher struct {
	opts    codec.Options
	metrics *Metrics
	codecs  [2]Codec
}

// New creates a Dispatcher; both concrete codecs share its configuration
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	d.opts = d.opts.Normalize()
	d.codecs[FormatJSON] = jsonfmt.New(d.codecOptions(FormatJSON))
	d.codecs[FormatAtom] = atom.New(d.codecOptions(FormatAtom))
	return d
}

func (d *Dispatcher) codecOptions(f Format) codec.Options {
	opts := d.opts
	opts.Logger = opts.Logger.Named(f.String())
	if d.metrics != nil {
		m := d.metrics
		opts.Logger = opts.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, &warningCounter{count: func() { m.RecordWarning(f) }})
		}))
	}
	return opts
}

// Version returns the configured protocol version
func (d *Dispatcher) Version() constants.Version {
	return d.opts.Version
}

// Codec returns the concrete codec for a content type
func (d *Dispatcher) Codec(contentType string) (Codec, error) {
	f, err := FormatFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	return d.codecs[f], nil
}

// run resolves the codec and records the call
func (d *Dispatcher) run(contentType string, kind Kind, direction string, fn func(Codec) error) error {
	f, err := FormatFromContentType(contentType)
	if err != nil {
		return err
	}
	start := time.Now()
	err = fn(d.codecs[f])
	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.RecordOperation(f, kind, direction, elapsed, err)
	}
	if ce := d.opts.Logger.Check(zap.DebugLevel, "codec operation"); ce != nil {
		ce.Write(zap.Stringer("format", f), zap.String("kind", string(kind)),
			zap.String("direction", direction), zap.Duration("duration", elapsed), zap.Error(err))
	}
	return err
}

// EncodeEntity writes a single entity
func (d *Dispatcher) EncodeEntity(w io.Writer, contentType string, e *models.Entity) error {
	return d.run(contentType, KindEntity, DirectionEncode, func(c Codec) error {
		return c.EncodeEntity(w, e)
	})
}

// DecodeEntity reads a single entity or entity reference
func (d *Dispatcher) DecodeEntity(r io.Reader, contentType string) (*models.Entity, error) {
	var e *models.Entity
	err := d.run(contentType, KindEntity, DirectionDecode, func(c Codec) (err error) {
		e, err = c.DecodeEntity(r)
		return err
	})
	return e, err
}

// EncodeEntitySet writes a collection of entities
func (d *Dispatcher) EncodeEntitySet(w io.Writer, contentType string, s *models.EntitySet) error {
	return d.run(contentType, KindEntitySet, DirectionEncode, func(c Codec) error {
		return c.EncodeEntitySet(w, s)
	})
}

// DecodeEntitySet reads a collection of entities
func (d *Dispatcher) DecodeEntitySet(r io.Reader, contentType string) (*models.EntitySet, error) {
	var s *models.EntitySet
	err := d.run(contentType, KindEntitySet, DirectionDecode, func(c Codec) (err error) {
		s, err = c.DecodeEntitySet(r)
		return err
	})
	return s, err
}

// EncodeDelta writes a v4 delta payload
func (d *Dispatcher) EncodeDelta(w io.Writer, contentType string, delta *models.Delta) error {
	return d.run(contentType, KindDelta, DirectionEncode, func(c Codec) error {
		return c.EncodeDelta(w, delta)
	})
}

// DecodeDelta reads a v4 delta payload
func (d *Dispatcher) DecodeDelta(r io.Reader, contentType string) (*models.Delta, error) {
	var delta *models.Delta
	err := d.run(contentType, KindDelta, DirectionDecode, func(c Codec) (err error) {
		delta, err = c.DecodeDelta(r)
		return err
	})
	return delta, err
}

// EncodeProperty writes a top-level property
func (d *Dispatcher) EncodeProperty(w io.Writer, contentType string, p *models.Property) error {
	return d.run(contentType, KindProperty, DirectionEncode, func(c Codec) error {
		return c.EncodeProperty(w, p)
	})
}

// DecodeProperty reads a top-level property
func (d *Dispatcher) DecodeProperty(r io.Reader, contentType string) (*models.Property, error) {
	var p *models.Property
	err := d.run(contentType, KindProperty, DirectionDecode, func(c Codec) (err error) {
		p, err = c.DecodeProperty(r)
		return err
	})
	return p, err
}

// EncodeLinks writes a collection of entity references
func (d *Dispatcher) EncodeLinks(w io.Writer, contentType string, lc *models.LinkCollection) error {
	return d.run(contentType, KindLinks, DirectionEncode, func(c Codec) error {
		return c.EncodeLinks(w, lc)
	})
}

// DecodeLinks reads a collection of entity references
func (d *Dispatcher) DecodeLinks(r io.Reader, contentType string) (*models.LinkCollection, error) {
	var lc *models.LinkCollection
	err := d.run(contentType, KindLinks, DirectionDecode, func(c Codec) (err error) {
		lc, err = c.DecodeLinks(r)
		return err
	})
	return lc, err
}

// EncodeError writes an error payload
func (d *Dispatcher) EncodeError(w io.Writer, contentType string, e *models.ODataError) error {
	return d.run(contentType, KindError, DirectionEncode, func(c Codec) error {
		return c.EncodeError(w, e)
	})
}

// DecodeError reads an error payload
func (d *Dispatcher) DecodeError(r io.Reader, contentType string) (*models.ODataError, error) {
	var e *models.ODataError
	err := d.run(contentType, KindError, DirectionDecode, func(c Codec) (err error) {
		e, err = c.DecodeError(r)
		return err
	})
	return e, err
}

// warningCounter is a zap core that only counts entries at Warn and above
type warningCounter struct {
	count func()
}

func (w *warningCounter) Enabled(l zapcore.Level) bool {
	return l >= zapcore.WarnLevel
}

func (w *warningCounter) With([]zapcore.Field) zapcore.Core {
	return w
}

func (w *warningCounter) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if w.Enabled(ent.Level) {
		return ce.AddCore(ent, w)
	}
	return ce
}

func (w *warningCounter) Write(zapcore.Entry, []zapcore.Field) error {
	w.count()
	return nil
}

func (w *warningCounter) Sync() error {
	return nil
}
