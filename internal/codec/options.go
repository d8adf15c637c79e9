// Package codec holds what the JSON and Atom codecs share: configuration,
// type-name handling, value inference and error plumbing.
package codec

import (
	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/edm"
	"github.com/zmcp/odata-codec/internal/geo"
)

// DefaultMaxDepth bounds entity/link/value nesting
const DefaultMaxDepth = 64

// Options configures a concrete codec. It is fixed at construction and read-only afterwards.
type Options struct {
	Version    constants.Version
	ServerMode bool
	Resolver   edm.Resolver
	Logger     *zap.Logger
	MaxDepth   int

	// LegacyDates makes v3 JSON write Edm.DateTime and Edm.DateTimeOffset as /Date(ms)/
	LegacyDates bool
}

// Normalize fills defaults
func (o Options) Normalize() Options {
	if o.Version == 0 {
		o.Version = constants.V4
	}
	if o.Resolver == nil {
		o.Resolver = edm.Builtin()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// Base is embedded by the concrete codecs
type Base struct {
	Opts  Options
	Geo   *geo.Codec
	Names *constants.JSONNameSet
	Atom  *constants.AtomNameSet
}

// NewBase normalises opts and prepares the shared helpers
func NewBase(opts Options) Base {
	opts = opts.Normalize()
	return Base{
		Opts:  opts,
		Geo:   geo.New(opts.Logger),
		Names: constants.JSONNames(opts.Version),
		Atom:  constants.AtomNames(opts.Version),
	}
}

// Logger returns the configured logger
func (b *Base) Logger() *zap.Logger {
	return b.Opts.Logger
}

// Version returns the configured protocol version
func (b *Base) Version() constants.Version {
	return b.Opts.Version
}
