package codec

import (
	"errors"
	"io"

	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/xmltree"
)

// Source wraps the caller's reader and remembers its failures so that
// parser errors caused by the stream are reported as ErrIO.
type Source struct {
	r   io.Reader
	err error
}

// NewSource wraps r
func NewSource(r io.Reader) *Source {
	return &Source{r: r}
}

func (s *Source) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

// Classify maps a parser error onto the codec taxonomy
func (s *Source) Classify(err error) error {
	if err == nil {
		return nil
	}
	if s.err != nil {
		return models.IOFailure(s.err)
	}
	var de *jsontree.DepthError
	switch {
	case errors.As(err, &de), errors.Is(err, xmltree.ErrDepth):
		return errors.Join(models.ErrMaxDepth, err)
	case isTaxonomy(err):
		return err
	case err == io.EOF:
		return models.Malformed("empty document")
	}
	return models.Malformed("%v", err)
}

func isTaxonomy(err error) bool {
	for _, target := range []error{
		models.ErrMalformedValue,
		models.ErrHeterogeneousCollection,
		models.ErrExpectedEntityFoundSet,
		models.ErrUnresolvedReference,
		models.ErrUnsupportedGeometry,
		models.ErrIO,
		models.ErrMalformedPayload,
		models.ErrMaxDepth,
		models.ErrUnsupportedVersion,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Sink wraps the caller's writer and reports its failures as ErrIO
type Sink struct {
	w   io.Writer
	err error
}

// NewSink wraps w
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil && s.err == nil {
		s.err = err
	}
	return n, err
}

// Classify maps an encoder error onto the codec taxonomy
func (s *Sink) Classify(err error) error {
	if err == nil {
		return nil
	}
	if s.err != nil {
		return models.IOFailure(s.err)
	}
	if isTaxonomy(err) {
		return err
	}
	return models.Malformed("%v", err)
}
