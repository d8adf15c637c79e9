// Package atom implements the OData Atom/XML format for protocol versions 3 and 4.
//
// Documents are read in one forward pass with namespaces resolved, so either
// version's metadata and data namespaces are accepted on input. Only property
// values, annotations and inner errors are buffered as xmltree sub-trees. Output uses the
// literal prefixes m, d and gml declared on the root element.
package atom

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/contexturl"
	"github.com/zmcp/odata-codec/internal/debug"
	"github.com/zmcp/odata-codec/internal/edm"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/xmltree"
)

// Codec reads and writes OData Atom payloads. It is safe for concurrent use.
type Codec struct {
	codec.Base
}

// New creates an Atom codec
func New(opts codec.Options) *Codec {
	return &Codec{Base: codec.NewBase(opts)}
}

func (c *Codec) treeDepth() int {
	return c.Opts.MaxDepth * 4
}

// stream is a forward-only view of one document being decoded
type stream struct {
	dec      *xml.Decoder
	src      *codec.Source
	maxDepth int
}

// open reads up to the root start tag
func (c *Codec) open(r io.Reader) (*stream, xml.StartElement, error) {
	src := codec.NewSource(r)
	s := &stream{dec: xml.NewDecoder(src), src: src, maxDepth: c.treeDepth()}
	start, err := xmltree.Root(s.dec)
	if err != nil {
		return nil, xml.StartElement{}, src.Classify(err)
	}
	return s, start, nil
}

// walk calls fn for each child of the element just opened; fn must consume the child
func (s *stream) walk(fn func(xml.StartElement) error) error {
	return s.src.Classify(xmltree.Walk(s.dec, fn))
}

func (s *stream) text() (string, error) {
	text, err := xmltree.Text(s.dec)
	return text, s.src.Classify(err)
}

func (s *stream) skip() error {
	return s.src.Classify(xmltree.Skip(s.dec))
}

// tree buffers the element just opened
func (s *stream) tree(start xml.StartElement) (*xmltree.Element, error) {
	e, err := xmltree.Read(s.dec, start, s.maxDepth)
	return e, s.src.Classify(err)
}

// head gives a start tag the element accessors without reading its content
func head(start xml.StartElement) *xmltree.Element {
	return &xmltree.Element{Name: start.Name, Attr: start.Attr}
}

// write emits an XML declaration followed by root
func (c *Codec) write(w io.Writer, root *xmltree.Element) error {
	sink := codec.NewSink(w)
	enc := xml.NewEncoder(sink)
	err := enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="utf-8"`)})
	if err == nil {
		err = root.Write(enc)
	}
	if err == nil {
		err = enc.Flush()
	}
	return sink.Classify(err)
}

func (c *Codec) newReader(s *stream) *reader {
	return &reader{c: c, s: s, depth: codec.NewDepth(c.Opts.MaxDepth)}
}

func (c *Codec) newWriter() *writer {
	return &writer{c: c, depth: codec.NewDepth(c.Opts.MaxDepth)}
}

func (c *Codec) parseContext(raw string) *models.ContextURL {
	if raw == "" {
		return nil
	}
	ctx, err := contexturl.Parse(raw)
	if err != nil {
		c.Logger().Warn("ignoring unparsable context URL",
			zap.String("context", debug.MaskURL(raw)), zap.Error(err))
		return nil
	}
	return ctx
}

// declare adds the namespace declarations of a document root
func (c *Codec) declare(root *xmltree.Element, atom bool) *xmltree.Element {
	if atom {
		root.Attr = append(root.Attr, xmltree.Attr("xmlns", constants.AtomNamespace))
	}
	root.Attr = append(root.Attr,
		xmltree.Attr("xmlns:"+constants.PrefixData, c.Atom.DataNamespace),
		xmltree.Attr("xmlns:"+constants.PrefixMetadata, c.Atom.MetadataNamespace),
		xmltree.Attr("xmlns:"+constants.PrefixGML, constants.GMLNamespace),
	)
	return root
}

func isMetaSpace(space string) bool {
	return space == constants.MetadataNamespaceV4 || space == constants.MetadataNamespaceV3
}

func isDataSpace(space string) bool {
	return space == constants.DataNamespaceV4 || space == constants.DataNamespaceV3
}

func isAtom(e *xmltree.Element, local string) bool {
	return e.Is(constants.AtomNamespace, local)
}

func isMeta(e *xmltree.Element, local string) bool {
	return e.Name.Local == local && isMetaSpace(e.Name.Space)
}

func isData(e *xmltree.Element, local string) bool {
	return e.Name.Local == local && isDataSpace(e.Name.Space)
}

// metaAttr returns an attribute in either version's metadata namespace
func metaAttr(e *xmltree.Element, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local && isMetaSpace(a.Name.Space) {
			return a.Value
		}
	}
	return ""
}

// attr returns an unqualified attribute
func attr(e *xmltree.Element, local string) string {
	v, _ := e.AttrValue("", local)
	return v
}

func xmlAttr(e *xmltree.Element, local string) string {
	v, _ := e.AttrValue(constants.XMLNamespace, local)
	return v
}

func mName(local string) string {
	return constants.PrefixMetadata + ":" + local
}

func dName(local string) string {
	return constants.PrefixData + ":" + local
}

// typeAttr renders a type name for m:type and category terms. v4 writes Edm
// types without their namespace and other types behind a '#'.
func (c *Codec) typeAttr(t string) string {
	if !c.Version().IsV4() {
		return t
	}
	wire := codec.WireTypeName(t, c.Version())
	base := t
	if item := constants.CollectionItemType(t); item != "" {
		base = item
	}
	if edm.IsBuiltin(base) {
		return strings.TrimPrefix(wire, "#")
	}
	return wire
}

// splitTerm separates "Term#Qualifier"
func splitTerm(key string) (string, string) {
	term, qualifier, _ := strings.Cut(key, "#")
	return term, qualifier
}

// atStage wraps err with stage unless the outermost stage already matches
func atStage(stage models.Stage, err error) error {
	var se *models.StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return models.WrapStage(stage, "", err)
}
