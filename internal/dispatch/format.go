package dispatch

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/zmcp/odata-codec/internal/constants"
)

// ErrUnsupportedContentType is returned for media types no codec handles
var ErrUnsupportedContentType = errors.New("unsupported content type")

// Format is a wire format family
type Format int

// Wire formats
const (
	FormatJSON Format = iota
	FormatAtom
)

// String returns the format name used in metrics and logs
func (f Format) String() string {
	if f == FormatAtom {
		return "atom"
	}
	return "json"
}

// FormatFromContentType selects the format for a media type. Parameters such
// as odata.metadata or charset are ignored; the v3 verbose JSON format is not supported.
func FormatFromContentType(contentType string) (Format, error) {
	if strings.TrimSpace(contentType) == "" {
		return FormatJSON, nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrUnsupportedContentType, contentType, err)
	}
	switch mediaType {
	case constants.ContentTypeJSON:
		if strings.EqualFold(params["odata"], "verbose") {
			return 0, fmt.Errorf("%w: verbose JSON", ErrUnsupportedContentType)
		}
		return FormatJSON, nil
	case constants.ContentTypeAtomXML, constants.ContentTypeXML, "text/xml":
		return FormatAtom, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedContentType, mediaType)
}

// Kind names the payload shape an operation handles
type Kind string

// Payload kinds
const (
	KindEntity    Kind = "entity"
	KindEntitySet Kind = "entityset"
	KindDelta     Kind = "delta"
	KindProperty  Kind = "property"
	KindLinks     Kind = "links"
	KindError     Kind = "error"
)

// Kinds lists every payload kind
var Kinds = []Kind{KindEntity, KindEntitySet, KindDelta, KindProperty, KindLinks, KindError}

// ParseKind accepts a payload kind name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown payload kind %q", s)
}

// ContentType returns the media type a payload of kind is written with
func ContentType(f Format, k Kind, v constants.Version) string {
	if f == FormatJSON {
		if v.IsV4() {
			return constants.ContentTypeODataJSONV4
		}
		return constants.ContentTypeODataJSONV3
	}
	switch k {
	case KindEntity:
		return constants.ContentTypeAtomEntry
	case KindEntitySet, KindDelta:
		return constants.ContentTypeAtomFeed
	case KindLinks:
		if v.IsV4() {
			return constants.ContentTypeAtomFeed
		}
	}
	return constants.ContentTypeXML
}
