package constants

import (
	"fmt"
	"strings"
)

// Version identifies the OData protocol revision a codec speaks
type Version int

// Supported protocol versions
const (
	V3 Version = 3
	V4 Version = 4
)

// String returns the version as it appears in OData-Version headers
func (v Version) String() string {
	switch v {
	case V3:
		return "3.0"
	case V4:
		return "4.0"
	default:
		return fmt.Sprintf("unknown(%d)", int(v))
	}
}

// IsV4 reports whether v is OData v4
func (v Version) IsV4() bool {
	return v == V4
}

// ParseVersion parses "3", "3.0", "4", "4.0" or "4.01"
func ParseVersion(s string) (Version, error) {
	switch strings.TrimSpace(s) {
	case "3", "3.0":
		return V3, nil
	case "4", "4.0", "4.01":
		return V4, nil
	}
	return 0, fmt.Errorf("%s: %q", ErrUnsupportedVersion, s)
}

// JSONNameSet is the JSON field-name table of one protocol version
type JSONNameSet struct {
	Context          string
	MetadataETag     string
	Type             string
	ID               string
	ETag             string
	ReadLink         string
	EditLink         string
	MediaReadLink    string
	MediaEditLink    string
	MediaContentType string
	MediaETag        string
	Count            string
	NextLink         string
	DeltaLink        string
	Null             string
	Error            string
	Removed          string
	ReferenceID      string
	Value            string

	// Property-scoped annotation suffixes, appended to a property or link title
	TypeSuffix             string
	NavigationLinkSuffix   string
	AssociationLinkSuffix  string
	BindSuffix             string
	MediaReadLinkSuffix    string
	MediaEditLinkSuffix    string
	MediaContentTypeSuffix string
	MediaETagSuffix        string
	CountSuffix            string
	NextLinkSuffix         string

	// ReservedPrefix starts every top-level control field of this version
	ReservedPrefix string
	// TypePrefix is written in front of type names in type annotations
	TypePrefix string
}

// AtomNameSet is the Atom/XML vocabulary of one protocol version
type AtomNameSet struct {
	MetadataNamespace      string
	DataNamespace          string
	SchemeNamespace        string
	RelatedRelPrefix       string
	RelatedLinksRelPrefix  string
	EditMediaRelPrefix     string
	MediaResourceRelPrefix string
	DeltaRel               string
	// ElementNamespace is the namespace of collection item elements
	ElementNamespace string
	// TypePrefix is written in front of category terms and m:type values of non-Edm types
	TypePrefix string
}

var jsonNames = map[Version]*JSONNameSet{
	V3: &jsonNamesV3,
	V4: &jsonNamesV4,
}

var atomNames = map[Version]*AtomNameSet{
	V3: &atomNamesV3,
	V4: &atomNamesV4,
}

// JSONNames returns the JSON field-name table for v, defaulting to v4
func JSONNames(v Version) *JSONNameSet {
	if names, ok := jsonNames[v]; ok {
		return names
	}
	return &jsonNamesV4
}

// AtomNames returns the Atom vocabulary for v, defaulting to v4
func AtomNames(v Version) *AtomNameSet {
	if names, ok := atomNames[v]; ok {
		return names
	}
	return &atomNamesV4
}
