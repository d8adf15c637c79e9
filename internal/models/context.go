package models

// ContextSuffix is the trailing marker of a context URL
type ContextSuffix int

// Context URL suffix kinds
const (
	SuffixNone ContextSuffix = iota
	SuffixEntity
	SuffixReference
	SuffixDelta
	SuffixDeletedEntity
	SuffixLink
	SuffixDeletedLink
)

// String returns the suffix as written in a context URL, without the leading slash
func (s ContextSuffix) String() string {
	switch s {
	case SuffixEntity:
		return "$entity"
	case SuffixReference:
		return "$ref"
	case SuffixDelta:
		return "$delta"
	case SuffixDeletedEntity:
		return "$deletedEntity"
	case SuffixLink:
		return "$link"
	case SuffixDeletedLink:
		return "$deletedLink"
	default:
		return ""
	}
}

// MarshalText renders the suffix by name for JSON output
func (s ContextSuffix) MarshalText() ([]byte, error) {
	if s == SuffixNone {
		return []byte("none"), nil
	}
	return []byte(s.String()), nil
}

// ContextURL is the decomposed form of an odata.context / odata.metadata URL
type ContextURL struct {
	URI         string        `json:"uri"`
	ServiceRoot string        `json:"service_root"`
	Suffix      ContextSuffix `json:"suffix"`
	// EntitySetOrSingletonOrType is the addressed name, e.g. "Customers" or "Collection(Edm.String)"
	EntitySetOrSingletonOrType string `json:"entity_set_or_singleton_or_type,omitempty"`
	SelectList                 string `json:"select_list,omitempty"`
	DerivedEntity              string `json:"derived_entity,omitempty"`
	NavOrPropertyPath          string `json:"nav_or_property_path,omitempty"`
}

// IsCollection reports whether the addressed name is a Collection(X) type
func (c *ContextURL) IsCollection() bool {
	n := c.EntitySetOrSingletonOrType
	return len(n) > len("Collection()") && n[:len("Collection(")] == "Collection(" && n[len(n)-1] == ')'
}

// MetadataURI returns the $metadata document URI of the service
func (c *ContextURL) MetadataURI() string {
	return c.ServiceRoot + "$metadata"
}
