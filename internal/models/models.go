package models

// Entity represents one OData entity payload
type Entity struct {
	Context  string `json:"context,omitempty"` // odata.context / odata.metadata as received
	BaseURI  string `json:"base_uri,omitempty"`
	ID       string `json:"id,omitempty"`        // absent for transient entities
	TypeName string `json:"type_name,omitempty"` // qualified; empty means "infer from context"
	ETag     string `json:"etag,omitempty"`

	Properties []*Property `json:"properties,omitempty"`
	// MediaEntryProperties holds the properties a media entity carries outside <content>
	MediaEntryProperties []*Property `json:"media_entry_properties,omitempty"`

	NavigationLinks  []*Link `json:"navigation_links,omitempty"`
	AssociationLinks []*Link `json:"association_links,omitempty"`
	MediaEditLinks   []*Link `json:"media_edit_links,omitempty"`
	SelfLink         *Link   `json:"self_link,omitempty"`
	EditLink         *Link   `json:"edit_link,omitempty"`

	MediaContentType   string `json:"media_content_type,omitempty"`
	MediaContentSource string `json:"media_content_source,omitempty"`
	MediaEditURI       string `json:"media_edit_uri,omitempty"`
	MediaETag          string `json:"media_etag,omitempty"`

	Operations  []*Operation  `json:"operations,omitempty"`
	Annotations []*Annotation `json:"annotations,omitempty"`
}

// IsMediaEntity reports whether the entity's primary content is a stream
func (e *Entity) IsMediaEntity() bool {
	return e.MediaContentSource != "" || e.MediaContentType != ""
}

// IsReference reports whether the entity only carries an identity.
// Links, operations and annotations make an entity a full payload even without type and properties.
func (e *Entity) IsReference() bool {
	return e.TypeName == "" &&
		len(e.Properties) == 0 &&
		len(e.MediaEntryProperties) == 0 &&
		len(e.NavigationLinks) == 0 &&
		len(e.AssociationLinks) == 0 &&
		len(e.MediaEditLinks) == 0 &&
		len(e.Operations) == 0 &&
		len(e.Annotations) == 0 &&
		!e.IsMediaEntity()
}

// Property returns the named property, looking at content and media-entry properties
func (e *Entity) Property(name string) *Property {
	for _, p := range e.Properties {
		if p.Name == name {
			return p
		}
	}
	for _, p := range e.MediaEntryProperties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// NavigationLink returns the first navigation link with the given title
func (e *Entity) NavigationLink(title string) *Link {
	return findLink(e.NavigationLinks, title)
}

// AssociationLink returns the association link with the given title
func (e *Entity) AssociationLink(title string) *Link {
	return findLink(e.AssociationLinks, title)
}

// MediaEditLink returns the named-stream link with the given title
func (e *Entity) MediaEditLink(title string) *Link {
	return findLink(e.MediaEditLinks, title)
}

func findLink(links []*Link, title string) *Link {
	for _, l := range links {
		if l.Title == title {
			return l
		}
	}
	return nil
}

// NewReference creates a reference-only entity for the given id
func NewReference(id string) *Entity {
	return &Entity{ID: id}
}

// LinkType classifies the relation of a Link
type LinkType int

// Link relation kinds
const (
	LinkSelf LinkType = iota + 1
	LinkEdit
	LinkEntityNavigation
	LinkEntitySetNavigation
	LinkAssociation
	LinkMediaEdit
)

// String returns a readable name for the link type
func (t LinkType) String() string {
	switch t {
	case LinkSelf:
		return "self"
	case LinkEdit:
		return "edit"
	case LinkEntityNavigation:
		return "entity-navigation"
	case LinkEntitySetNavigation:
		return "entityset-navigation"
	case LinkAssociation:
		return "association"
	case LinkMediaEdit:
		return "media-edit"
	default:
		return "unknown"
	}
}

// Link represents a relationship link of an entity or complex value
type Link struct {
	Title     string   `json:"title,omitempty"`
	Rel       string   `json:"rel,omitempty"` // relation as found on the wire
	Type      LinkType `json:"type"`
	Href      string   `json:"href,omitempty"`
	MediaType string   `json:"media_type,omitempty"`

	// At most one of InlineEntity and InlineEntitySet is set
	InlineEntity    *Entity    `json:"inline_entity,omitempty"`
	InlineEntitySet *EntitySet `json:"inline_entity_set,omitempty"`

	MediaETag   string        `json:"media_etag,omitempty"` // media-edit links only
	Annotations []*Annotation `json:"annotations,omitempty"`
}

// IsNavigation reports whether the link is a navigation link
func (l *Link) IsNavigation() bool {
	return l.Type == LinkEntityNavigation || l.Type == LinkEntitySetNavigation
}

// HasInline reports whether the link carries inlined data
func (l *Link) HasInline() bool {
	return l.InlineEntity != nil || l.InlineEntitySet != nil
}

// NewNavigationLink creates a navigation link, collection-valued when toMany is set
func NewNavigationLink(title, href string, toMany bool) *Link {
	t := LinkEntityNavigation
	if toMany {
		t = LinkEntitySetNavigation
	}
	return &Link{Title: title, Href: href, Type: t}
}

// EntitySet represents an ordered feed of entities
type EntitySet struct {
	Context string `json:"context,omitempty"`
	BaseURI string `json:"base_uri,omitempty"`
	ID      string `json:"id,omitempty"`
	// Count is the server-reported total, which may exceed len(Entities)
	Count       *int64        `json:"count,omitempty"`
	Entities    []*Entity     `json:"entities"`
	Next        string        `json:"next,omitempty"`
	DeltaLink   string        `json:"delta_link,omitempty"`
	Operations  []*Operation  `json:"operations,omitempty"`
	Annotations []*Annotation `json:"annotations,omitempty"`
}

// ResultCount returns the explicit count, or the number of entities present
func (s *EntitySet) ResultCount() int64 {
	if s.Count != nil {
		return *s.Count
	}
	return int64(len(s.Entities))
}

// DeletedReason explains why an entity left a delta result
type DeletedReason string

// Deleted-entity reasons defined by OData v4
const (
	ReasonDeleted DeletedReason = "deleted"
	ReasonChanged DeletedReason = "changed"
)

// IsValid reports whether r is a reason defined by the protocol
func (r DeletedReason) IsValid() bool {
	return r == ReasonDeleted || r == ReasonChanged
}

// DeletedEntity marks an entity removed from a delta result
type DeletedEntity struct {
	ID     string        `json:"id"`
	Reason DeletedReason `json:"reason,omitempty"`
}

// DeltaLink marks an added or deleted relationship in a delta result
type DeltaLink struct {
	Source       string `json:"source"`
	Relationship string `json:"relationship"`
	Target       string `json:"target"`
}

// Delta is a v4 delta payload: added/changed entities plus removal and link markers
type Delta struct {
	EntitySet
	DeletedEntities []*DeletedEntity `json:"deleted_entities,omitempty"`
	AddedLinks      []*DeltaLink     `json:"added_links,omitempty"`
	DeletedLinks    []*DeltaLink     `json:"deleted_links,omitempty"`
}

// Operation advertises a bound action or function
type Operation struct {
	Metadata string `json:"metadata"` // anchor, e.g. "#NS.Rate"
	Title    string `json:"title,omitempty"`
	Target   string `json:"target,omitempty"`
}

// Annotation is an instance annotation (term + optional qualifier) with a value
type Annotation struct {
	Term      string `json:"term"`
	Qualifier string `json:"qualifier,omitempty"`
	Type      string `json:"type,omitempty"`
	Value     *Value `json:"value"`
}

// Key returns the annotation name as written after '@', e.g. "Core.Description#Short"
func (a *Annotation) Key() string {
	if a.Qualifier == "" {
		return a.Term
	}
	return a.Term + "#" + a.Qualifier
}

// LinkCollection is a $links / collection-of-references payload
type LinkCollection struct {
	Context string   `json:"context,omitempty"`
	Links   []string `json:"links"`
	Count   *int64   `json:"count,omitempty"`
	Next    string   `json:"next,omitempty"`
}
