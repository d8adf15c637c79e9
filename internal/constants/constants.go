package constants

import "strings"

// Atom and related XML namespaces shared by both protocol versions
const (
	AtomNamespace       = "http://www.w3.org/2005/Atom"
	AppNamespace        = "http://www.w3.org/2007/app"
	GMLNamespace        = "http://www.opengis.net/gml"
	GeoRSSNamespace     = "http://www.georss.org/georss"
	TombstonesNamespace = "http://purl.org/atompub/tombstones/1.0"
	XMLNamespace        = "http://www.w3.org/XML/1998/namespace"
)

// Namespace prefixes used when writing Atom documents
const (
	PrefixMetadata   = "m"
	PrefixData       = "d"
	PrefixGML        = "gml"
	PrefixGeoRSS     = "georss"
	PrefixTombstones = "at"
)

// Atom element and attribute names
const (
	AtomFeed       = "feed"
	AtomEntry      = "entry"
	AtomID         = "id"
	AtomTitle      = "title"
	AtomUpdated    = "updated"
	AtomAuthor     = "author"
	AtomName       = "name"
	AtomCategory   = "category"
	AtomLink       = "link"
	AtomContent    = "content"
	AtomSummary    = "summary"
	AtomAttrRel    = "rel"
	AtomAttrHref   = "href"
	AtomAttrTitle  = "title"
	AtomAttrType   = "type"
	AtomAttrTerm   = "term"
	AtomAttrScheme = "scheme"
	AtomAttrSrc    = "src"
	AtomAttrBase   = "base"
	AtomAttrLang   = "lang"

	AtomRelSelf      = "self"
	AtomRelEdit      = "edit"
	AtomRelEditMedia = "edit-media"
	AtomRelNext      = "next"
	AtomDeletedEntry = "deleted-entry"
)

// OData metadata-namespace element and attribute names used in Atom payloads
const (
	MetaProperties   = "properties"
	MetaInline       = "inline"
	MetaCount        = "count"
	MetaAction       = "action"
	MetaFunction     = "function"
	MetaAnnotation   = "annotation"
	MetaRef          = "ref"
	MetaValue        = "value"
	MetaElement      = "element"
	MetaError        = "error"
	MetaCode         = "code"
	MetaMessage      = "message"
	MetaTarget       = "target"
	MetaDetails      = "details"
	MetaDetail       = "detail"
	MetaInnerError   = "innererror"
	MetaLink         = "link"
	MetaDeletedLink  = "deleted-link"
	MetaAttrType     = "type"
	MetaAttrNull     = "null"
	MetaAttrETag     = "etag"
	MetaAttrContext  = "context"
	MetaAttrMetadata = "metadata"
	MetaAttrID       = "id"
	MetaAttrReason   = "reason"
	MetaAttrRef      = "ref"
	MetaAttrTerm     = "term"
	MetaAttrSource   = "source"
	MetaAttrRelation = "relationship"
	MetaAttrTarget   = "target"
	MetaAttrTitle    = "title"

	DataURI   = "uri"
	DataLinks = "links"
	DataNext  = "next"
)

// Members of JSON operation advertisements and error bodies
const (
	OperationTitle  = "title"
	OperationTarget = "target"

	ErrorCode       = "code"
	ErrorMessage    = "message"
	ErrorTarget     = "target"
	ErrorDetails    = "details"
	ErrorInnerError = "innererror"
	ErrorLang       = "lang"
	ErrorValue      = "value"
)

// GML element names
const (
	GMLPoint              = "Point"
	GMLLineString         = "LineString"
	GMLPolygon            = "Polygon"
	GMLMultiPoint         = "MultiPoint"
	GMLMultiCurve         = "MultiCurve"
	GMLMultiLineString    = "MultiLineString"
	GMLMultiSurface       = "MultiSurface"
	GMLMultiPolygon       = "MultiPolygon"
	GMLMultiGeometry      = "MultiGeometry"
	GMLGeometryCollection = "GeometryCollection"
	GMLPos                = "pos"
	GMLPosList            = "posList"
	GMLExterior           = "exterior"
	GMLInterior           = "interior"
	GMLLinearRing         = "LinearRing"
	GMLPointMembers       = "pointMembers"
	GMLPointMember        = "pointMember"
	GMLCurveMembers       = "curveMembers"
	GMLCurveMember        = "curveMember"
	GMLSurfaceMembers     = "surfaceMembers"
	GMLSurfaceMember      = "surfaceMember"
	GMLGeometryMembers    = "geometryMembers"
	GMLGeometryMember     = "geometryMember"
	GMLAttrSrsName        = "srsName"

	// SRSNamePrefix is prepended to the EPSG code in gml:srsName
	SRSNamePrefix = "http://www.opengis.net/def/crs/EPSG/0/"
)

// GeoJSON-like member names used for geospatial JSON values
const (
	GeoJSONType        = "type"
	GeoJSONCoordinates = "coordinates"
	GeoJSONGeometries  = "geometries"
	GeoJSONCRS         = "crs"
	GeoJSONProperties  = "properties"
	GeoJSONName        = "name"
	GeoJSONCRSPrefix   = "EPSG:"
)

// HTTP headers
const (
	ContentType = "Content-Type"
	Accept      = "Accept"
)

// Content types
const (
	ContentTypeJSON      = "application/json"
	ContentTypeXML       = "application/xml"
	ContentTypeAtomXML   = "application/atom+xml"
	ContentTypeAtomEntry = "application/atom+xml;type=entry"
	ContentTypeAtomFeed  = "application/atom+xml;type=feed"
	ContentTypeODataAtom = ContentTypeAtomEntry
	ContentTypeAnyMedia  = "*/*"
)

// Context URL markers and suffixes
const (
	MetadataEndpoint = "$metadata"

	SuffixEntity        = "/$entity"
	SuffixElementLegacy = "/@Element"
	SuffixReference     = "/$ref"
	SuffixDelta         = "/$delta"
	SuffixDeletedEntity = "/$deletedEntity"
	SuffixLink          = "/$link"
	SuffixDeletedLink   = "/$deletedLink"
)

// Edm primitive type names
const (
	EdmNamespacePrefix = "Edm."
	EdmBinary          = "Edm.Binary"
	EdmBoolean         = "Edm.Boolean"
	EdmByte            = "Edm.Byte"
	EdmSByte           = "Edm.SByte"
	EdmInt16           = "Edm.Int16"
	EdmInt32           = "Edm.Int32"
	EdmInt64           = "Edm.Int64"
	EdmSingle          = "Edm.Single"
	EdmDouble          = "Edm.Double"
	EdmDecimal         = "Edm.Decimal"
	EdmString          = "Edm.String"
	EdmGuid            = "Edm.Guid"
	EdmDateTime        = "Edm.DateTime"
	EdmDateTimeOffset  = "Edm.DateTimeOffset"
	EdmTime            = "Edm.Time"
	EdmDate            = "Edm.Date"
	EdmTimeOfDay       = "Edm.TimeOfDay"
	EdmDuration        = "Edm.Duration"
	EdmStream          = "Edm.Stream"
	EdmGeography       = "Edm.Geography"
	EdmGeometry        = "Edm.Geometry"
)

// CollectionTypePrefix opens a Collection(X) type name
const CollectionTypePrefix = "Collection("

// ODataTypeMap maps OData primitive types to the Go types the value codec produces
var ODataTypeMap = map[string]string{
	EdmString:         "string",
	EdmInt16:          "int16",
	EdmInt32:          "int32",
	EdmInt64:          "int64",
	EdmBoolean:        "bool",
	EdmByte:           "uint8",
	EdmSByte:          "int8",
	EdmSingle:         "float32",
	EdmDouble:         "float64",
	EdmDecimal:        "decimal.Decimal",
	EdmDateTime:       "time.Time",
	EdmDateTimeOffset: "time.Time",
	EdmDate:           "time.Time",
	EdmTime:           "time.Duration",
	EdmDuration:       "time.Duration",
	EdmTimeOfDay:      "time.Duration",
	EdmGuid:           "uuid.UUID",
	EdmBinary:         "[]byte",
	EdmStream:         "string",
}

// Error messages
const (
	ErrUnsupportedFormat  = "unsupported payload format"
	ErrUnsupportedVersion = "unsupported protocol version"
	ErrEmptyDocument      = "empty document"
	ErrUnexpectedElement  = "unexpected element"
	ErrExpectedObject     = "expected JSON object"
	ErrExpectedArray      = "expected JSON array"
)

// GetGoType returns the Go type the value codec produces for an OData type
func GetGoType(odataType string) string {
	if goType, ok := ODataTypeMap[odataType]; ok {
		return goType
	}
	return "interface{}"
}

// IsCollectionType reports whether a type name is of the form Collection(X)
func IsCollectionType(typeName string) bool {
	return strings.HasPrefix(typeName, CollectionTypePrefix) && strings.HasSuffix(typeName, ")")
}

// CollectionItemType returns X for Collection(X), or "" when typeName is not a collection
func CollectionItemType(typeName string) string {
	if !IsCollectionType(typeName) {
		return ""
	}
	return typeName[len(CollectionTypePrefix) : len(typeName)-1]
}

// CollectionOf wraps an item type name into Collection(itemType)
func CollectionOf(itemType string) string {
	return CollectionTypePrefix + itemType + ")"
}
