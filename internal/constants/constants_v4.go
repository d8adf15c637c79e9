package constants

// OData v4 XML namespaces
const (
	MetadataNamespaceV4      = "http://docs.oasis-open.org/odata/ns/metadata"
	DataNamespaceV4          = "http://docs.oasis-open.org/odata/ns/data"
	SchemeNamespaceV4        = "http://docs.oasis-open.org/odata/ns/scheme"
	RelatedRelPrefixV4       = "http://docs.oasis-open.org/odata/ns/related/"
	RelatedLinksRelPrefixV4  = "http://docs.oasis-open.org/odata/ns/relatedlinks/"
	EditMediaRelPrefixV4     = "http://docs.oasis-open.org/odata/ns/edit-media/"
	MediaResourceRelPrefixV4 = "http://docs.oasis-open.org/odata/ns/mediaresource/"
	DeltaRelV4               = "http://docs.oasis-open.org/odata/ns/delta"
)

// OData v4 content types
const (
	ContentTypeODataJSONV4          = "application/json;odata.metadata=minimal"
	ContentTypeODataJSONFullV4      = "application/json;odata.metadata=full"
	ContentTypeODataJSONNoneV4      = "application/json;odata.metadata=none"
	ContentTypeODataJSONStreamingV4 = "application/json;odata.streaming=true"
)

// OData v4 annotations
const (
	ODataContext          = "@odata.context"
	ODataMetadataETag     = "@odata.metadataEtag"
	ODataType             = "@odata.type"
	ODataID               = "@odata.id"
	ODataETag             = "@odata.etag"
	ODataReadLink         = "@odata.readLink"
	ODataEditLink         = "@odata.editLink"
	ODataMediaReadLink    = "@odata.mediaReadLink"
	ODataMediaEditLink    = "@odata.mediaEditLink"
	ODataMediaContentType = "@odata.mediaContentType"
	ODataMediaETag        = "@odata.mediaEtag"
	ODataCount            = "@odata.count"
	ODataNextLink         = "@odata.nextLink"
	ODataDeltaLink        = "@odata.deltaLink"
	ODataNull             = "@odata.null"
	ODataRemoved          = "@odata.removed"
	ODataRemovedShort     = "@removed"
	ODataError            = "error"
)

// Delta payload member names
const (
	DeltaID           = "id"
	DeltaReason       = "reason"
	DeltaSource       = "source"
	DeltaRelationship = "relationship"
	DeltaTarget       = "target"
)

var jsonNamesV4 = JSONNameSet{
	Context:          ODataContext,
	MetadataETag:     ODataMetadataETag,
	Type:             ODataType,
	ID:               ODataID,
	ETag:             ODataETag,
	ReadLink:         ODataReadLink,
	EditLink:         ODataEditLink,
	MediaReadLink:    ODataMediaReadLink,
	MediaEditLink:    ODataMediaEditLink,
	MediaContentType: ODataMediaContentType,
	MediaETag:        ODataMediaETag,
	Count:            ODataCount,
	NextLink:         ODataNextLink,
	DeltaLink:        ODataDeltaLink,
	Null:             ODataNull,
	Error:            ODataError,
	Removed:          ODataRemoved,
	ReferenceID:      ODataID,
	Value:            "value",

	TypeSuffix:             ODataType,
	NavigationLinkSuffix:   "@odata.navigationLink",
	AssociationLinkSuffix:  "@odata.associationLink",
	BindSuffix:             "@odata.bind",
	MediaReadLinkSuffix:    ODataMediaReadLink,
	MediaEditLinkSuffix:    ODataMediaEditLink,
	MediaContentTypeSuffix: ODataMediaContentType,
	MediaETagSuffix:        ODataMediaETag,
	CountSuffix:            ODataCount,
	NextLinkSuffix:         ODataNextLink,

	ReservedPrefix: "@odata.",
	TypePrefix:     "#",
}

var atomNamesV4 = AtomNameSet{
	MetadataNamespace:      MetadataNamespaceV4,
	DataNamespace:          DataNamespaceV4,
	SchemeNamespace:        SchemeNamespaceV4,
	RelatedRelPrefix:       RelatedRelPrefixV4,
	RelatedLinksRelPrefix:  RelatedLinksRelPrefixV4,
	EditMediaRelPrefix:     EditMediaRelPrefixV4,
	MediaResourceRelPrefix: MediaResourceRelPrefixV4,
	DeltaRel:               DeltaRelV4,
	ElementNamespace:       MetadataNamespaceV4,
	TypePrefix:             "#",
}

// IsODataV4Namespace checks if the namespace is an OData v4 Atom namespace
func IsODataV4Namespace(namespace string) bool {
	return namespace == MetadataNamespaceV4 || namespace == DataNamespaceV4
}

// GetODataVersion determines the OData version from an Atom namespace
func GetODataVersion(namespace string) Version {
	if IsODataV4Namespace(namespace) {
		return V4
	}
	return V3
}
