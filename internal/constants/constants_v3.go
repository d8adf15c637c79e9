package constants

// OData v3 XML namespaces
const (
	MetadataNamespaceV3      = "http://schemas.microsoft.com/ado/2007/08/dataservices/metadata"
	DataNamespaceV3          = "http://schemas.microsoft.com/ado/2007/08/dataservices"
	SchemeNamespaceV3        = "http://schemas.microsoft.com/ado/2007/08/dataservices/scheme"
	RelatedRelPrefixV3       = "http://schemas.microsoft.com/ado/2007/08/dataservices/related/"
	RelatedLinksRelPrefixV3  = "http://schemas.microsoft.com/ado/2007/08/dataservices/relatedlinks/"
	EditMediaRelPrefixV3     = "http://schemas.microsoft.com/ado/2007/08/dataservices/edit-media/"
	MediaResourceRelPrefixV3 = "http://schemas.microsoft.com/ado/2007/08/dataservices/mediaresource/"
)

// OData v3 JSON light control fields
const (
	ODataMetadataV3         = "odata.metadata"
	ODataTypeV3             = "odata.type"
	ODataIDV3               = "odata.id"
	ODataETagV3             = "odata.etag"
	ODataReadLinkV3         = "odata.readLink"
	ODataEditLinkV3         = "odata.editLink"
	ODataMediaReadLinkV3    = "odata.mediaReadLink"
	ODataMediaEditLinkV3    = "odata.mediaEditLink"
	ODataMediaContentTypeV3 = "odata.mediaContentType"
	ODataMediaETagV3        = "odata.mediaEtag"
	ODataCountV3            = "odata.count"
	ODataNextLinkV3         = "odata.nextLink"
	ODataNullV3             = "odata.null"
	ODataErrorV3            = "odata.error"
	ODataURLV3              = "url"
)

// OData v3 content types
const (
	ContentTypeODataJSONV3        = "application/json;odata=minimalmetadata"
	ContentTypeODataJSONFullV3    = "application/json;odata=fullmetadata"
	ContentTypeODataJSONNoneV3    = "application/json;odata=nometadata"
	ContentTypeODataJSONVerboseV3 = "application/json;odata=verbose"
)

var jsonNamesV3 = JSONNameSet{
	Context:          ODataMetadataV3,
	Type:             ODataTypeV3,
	ID:               ODataIDV3,
	ETag:             ODataETagV3,
	ReadLink:         ODataReadLinkV3,
	EditLink:         ODataEditLinkV3,
	MediaReadLink:    ODataMediaReadLinkV3,
	MediaEditLink:    ODataMediaEditLinkV3,
	MediaContentType: ODataMediaContentTypeV3,
	MediaETag:        ODataMediaETagV3,
	Count:            ODataCountV3,
	NextLink:         ODataNextLinkV3,
	Null:             ODataNullV3,
	Error:            ODataErrorV3,
	ReferenceID:      ODataURLV3,
	Value:            "value",

	TypeSuffix:             "@odata.type",
	NavigationLinkSuffix:   "@odata.navigationLinkUrl",
	AssociationLinkSuffix:  "@odata.associationLinkUrl",
	BindSuffix:             "@odata.bind",
	MediaReadLinkSuffix:    "@odata.mediaReadLink",
	MediaEditLinkSuffix:    "@odata.mediaEditLink",
	MediaContentTypeSuffix: "@odata.mediaContentType",
	MediaETagSuffix:        "@odata.mediaEtag",
	CountSuffix:            "@odata.count",
	NextLinkSuffix:         "@odata.nextLink",

	ReservedPrefix: "odata.",
}

var atomNamesV3 = AtomNameSet{
	MetadataNamespace:      MetadataNamespaceV3,
	DataNamespace:          DataNamespaceV3,
	SchemeNamespace:        SchemeNamespaceV3,
	RelatedRelPrefix:       RelatedRelPrefixV3,
	RelatedLinksRelPrefix:  RelatedLinksRelPrefixV3,
	EditMediaRelPrefix:     EditMediaRelPrefixV3,
	MediaResourceRelPrefix: MediaResourceRelPrefixV3,
	ElementNamespace:       DataNamespaceV3,
}
