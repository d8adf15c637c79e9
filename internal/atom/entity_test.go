package atom

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
)

const (
	nsV4 = `xmlns="http://www.w3.org/2005/Atom" xmlns:m="http://docs.oasis-open.org/odata/ns/metadata" xmlns:d="http://docs.oasis-open.org/odata/ns/data" xmlns:gml="http://www.opengis.net/gml"`
	nsV3 = `xmlns="http://www.w3.org/2005/Atom" xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata" xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices"`
)

func newCodec(v constants.Version, server bool) *Codec {
	return New(codec.Options{Version: v, ServerMode: server})
}

func observed(v constants.Version, server bool) (*Codec, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return New(codec.Options{Version: v, ServerMode: server, Logger: zap.New(core)}), logs
}

func decodeEntity(t *testing.T, c *Codec, doc string) *models.Entity {
	t.Helper()
	e, err := c.DecodeEntity(strings.NewReader(doc))
	require.NoError(t, err)
	return e
}

func encodeEntity(t *testing.T, c *Codec, e *models.Entity) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.EncodeEntity(&buf, e))
	return buf.String()
}

// entry wraps properties in a minimal v4 entry
func entry(props string) string {
	return `<entry ` + nsV4 + `><id>http://host/service/People(1)</id><content type="application/xml"><m:properties>` +
		props + `</m:properties></content></entry>`
}

const employeeEntry = `<?xml version="1.0" encoding="utf-8"?>
<entry ` + nsV4 + ` xml:base="http://host/service/" m:context="http://host/service/$metadata#People/$entity" m:etag="W/&quot;1&quot;">
  <id>http://host/service/People(1)</id>
  <category term="#NS.Employee" scheme="http://docs.oasis-open.org/odata/ns/scheme"/>
  <link rel="edit" href="People(1)"/>
  <link rel="http://docs.oasis-open.org/odata/ns/related/Orders" type="application/atom+xml;type=feed" title="Orders" href="People(1)/Orders"/>
  <link rel="http://docs.oasis-open.org/odata/ns/related/Manager" type="application/atom+xml;type=entry" title="Manager" href="People(1)/Manager">
    <m:inline>
      <entry>
        <id>http://host/service/People(2)</id>
        <content type="application/xml"><m:properties><d:PersonID m:type="Int32">2</d:PersonID></m:properties></content>
      </entry>
    </m:inline>
  </link>
  <m:action metadata="#NS.Rate" title="Rate" target="People(1)/NS.Rate"/>
  <title/>
  <updated>2024-01-01T00:00:00Z</updated>
  <content type="application/xml">
    <m:properties>
      <d:PersonID m:type="Int32">1</d:PersonID>
      <d:Name>Ada</d:Name>
      <d:Salary m:type="Decimal">1234.5</d:Salary>
      <d:Nick m:null="true"/>
      <d:Home m:type="#NS.Address"><d:Street>Main</d:Street><d:Zip m:type="Int16">10</d:Zip></d:Home>
      <d:Tags m:type="#Collection(String)"><m:element>a</m:element><m:element>b</m:element></d:Tags>
      <d:Loc m:type="GeographyPoint"><gml:Point gml:srsName="http://www.opengis.net/def/crs/EPSG/0/4326"><gml:pos>1 2</gml:pos></gml:Point></d:Loc>
    </m:properties>
  </content>
  <m:annotation term="Core.Description" target="Name">Display name</m:annotation>
  <m:annotation term="NS.Rating#Q" m:type="Int32">5</m:annotation>
</entry>`

func TestDecodeEntity_Employee(t *testing.T) {
	c := newCodec(constants.V4, false)
	e := decodeEntity(t, c, employeeEntry)

	assert.Equal(t, "http://host/service/", e.BaseURI)
	assert.Equal(t, "http://host/service/$metadata#People/$entity", e.Context)
	assert.Equal(t, `W/"1"`, e.ETag)
	assert.Equal(t, "http://host/service/People(1)", e.ID)
	assert.Equal(t, "NS.Employee", e.TypeName)
	require.NotNil(t, e.EditLink)
	assert.Equal(t, "People(1)", e.EditLink.Href)
	assert.Nil(t, e.SelfLink)

	orders := e.NavigationLink("Orders")
	require.NotNil(t, orders)
	assert.Equal(t, models.LinkEntitySetNavigation, orders.Type)
	assert.Equal(t, "People(1)/Orders", orders.Href)
	assert.False(t, orders.HasInline())

	manager := e.NavigationLink("Manager")
	require.NotNil(t, manager)
	assert.Equal(t, models.LinkEntityNavigation, manager.Type)
	require.NotNil(t, manager.InlineEntity)
	assert.Equal(t, "http://host/service/People(2)", manager.InlineEntity.ID)
	assert.Equal(t, int32(2), manager.InlineEntity.Property("PersonID").Value.Primitive)

	require.Len(t, e.Operations, 1)
	assert.Equal(t, &models.Operation{Metadata: "#NS.Rate", Title: "Rate", Target: "People(1)/NS.Rate"}, e.Operations[0])

	require.Len(t, e.Properties, 7)
	assert.Equal(t, models.NewPrimitive(constants.EdmInt32, int32(1)), e.Property("PersonID").Value)
	assert.Equal(t, "Edm.Int32", e.Property("PersonID").Type)

	name := e.Property("Name")
	assert.Equal(t, models.NewPrimitive(constants.EdmString, "Ada"), name.Value)
	assert.Empty(t, name.Type)
	require.Len(t, name.Annotations, 1)
	assert.Equal(t, "Core.Description", name.Annotations[0].Term)
	assert.Equal(t, "Display name", name.Annotations[0].Value.Primitive)

	salary := e.Property("Salary").Value.Primitive.(decimal.Decimal)
	assert.True(t, salary.Equal(decimal.RequireFromString("1234.5")))
	assert.True(t, e.Property("Nick").IsNull())

	home := e.Property("Home").Value
	assert.Equal(t, models.ComplexValue, home.Kind)
	assert.Equal(t, "NS.Address", home.TypeName)
	assert.Equal(t, "Main", home.Complex.Property("Street").Value.Primitive)
	assert.Equal(t, int16(10), home.Complex.Property("Zip").Value.Primitive)

	tags := e.Property("Tags").Value
	assert.Equal(t, "Collection(Edm.String)", tags.TypeName)
	assert.Equal(t, []*models.Value{
		models.NewPrimitive(constants.EdmString, "a"),
		models.NewPrimitive(constants.EdmString, "b"),
	}, tags.Collection)

	loc := e.Property("Loc").Value
	require.Equal(t, models.GeospatialValue, loc.Kind)
	assert.Equal(t, orb.Point{1, 2}, loc.Geo.Geometry)
	assert.Equal(t, 4326, loc.Geo.SRID)
	assert.Equal(t, models.Geography, loc.Geo.Dimension)

	require.Len(t, e.Annotations, 1)
	assert.Equal(t, "NS.Rating", e.Annotations[0].Term)
	assert.Equal(t, "Q", e.Annotations[0].Qualifier)
	assert.Equal(t, int32(5), e.Annotations[0].Value.Primitive)
}

func TestDecodeEntity_InfersUntypedValues(t *testing.T) {
	c := newCodec(constants.V4, false)
	e := decodeEntity(t, c, entry(
		`<d:S>hello</d:S>`+
			`<d:Empty/>`+
			`<d:Addr><d:City>Oslo</d:City></d:Addr>`+
			`<d:List><m:element>x</m:element></d:List>`+
			`<d:Where><gml:Point><gml:pos>3 4</gml:pos></gml:Point></d:Where>`))

	assert.Equal(t, models.NewPrimitive(constants.EdmString, "hello"), e.Property("S").Value)
	assert.Equal(t, models.NewPrimitive(constants.EdmString, ""), e.Property("Empty").Value)

	addr := e.Property("Addr").Value
	assert.Equal(t, models.ComplexValue, addr.Kind)
	assert.Empty(t, addr.TypeName)

	list := e.Property("List").Value
	assert.Equal(t, models.CollectionValue, list.Kind)
	assert.Equal(t, "Collection(Edm.String)", list.TypeName)

	where := e.Property("Where").Value
	require.Equal(t, models.GeospatialValue, where.Kind)
	assert.Equal(t, "Edm.GeographyPoint", where.TypeName)
	assert.Equal(t, orb.Point{3, 4}, where.Geo.Geometry)
}

func TestDecodeEntity_PartiallyTypedCollection(t *testing.T) {
	c := newCodec(constants.V4, false)
	e := decodeEntity(t, c, entry(`<d:Addresses>`+
		`<m:element m:type="#NS.Address"><d:Street>A</d:Street></m:element>`+
		`<m:element><d:Street>B</d:Street></m:element>`+
		`</d:Addresses>`))

	v := e.Property("Addresses").Value
	assert.Equal(t, "Collection(NS.Address)", v.TypeName)
	require.Len(t, v.Collection, 2)
	for _, item := range v.Collection {
		assert.Equal(t, "NS.Address", item.TypeName)
	}
}

func TestDecodeEntity_V3(t *testing.T) {
	c := newCodec(constants.V3, false)
	e := decodeEntity(t, c, `<entry `+nsV3+` xml:base="http://host/svc/">
  <id>http://host/svc/Products(1)</id>
  <category term="NS.Product" scheme="http://schemas.microsoft.com/ado/2007/08/dataservices/scheme"/>
  <link rel="http://schemas.microsoft.com/ado/2007/08/dataservices/related/Category" type="application/atom+xml;type=entry" title="Category" href="Products(1)/Category"/>
  <content type="application/xml">
    <m:properties>
      <d:ID m:type="Edm.Int32">1</d:ID>
      <d:Released m:type="Edm.DateTime">2024-03-01T10:00:00</d:Released>
      <d:Colors m:type="Collection(Edm.String)"><d:element>red</d:element></d:Colors>
    </m:properties>
  </content>
</entry>`)

	assert.Equal(t, "NS.Product", e.TypeName)
	assert.Equal(t, "http://host/svc/", e.BaseURI)
	assert.Equal(t, int32(1), e.Property("ID").Value.Primitive)
	assert.Equal(t, "Edm.DateTime", e.Property("Released").Value.TypeName)
	assert.Len(t, e.Property("Colors").Value.Collection, 1)
	require.NotNil(t, e.NavigationLink("Category"))
	assert.Equal(t, "Products(1)/Category", e.NavigationLink("Category").Href)
}

func TestDecodeEntity_References(t *testing.T) {
	tests := []struct {
		name string
		v    constants.Version
		doc  string
	}{
		{"v4 m:ref", constants.V4, `<m:ref xmlns:m="http://docs.oasis-open.org/odata/ns/metadata" id="http://host/People(1)"/>`},
		{"v3 uri", constants.V3, `<uri xmlns="http://schemas.microsoft.com/ado/2007/08/dataservices">http://host/People(1)</uri>`},
		{"entry with id only", constants.V4, `<entry ` + nsV4 + `><id>http://host/People(1)</id></entry>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := decodeEntity(t, newCodec(tt.v, false), tt.doc)
			assert.True(t, e.IsReference())
			assert.Equal(t, "http://host/People(1)", e.ID)
		})
	}
}

func TestDecodeEntity_MediaEntity(t *testing.T) {
	c := newCodec(constants.V4, false)
	e := decodeEntity(t, c, `<entry `+nsV4+`>
  <id>http://host/Photos(1)</id>
  <link rel="edit-media" href="Photos(1)/$value" m:etag="e1"/>
  <link rel="http://docs.oasis-open.org/odata/ns/edit-media/Thumb" type="image/jpeg" title="Thumb" href="Photos(1)/Thumb" m:etag="t1"/>
  <link rel="http://docs.oasis-open.org/odata/ns/mediaresource/Thumb" type="image/jpeg" href="read/Thumb"/>
  <content type="image/png" src="Photos(1)/$value"/>
  <m:properties><d:Name>sunset</d:Name></m:properties>
</entry>`)

	assert.True(t, e.IsMediaEntity())
	assert.Equal(t, "image/png", e.MediaContentType)
	assert.Equal(t, "Photos(1)/$value", e.MediaContentSource)
	assert.Equal(t, "Photos(1)/$value", e.MediaEditURI)
	assert.Equal(t, "e1", e.MediaETag)
	assert.Empty(t, e.Properties)
	require.Len(t, e.MediaEntryProperties, 1)
	assert.Equal(t, "sunset", e.Property("Name").Value.Primitive)

	require.Len(t, e.MediaEditLinks, 1)
	thumb := e.MediaEditLink("Thumb")
	require.NotNil(t, thumb)
	assert.Equal(t, "Photos(1)/Thumb", thumb.Href)
	assert.Equal(t, "image/jpeg", thumb.MediaType)
	assert.Equal(t, "t1", thumb.MediaETag)
}

func TestDecodeEntity_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"feed", `<feed ` + nsV4 + `></feed>`, models.ErrExpectedEntityFoundSet},
		{"empty entry", `<entry ` + nsV4 + `></entry>`, models.ErrUnresolvedReference},
		{"not xml", `{"a":1}`, models.ErrMalformedPayload},
		{"truncated", `<entry ` + nsV4 + `><id>x</id>`, models.ErrMalformedPayload},
		{"empty document", ``, models.ErrMalformedPayload},
		{"wrong root", `<foo/>`, models.ErrMalformedPayload},
		{"bad literal", entry(`<d:Age m:type="Int32">abc</d:Age>`), models.ErrMalformedValue},
		{"children for scalar", entry(`<d:Age m:type="Int32"><d:X>1</d:X></d:Age>`), models.ErrMalformedValue},
		{"heterogeneous", entry(`<d:Mixed><m:element>a</m:element><m:element><d:X>1</d:X></m:element></d:Mixed>`), models.ErrHeterogeneousCollection},
		{"bad shape", entry(`<d:Loc m:type="GeographyPoint"><gml:LineString><gml:pos>1 2</gml:pos><gml:pos>3 4</gml:pos></gml:LineString></d:Loc>`), models.ErrMalformedValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newCodec(constants.V4, false).DecodeEntity(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, strings.HasPrefix(models.StagePath(err), "entity"), models.StagePath(err))
		})
	}
}

func TestDecodeEntity_StagePath(t *testing.T) {
	_, err := newCodec(constants.V4, false).DecodeEntity(strings.NewReader(entry(`<d:Age m:type="Int32">abc</d:Age>`)))
	require.Error(t, err)
	assert.Equal(t, "entity/property", models.StagePath(err))

	var mv *models.MalformedValueError
	require.True(t, errors.As(err, &mv))
	assert.Equal(t, "Edm.Int32", mv.Type)
}

func TestDecodeEntity_MaxDepth(t *testing.T) {
	c := New(codec.Options{MaxDepth: 2})
	_, err := c.DecodeEntity(strings.NewReader(entry(`<d:A><d:B><d:C>x</d:C></d:B></d:A>`)))
	assert.ErrorIs(t, err, models.ErrMaxDepth)
}

func TestDecodeEntity_IOFailure(t *testing.T) {
	r := iotest.ErrReader(errors.New("connection reset"))
	_, err := newCodec(constants.V4, false).DecodeEntity(r)
	assert.ErrorIs(t, err, models.ErrIO)
}

func TestDecodeEntity_WarnsOnUnknownElements(t *testing.T) {
	c, logs := observed(constants.V4, false)
	e := decodeEntity(t, c, `<entry `+nsV4+` xmlns:x="urn:x">
  <id>http://host/People(1)</id>
  <x:extra/>
  <link rel="urn:x:other" href="elsewhere"/>
  <content type="application/xml"><m:properties><d:Name>a</d:Name></m:properties></content>
</entry>`)

	assert.Equal(t, "a", e.Property("Name").Value.Primitive)
	assert.Equal(t, 1, logs.FilterMessage("skipping unknown entry element").Len())
	assert.Equal(t, 1, logs.FilterMessage("skipping link with unknown relation").Len())
}

func TestDecodeEntity_UnsupportedGeometryBecomesNull(t *testing.T) {
	c, logs := observed(constants.V4, false)
	e := decodeEntity(t, c, entry(`<d:Name>a</d:Name><d:Area m:type="GeographyPolygon"><gml:Circle/></d:Area>`))

	assert.True(t, e.Property("Area").IsNull())
	assert.Equal(t, "Edm.GeographyPolygon", e.Property("Area").Value.TypeName)
	assert.Equal(t, 1, logs.FilterMessage("replacing unsupported geometry with null").Len())
}

func employee() *models.Entity {
	return &models.Entity{
		Context:  "http://host/service/$metadata#People/$entity",
		BaseURI:  "http://host/service/",
		ID:       "http://host/service/People(1)",
		TypeName: "NS.Employee",
		ETag:     "v1",
		EditLink: &models.Link{Type: models.LinkEdit, Href: "People(1)"},
		Properties: []*models.Property{
			models.NewProperty("PersonID", constants.EdmInt32, models.NewPrimitive(constants.EdmInt32, int32(1))),
			{Name: "Name", Value: models.NewPrimitive(constants.EdmString, "Ada")},
			{Name: "Nick", Value: models.NewNull()},
			models.NewProperty("Home", "NS.Address", models.NewComplex("NS.Address",
				&models.Property{Name: "Street", Value: models.NewPrimitive(constants.EdmString, "Main")})),
			models.NewProperty("Tags", "Collection(Edm.String)", models.NewCollection("Collection(Edm.String)",
				models.NewPrimitive(constants.EdmString, "a"), models.NewPrimitive(constants.EdmString, "b"))),
			models.NewProperty("Loc", "Edm.GeographyPoint", models.NewGeospatial(&models.Geospatial{SRID: 4326, Geometry: orb.Point{1, 2}})),
		},
		NavigationLinks: []*models.Link{
			models.NewNavigationLink("Orders", "People(1)/Orders", true),
		},
		AssociationLinks: []*models.Link{{Type: models.LinkAssociation, Title: "Orders", Href: "People(1)/Orders/$ref"}},
		Operations:       []*models.Operation{{Metadata: "#NS.Rate", Title: "Rate", Target: "People(1)/NS.Rate"}},
	}
}

func TestEncodeEntity_ServerMode(t *testing.T) {
	out := encodeEntity(t, newCodec(constants.V4, true), employee())

	for _, want := range []string{
		`<?xml version="1.0" encoding="utf-8"?>`,
		`m:etag="v1"`,
		`xmlns="http://www.w3.org/2005/Atom"`,
		`xmlns:m="http://docs.oasis-open.org/odata/ns/metadata"`,
		`xml:base="http://host/service/"`,
		`m:context="http://host/service/$metadata#People/$entity"`,
		`<id>http://host/service/People(1)</id>`,
		`<category term="#NS.Employee" scheme="http://docs.oasis-open.org/odata/ns/scheme"></category>`,
		`<link rel="edit" href="People(1)"></link>`,
		`<link rel="http://docs.oasis-open.org/odata/ns/related/Orders" type="application/atom+xml;type=feed" title="Orders" href="People(1)/Orders"></link>`,
		`<link rel="http://docs.oasis-open.org/odata/ns/relatedlinks/Orders" type="application/xml" title="Orders" href="People(1)/Orders/$ref"></link>`,
		`<m:action metadata="#NS.Rate" title="Rate" target="People(1)/NS.Rate"></m:action>`,
		`<content type="application/xml"><m:properties>`,
		`<d:PersonID m:type="Int32">1</d:PersonID>`,
		`<d:Name>Ada</d:Name>`,
		`<d:Nick m:null="true"></d:Nick>`,
		`<d:Home m:type="#NS.Address"><d:Street>Main</d:Street></d:Home>`,
		`<d:Tags m:type="Collection(String)"><m:element>a</m:element><m:element>b</m:element></d:Tags>`,
		`<d:Loc m:type="GeographyPoint"><gml:Point gml:srsName="http://www.opengis.net/def/crs/EPSG/0/4326"><gml:pos>1 2</gml:pos></gml:Point></d:Loc>`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestEncodeEntity_ClientModeOmitsServerFields(t *testing.T) {
	out := encodeEntity(t, newCodec(constants.V4, false), employee())

	assert.NotContains(t, out, `m:etag`)
	assert.NotContains(t, out, `rel="edit"`)
	assert.NotContains(t, out, `relatedlinks`)
	assert.NotContains(t, out, `m:action`)
	assert.Contains(t, out, `title="Orders" href="People(1)/Orders"`)
}

func TestEncodeEntity_V3(t *testing.T) {
	out := encodeEntity(t, newCodec(constants.V3, true), employee())

	assert.Contains(t, out, `xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata"`)
	assert.Contains(t, out, `<category term="NS.Employee" scheme="http://schemas.microsoft.com/ado/2007/08/dataservices/scheme"></category>`)
	assert.Contains(t, out, `<d:PersonID m:type="Edm.Int32">1</d:PersonID>`)
	assert.Contains(t, out, `<d:Tags m:type="Collection(Edm.String)"><d:element>a</d:element><d:element>b</d:element></d:Tags>`)
	assert.NotContains(t, out, `m:context`)
}

func TestEntityRoundTrip(t *testing.T) {
	for _, v := range []constants.Version{constants.V3, constants.V4} {
		t.Run(v.String(), func(t *testing.T) {
			c := newCodec(v, true)
			in := employee()
			back := decodeEntity(t, c, encodeEntity(t, c, in))

			assert.Equal(t, in.ID, back.ID)
			assert.Equal(t, in.TypeName, back.TypeName)
			assert.Equal(t, in.ETag, back.ETag)
			assert.Equal(t, in.BaseURI, back.BaseURI)
			assert.Equal(t, in.EditLink.Href, back.EditLink.Href)
			require.Len(t, back.Properties, len(in.Properties))
			for i, p := range in.Properties {
				assert.Equal(t, p.Name, back.Properties[i].Name)
				assert.Equal(t, p.Type, back.Properties[i].Type, p.Name)
				assert.Equal(t, p.Value, back.Properties[i].Value, p.Name)
			}
			require.Len(t, back.NavigationLinks, 1)
			assert.Equal(t, models.LinkEntitySetNavigation, back.NavigationLinks[0].Type)
			assert.Equal(t, "People(1)/Orders", back.NavigationLinks[0].Href)
			require.Len(t, back.AssociationLinks, 1)
			assert.Equal(t, "People(1)/Orders/$ref", back.AssociationLinks[0].Href)
			assert.Equal(t, in.Operations, back.Operations)
		})
	}
}

func TestEntityRoundTrip_InlineAndAnnotations(t *testing.T) {
	c := newCodec(constants.V4, true)
	count := int64(3)
	in := &models.Entity{
		ID: "People(1)",
		Properties: []*models.Property{{
			Name:  "Name",
			Value: models.NewPrimitive(constants.EdmString, "Ada"),
			Annotations: []*models.Annotation{{
				Term: "Core.Description", Value: models.NewPrimitive(constants.EdmString, "shown"),
			}},
		}},
		Annotations: []*models.Annotation{{
			Term: "NS.Score", Qualifier: "Q", Value: models.NewPrimitive(constants.EdmInt32, int32(7)),
		}},
		NavigationLinks: []*models.Link{
			{Title: "Manager", Type: models.LinkEntityNavigation, InlineEntity: models.NewReference("People(2)")},
			{Title: "Friends", Type: models.LinkEntitySetNavigation, InlineEntitySet: &models.EntitySet{
				Count:    &count,
				Entities: []*models.Entity{{ID: "People(3)", TypeName: "NS.Person"}},
				Next:     "People(1)/Friends?$skip=1",
			}},
		},
	}
	back := decodeEntity(t, c, encodeEntity(t, c, in))

	require.Len(t, back.Annotations, 1)
	assert.Equal(t, "NS.Score", back.Annotations[0].Term)
	assert.Equal(t, "Q", back.Annotations[0].Qualifier)
	assert.Equal(t, int32(7), back.Annotations[0].Value.Primitive)
	require.Len(t, back.Property("Name").Annotations, 1)
	assert.Equal(t, "shown", back.Property("Name").Annotations[0].Value.Primitive)

	manager := back.NavigationLink("Manager")
	require.NotNil(t, manager)
	require.NotNil(t, manager.InlineEntity)
	assert.True(t, manager.InlineEntity.IsReference())
	assert.Equal(t, "People(2)", manager.InlineEntity.ID)

	friends := back.NavigationLink("Friends")
	require.NotNil(t, friends)
	require.NotNil(t, friends.InlineEntitySet)
	assert.Equal(t, models.LinkEntitySetNavigation, friends.Type)
	assert.Equal(t, int64(3), *friends.InlineEntitySet.Count)
	assert.Equal(t, "People(1)/Friends?$skip=1", friends.InlineEntitySet.Next)
	require.Len(t, friends.InlineEntitySet.Entities, 1)
	assert.Equal(t, "NS.Person", friends.InlineEntitySet.Entities[0].TypeName)
}

func TestEncodeEntity_V3DropsAnnotations(t *testing.T) {
	c, logs := observed(constants.V3, false)
	out := encodeEntity(t, c, &models.Entity{
		ID:          "People(1)",
		TypeName:    "NS.Person",
		Annotations: []*models.Annotation{{Term: "NS.X", Value: models.NewPrimitive(constants.EdmString, "y")}},
	})
	assert.NotContains(t, out, "annotation")
	assert.Equal(t, 1, logs.FilterMessage("v3 Atom has no instance annotations; dropping them").Len())
}

func TestEncodeEntity_MediaEntity(t *testing.T) {
	c := newCodec(constants.V4, true)
	in := &models.Entity{
		ID:                 "Photos(1)",
		MediaContentType:   "image/png",
		MediaContentSource: "Photos(1)/$value",
		MediaEditURI:       "Photos(1)/$value",
		MediaETag:          "e1",
		MediaEntryProperties: []*models.Property{
			{Name: "Name", Value: models.NewPrimitive(constants.EdmString, "sunset")},
		},
		MediaEditLinks: []*models.Link{{Type: models.LinkMediaEdit, Title: "Thumb", Href: "Photos(1)/Thumb", MediaType: "image/jpeg", MediaETag: "t1"}},
	}
	out := encodeEntity(t, c, in)
	assert.Contains(t, out, `<content type="image/png" src="Photos(1)/$value"></content><m:properties><d:Name>sunset</d:Name></m:properties>`)
	assert.Contains(t, out, `<link rel="edit-media" m:etag="e1" href="Photos(1)/$value"></link>`)

	back := decodeEntity(t, c, out)
	assert.Equal(t, in.MediaContentType, back.MediaContentType)
	assert.Equal(t, in.MediaContentSource, back.MediaContentSource)
	assert.Equal(t, in.MediaEditURI, back.MediaEditURI)
	assert.Equal(t, in.MediaETag, back.MediaETag)
	assert.Equal(t, "sunset", back.Property("Name").Value.Primitive)
	thumb := back.MediaEditLink("Thumb")
	require.NotNil(t, thumb)
	assert.Equal(t, "image/jpeg", thumb.MediaType)
	assert.Equal(t, "t1", thumb.MediaETag)
}

func TestEncodeEntity_References(t *testing.T) {
	out := encodeEntity(t, newCodec(constants.V4, false), models.NewReference("http://host/People(1)"))
	assert.Contains(t, out, `<m:ref id="http://host/People(1)"`)

	out = encodeEntity(t, newCodec(constants.V3, false), models.NewReference("http://host/People(1)"))
	assert.Contains(t, out, `>http://host/People(1)</d:uri>`)
}

func TestEncodeEntity_UnsupportedGeometryBecomesNull(t *testing.T) {
	c, logs := observed(constants.V4, false)
	out := encodeEntity(t, c, &models.Entity{
		ID: "Places(1)",
		Properties: []*models.Property{{
			Name:  "Area",
			Value: &models.Value{Kind: models.GeospatialValue, Geo: &models.Geospatial{Dimension: models.Geometry, Geometry: orb.Bound{}}},
		}},
	})
	assert.Contains(t, out, `<d:Area m:null="true"></d:Area>`)
	assert.Equal(t, 1, logs.FilterMessage("writing unsupported geometry as null").Len())
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodeEntity_Errors(t *testing.T) {
	c := newCodec(constants.V4, false)
	assert.ErrorIs(t, c.EncodeEntity(failWriter{}, employee()), models.ErrIO)
	assert.ErrorIs(t, c.EncodeEntity(&bytes.Buffer{}, nil), models.ErrMalformedPayload)

	mixed := &models.Entity{ID: "X", Properties: []*models.Property{{
		Name:  "Mixed",
		Value: models.NewCollection("", models.NewPrimitive(constants.EdmString, "a"), models.NewComplex("")),
	}}}
	err := c.EncodeEntity(&bytes.Buffer{}, mixed)
	assert.ErrorIs(t, err, models.ErrHeterogeneousCollection)
	assert.Equal(t, "entity/property", models.StagePath(err))
}
