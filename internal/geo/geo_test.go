package geo

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/xmltree"
)

var ring = orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
var hole = orb.Ring{{2, 2}, {4, 2}, {4, 4}, {2, 2}}

var shapes = []struct {
	name     string
	typeName string
	geo      *models.Geospatial
}{
	{"point", "Edm.GeographyPoint", &models.Geospatial{Dimension: models.Geography, SRID: 4326, Geometry: orb.Point{-122.1, 47.6}}},
	{"line", "Edm.GeometryLineString", &models.Geospatial{Dimension: models.Geometry, Geometry: orb.LineString{{1, 2}, {3, 4.5}}}},
	{"polygon with hole", "Edm.GeographyPolygon", &models.Geospatial{Dimension: models.Geography, SRID: 4326, Geometry: orb.Polygon{ring, hole}}},
	{"multi point", "Edm.GeographyMultiPoint", &models.Geospatial{Dimension: models.Geography, Geometry: orb.MultiPoint{{1, 1}, {2, 2}, {-3.25, 1e-7}}}},
	{"multi line", "Edm.GeometryMultiLineString", &models.Geospatial{Dimension: models.Geometry, SRID: 0, Geometry: orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}}},
	{"multi polygon", "Edm.GeometryMultiPolygon", &models.Geospatial{Dimension: models.Geometry, SRID: 3857, Geometry: orb.MultiPolygon{{ring}, {ring, hole}}}},
	{"collection", "Edm.GeographyCollection", &models.Geospatial{Dimension: models.Geography, SRID: 4326, Geometry: orb.Collection{
		orb.Point{1, 2},
		orb.LineString{{0, 0}, {5, 5}},
		orb.Polygon{ring},
		orb.Collection{orb.MultiPoint{{7, 8}}},
	}}},
}

func jsonRoundTrip(t *testing.T, c *Codec, g *models.Geospatial, typeName string) *models.Geospatial {
	t.Helper()
	n, err := c.EncodeJSON(g)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, jsontree.Encode(&buf, n))
	parsed, err := jsontree.Parse(&buf, 0)
	require.NoError(t, err)

	back, err := c.DecodeJSON(parsed, typeName)
	require.NoError(t, err)
	return back
}

func gmlRoundTrip(t *testing.T, c *Codec, g *models.Geospatial, typeName string) *models.Geospatial {
	t.Helper()
	e, err := c.EncodeGML(g, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	require.NoError(t, e.Write(enc))
	require.NoError(t, enc.Flush())

	d := xml.NewDecoder(&buf)
	start, err := xmltree.Root(d)
	require.NoError(t, err)
	tree, err := xmltree.Read(d, start, 0)
	require.NoError(t, err)

	back, err := c.DecodeGML(tree, typeName)
	require.NoError(t, err)
	return back
}

func TestRoundTripShapes(t *testing.T) {
	c := New(nil)
	for _, tt := range shapes {
		t.Run(tt.name+"/json", func(t *testing.T) {
			assert.Equal(t, tt.geo, jsonRoundTrip(t, c, tt.geo, tt.typeName))
		})
		t.Run(tt.name+"/gml", func(t *testing.T) {
			assert.Equal(t, tt.geo, gmlRoundTrip(t, c, tt.geo, tt.typeName))
		})
	}
}

func TestPointRoundTripProperty(t *testing.T) {
	c := New(nil)
	properties := gopter.NewProperties(nil)

	properties.Property("json and gml preserve coordinates and srid", prop.ForAll(
		func(x, y float64, srid int) bool {
			g := &models.Geospatial{Dimension: models.Geometry, SRID: srid, Geometry: orb.Point{x, y}}
			jb := jsonRoundTrip(t, c, g, "Edm.GeometryPoint")
			gb := gmlRoundTrip(t, c, g, "Edm.GeometryPoint")
			return jb.Geometry == g.Geometry && gb.Geometry == g.Geometry && jb.SRID == srid && gb.SRID == srid
		},
		gen.Float64(),
		gen.Float64(),
		gen.IntRange(0, 32767),
	))

	properties.TestingRun(t)
}

func TestEncodeJSONShape(t *testing.T) {
	c := New(nil)
	n, err := c.EncodeJSON(shapes[0].geo)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, jsontree.Encode(&buf, n))
	assert.JSONEq(t, `{"type":"Point","coordinates":[-122.1,47.6],"crs":{"type":"name","properties":{"name":"EPSG:4326"}}}`, buf.String())
}

func TestEncodeGMLShape(t *testing.T) {
	c := New(nil)
	e, err := c.EncodeGML(shapes[2].geo, false)
	require.NoError(t, err)

	s := e.String()
	assert.True(t, strings.HasPrefix(s, `<gml:Polygon gml:srsName="http://www.opengis.net/def/crs/EPSG/0/4326">`), s)
	assert.Contains(t, s, `<gml:exterior><gml:LinearRing><gml:pos>0 0</gml:pos>`)
	assert.Contains(t, s, `<gml:interior><gml:LinearRing><gml:pos>2 2</gml:pos>`)
}

func TestDecodeGMLPosListAndMemberVariants(t *testing.T) {
	doc := `<gml:MultiGeometry xmlns:gml="http://www.opengis.net/gml" srsName="EPSG:4326">
  <gml:geometryMember><gml:LineString><gml:posList>1 2 3 4</gml:posList></gml:LineString></gml:geometryMember>
  <gml:geometryMember><gml:Circle/></gml:geometryMember>
  <gml:geometryMember><gml:Point><gml:pos>5 6 7</gml:pos></gml:Point></gml:geometryMember>
</gml:MultiGeometry>`

	core, logs := observer.New(zapcore.WarnLevel)
	c := New(zap.New(core))

	d := xml.NewDecoder(strings.NewReader(doc))
	start, err := xmltree.Root(d)
	require.NoError(t, err)
	tree, err := xmltree.Read(d, start, 0)
	require.NoError(t, err)

	g, err := c.DecodeGML(tree, "Edm.Geography")
	require.NoError(t, err)
	assert.Equal(t, 4326, g.SRID)
	assert.Equal(t, orb.Collection{orb.LineString{{1, 2}, {3, 4}}, orb.Point{5, 6}}, g.Geometry)
	assert.Equal(t, "Edm.GeographyCollection", g.TypeName())
	assert.Equal(t, 1, logs.FilterMessage("skipping geometry member").Len())
}

func TestUnsupportedGeometry(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := New(zap.New(core))

	_, err := c.EncodeJSON(&models.Geospatial{Geometry: orb.Bound{}})
	assert.True(t, errors.Is(err, models.ErrUnsupportedGeometry))

	_, err = c.EncodeGML(&models.Geospatial{Geometry: orb.Ring{}}, false)
	assert.True(t, errors.Is(err, models.ErrUnsupportedGeometry))

	g := &models.Geospatial{Geometry: orb.Collection{orb.Point{1, 1}, orb.Bound{}}}
	n, err := c.EncodeJSON(g)
	require.NoError(t, err)
	assert.Len(t, n.Get("geometries").Items, 1)
	assert.Equal(t, 1, logs.Len())

	bad, err := jsontree.Parse(strings.NewReader(`{"type":"Circle","coordinates":[1,2]}`), 0)
	require.NoError(t, err)
	_, err = c.DecodeJSON(bad, "Edm.GeographyPoint")
	assert.True(t, errors.Is(err, models.ErrUnsupportedGeometry))

	_, err = c.DecodeJSON(bad, "NS.NotGeo")
	assert.True(t, errors.Is(err, models.ErrUnsupportedGeometry))
}

func TestDecodeJSONMalformed(t *testing.T) {
	c := New(nil)
	tests := []struct {
		name     string
		doc      string
		typeName string
	}{
		{"short position", `{"type":"Point","coordinates":[1]}`, "Edm.GeographyPoint"},
		{"string coordinate", `{"type":"Point","coordinates":["1",2]}`, "Edm.GeographyPoint"},
		{"missing coordinates", `{"type":"LineString"}`, "Edm.GeographyLineString"},
		{"shape mismatch", `{"type":"LineString","coordinates":[[1,2]]}`, "Edm.GeographyPoint"},
		{"bad crs", `{"type":"Point","coordinates":[1,2],"crs":{"type":"name","properties":{"name":"WGS84"}}}`, "Edm.GeographyPoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := jsontree.Parse(strings.NewReader(tt.doc), 0)
			require.NoError(t, err)
			_, err = c.DecodeJSON(n, tt.typeName)
			assert.True(t, errors.Is(err, models.ErrMalformedValue), "%v", err)
		})
	}
}

func TestParseTypeNameAndSRID(t *testing.T) {
	dim, kind, ok := ParseTypeName("Edm.GeometryMultiPolygon")
	assert.True(t, ok)
	assert.Equal(t, models.Geometry, dim)
	assert.Equal(t, models.ShapeMultiPolygon, kind)

	dim, kind, ok = ParseTypeName("Edm.Geography")
	assert.True(t, ok)
	assert.Equal(t, models.Geography, dim)
	assert.Equal(t, models.ShapeUnknown, kind)

	_, _, ok = ParseTypeName("Edm.GeographyCircle")
	assert.False(t, ok)

	for _, s := range []string{"EPSG:4326", "http://www.opengis.net/def/crs/EPSG/0/4326", "urn:ogc:def:crs:EPSG::4326", "4326"} {
		srid, err := ParseSRID(s)
		require.NoError(t, err, s)
		assert.Equal(t, 4326, srid)
	}
	_, err := ParseSRID("EPSG:x")
	assert.Error(t, err)
}
