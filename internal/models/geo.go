package models

import (
	"github.com/paulmach/orb"
)

// Dimension separates round-earth (Geography) from flat-earth (Geometry) values
type Dimension int

// Geospatial dimensions
const (
	Geography Dimension = iota
	Geometry
)

// String returns the Edm name fragment of the dimension
func (d Dimension) String() string {
	if d == Geometry {
		return "Geometry"
	}
	return "Geography"
}

// ShapeKind names the geometry shape of a geospatial value
type ShapeKind string

// Supported shape kinds
const (
	ShapeUnknown         ShapeKind = ""
	ShapePoint           ShapeKind = "Point"
	ShapeLineString      ShapeKind = "LineString"
	ShapePolygon         ShapeKind = "Polygon"
	ShapeMultiPoint      ShapeKind = "MultiPoint"
	ShapeMultiLineString ShapeKind = "MultiLineString"
	ShapeMultiPolygon    ShapeKind = "MultiPolygon"
	ShapeCollection      ShapeKind = "Collection"
)

// ShapeKinds lists every supported shape, longest suffix first
var ShapeKinds = []ShapeKind{
	ShapeMultiLineString,
	ShapeMultiPolygon,
	ShapeMultiPoint,
	ShapeLineString,
	ShapeCollection,
	ShapePolygon,
	ShapePoint,
}

// Geospatial is a geography or geometry value with an optional EPSG SRID (0 = absent)
type Geospatial struct {
	Dimension Dimension    `json:"dimension"`
	SRID      int          `json:"srid,omitempty"`
	Geometry  orb.Geometry `json:"-"`
}

// Kind derives the shape kind from the underlying geometry
func (g *Geospatial) Kind() ShapeKind {
	if g == nil {
		return ShapeUnknown
	}
	return ShapeOf(g.Geometry)
}

// TypeName returns the Edm type, e.g. Edm.GeographyPoint
func (g *Geospatial) TypeName() string {
	kind := g.Kind()
	if kind == ShapeUnknown {
		return "Edm." + g.Dimension.String()
	}
	return "Edm." + g.Dimension.String() + string(kind)
}

// ShapeOf maps an orb geometry to its shape kind; Ring and Bound are not OData shapes
func ShapeOf(geom orb.Geometry) ShapeKind {
	switch geom.(type) {
	case orb.Point:
		return ShapePoint
	case orb.LineString:
		return ShapeLineString
	case orb.Polygon:
		return ShapePolygon
	case orb.MultiPoint:
		return ShapeMultiPoint
	case orb.MultiLineString:
		return ShapeMultiLineString
	case orb.MultiPolygon:
		return ShapeMultiPolygon
	case orb.Collection:
		return ShapeCollection
	default:
		return ShapeUnknown
	}
}
