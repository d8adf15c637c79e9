package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/jsontree"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/utils"
)

// EncodeJSON renders g as a GeoJSON-like object with an optional EPSG crs member
func (c *Codec) EncodeJSON(g *models.Geospatial) (*jsontree.Node, error) {
	n, err := c.encodeGeometry(g.Geometry)
	if err != nil {
		return nil, err
	}
	if g.SRID != 0 {
		n.Set(constants.GeoJSONCRS, jsontree.NewObject().
			Set(constants.GeoJSONType, jsontree.NewString(constants.GeoJSONName)).
			Set(constants.GeoJSONProperties, jsontree.NewObject().
				Set(constants.GeoJSONName, jsontree.NewString(constants.GeoJSONCRSPrefix+strconv.Itoa(g.SRID)))))
	}
	return n, nil
}

func (c *Codec) encodeGeometry(geom orb.Geometry) (*jsontree.Node, error) {
	kind := models.ShapeOf(geom)
	if kind == models.ShapeUnknown {
		return nil, unsupported(fmt.Sprintf("%T", geom))
	}
	n := jsontree.NewObject().Set(constants.GeoJSONType, jsontree.NewString(geoJSONNames[kind]))

	if coll, ok := geom.(orb.Collection); ok {
		members := jsontree.NewArray()
		for i, member := range coll {
			m, err := c.encodeGeometry(member)
			if err != nil {
				c.logger().Warn("skipping geometry collection member",
					zap.Int("index", i), zap.Error(err))
				continue
			}
			members.Items = append(members.Items, m)
		}
		return n.Set(constants.GeoJSONGeometries, members), nil
	}

	coords, err := coordinates(geom)
	if err != nil {
		return nil, err
	}
	return n.Set(constants.GeoJSONCoordinates, coords), nil
}

func coordinates(geom orb.Geometry) (*jsontree.Node, error) {
	switch g := geom.(type) {
	case orb.Point:
		if !pointValid(g) {
			return nil, models.NewMalformedValue(fmt.Sprint(g), "Point", fmt.Errorf("coordinates must be finite"))
		}
		return jsontree.NewArray(number(g[0]), number(g[1])), nil
	case orb.MultiPoint:
		return points([]orb.Point(g))
	case orb.LineString:
		return points([]orb.Point(g))
	case orb.Polygon:
		out := jsontree.NewArray()
		for _, r := range g {
			ring, err := points([]orb.Point(r))
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, ring)
		}
		return out, nil
	case orb.MultiLineString:
		out := jsontree.NewArray()
		for _, ls := range g {
			line, err := coordinates(ls)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, line)
		}
		return out, nil
	case orb.MultiPolygon:
		out := jsontree.NewArray()
		for _, p := range g {
			poly, err := coordinates(p)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, poly)
		}
		return out, nil
	}
	return nil, unsupported(fmt.Sprintf("%T", geom))
}

func points(ps []orb.Point) (*jsontree.Node, error) {
	out := jsontree.NewArray()
	for _, p := range ps {
		n, err := coordinates(p)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, n)
	}
	return out, nil
}

func number(f float64) *jsontree.Node {
	return jsontree.NewNumber(utils.FormatFloat(f, 64))
}

func isSpecial(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// DecodeJSON reads a GeoJSON-like object. typeName is the declared Edm type and
// supplies the dimension; an unknown "type" member yields ErrUnsupportedGeometry.
func (c *Codec) DecodeJSON(n *jsontree.Node, typeName string) (*models.Geospatial, error) {
	dim, declared, ok := ParseTypeName(typeName)
	if !ok {
		return nil, unsupported(typeName)
	}
	if n == nil || n.Kind != jsontree.Object {
		return nil, models.NewMalformedValue("", typeName, fmt.Errorf("geospatial value must be an object"))
	}

	geom, err := c.decodeGeometry(n, typeName)
	if err != nil {
		return nil, err
	}
	if err := checkDeclared(declared, models.ShapeOf(geom), typeName); err != nil {
		return nil, err
	}

	g := &models.Geospatial{Dimension: dim, Geometry: geom}
	if crs := n.Get(constants.GeoJSONCRS); !crs.IsNull() {
		name := crs.Get(constants.GeoJSONProperties).StringOf(constants.GeoJSONName)
		srid, err := ParseSRID(name)
		if err != nil {
			return nil, models.NewMalformedValue(name, typeName, err)
		}
		g.SRID = srid
	}
	return g, nil
}

func (c *Codec) decodeGeometry(n *jsontree.Node, typeName string) (orb.Geometry, error) {
	typ := n.StringOf(constants.GeoJSONType)
	kind := shapeFromGeoJSON(typ)
	if kind == models.ShapeUnknown {
		return nil, unsupported(fmt.Sprintf("type %q", typ))
	}

	if kind == models.ShapeCollection {
		var coll orb.Collection
		members := n.Get(constants.GeoJSONGeometries)
		if members == nil || members.Kind != jsontree.Array {
			return nil, models.NewMalformedValue(typ, typeName, fmt.Errorf("missing geometries array"))
		}
		for i, m := range members.Items {
			geom, err := c.decodeGeometry(m, typeName)
			if err != nil {
				if errors.Is(err, models.ErrUnsupportedGeometry) {
					c.logger().Warn("skipping geometry collection member", zap.Int("index", i), zap.Error(err))
					continue
				}
				return nil, err
			}
			coll = append(coll, geom)
		}
		if coll == nil {
			coll = orb.Collection{}
		}
		return coll, nil
	}

	coords := n.Get(constants.GeoJSONCoordinates)
	if coords == nil || coords.Kind != jsontree.Array {
		return nil, models.NewMalformedValue(typ, typeName, fmt.Errorf("missing coordinates array"))
	}
	return readCoordinates(kind, coords, typeName)
}

func readCoordinates(kind models.ShapeKind, n *jsontree.Node, typeName string) (orb.Geometry, error) {
	switch kind {
	case models.ShapePoint:
		return readPoint(n, typeName)
	case models.ShapeLineString:
		ps, err := readPoints(n, typeName)
		return orb.LineString(ps), err
	case models.ShapeMultiPoint:
		ps, err := readPoints(n, typeName)
		return orb.MultiPoint(ps), err
	case models.ShapePolygon:
		return readPolygon(n, typeName)
	case models.ShapeMultiLineString:
		mls := orb.MultiLineString{}
		for _, item := range n.Items {
			ps, err := readPoints(item, typeName)
			if err != nil {
				return nil, err
			}
			mls = append(mls, orb.LineString(ps))
		}
		return mls, nil
	case models.ShapeMultiPolygon:
		mp := orb.MultiPolygon{}
		for _, item := range n.Items {
			p, err := readPolygon(item, typeName)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	}
	return nil, unsupported(kind)
}

func readPolygon(n *jsontree.Node, typeName string) (orb.Polygon, error) {
	if n.Kind != jsontree.Array {
		return nil, models.NewMalformedValue(n.Scalar(), typeName, fmt.Errorf("expected ring array"))
	}
	poly := orb.Polygon{}
	for _, item := range n.Items {
		ps, err := readPoints(item, typeName)
		if err != nil {
			return nil, err
		}
		poly = append(poly, orb.Ring(ps))
	}
	return poly, nil
}

func readPoints(n *jsontree.Node, typeName string) ([]orb.Point, error) {
	if n.Kind != jsontree.Array {
		return nil, models.NewMalformedValue(n.Scalar(), typeName, fmt.Errorf("expected position array"))
	}
	ps := make([]orb.Point, 0, len(n.Items))
	for _, item := range n.Items {
		p, err := readPoint(item, typeName)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, nil
}

func readPoint(n *jsontree.Node, typeName string) (orb.Point, error) {
	if n.Kind != jsontree.Array || len(n.Items) < 2 {
		return orb.Point{}, models.NewMalformedValue(n.Scalar(), typeName, fmt.Errorf("position needs two numbers"))
	}
	var p orb.Point
	for i := 0; i < 2; i++ {
		item := n.Items[i]
		if item.Kind != jsontree.Number {
			return orb.Point{}, models.NewMalformedValue(item.Scalar(), typeName, fmt.Errorf("coordinate is not a number"))
		}
		f, err := utils.ParseFloat(item.Text, 64)
		if err != nil {
			return orb.Point{}, models.NewMalformedValue(item.Text, typeName, err)
		}
		p[i] = f
	}
	return p, nil
}
