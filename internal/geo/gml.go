package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
	"github.com/zmcp/odata-codec/internal/utils"
	"github.com/zmcp/odata-codec/internal/xmltree"
)

func gmlName(local string) string {
	return constants.PrefixGML + ":" + local
}

// EncodeGML renders g as a GML element using the "gml" prefix. The caller declares
// the prefix on an enclosing element (or passes declareNS).
func (c *Codec) EncodeGML(g *models.Geospatial, declareNS bool) (*xmltree.Element, error) {
	e, err := c.encodeGMLGeometry(g.Geometry)
	if err != nil {
		return nil, err
	}
	if declareNS {
		e.Attr = append(e.Attr, xmltree.Attr("xmlns:"+constants.PrefixGML, constants.GMLNamespace))
	}
	if g.SRID != 0 {
		e.Attr = append(e.Attr, xmltree.Attr(gmlName(constants.GMLAttrSrsName), constants.SRSNamePrefix+strconv.Itoa(g.SRID)))
	}
	return e, nil
}

func (c *Codec) encodeGMLGeometry(geom orb.Geometry) (*xmltree.Element, error) {
	switch g := geom.(type) {
	case orb.Point:
		if !pointValid(g) {
			return nil, models.NewMalformedValue(fmt.Sprint(g), "Point", fmt.Errorf("coordinates must be finite"))
		}
		return xmltree.New(gmlName(constants.GMLPoint)).Add(pos(g)), nil
	case orb.LineString:
		return posElements(gmlName(constants.GMLLineString), g)
	case orb.Polygon:
		return polygonElement(g)
	case orb.MultiPoint:
		members := xmltree.New(gmlName(constants.GMLPointMembers))
		for _, p := range g {
			m, err := c.encodeGMLGeometry(p)
			if err != nil {
				return nil, err
			}
			members.Add(m)
		}
		return xmltree.New(gmlName(constants.GMLMultiPoint)).Add(members), nil
	case orb.MultiLineString:
		members := xmltree.New(gmlName(constants.GMLCurveMembers))
		for _, ls := range g {
			m, err := posElements(gmlName(constants.GMLLineString), ls)
			if err != nil {
				return nil, err
			}
			members.Add(m)
		}
		return xmltree.New(gmlName(constants.GMLMultiCurve)).Add(members), nil
	case orb.MultiPolygon:
		members := xmltree.New(gmlName(constants.GMLSurfaceMembers))
		for _, p := range g {
			m, err := polygonElement(p)
			if err != nil {
				return nil, err
			}
			members.Add(m)
		}
		return xmltree.New(gmlName(constants.GMLMultiSurface)).Add(members), nil
	case orb.Collection:
		members := xmltree.New(gmlName(constants.GMLGeometryMembers))
		for i, member := range g {
			m, err := c.encodeGMLGeometry(member)
			if err != nil {
				c.logger().Warn("skipping geometry collection member", zap.Int("index", i), zap.Error(err))
				continue
			}
			members.Add(m)
		}
		return xmltree.New(gmlName(constants.GMLMultiGeometry)).Add(members), nil
	}
	return nil, unsupported(fmt.Sprintf("%T", geom))
}

func pos(p orb.Point) *xmltree.Element {
	return xmltree.New(gmlName(constants.GMLPos)).SetText(utils.FormatFloat(p[0], 64) + " " + utils.FormatFloat(p[1], 64))
}

func posElements(name string, ps []orb.Point) (*xmltree.Element, error) {
	e := xmltree.New(name)
	for _, p := range ps {
		if !pointValid(p) {
			return nil, models.NewMalformedValue(fmt.Sprint(p), "Point", fmt.Errorf("coordinates must be finite"))
		}
		e.Add(pos(p))
	}
	return e, nil
}

func polygonElement(poly orb.Polygon) (*xmltree.Element, error) {
	e := xmltree.New(gmlName(constants.GMLPolygon))
	for i, ring := range poly {
		lr, err := posElements(gmlName(constants.GMLLinearRing), ring)
		if err != nil {
			return nil, err
		}
		wrapper := constants.GMLInterior
		if i == 0 {
			wrapper = constants.GMLExterior
		}
		e.Add(xmltree.New(gmlName(wrapper)).Add(lr))
	}
	return e, nil
}

// DecodeGML reads a GML geometry element. typeName supplies the dimension and,
// when concrete, the expected shape.
func (c *Codec) DecodeGML(e *xmltree.Element, typeName string) (*models.Geospatial, error) {
	dim, declared, ok := ParseTypeName(typeName)
	if !ok {
		return nil, unsupported(typeName)
	}
	geom, err := c.decodeGMLGeometry(e, typeName)
	if err != nil {
		return nil, err
	}
	if err := checkDeclared(declared, models.ShapeOf(geom), typeName); err != nil {
		return nil, err
	}

	g := &models.Geospatial{Dimension: dim, Geometry: geom}
	if srs, ok := srsName(e); ok {
		srid, err := ParseSRID(srs)
		if err != nil {
			return nil, models.NewMalformedValue(srs, typeName, err)
		}
		g.SRID = srid
	}
	return g, nil
}

func srsName(e *xmltree.Element) (string, bool) {
	if v, ok := e.AttrValue(constants.GMLNamespace, constants.GMLAttrSrsName); ok {
		return v, true
	}
	return e.AttrValue("", constants.GMLAttrSrsName)
}

// ShapeOfElement classifies a GML element by name, ShapeUnknown when it is not a geometry
func ShapeOfElement(e *xmltree.Element) models.ShapeKind {
	if e.Name.Space != constants.GMLNamespace {
		return models.ShapeUnknown
	}
	switch e.Name.Local {
	case constants.GMLPoint:
		return models.ShapePoint
	case constants.GMLLineString:
		return models.ShapeLineString
	case constants.GMLPolygon:
		return models.ShapePolygon
	case constants.GMLMultiPoint:
		return models.ShapeMultiPoint
	case constants.GMLMultiCurve, constants.GMLMultiLineString:
		return models.ShapeMultiLineString
	case constants.GMLMultiSurface, constants.GMLMultiPolygon:
		return models.ShapeMultiPolygon
	case constants.GMLMultiGeometry, constants.GMLGeometryCollection:
		return models.ShapeCollection
	}
	return models.ShapeUnknown
}

func (c *Codec) decodeGMLGeometry(e *xmltree.Element, typeName string) (orb.Geometry, error) {
	switch ShapeOfElement(e) {
	case models.ShapePoint:
		ps, err := readPositions(e, typeName)
		if err != nil {
			return nil, err
		}
		if len(ps) != 1 {
			return nil, models.NewMalformedValue(e.Text, typeName, fmt.Errorf("point needs exactly one position"))
		}
		return ps[0], nil
	case models.ShapeLineString:
		ps, err := readPositions(e, typeName)
		return orb.LineString(ps), err
	case models.ShapePolygon:
		return readGMLPolygon(e, typeName)
	case models.ShapeMultiPoint:
		mp := orb.MultiPoint{}
		err := c.eachMember(e, typeName, func(g orb.Geometry) error {
			p, ok := g.(orb.Point)
			if !ok {
				return models.NewMalformedValue(e.Name.Local, typeName, fmt.Errorf("multi point member is %T", g))
			}
			mp = append(mp, p)
			return nil
		})
		return mp, err
	case models.ShapeMultiLineString:
		mls := orb.MultiLineString{}
		err := c.eachMember(e, typeName, func(g orb.Geometry) error {
			ls, ok := g.(orb.LineString)
			if !ok {
				return models.NewMalformedValue(e.Name.Local, typeName, fmt.Errorf("multi curve member is %T", g))
			}
			mls = append(mls, ls)
			return nil
		})
		return mls, err
	case models.ShapeMultiPolygon:
		mp := orb.MultiPolygon{}
		err := c.eachMember(e, typeName, func(g orb.Geometry) error {
			p, ok := g.(orb.Polygon)
			if !ok {
				return models.NewMalformedValue(e.Name.Local, typeName, fmt.Errorf("multi surface member is %T", g))
			}
			mp = append(mp, p)
			return nil
		})
		return mp, err
	case models.ShapeCollection:
		coll := orb.Collection{}
		err := c.eachMember(e, typeName, func(g orb.Geometry) error {
			coll = append(coll, g)
			return nil
		})
		return coll, err
	}
	return nil, unsupported(e.Name.Local)
}

// eachMember decodes the geometries under the *Members / *Member wrappers of a multi shape.
// Unsupported members are skipped with a warning.
func (c *Codec) eachMember(e *xmltree.Element, typeName string, fn func(orb.Geometry) error) error {
	for _, wrapper := range e.Children {
		if wrapper.Name.Space != constants.GMLNamespace || !strings.HasSuffix(wrapper.Name.Local, "Member") && !strings.HasSuffix(wrapper.Name.Local, "Members") {
			continue
		}
		for _, child := range wrapper.Children {
			g, err := c.decodeGMLGeometry(child, typeName)
			if err != nil {
				if errors.Is(err, models.ErrUnsupportedGeometry) {
					c.logger().Warn("skipping geometry member", zap.String("element", child.Name.Local), zap.Error(err))
					continue
				}
				return err
			}
			if err := fn(g); err != nil {
				return err
			}
		}
	}
	return nil
}

func readGMLPolygon(e *xmltree.Element, typeName string) (orb.Polygon, error) {
	poly := orb.Polygon{}
	for _, boundary := range e.Children {
		if boundary.Name.Space != constants.GMLNamespace {
			continue
		}
		if boundary.Name.Local != constants.GMLExterior && boundary.Name.Local != constants.GMLInterior {
			continue
		}
		ring := boundary.Child(constants.GMLNamespace, constants.GMLLinearRing)
		if ring == nil {
			return nil, models.NewMalformedValue(boundary.Name.Local, typeName, fmt.Errorf("missing LinearRing"))
		}
		ps, err := readPositions(ring, typeName)
		if err != nil {
			return nil, err
		}
		if boundary.Name.Local == constants.GMLExterior {
			poly = append(orb.Polygon{orb.Ring(ps)}, poly...)
			continue
		}
		poly = append(poly, orb.Ring(ps))
	}
	return poly, nil
}

// readPositions collects the coordinates of gml:pos children and gml:posList
func readPositions(e *xmltree.Element, typeName string) ([]orb.Point, error) {
	ps := []orb.Point{}
	for _, child := range e.Children {
		if child.Name.Space != constants.GMLNamespace {
			continue
		}
		switch child.Name.Local {
		case constants.GMLPos:
			nums, err := parseNumbers(child.Text, typeName)
			if err != nil {
				return nil, err
			}
			if len(nums) < 2 {
				return nil, models.NewMalformedValue(child.Text, typeName, fmt.Errorf("position needs two numbers"))
			}
			ps = append(ps, orb.Point{nums[0], nums[1]})
		case constants.GMLPosList:
			nums, err := parseNumbers(child.Text, typeName)
			if err != nil {
				return nil, err
			}
			if len(nums)%2 != 0 {
				return nil, models.NewMalformedValue(child.Text, typeName, fmt.Errorf("odd number of coordinates"))
			}
			for i := 0; i < len(nums); i += 2 {
				ps = append(ps, orb.Point{nums[i], nums[i+1]})
			}
		}
	}
	return ps, nil
}

func parseNumbers(text, typeName string) ([]float64, error) {
	fields := strings.Fields(text)
	nums := make([]float64, 0, len(fields))
	for _, f := range fields {
		n, err := utils.ParseFloat(f, 64)
		if err != nil {
			return nil, models.NewMalformedValue(f, typeName, err)
		}
		nums = append(nums, n)
	}
	return nums, nil
}
