// Package geo translates geospatial values between the GeoJSON-like JSON
// shape and GML, on top of github.com/paulmach/orb geometries.
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
)

// Codec converts geospatial values. The zero value logs nothing.
type Codec struct {
	Logger *zap.Logger
}

// New creates a geospatial codec
func New(logger *zap.Logger) *Codec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{Logger: logger}
}

func (c *Codec) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// ParseTypeName splits an Edm geospatial type name into dimension and shape.
// The abstract names Edm.Geography and Edm.Geometry yield ShapeUnknown.
func ParseTypeName(typeName string) (models.Dimension, models.ShapeKind, bool) {
	var dim models.Dimension
	var rest string
	switch {
	case strings.HasPrefix(typeName, constants.EdmGeography):
		dim, rest = models.Geography, typeName[len(constants.EdmGeography):]
	case strings.HasPrefix(typeName, constants.EdmGeometry):
		dim, rest = models.Geometry, typeName[len(constants.EdmGeometry):]
	default:
		return 0, models.ShapeUnknown, false
	}
	if rest == "" {
		return dim, models.ShapeUnknown, true
	}
	for _, k := range models.ShapeKinds {
		if rest == string(k) {
			return dim, k, true
		}
	}
	return 0, models.ShapeUnknown, false
}

// geoJSONNames maps shape kinds to GeoJSON "type" members
var geoJSONNames = map[models.ShapeKind]string{
	models.ShapePoint:           "Point",
	models.ShapeLineString:      "LineString",
	models.ShapePolygon:         "Polygon",
	models.ShapeMultiPoint:      "MultiPoint",
	models.ShapeMultiLineString: "MultiLineString",
	models.ShapeMultiPolygon:    "MultiPolygon",
	models.ShapeCollection:      "GeometryCollection",
}

func shapeFromGeoJSON(name string) models.ShapeKind {
	for k, n := range geoJSONNames {
		if n == name {
			return k
		}
	}
	if name == "Collection" {
		return models.ShapeCollection
	}
	return models.ShapeUnknown
}

// unsupported builds the error for a geometry that has no OData shape
func unsupported(what interface{}) error {
	return fmt.Errorf("%w: %v", models.ErrUnsupportedGeometry, what)
}

// checkDeclared verifies a decoded shape against a declared concrete shape
func checkDeclared(declared models.ShapeKind, got models.ShapeKind, typeName string) error {
	if declared == models.ShapeUnknown || declared == got {
		return nil
	}
	return models.NewMalformedValue(string(got), typeName, fmt.Errorf("shape %s does not match declared %s", got, declared))
}

// ParseSRID reads an EPSG code from "EPSG:4326", an srsName URL or a bare number
func ParseSRID(s string) (int, error) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{constants.SRSNamePrefix, constants.GeoJSONCRSPrefix, "urn:ogc:def:crs:EPSG::", "SRID="} {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid coordinate reference system %q", s)
	}
	return n, nil
}

func pointValid(p orb.Point) bool {
	return !isSpecial(p[0]) && !isSpecial(p[1])
}
