package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zmcp/odata-codec/internal/edm"
	"go.uber.org/zap"
)

// Load parses a $metadata document and registers its enum types and type
// definitions. A type definition whose underlying type is not an Edm primitive
// is skipped with a warning.
func Load(data []byte, logger *zap.Logger) (*edm.Registry, error) {
	edmx, err := ParseMetadata(data)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return edmx.Registry(logger)
}

// Registry builds a resolver from the parsed schemas
func (e *EDMX) Registry(logger *zap.Logger) (*edm.Registry, error) {
	reg := edm.NewRegistry()
	for _, schema := range e.DataServices.Schemas {
		for _, enum := range schema.EnumTypes {
			for _, name := range schema.qualify(enum.Name) {
				reg.DefineEnum(name)
			}
		}

		for _, td := range schema.TypeDefinitions {
			facets, err := td.facets()
			if err != nil {
				return nil, fmt.Errorf("type definition %s.%s: %w", schema.Namespace, td.Name, err)
			}
			underlying := schema.resolve(td.UnderlyingType)
			for _, name := range schema.qualify(td.Name) {
				err := reg.DefineType(edm.TypeDefinition{
					Name:           name,
					UnderlyingType: underlying,
					Facets:         facets,
				})
				if err != nil {
					logger.Warn("skipping type definition",
						zap.String("type", name),
						zap.String("underlying", underlying),
						zap.Error(err))
					break
				}
			}
		}
	}

	logger.Debug("metadata loaded",
		zap.String("version", e.Version),
		zap.Int("schemas", len(e.DataServices.Schemas)))
	return reg, nil
}

// qualify returns the namespace-qualified name and, if the schema declares
// one, the alias-qualified name
func (s Schema) qualify(name string) []string {
	names := []string{s.Namespace + "." + name}
	if s.Alias != "" {
		names = append(names, s.Alias+"."+name)
	}
	return names
}

// resolve rewrites an alias-qualified type reference to its namespace
func (s Schema) resolve(typeName string) string {
	if s.Alias != "" && strings.HasPrefix(typeName, s.Alias+".") {
		return s.Namespace + typeName[len(s.Alias):]
	}
	return typeName
}

func (td TypeDefinition) facets() (edm.Facets, error) {
	var f edm.Facets
	var err error
	if f.MaxLength, err = intFacet("MaxLength", td.MaxLength); err != nil {
		return f, err
	}
	if f.Precision, err = intFacet("Precision", td.Precision); err != nil {
		return f, err
	}
	if f.Scale, err = intFacet("Scale", td.Scale); err != nil {
		return f, err
	}
	return f, nil
}

// intFacet parses a numeric facet; "max", "variable" and "floating" mean unbounded
func intFacet(name, raw string) (*int, error) {
	switch strings.ToLower(raw) {
	case "", "max", "variable", "floating":
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid %s facet %q", name, raw)
	}
	return edm.IntFacet(n), nil
}
