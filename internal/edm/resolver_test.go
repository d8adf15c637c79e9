package edm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinResolver(t *testing.T) {
	r := Builtin()

	assert.Equal(t, KindInt32, r.PrimitiveKindOf("Edm.Int32"))
	assert.Equal(t, KindGeography, r.PrimitiveKindOf("Edm.GeographyPoint"))
	assert.Equal(t, KindGeometry, r.PrimitiveKindOf("Edm.GeometryCollection"))
	assert.Equal(t, KindGeography, r.PrimitiveKindOf("Edm.Geography"))
	assert.Equal(t, KindUnknown, r.PrimitiveKindOf("Edm.GeographyCircle"))
	assert.Equal(t, KindUnknown, r.PrimitiveKindOf("NS.Address"))

	assert.True(t, r.IsGeospatial("Edm.GeometryMultiPolygon"))
	assert.False(t, r.IsGeospatial("Edm.String"))
	assert.Equal(t, Facets{}, r.FacetsOf("Edm.Decimal"))
}

func TestKindClassification(t *testing.T) {
	assert.True(t, KindDecimal.IsNumeric())
	assert.True(t, KindByte.IsIntegral())
	assert.False(t, KindDouble.IsIntegral())
	assert.True(t, KindSingle.IsFloating())
	assert.False(t, KindString.IsNumeric())
	assert.Equal(t, "Edm.DateTimeOffset", KindDateTimeOffset.TypeName())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.True(t, IsBuiltin("Edm.Guid"))
	assert.False(t, IsBuiltin("NS.Guid"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.DefineType(TypeDefinition{
		Name:           "NS.Money",
		UnderlyingType: "Edm.Decimal",
		Facets:         Facets{Precision: IntFacet(10), Scale: IntFacet(2)},
	}))
	require.Error(t, r.DefineType(TypeDefinition{Name: "NS.Bad", UnderlyingType: "NS.Other"}))
	r.DefineEnum("NS.Color")
	r.SetFacets("Edm.String", Facets{MaxLength: IntFacet(40)})

	assert.Equal(t, KindDecimal, r.PrimitiveKindOf("NS.Money"))
	assert.Equal(t, 2, *r.FacetsOf("NS.Money").Scale)
	assert.Equal(t, 40, *r.FacetsOf("Edm.String").MaxLength)
	assert.Equal(t, KindInt64, r.PrimitiveKindOf("Edm.Int64"))
	assert.True(t, r.IsEnum("NS.Color"))
	assert.False(t, r.IsEnum("NS.Money"))
	assert.False(t, r.IsGeospatial("NS.Money"))

	var _ EnumResolver = r
}

func TestRegistryConcurrentReads(t *testing.T) {
	r := NewRegistry()
	r.DefineEnum("NS.Color")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.True(t, r.IsEnum("NS.Color"))
				assert.Equal(t, KindString, r.PrimitiveKindOf("Edm.String"))
			}
		}()
	}
	wg.Wait()
}
