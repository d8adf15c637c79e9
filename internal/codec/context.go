package codec

import (
	"strings"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
)

// EntityTypeFromContext takes the entity type from a type-cast segment or a Collection(T) context
func EntityTypeFromContext(ctx *models.ContextURL) string {
	if ctx == nil {
		return ""
	}
	if ctx.DerivedEntity != "" {
		return ctx.DerivedEntity
	}
	if item := constants.CollectionItemType(ctx.EntitySetOrSingletonOrType); item != "" && ctx.Suffix == models.SuffixNone {
		return item
	}
	return ""
}

// PropertyName returns the last segment of the context property path
func PropertyName(ctx *models.ContextURL) string {
	if ctx == nil || ctx.NavOrPropertyPath == "" {
		return ""
	}
	path := ctx.NavOrPropertyPath
	return path[strings.LastIndexByte(path, '/')+1:]
}

// PropertyType takes the declared type from a context that names a type rather than a path
func PropertyType(ctx *models.ContextURL) string {
	if ctx == nil || ctx.NavOrPropertyPath != "" || ctx.DerivedEntity != "" {
		return ""
	}
	name := ctx.EntitySetOrSingletonOrType
	if ctx.IsCollection() || strings.Contains(name, ".") {
		return NormalizeTypeName(name)
	}
	return ""
}
