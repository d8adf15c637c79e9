// Package contexturl decomposes odata.context / odata.metadata URLs.
package contexturl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
)

// suffixes in match order; /@Element is the v3 spelling of /$entity
var suffixes = []struct {
	text string
	kind models.ContextSuffix
}{
	{constants.SuffixEntity, models.SuffixEntity},
	{constants.SuffixElementLegacy, models.SuffixEntity},
	{constants.SuffixReference, models.SuffixReference},
	{constants.SuffixDelta, models.SuffixDelta},
	{constants.SuffixDeletedEntity, models.SuffixDeletedEntity},
	{constants.SuffixLink, models.SuffixLink},
	{constants.SuffixDeletedLink, models.SuffixDeletedLink},
}

// v3 JSON light appends projections as "&$select=a,b"
const legacySelect = "&$select="

// Parse decomposes a context URL
func Parse(raw string) (*models.ContextURL, error) {
	c := &models.ContextURL{URI: raw}
	s := strings.TrimSpace(raw)

	idx := strings.Index(s, constants.MetadataEndpoint)
	if idx < 0 {
		return nil, models.WrapStage(models.StageContextURL, raw, models.Malformed("missing %s marker", constants.MetadataEndpoint))
	}
	c.ServiceRoot = s[:idx]
	rest := s[idx+len(constants.MetadataEndpoint):]
	if !strings.HasPrefix(rest, "#") {
		// the bare metadata document URL addresses the service document
		return c, nil
	}
	rest = rest[1:]
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}

	if i := strings.Index(rest, legacySelect); i >= 0 {
		c.SelectList = rest[i+len(legacySelect):]
		rest = rest[:i]
	}

	for _, suffix := range suffixes {
		if rest == suffix.text[1:] {
			// "$metadata#$ref" and friends address no set
			c.Suffix = suffix.kind
			return c, nil
		}
		if strings.HasSuffix(rest, suffix.text) {
			c.Suffix = suffix.kind
			rest = strings.TrimSuffix(rest, suffix.text)
			break
		}
	}

	if strings.HasPrefix(rest, constants.CollectionTypePrefix) {
		end := matchingParen(rest, len(constants.CollectionTypePrefix)-1)
		if end < 0 {
			return nil, models.WrapStage(models.StageContextURL, raw, models.Malformed("unbalanced parentheses"))
		}
		c.EntitySetOrSingletonOrType = rest[:end+1]
		rest = rest[end+1:]
		if err := parsePath(c, splitTopLevel(strings.TrimPrefix(rest, "/"))); err != nil {
			return nil, models.WrapStage(models.StageContextURL, raw, err)
		}
		return c, nil
	}

	segments := splitTopLevel(rest)
	if len(segments) == 0 || segments[0] == "" {
		return nil, models.WrapStage(models.StageContextURL, raw, models.Malformed("empty fragment"))
	}

	name, group, err := splitGroup(segments[0])
	if err != nil {
		return nil, models.WrapStage(models.StageContextURL, raw, err)
	}
	c.EntitySetOrSingletonOrType = name
	if group != "" && !isKeyPredicate(group) {
		c.SelectList = group
	}
	if err := parsePath(c, segments[1:]); err != nil {
		return nil, models.WrapStage(models.StageContextURL, raw, err)
	}
	return c, nil
}

// parsePath assigns the segments after the addressed name. Dotted segments are
// type casts and the last one is the derived type; the others form the
// navigation/property path.
func parsePath(c *models.ContextURL, segments []string) error {
	var path []string
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		name, group, err := splitGroup(seg)
		if err != nil {
			return err
		}
		if group != "" && !isKeyPredicate(group) {
			c.SelectList = group
		}
		if strings.Contains(name, ".") {
			c.DerivedEntity = name
			continue
		}
		path = append(path, name)
	}
	c.NavOrPropertyPath = strings.Join(path, "/")
	return nil
}

// splitGroup separates "Name(...)" into "Name" and the parenthesised contents
func splitGroup(seg string) (string, string, error) {
	open := strings.IndexByte(seg, '(')
	if open < 0 {
		return seg, "", nil
	}
	end := matchingParen(seg, open)
	if end != len(seg)-1 {
		return "", "", models.Malformed("unbalanced parentheses in %q", seg)
	}
	return seg[:open], seg[open+1 : end], nil
}

// isKeyPredicate tells a key predicate such as (1), ('A') or (ID=1,Line=2) from a select list
func isKeyPredicate(group string) bool {
	if group == "" {
		return true
	}
	if c := group[0]; c == '\'' || c == '-' || c >= '0' && c <= '9' {
		return true
	}
	if strings.Contains(group, "=") {
		return true
	}
	_, err := uuid.Parse(group)
	return err == nil
}

func matchingParen(s string, open int) int {
	depth := 0
	inQuote := false
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

// splitTopLevel splits at '/' outside parentheses
func splitTopLevel(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '/':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// Build renders c back into a context URL
func Build(c *models.ContextURL) string {
	var b strings.Builder
	b.WriteString(c.ServiceRoot)
	b.WriteString(constants.MetadataEndpoint)
	if c.EntitySetOrSingletonOrType == "" && c.Suffix == models.SuffixNone {
		return b.String()
	}
	b.WriteByte('#')
	b.WriteString(c.EntitySetOrSingletonOrType)
	if c.SelectList != "" {
		fmt.Fprintf(&b, "(%s)", c.SelectList)
	}
	if c.DerivedEntity != "" {
		b.WriteString("/" + c.DerivedEntity)
	}
	if c.NavOrPropertyPath != "" {
		b.WriteString("/" + c.NavOrPropertyPath)
	}
	if c.Suffix != models.SuffixNone {
		if c.EntitySetOrSingletonOrType != "" {
			b.WriteByte('/')
		}
		b.WriteString(c.Suffix.String())
	}
	return b.String()
}
