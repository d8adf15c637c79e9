// Package metadata reads the type declarations of a $metadata document that
// payload decoding depends on and turns them into an edm.Registry.
package metadata

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// EDMX represents the root EDMX document of either protocol version
type EDMX struct {
	XMLName      xml.Name     `xml:"Edmx"`
	Version      string       `xml:"Version,attr"`
	DataServices DataServices `xml:"DataServices"`
}

// DataServices contains the schemas
type DataServices struct {
	XMLName xml.Name `xml:"DataServices"`
	Schemas []Schema `xml:"Schema"`
}

// Schema holds the type declarations of one namespace
type Schema struct {
	XMLName         xml.Name         `xml:"Schema"`
	Namespace       string           `xml:"Namespace,attr"`
	Alias           string           `xml:"Alias,attr"`
	TypeDefinitions []TypeDefinition `xml:"TypeDefinition"`
	EnumTypes       []EnumType       `xml:"EnumType"`
	ComplexTypes    []NamedType      `xml:"ComplexType"`
	EntityTypes     []NamedType      `xml:"EntityType"`
}

// TypeDefinition is a v4 named alias of a primitive type with facets
type TypeDefinition struct {
	XMLName        xml.Name `xml:"TypeDefinition"`
	Name           string   `xml:"Name,attr"`
	UnderlyingType string   `xml:"UnderlyingType,attr"`
	MaxLength      string   `xml:"MaxLength,attr"`
	Precision      string   `xml:"Precision,attr"`
	Scale          string   `xml:"Scale,attr"`
}

// EnumType represents an enum type
type EnumType struct {
	XMLName        xml.Name     `xml:"EnumType"`
	Name           string       `xml:"Name,attr"`
	UnderlyingType string       `xml:"UnderlyingType,attr"`
	IsFlags        string       `xml:"IsFlags,attr"`
	Members        []EnumMember `xml:"Member"`
}

// EnumMember represents a member of an enum type
type EnumMember struct {
	XMLName xml.Name `xml:"Member"`
	Name    string   `xml:"Name,attr"`
	Value   string   `xml:"Value,attr"`
}

// NamedType is an entity or complex type; only its name matters here
type NamedType struct {
	Name     string `xml:"Name,attr"`
	BaseType string `xml:"BaseType,attr"`
}

// ParseMetadata parses a $metadata document
func ParseMetadata(data []byte) (*EDMX, error) {
	var edmx EDMX
	if err := xml.Unmarshal(data, &edmx); err != nil {
		return nil, fmt.Errorf("failed to parse metadata XML: %w", err)
	}
	if len(edmx.DataServices.Schemas) == 0 {
		return nil, fmt.Errorf("metadata document has no schema")
	}
	return &edmx, nil
}

// IsODataV4 checks if the metadata is OData v4 format
func IsODataV4(data []byte) bool {
	return bytes.Contains(data, []byte(`xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx"`)) ||
		bytes.Contains(data, []byte(`Version="4.0"`)) ||
		bytes.Contains(data, []byte(`Version="4.01"`))
}
