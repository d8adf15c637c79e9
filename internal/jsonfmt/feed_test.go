package jsonfmt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
)

func idEntity(id int32) *models.Entity {
	return &models.Entity{Properties: []*models.Property{
		{Name: "ID", Value: models.NewPrimitive(constants.EdmInt32, id)},
	}}
}

func TestEncodeEntitySet_CountDefaultsToEntities(t *testing.T) {
	set := &models.EntitySet{
		Context:  "http://h/$metadata#Customers",
		Entities: []*models.Entity{idEntity(1), idEntity(2)},
		Next:     "http://h/Customers?$skip=2",
	}
	tests := []struct {
		version  constants.Version
		expected string
	}{
		{constants.V4, `{"@odata.context":"http://h/$metadata#Customers","@odata.count":2,"value":[{"ID":1},{"ID":2}],"@odata.nextLink":"http://h/Customers?$skip=2"}`},
		{constants.V3, `{"odata.metadata":"http://h/$metadata#Customers","odata.count":"2","value":[{"ID":1},{"ID":2}],"odata.nextLink":"http://h/Customers?$skip=2"}`},
	}
	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, newCodec(tt.version, false).EncodeEntitySet(&buf, set))
			assert.JSONEq(t, tt.expected, buf.String())
		})
	}
}

func TestDecodeEntitySet(t *testing.T) {
	c := newCodec(constants.V4, false)
	s, err := c.DecodeEntitySet(strings.NewReader(`{
		"@odata.context":"http://h/$metadata#Customers",
		"@odata.count":10,
		"value":[{"ID":1},{"@odata.id":"Customers(2)"}],
		"@odata.nextLink":"http://h/Customers?$skiptoken=2"
	}`))
	require.NoError(t, err)

	assert.Equal(t, int64(10), s.ResultCount())
	assert.Equal(t, "http://h/", s.BaseURI)
	assert.Equal(t, "http://h/Customers?$skiptoken=2", s.Next)
	require.Len(t, s.Entities, 2)
	assert.Equal(t, "http://h/", s.Entities[0].BaseURI)
	assert.True(t, s.Entities[1].IsReference())
	assert.Equal(t, "Customers(2)", s.Entities[1].ID)
}

func TestDecodeEntitySet_V3StringCount(t *testing.T) {
	c := newCodec(constants.V3, false)
	s, err := c.DecodeEntitySet(strings.NewReader(`{"odata.count":"3","value":[{"ID":1}]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.ResultCount())
	assert.Len(t, s.Entities, 1)
}

func TestDecodeEntitySet_BareArray(t *testing.T) {
	s, err := newCodec(constants.V4, false).DecodeEntitySet(strings.NewReader(`[{"ID":1},{"ID":2}]`))
	require.NoError(t, err)
	assert.Nil(t, s.Count)
	assert.Equal(t, int64(2), s.ResultCount())
}

func TestDecodeEntitySet_Errors(t *testing.T) {
	c := newCodec(constants.V4, false)
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"missing value", `{"@odata.count":1}`, "entityset"},
		{"bad count", `{"@odata.count":"many","value":[]}`, "entityset"},
		{"bad item", `{"value":[{"ID":1},"x"]}`, "entityset"},
		{"single entity", `{"@odata.id":"Customers('A')","Name":"A"}`, "entityset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecodeEntitySet(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrMalformedPayload), "got %v", err)
			assert.False(t, errors.Is(err, models.ErrExpectedEntityFoundSet))
			assert.True(t, strings.HasPrefix(models.StagePath(err), tt.path), "got %s", models.StagePath(err))
		})
	}
}

const deltaDoc = `{
	"@odata.context":"http://h/$metadata#Customers/$delta",
	"value":[
		{"@odata.id":"Customers('A')","Name":"A"},
		{"@odata.context":"http://h/$metadata#Customers/$deletedEntity","id":"Customers('B')","reason":"deleted"},
		{"@removed":{"reason":"changed"},"@id":"Customers('C')"},
		{"@odata.context":"http://h/$metadata#Customers/$link","source":"Customers('A')","relationship":"Orders","target":"Orders(1)"},
		{"@odata.context":"http://h/$metadata#Customers/$deletedLink","source":"Customers('A')","relationship":"Orders","target":"Orders(2)"}
	],
	"@odata.deltaLink":"http://h/Customers?$deltatoken=8015"
}`

func TestDecodeDelta(t *testing.T) {
	d, err := newCodec(constants.V4, false).DecodeDelta(strings.NewReader(deltaDoc))
	require.NoError(t, err)

	require.Len(t, d.Entities, 1)
	assert.Equal(t, "Customers('A')", d.Entities[0].ID)
	assert.Equal(t, []*models.DeletedEntity{
		{ID: "Customers('B')", Reason: models.ReasonDeleted},
		{ID: "Customers('C')", Reason: models.ReasonChanged},
	}, d.DeletedEntities)
	assert.Equal(t, []*models.DeltaLink{{Source: "Customers('A')", Relationship: "Orders", Target: "Orders(1)"}}, d.AddedLinks)
	assert.Equal(t, []*models.DeltaLink{{Source: "Customers('A')", Relationship: "Orders", Target: "Orders(2)"}}, d.DeletedLinks)
	assert.Equal(t, "http://h/Customers?$deltatoken=8015", d.DeltaLink)
}

func TestEncodeDelta(t *testing.T) {
	d := &models.Delta{
		EntitySet: models.EntitySet{
			Context:   "http://h/$metadata#Customers/$delta",
			DeltaLink: "http://h/Customers?$deltatoken=1",
		},
		DeletedEntities: []*models.DeletedEntity{{ID: "Customers('B')", Reason: models.ReasonChanged}},
		AddedLinks:      []*models.DeltaLink{{Source: "Customers('A')", Relationship: "Orders", Target: "Orders(1)"}},
	}
	var buf bytes.Buffer
	require.NoError(t, newCodec(constants.V4, false).EncodeDelta(&buf, d))
	assert.JSONEq(t, `{
		"@odata.context":"http://h/$metadata#Customers/$delta",
		"value":[
			{"@odata.context":"http://h/$metadata#Customers/$deletedEntity","id":"Customers('B')","reason":"changed"},
			{"@odata.context":"http://h/$metadata#Customers/$link","source":"Customers('A')","relationship":"Orders","target":"Orders(1)"}
		],
		"@odata.deltaLink":"http://h/Customers?$deltatoken=1"
	}`, buf.String())
}

func TestDelta_RoundTrip(t *testing.T) {
	c := newCodec(constants.V4, false)
	d, err := c.DecodeDelta(strings.NewReader(deltaDoc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.EncodeDelta(&buf, d))
	back, err := c.DecodeDelta(&buf)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestDelta_RequiresV4(t *testing.T) {
	c := newCodec(constants.V3, false)
	_, err := c.DecodeDelta(strings.NewReader(deltaDoc))
	assert.True(t, errors.Is(err, models.ErrUnsupportedVersion))
	err = c.EncodeDelta(&bytes.Buffer{}, &models.Delta{})
	assert.True(t, errors.Is(err, models.ErrUnsupportedVersion))
}

func TestDecodeDelta_MalformedMarkers(t *testing.T) {
	c := newCodec(constants.V4, false)
	for _, doc := range []string{
		`{"value":[{"@odata.context":"#$deletedEntity","reason":"deleted"}]}`,
		`{"value":[{"@odata.context":"#$link","source":"A","relationship":"R"}]}`,
		`{"value":[42]}`,
	} {
		_, err := c.DecodeDelta(strings.NewReader(doc))
		require.Error(t, err, doc)
		assert.True(t, errors.Is(err, models.ErrMalformedPayload), doc)
		assert.Equal(t, "delta", models.StagePath(err)[:5])
	}
}

func TestLinks(t *testing.T) {
	t.Run("v3 decode", func(t *testing.T) {
		lc, err := newCodec(constants.V3, false).DecodeLinks(strings.NewReader(
			`{"odata.metadata":"http://h/$metadata#Customers/$links/Orders","value":[{"url":"http://h/Orders(1)"},{"url":"http://h/Orders(2)"}],"odata.nextLink":"n"}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"http://h/Orders(1)", "http://h/Orders(2)"}, lc.Links)
		assert.Equal(t, "n", lc.Next)
	})
	t.Run("v4 single reference", func(t *testing.T) {
		lc, err := newCodec(constants.V4, false).DecodeLinks(strings.NewReader(`{"@odata.id":"Orders(1)"}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"Orders(1)"}, lc.Links)
	})
	t.Run("v4 encode", func(t *testing.T) {
		count := int64(7)
		var buf bytes.Buffer
		require.NoError(t, newCodec(constants.V4, false).EncodeLinks(&buf, &models.LinkCollection{
			Context: "http://h/$metadata#Collection($ref)",
			Links:   []string{"Orders(1)"},
			Count:   &count,
		}))
		assert.JSONEq(t, `{"@odata.context":"http://h/$metadata#Collection($ref)","@odata.count":7,"value":[{"@odata.id":"Orders(1)"}]}`, buf.String())
	})
	t.Run("missing id", func(t *testing.T) {
		_, err := newCodec(constants.V4, false).DecodeLinks(strings.NewReader(`{"value":[{"id":"x"}]}`))
		assert.True(t, errors.Is(err, models.ErrMalformedPayload))
	})
}
