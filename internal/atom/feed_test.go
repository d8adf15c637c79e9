package atom

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/odata-codec/internal/codec"
	"github.com/zmcp/odata-codec/internal/constants"
	"github.com/zmcp/odata-codec/internal/models"
)

func people() *models.EntitySet {
	count := int64(5)
	return &models.EntitySet{
		Context: "http://host/service/$metadata#People",
		BaseURI: "http://host/service/",
		Count:   &count,
		Entities: []*models.Entity{
			{ID: "People(1)", TypeName: "NS.Person", Properties: []*models.Property{{Name: "Name", Value: models.NewPrimitive(constants.EdmString, "Ada")}}},
			{ID: "People(2)", TypeName: "NS.Person", Properties: []*models.Property{{Name: "Name", Value: models.NewPrimitive(constants.EdmString, "Bob")}}},
		},
		Next:      "People?$skiptoken=2",
		DeltaLink: "People?$deltatoken=9",
	}
}

func encodeSet(t *testing.T, c *Codec, s *models.EntitySet) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.EncodeEntitySet(&buf, s))
	return buf.String()
}

func TestEncodeEntitySet_V4(t *testing.T) {
	out := encodeSet(t, newCodec(constants.V4, true), people())

	assert.Contains(t, out, `<feed xmlns="http://www.w3.org/2005/Atom"`)
	assert.Contains(t, out, `m:context="http://host/service/$metadata#People"`)
	assert.Contains(t, out, `<m:count>5</m:count>`)
	assert.Contains(t, out, `<link rel="next" href="People?$skiptoken=2"></link>`)
	assert.Contains(t, out, `<link rel="http://docs.oasis-open.org/odata/ns/delta" href="People?$deltatoken=9"></link>`)
	assert.Equal(t, 2, strings.Count(out, "<entry>"))
}

func TestEncodeEntitySet_V3DropsDeltaLink(t *testing.T) {
	c, logs := observed(constants.V3, true)
	s := people()
	s.Count = nil
	out := encodeSet(t, c, s)

	assert.Contains(t, out, `<m:count>2</m:count>`)
	assert.NotContains(t, out, "deltatoken")
	assert.Equal(t, 1, logs.FilterMessage("v3 feeds have no delta link; dropping it").Len())
}

func TestEntitySetRoundTrip(t *testing.T) {
	c := newCodec(constants.V4, true)
	in := people()
	back, err := c.DecodeEntitySet(strings.NewReader(encodeSet(t, c, in)))
	require.NoError(t, err)

	assert.Equal(t, in.Context, back.Context)
	assert.Equal(t, in.BaseURI, back.BaseURI)
	assert.Equal(t, int64(5), *back.Count)
	assert.Equal(t, in.Next, back.Next)
	assert.Equal(t, in.DeltaLink, back.DeltaLink)
	require.Len(t, back.Entities, 2)
	assert.Equal(t, "Bob", back.Entities[1].Property("Name").Value.Primitive)
	assert.Equal(t, "http://host/service/", back.Entities[0].BaseURI)
}

func TestDecodeEntitySet_V3(t *testing.T) {
	c := newCodec(constants.V3, false)
	s, err := c.DecodeEntitySet(strings.NewReader(`<feed ` + nsV3 + ` xml:base="http://host/svc/">
  <id>http://host/svc/Products</id>
  <title type="text">Products</title>
  <m:count>12</m:count>
  <entry><id>http://host/svc/Products(1)</id><content type="application/xml"><m:properties><d:ID m:type="Edm.Int32">1</d:ID></m:properties></content></entry>
  <link rel="next" href="Products?$skiptoken=1"/>
</feed>`))
	require.NoError(t, err)

	assert.Equal(t, "http://host/svc/Products", s.ID)
	assert.Equal(t, int64(12), *s.Count)
	assert.Equal(t, "Products?$skiptoken=1", s.Next)
	require.Len(t, s.Entities, 1)
	assert.Equal(t, int32(1), s.Entities[0].Property("ID").Value.Primitive)
}

func TestDecodeEntitySet_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
		path string
	}{
		{"entry root", `<entry ` + nsV4 + `><id>x</id></entry>`, models.ErrMalformedPayload, "entityset"},
		{"bad count", `<feed ` + nsV4 + `><m:count>many</m:count></feed>`, models.ErrMalformedPayload, "entityset"},
		{"bad entry", `<feed ` + nsV4 + `><entry></entry></feed>`, models.ErrUnresolvedReference, "entityset/entity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newCodec(constants.V4, false).DecodeEntitySet(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.path, models.StagePath(err))
		})
	}
}

const deltaDoc = `<feed ` + nsV4 + ` xmlns:at="http://purl.org/atompub/tombstones/1.0" m:context="http://host/service/$metadata#People/$delta">
  <entry><id>http://host/service/People(1)</id><content type="application/xml"><m:properties><d:Name>Ada</d:Name></m:properties></content></entry>
  <at:deleted-entry ref="http://host/service/People(2)" m:reason="changed"/>
  <at:deleted-entry ref="http://host/service/People(3)"/>
  <m:link source="People(1)" relationship="Friends" target="People(4)"/>
  <m:deleted-link source="People(1)" relationship="Friends" target="People(5)"/>
  <link rel="http://docs.oasis-open.org/odata/ns/delta" href="People?$deltatoken=10"/>
</feed>`

func TestDecodeDelta(t *testing.T) {
	d, err := newCodec(constants.V4, false).DecodeDelta(strings.NewReader(deltaDoc))
	require.NoError(t, err)

	require.Len(t, d.Entities, 1)
	assert.Equal(t, "Ada", d.Entities[0].Property("Name").Value.Primitive)
	assert.Equal(t, []*models.DeletedEntity{
		{ID: "http://host/service/People(2)", Reason: models.ReasonChanged},
		{ID: "http://host/service/People(3)", Reason: models.ReasonDeleted},
	}, d.DeletedEntities)
	assert.Equal(t, []*models.DeltaLink{{Source: "People(1)", Relationship: "Friends", Target: "People(4)"}}, d.AddedLinks)
	assert.Equal(t, []*models.DeltaLink{{Source: "People(1)", Relationship: "Friends", Target: "People(5)"}}, d.DeletedLinks)
	assert.Equal(t, "People?$deltatoken=10", d.DeltaLink)
}

func TestDeltaRoundTrip(t *testing.T) {
	c := newCodec(constants.V4, false)
	in, err := c.DecodeDelta(strings.NewReader(deltaDoc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.EncodeDelta(&buf, in))
	assert.Contains(t, buf.String(), `<at:deleted-entry ref="http://host/service/People(2)" m:reason="changed"></at:deleted-entry>`)
	assert.Contains(t, buf.String(), `xmlns:at="http://purl.org/atompub/tombstones/1.0"`)

	back, err := c.DecodeDelta(&buf)
	require.NoError(t, err)
	assert.Equal(t, in.DeletedEntities, back.DeletedEntities)
	assert.Equal(t, in.AddedLinks, back.AddedLinks)
	assert.Equal(t, in.DeletedLinks, back.DeletedLinks)
	assert.Equal(t, in.DeltaLink, back.DeltaLink)
	assert.Equal(t, in.Context, back.Context)
}

func TestDelta_RequiresV4(t *testing.T) {
	c := newCodec(constants.V3, false)
	err := c.EncodeDelta(&bytes.Buffer{}, &models.Delta{})
	assert.ErrorIs(t, err, models.ErrUnsupportedVersion)
	_, err = c.DecodeDelta(strings.NewReader(deltaDoc))
	assert.ErrorIs(t, err, models.ErrUnsupportedVersion)
}

func TestDecodeDelta_MalformedLink(t *testing.T) {
	_, err := newCodec(constants.V4, false).DecodeDelta(strings.NewReader(`<feed ` + nsV4 + `><m:link source="People(1)"/></feed>`))
	assert.ErrorIs(t, err, models.ErrMalformedPayload)
	assert.Equal(t, "delta", models.StagePath(err))
}

func TestLinks(t *testing.T) {
	count := int64(4)
	in := &models.LinkCollection{Links: []string{"http://host/Orders(1)", "http://host/Orders(2)"}, Count: &count, Next: "next-page"}

	t.Run("v4", func(t *testing.T) {
		c := newCodec(constants.V4, false)
		in := *in
		in.Context = "http://host/$metadata#Collection($ref)"
		var buf bytes.Buffer
		require.NoError(t, c.EncodeLinks(&buf, &in))
		assert.Contains(t, buf.String(), `<m:ref id="http://host/Orders(1)"></m:ref>`)

		back, err := c.DecodeLinks(&buf)
		require.NoError(t, err)
		assert.Equal(t, &in, back)
	})

	t.Run("v3", func(t *testing.T) {
		c := newCodec(constants.V3, false)
		var buf bytes.Buffer
		require.NoError(t, c.EncodeLinks(&buf, in))
		assert.Contains(t, buf.String(), `<links xmlns="http://schemas.microsoft.com/ado/2007/08/dataservices"`)
		assert.Contains(t, buf.String(), `<uri>http://host/Orders(2)</uri>`)

		back, err := c.DecodeLinks(&buf)
		require.NoError(t, err)
		assert.Equal(t, in, back)
	})

	t.Run("single reference", func(t *testing.T) {
		lc, err := newCodec(constants.V4, false).DecodeLinks(strings.NewReader(`<m:ref xmlns:m="http://docs.oasis-open.org/odata/ns/metadata" id="http://host/Orders(9)"/>`))
		require.NoError(t, err)
		assert.Equal(t, []string{"http://host/Orders(9)"}, lc.Links)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := newCodec(constants.V4, false).DecodeLinks(strings.NewReader(`<feed ` + nsV4 + `><m:ref/></feed>`))
		assert.ErrorIs(t, err, models.ErrMalformedPayload)
		assert.Equal(t, "links", models.StagePath(err))
	})

	t.Run("wrong root", func(t *testing.T) {
		_, err := newCodec(constants.V4, false).DecodeLinks(strings.NewReader(`<entry ` + nsV4 + `/>`))
		assert.ErrorIs(t, err, models.ErrMalformedPayload)
	})
}

func TestDecodeEntitySet_StopsAtFirstBadEntry(t *testing.T) {
	// nothing after the bad property is ever delivered
	head := `<feed ` + nsV4 + `><entry><id>People(1)</id><content type="application/xml"><m:properties>` +
		`<d:Age m:type="Int32">abc</d:Age>`
	r := io.MultiReader(strings.NewReader(head), iotest.ErrReader(errors.New("connection reset")))

	_, err := newCodec(constants.V4, false).DecodeEntitySet(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMalformedValue)
	assert.False(t, errors.Is(err, models.ErrIO))
	assert.Equal(t, "entityset/entity/property", models.StagePath(err))
}

func TestDecodeEntitySet_ReadFailureAfterEntries(t *testing.T) {
	head := `<feed ` + nsV4 + `><entry><id>People(1)</id></entry>`
	r := io.MultiReader(strings.NewReader(head), iotest.ErrReader(errors.New("connection reset")))

	_, err := newCodec(constants.V4, false).DecodeEntitySet(r)
	assert.ErrorIs(t, err, models.ErrIO)
}

func TestDecodeEntity_SkipsDeepUnknownElements(t *testing.T) {
	junk := strings.Repeat("<x:n>", 20) + strings.Repeat("</x:n>", 20)
	doc := `<entry ` + nsV4 + ` xmlns:x="urn:x"><id>People(1)</id><x:extra>` + junk + `</x:extra>` +
		`<content type="application/xml"><m:properties><d:Name>Ada</d:Name></m:properties></content></entry>`

	c := New(codec.Options{MaxDepth: 3})
	e, err := c.DecodeEntity(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "People(1)", e.ID)
	assert.Equal(t, "Ada", e.Property("Name").Value.Primitive)
}
