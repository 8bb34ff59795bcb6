package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverFromString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     CoverKind
		url      string
		blob     string
		mimeType string
	}{
		{name: "empty", input: "", kind: CoverKindNone},
		{name: "transient url is dropped", input: "blob:http://localhost/abc", kind: CoverKindNone},
		{name: "transient url upper case", input: "BLOB:http://localhost/abc", kind: CoverKindNone},
		{name: "external url", input: "https://covers.example.com/1.jpg", kind: CoverKindURL, url: "https://covers.example.com/1.jpg"},
		{name: "base64 data uri", input: "data:image/png;base64,aGVsbG8=", kind: CoverKindBlob, blob: "hello", mimeType: "image/png"},
		{name: "percent encoded data uri", input: "data:text/plain,hi%20there", kind: CoverKindBlob, blob: "hi there", mimeType: "text/plain"},
		{name: "broken data uri", input: "data:image/png;base64,!!!", kind: CoverKindNone},
		{name: "data uri without payload", input: "data:image/png;base64", kind: CoverKindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cover := CoverFromString(tt.input)
			assert.Equal(t, tt.kind, cover.Kind())
			assert.Equal(t, tt.url, cover.URL())
			assert.Equal(t, tt.blob, string(cover.Blob()))
			assert.Equal(t, tt.mimeType, cover.MimeType())
		})
	}
}

func TestCoverRef_ZeroValueIsNone(t *testing.T) {
	var cover CoverRef
	assert.True(t, cover.IsNone())
	assert.Equal(t, "", cover.DataURI())
	assert.True(t, cover.Equal(NoCover()))
}

func TestCoverRef_DataURI(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,aGk=", BlobCover([]byte("hi"), "").DataURI())
	assert.Equal(t, "https://x/c.jpg", URLCover(" https://x/c.jpg ").DataURI())
	assert.True(t, BlobCover(nil, "image/png").IsNone())

	data, mimeType, err := ParseDataURI(BlobCover([]byte{0xff, 0xd8}, "image/jpeg").DataURI())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)
	assert.Equal(t, "image/jpeg", mimeType)
}

func TestCoverRef_IsTransient(t *testing.T) {
	assert.True(t, URLCover("blob:abc").IsTransient())
	assert.False(t, URLCover("https://x").IsTransient())
	assert.False(t, BlobCover([]byte("x"), "").IsTransient())
}

func TestCoverRef_Equal(t *testing.T) {
	assert.True(t, BlobCover([]byte("a"), "image/png").Equal(BlobCover([]byte("a"), "image/png")))
	assert.False(t, BlobCover([]byte("a"), "image/png").Equal(BlobCover([]byte("a"), "image/gif")))
	assert.False(t, BlobCover([]byte("a"), "").Equal(URLCover("a")))
	assert.True(t, URLCover("u").Equal(URLCover("u")))
}

func TestCoverRef_JSON(t *testing.T) {
	t.Run("blob object form", func(t *testing.T) {
		raw, err := json.Marshal(BlobCover([]byte("hello"), "image/png"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"blob","mime_type":"image/png","data":"aGVsbG8="}`, string(raw))

		var back CoverRef
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.True(t, back.Equal(BlobCover([]byte("hello"), "image/png")))
	})

	t.Run("bare string", func(t *testing.T) {
		var cover CoverRef
		require.NoError(t, json.Unmarshal([]byte(`"https://x/c.jpg"`), &cover))
		assert.Equal(t, CoverKindURL, cover.Kind())
	})

	t.Run("null", func(t *testing.T) {
		cover := URLCover("https://x")
		require.NoError(t, json.Unmarshal([]byte(`null`), &cover))
		assert.True(t, cover.IsNone())
	})

	t.Run("unknown kind", func(t *testing.T) {
		var cover CoverRef
		assert.Error(t, json.Unmarshal([]byte(`{"kind":"bogus"}`), &cover))
	})
}
