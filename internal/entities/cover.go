package entities

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type CoverKind string

const (
	CoverKindNone CoverKind = "none"
	CoverKindBlob CoverKind = "blob"
	CoverKindURL  CoverKind = "url"
)

const (
	// TransientURLScheme marks in-memory object URLs that are only valid for the
	// lifetime of the process that created them. They are never persisted.
	TransientURLScheme = "blob:"
	DataURIScheme      = "data:"

	DefaultCoverMimeType = "image/jpeg"
)

var ErrInvalidDataURI = errors.New("invalid data URI")

// CoverRef references a book cover: either an image payload, an external URL, or nothing.
// The zero value is NoCover.
type CoverRef struct {
	kind     CoverKind
	data     []byte
	mimeType string
	url      string
}

func NoCover() CoverRef {
	return CoverRef{kind: CoverKindNone}
}

// BlobCover wraps an image payload. An empty payload yields NoCover.
func BlobCover(data []byte, mimeType string) CoverRef {
	if len(data) == 0 {
		return NoCover()
	}
	if mimeType == "" {
		mimeType = DefaultCoverMimeType
	}
	return CoverRef{kind: CoverKindBlob, data: data, mimeType: mimeType}
}

// URLCover wraps an external cover URL. An empty URL yields NoCover.
func URLCover(u string) CoverRef {
	u = strings.TrimSpace(u)
	if u == "" {
		return NoCover()
	}
	return CoverRef{kind: CoverKindURL, url: u}
}

// CoverFromString interprets a legacy cover string: a data URI becomes a blob,
// a transient URL is dropped, anything else is kept as an external URL.
func CoverFromString(s string) CoverRef {
	return URLCover(s).Normalize()
}

func (c CoverRef) Kind() CoverKind {
	if c.kind == "" {
		return CoverKindNone
	}
	return c.kind
}

func (c CoverRef) IsNone() bool {
	return c.Kind() == CoverKindNone
}

func (c CoverRef) Blob() []byte {
	return c.data
}

func (c CoverRef) MimeType() string {
	return c.mimeType
}

func (c CoverRef) URL() string {
	return c.url
}

// IsTransient reports whether the cover points at a process-local object URL.
func (c CoverRef) IsTransient() bool {
	return c.Kind() == CoverKindURL && hasSchemePrefix(c.url, TransientURLScheme)
}

// Normalize converts a cover into its persistable form. Inline data URIs are
// decoded into blobs; transient URLs and undecodable data URIs are cleared.
func (c CoverRef) Normalize() CoverRef {
	if c.Kind() != CoverKindURL {
		return c
	}
	switch {
	case hasSchemePrefix(c.url, TransientURLScheme):
		return NoCover()
	case hasSchemePrefix(c.url, DataURIScheme):
		data, mimeType, err := ParseDataURI(c.url)
		if err != nil {
			return NoCover()
		}
		return BlobCover(data, mimeType)
	}
	return c
}

// DataURI renders a blob cover as an inline data URI. Other kinds return their URL or "".
func (c CoverRef) DataURI() string {
	switch c.Kind() {
	case CoverKindBlob:
		return FormatDataURI(c.data, c.mimeType)
	case CoverKindURL:
		return c.url
	}
	return ""
}

func (c CoverRef) Equal(other CoverRef) bool {
	if c.Kind() != other.Kind() {
		return false
	}
	switch c.Kind() {
	case CoverKindBlob:
		return c.mimeType == other.mimeType && bytes.Equal(c.data, other.data)
	case CoverKindURL:
		return c.url == other.url
	}
	return true
}

func (c CoverRef) clone() CoverRef {
	out := c
	if c.data != nil {
		out.data = append([]byte(nil), c.data...)
	}
	return out
}

type coverJSON struct {
	Kind     CoverKind `json:"kind"`
	URL      string    `json:"url,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
	Data     []byte    `json:"data,omitempty"`
}

func (c CoverRef) MarshalJSON() ([]byte, error) {
	out := coverJSON{Kind: c.Kind()}
	switch out.Kind {
	case CoverKindBlob:
		out.Data = c.data
		out.MimeType = c.mimeType
	case CoverKindURL:
		out.URL = c.url
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the tagged object form or a bare string (URL or data URI).
func (c *CoverRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = NoCover()
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = URLCover(s)
		return nil
	}

	var in coverJSON
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return err
	}
	switch in.Kind {
	case CoverKindBlob:
		*c = BlobCover(in.Data, in.MimeType)
	case CoverKindURL:
		*c = URLCover(in.URL)
	case CoverKindNone, "":
		*c = NoCover()
	default:
		return fmt.Errorf("unknown cover kind %q", in.Kind)
	}
	return nil
}

// ParseDataURI decodes a base64 or percent-encoded data URI.
func ParseDataURI(s string) ([]byte, string, error) {
	if !hasSchemePrefix(s, DataURIScheme) {
		return nil, "", ErrInvalidDataURI
	}
	header, payload, ok := strings.Cut(s[len(DataURIScheme):], ",")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}

	params := strings.Split(header, ";")
	mimeType := params[0]
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(p, "base64") {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
		data = []byte(unescaped)
	}
	if len(data) == 0 {
		return nil, "", ErrInvalidDataURI
	}
	return data, mimeType, nil
}

func FormatDataURI(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = DefaultCoverMimeType
	}
	return DataURIScheme + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func hasSchemePrefix(s, scheme string) bool {
	return len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme)
}
