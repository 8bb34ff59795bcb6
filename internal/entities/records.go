package entities

import (
	"time"
)

// BookRecord is the metadata row of a book: every field except the cover payload.
type BookRecord struct {
	ID        string   `gorm:"primaryKey;size:64"`
	Title     string   `gorm:"size:512"`
	Author    string   `gorm:"size:256"`
	Publisher string   `gorm:"index;size:256"`
	Genre     string   `gorm:"index;size:128"`
	Series    string   `gorm:"size:256"`
	Tags      []string `gorm:"serializer:json"`

	Status      ReadingStatus `gorm:"size:20;index;index:idx_status_order,priority:1"`
	CustomOrder *int          `gorm:"index;index:idx_status_order,priority:2"`

	AddedAt          time.Time `gorm:"index"`
	CompletedAt      *time.Time
	ReadingStartedAt *time.Time

	PagesTotal int
	PagesRead  int
	Sessions   []ReadingSession `gorm:"serializer:json"`

	Version   int       `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index;autoUpdateTime:false"`
}

func (BookRecord) TableName() string {
	return "book_metadata"
}

// CoverRecord holds the cover of one book. Exactly one of Blob or URL is set.
type CoverRecord struct {
	BookID    string `gorm:"primaryKey;size:64"`
	Blob      []byte
	MimeType  string    `gorm:"size:100"`
	URL       string    `gorm:"size:2048"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (CoverRecord) TableName() string {
	return "book_covers"
}

// Cover converts the row back into a CoverRef.
func (c *CoverRecord) Cover() CoverRef {
	if c == nil {
		return NoCover()
	}
	if len(c.Blob) > 0 {
		return BlobCover(c.Blob, c.MimeType)
	}
	return URLCover(c.URL)
}

// SplitBook separates a book into its metadata row and its cover row.
// The cover is normalized first; a nil cover row means the book has no cover.
func SplitBook(b Book) (BookRecord, *CoverRecord) {
	b = b.Clone()
	record := BookRecord{
		ID:               b.ID,
		Title:            b.Title,
		Author:           b.Author,
		Publisher:        b.Publisher,
		Genre:            b.Genre,
		Series:           b.Series,
		Tags:             b.Tags,
		Status:           b.Status,
		CustomOrder:      b.CustomOrder,
		AddedAt:          b.AddedAt,
		CompletedAt:      b.CompletedAt,
		ReadingStartedAt: b.ReadingStartedAt,
		PagesTotal:       b.PagesTotal,
		PagesRead:        b.PagesRead,
		Sessions:         b.Sessions,
		Version:          b.Version,
		UpdatedAt:        b.UpdatedAt,
	}

	cover := b.Cover.Normalize()
	switch cover.Kind() {
	case CoverKindBlob:
		return record, &CoverRecord{BookID: b.ID, Blob: cover.Blob(), MimeType: cover.MimeType(), UpdatedAt: b.UpdatedAt}
	case CoverKindURL:
		return record, &CoverRecord{BookID: b.ID, URL: cover.URL(), UpdatedAt: b.UpdatedAt}
	}
	return record, nil
}

// JoinBook is the inverse of SplitBook.
func JoinBook(r BookRecord, c *CoverRecord) Book {
	return Book{
		ID:               r.ID,
		Title:            r.Title,
		Author:           r.Author,
		Publisher:        r.Publisher,
		Genre:            r.Genre,
		Series:           r.Series,
		Tags:             r.Tags,
		Status:           r.Status,
		AddedAt:          r.AddedAt,
		CompletedAt:      r.CompletedAt,
		ReadingStartedAt: r.ReadingStartedAt,
		PagesTotal:       r.PagesTotal,
		PagesRead:        r.PagesRead,
		Sessions:         r.Sessions,
		Cover:            c.Cover(),
		Version:          r.Version,
		UpdatedAt:        r.UpdatedAt,
		CustomOrder:      r.CustomOrder,
	}
}
