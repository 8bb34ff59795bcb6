package entities

import (
	"time"
)

// LegacyRecord is a row of the pre-normalization layout: the whole book,
// cover included, serialized into one JSON document.
type LegacyRecord struct {
	ID      string `gorm:"primaryKey;size:64"`
	Payload string `gorm:"type:text"`
}

func (LegacyRecord) TableName() string {
	return "legacy_books"
}

// LegacyBook is the JSON document stored in LegacyRecord.Payload. Older rows
// may lack sessions, ordering, timestamps and version.
type LegacyBook struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Publisher string   `json:"publisher,omitempty"`
	Genre     string   `json:"genre,omitempty"`
	Series    string   `json:"series,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	Status           ReadingStatus `json:"status"`
	AddedAt          time.Time     `json:"addedAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	ReadingStartedAt *time.Time    `json:"readingStartedAt,omitempty"`

	PagesTotal int              `json:"pagesTotal"`
	PagesRead  int              `json:"pagesRead"`
	Sessions   []ReadingSession `json:"sessions,omitempty"`

	// Cover is a data URI, an external URL or a transient object URL.
	Cover string `json:"cover,omitempty"`

	Version     *int       `json:"version,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	CustomOrder *int       `json:"customOrder,omitempty"`
}

// Normalize fills every field the current layout requires. position is the
// record's index in the legacy store and seeds CustomOrder when it is absent.
func (l LegacyBook) Normalize(position int, now time.Time) Book {
	b := Book{
		ID:               l.ID,
		Title:            l.Title,
		Author:           l.Author,
		Publisher:        l.Publisher,
		Genre:            l.Genre,
		Series:           l.Series,
		Tags:             append([]string(nil), l.Tags...),
		Status:           l.Status,
		AddedAt:          l.AddedAt,
		CompletedAt:      cloneTime(l.CompletedAt),
		ReadingStartedAt: cloneTime(l.ReadingStartedAt),
		PagesTotal:       l.PagesTotal,
		PagesRead:        l.PagesRead,
		Sessions:         append([]ReadingSession{}, l.Sessions...),
		Cover:            CoverFromString(l.Cover),
		Version:          1,
	}
	if !b.Status.Valid() {
		b.Status = StatusUnread
	}
	if b.AddedAt.IsZero() {
		b.AddedAt = now
	}
	if l.Version != nil && *l.Version > 0 {
		b.Version = *l.Version
	}
	if l.UpdatedAt != nil && !l.UpdatedAt.IsZero() {
		b.UpdatedAt = *l.UpdatedAt
	} else {
		b.UpdatedAt = now
	}
	order := position
	if l.CustomOrder != nil {
		order = *l.CustomOrder
	}
	b.CustomOrder = &order
	return b
}

// NewLegacyBook renders a book in the legacy document shape, cover inlined.
func NewLegacyBook(b Book) LegacyBook {
	b = b.Clone()
	version := b.Version
	updatedAt := b.UpdatedAt
	return LegacyBook{
		ID:               b.ID,
		Title:            b.Title,
		Author:           b.Author,
		Publisher:        b.Publisher,
		Genre:            b.Genre,
		Series:           b.Series,
		Tags:             b.Tags,
		Status:           b.Status,
		AddedAt:          b.AddedAt,
		CompletedAt:      b.CompletedAt,
		ReadingStartedAt: b.ReadingStartedAt,
		PagesTotal:       b.PagesTotal,
		PagesRead:        b.PagesRead,
		Sessions:         b.Sessions,
		Cover:            b.Cover.Normalize().DataURI(),
		Version:          &version,
		UpdatedAt:        &updatedAt,
		CustomOrder:      b.CustomOrder,
	}
}
