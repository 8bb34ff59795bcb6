package entities

import (
	"slices"
	"sort"
	"time"
)

type ReadingStatus string

const (
	StatusUnread    ReadingStatus = "Unread"
	StatusReading   ReadingStatus = "Reading"
	StatusCompleted ReadingStatus = "Completed"
	StatusWishlist  ReadingStatus = "Wishlist"
)

// Valid reports whether s is one of the known reading statuses.
func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusUnread, StatusReading, StatusCompleted, StatusWishlist:
		return true
	}
	return false
}

// ReadingSession is one entry of a book's reading log. Sessions are append-only.
type ReadingSession struct {
	Date     time.Time `json:"date"`
	Duration int       `json:"duration"` // minutes
	Pages    int       `json:"pages"`
}

type Book struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Publisher string   `json:"publisher,omitempty"`
	Genre     string   `json:"genre,omitempty"`
	Series    string   `json:"series,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	Status           ReadingStatus `json:"status"`
	AddedAt          time.Time     `json:"added_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	ReadingStartedAt *time.Time    `json:"reading_started_at,omitempty"`

	PagesTotal int              `json:"pages_total"`
	PagesRead  int              `json:"pages_read"`
	Sessions   []ReadingSession `json:"sessions"`

	Cover CoverRef `json:"cover"`

	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
	CustomOrder *int      `json:"custom_order,omitempty"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (b Book) Clone() Book {
	out := b
	if b.Tags != nil {
		out.Tags = append([]string(nil), b.Tags...)
	}
	if b.Sessions != nil {
		out.Sessions = append([]ReadingSession(nil), b.Sessions...)
	}
	out.CompletedAt = cloneTime(b.CompletedAt)
	out.ReadingStartedAt = cloneTime(b.ReadingStartedAt)
	if b.CustomOrder != nil {
		order := *b.CustomOrder
		out.CustomOrder = &order
	}
	out.Cover = b.Cover.clone()
	return out
}

// LibraryState is the whole persisted library as seen by the application.
type LibraryState struct {
	Books []Book `json:"books"`
}

// IDs returns the book ids in library order.
func (s LibraryState) IDs() []string {
	ids := make([]string, 0, len(s.Books))
	for _, b := range s.Books {
		ids = append(ids, b.ID)
	}
	return ids
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// IntPtr is a helper for optional integer fields.
func IntPtr(v int) *int {
	return &v
}

// SortByCustomOrder orders books by (custom order, added at). Books without a
// custom order sort after those with one.
func SortByCustomOrder(books []Book) {
	sort.SliceStable(books, func(i, j int) bool {
		a, b := books[i], books[j]
		switch {
		case a.CustomOrder == nil && b.CustomOrder != nil:
			return false
		case a.CustomOrder != nil && b.CustomOrder == nil:
			return true
		case a.CustomOrder != nil && *a.CustomOrder != *b.CustomOrder:
			return *a.CustomOrder < *b.CustomOrder
		}
		return a.AddedAt.Before(b.AddedAt)
	})
}

// SameContent reports whether b and other would persist identically, ignoring
// Version and UpdatedAt. Nil and empty slices compare equal.
func (b Book) SameContent(other Book) bool {
	return b.ID == other.ID &&
		b.Title == other.Title &&
		b.Author == other.Author &&
		b.Publisher == other.Publisher &&
		b.Genre == other.Genre &&
		b.Series == other.Series &&
		slices.Equal(b.Tags, other.Tags) &&
		b.Status == other.Status &&
		b.AddedAt.Equal(other.AddedAt) &&
		sameTime(b.CompletedAt, other.CompletedAt) &&
		sameTime(b.ReadingStartedAt, other.ReadingStartedAt) &&
		b.PagesTotal == other.PagesTotal &&
		b.PagesRead == other.PagesRead &&
		slices.EqualFunc(b.Sessions, other.Sessions, func(x, y ReadingSession) bool {
			return x.Date.Equal(y.Date) && x.Duration == y.Duration && x.Pages == y.Pages
		}) &&
		b.Cover.Normalize().Equal(other.Cover.Normalize()) &&
		sameInt(b.CustomOrder, other.CustomOrder)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
