package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidPatch = errors.New("invalid patch")

// BookPatch is a partial update of a book. Nil fields are left untouched.
// Sessions can only be appended, never replaced.
type BookPatch struct {
	Title     *string   `json:"title,omitempty"`
	Author    *string   `json:"author,omitempty"`
	Publisher *string   `json:"publisher,omitempty"`
	Genre     *string   `json:"genre,omitempty"`
	Series    *string   `json:"series,omitempty"`
	Tags      *[]string `json:"tags,omitempty"`

	Status           *ReadingStatus `json:"status,omitempty"`
	CompletedAt      OptionalTime   `json:"completed_at"`
	ReadingStartedAt OptionalTime   `json:"reading_started_at"`

	PagesTotal     *int             `json:"pages_total,omitempty"`
	PagesRead      *int             `json:"pages_read,omitempty"`
	AppendSessions []ReadingSession `json:"append_sessions,omitempty"`

	Cover       *CoverRef `json:"cover,omitempty"`
	CustomOrder *int      `json:"custom_order,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p BookPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.Publisher == nil && p.Genre == nil &&
		p.Series == nil && p.Tags == nil && p.Status == nil && !p.CompletedAt.Present &&
		!p.ReadingStartedAt.Present && p.PagesTotal == nil && p.PagesRead == nil &&
		len(p.AppendSessions) == 0 && p.Cover == nil && p.CustomOrder == nil
}

// Validate checks every present field on its own.
func (p BookPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidPatch)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPatch, *p.Status)
	}
	if p.PagesTotal != nil && *p.PagesTotal < 0 {
		return fmt.Errorf("%w: pages_total must be >= 0", ErrInvalidPatch)
	}
	if p.PagesRead != nil && *p.PagesRead < 0 {
		return fmt.Errorf("%w: pages_read must be >= 0", ErrInvalidPatch)
	}
	if p.CustomOrder != nil && *p.CustomOrder < 0 {
		return fmt.Errorf("%w: custom_order must be >= 0", ErrInvalidPatch)
	}
	for i, s := range p.AppendSessions {
		if s.Duration < 0 || s.Pages < 0 {
			return fmt.Errorf("%w: session %d has negative duration or pages", ErrInvalidPatch, i)
		}
	}
	return nil
}

// ApplyTo merges the present fields into b. It does not touch Version or UpdatedAt.
func (p BookPatch) ApplyTo(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Publisher != nil {
		b.Publisher = *p.Publisher
	}
	if p.Genre != nil {
		b.Genre = *p.Genre
	}
	if p.Series != nil {
		b.Series = *p.Series
	}
	if p.Tags != nil {
		b.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.CompletedAt.Present {
		b.CompletedAt = cloneTime(p.CompletedAt.Value)
	}
	if p.ReadingStartedAt.Present {
		b.ReadingStartedAt = cloneTime(p.ReadingStartedAt.Value)
	}
	if p.PagesTotal != nil {
		b.PagesTotal = *p.PagesTotal
	}
	if p.PagesRead != nil {
		b.PagesRead = *p.PagesRead
	}
	if len(p.AppendSessions) > 0 {
		b.Sessions = append(b.Sessions, p.AppendSessions...)
	}
	if p.Cover != nil {
		b.Cover = p.Cover.clone()
	}
	if p.CustomOrder != nil {
		order := *p.CustomOrder
		b.CustomOrder = &order
	}
}

// OptionalTime is a patch field with three states: absent (leave the stored
// value alone), null (clear it) and a timestamp (set it).
type OptionalTime struct {
	Present bool
	Value   *time.Time
}

func SetTime(t time.Time) OptionalTime {
	return OptionalTime{Present: true, Value: &t}
}

func ClearTime() OptionalTime {
	return OptionalTime{Present: true}
}

// UnmarshalJSON only runs when the key is in the document, so any call marks
// the field present; a JSON null clears.
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Present = true
	o.Value = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

func (o OptionalTime) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

type PatchReason string

const (
	PatchReasonNotFound        PatchReason = "not_found"
	PatchReasonVersionConflict PatchReason = "version_conflict"
	PatchReasonInvalid         PatchReason = "invalid_patch"
	PatchReasonStorageError    PatchReason = "storage_error"
)

// PatchResult reports the outcome of a versioned patch. Rejections are values, not errors,
// so callers can decide whether to reload and retry.
type PatchResult struct {
	OK      bool        `json:"ok"`
	Reason  PatchReason `json:"reason,omitempty"`
	Version int         `json:"version,omitempty"`
}

func PatchApplied(version int) PatchResult {
	return PatchResult{OK: true, Version: version}
}

func PatchRejected(reason PatchReason) PatchResult {
	return PatchResult{OK: false, Reason: reason}
}
