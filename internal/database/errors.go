package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/mrlokans/bookshelf/internal/entities"
)

var (
	// ErrQuotaExceeded means the store ran out of capacity. It is the only
	// storage failure surfaced to the end user.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrTransactionFailure covers every other store error, aborts included.
	ErrTransactionFailure = errors.New("storage transaction failed")
)

// ClassifyError maps a driver error onto the storage error taxonomy.
// Already classified errors and input errors pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrTransactionFailure) || IsInputError(err) {
		return err
	}
	if isQuotaError(err) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", ErrTransactionFailure, err)
}

func isQuotaError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrFull {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "database or disk is full")
}

var (
	// ErrInvalidBook is returned for records that cannot be stored, e.g. without an id.
	ErrInvalidBook = errors.New("invalid book")

	// ErrDuplicateID is returned when a bulk write names the same id twice.
	ErrDuplicateID = errors.New("duplicate book id")

	// ErrBookExists is returned by Create when the id is already taken.
	ErrBookExists = errors.New("book already exists")
)

// IsInputError reports whether err rejects the caller's data rather than
// signalling a store failure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidBook) || errors.Is(err, ErrDuplicateID)
}

// ValidateBatch checks a bulk write: every book needs an id and no id may
// appear twice.
func ValidateBatch(books []entities.Book) error {
	seen := make(map[string]struct{}, len(books))
	for i, b := range books {
		if b.ID == "" {
			return fmt.Errorf("%w: book %d has no id", ErrInvalidBook, i)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}
