package notes

import (
	"errors"
	"time"
)

// Errors returned by the notes service.
var (
	// ErrNoteNotFound is returned when a slug does not resolve to a note the
	// caller owns. Absent and not-owned are deliberately indistinguishable:
	// the existence of another user's note must not be observable.
	ErrNoteNotFound = errors.New("note not found")

	// ErrSlugTaken is returned when a create or update would duplicate a slug.
	ErrSlugTaken = errors.New("slug already exists")
)

// SlugTakenMessageSuffix completes the field-level validation message for a
// duplicate slug. The full message is the conflicting slug plus this suffix.
const SlugTakenMessageSuffix = " - already exists, please enter a different value."

// SlugTakenError reports which slug collided. It unwraps to ErrSlugTaken.
type SlugTakenError struct {
	Slug string
}

func (e *SlugTakenError) Error() string {
	return e.Slug + SlugTakenMessageSuffix
}

func (e *SlugTakenError) Unwrap() error {
	return ErrSlugTaken
}

// Note represents a user's note. AuthorID is assigned at creation and never
// reassigned by any exposed operation.
type Note struct {
	ID        string
	Title     string
	Text      string
	Slug      string
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
