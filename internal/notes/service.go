package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kuitang/slugnotes/internal/db"
	"github.com/kuitang/slugnotes/internal/errs"
)

// Service handles note CRUD operations using the db layer. Every operation
// takes the acting identity as an explicit parameter; the service never
// resolves identity itself.
type Service struct {
	db *db.DB
}

// NewService creates a new notes service.
func NewService(database *db.DB) *Service {
	return &Service{db: database}
}

// Create persists a new note owned by authorID. The slug is resolved from the
// form (verbatim or derived from the title) and checked for global uniqueness
// by the database's unique index in the same statement that writes the row,
// so concurrent creators racing on one slug get exactly one winner.
func (s *Service) Create(ctx context.Context, authorID string, form NoteForm) (*Note, error) {
	if authorID == "" {
		return nil, errs.New(errs.InvalidArgument, "author ID is required")
	}

	noteSlug := ResolveSlug(form.Slug, form.Title)
	noteID := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO notes (id, title, text, slug, author_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, noteID, form.Title, form.Text, noteSlug, authorID, now.Unix(), now.Unix())
	if err != nil {
		if db.IsUniqueConstraintError(err, "notes.slug") {
			return nil, &SlugTakenError{Slug: noteSlug}
		}
		return nil, errs.Wrap(errs.Internal, "failed to create note", err)
	}

	return &Note{
		ID:        noteID,
		Title:     form.Title,
		Text:      form.Text,
		Slug:      noteSlug,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ListForAuthor returns the notes owned by authorID in creation order.
// Notes of other authors are never included.
func (s *Service) ListForAuthor(ctx context.Context, authorID string) ([]Note, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT id, title, text, slug, author_id, created_at, updated_at
		FROM notes
		WHERE author_id = ?
		ORDER BY rowid
	`, authorID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to list notes", err)
	}
	defer rows.Close()

	var result []Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		result = append(result, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return result, nil
}

// GetBySlug retrieves a note by slug on behalf of viewerID. A note that does
// not exist and a note owned by someone else both yield ErrNoteNotFound.
func (s *Service) GetBySlug(ctx context.Context, noteSlug, viewerID string) (*Note, error) {
	row := s.db.SQL().QueryRowContext(ctx, `
		SELECT id, title, text, slug, author_id, created_at, updated_at
		FROM notes
		WHERE slug = ? AND author_id = ?
	`, noteSlug, viewerID)

	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, errs.Wrap(errs.Internal, "failed to read note", err)
	}
	return &note, nil
}

// Update replaces the title, text, and slug of the note currently at noteSlug.
// The ownership check runs before the uniqueness check: a non-owner gets
// ErrNoteNotFound even when the new slug would also collide. Renaming a note
// to its own slug is not a conflict.
func (s *Service) Update(ctx context.Context, noteSlug, viewerID string, form NoteForm) (*Note, error) {
	existing, err := s.GetBySlug(ctx, noteSlug, viewerID)
	if err != nil {
		return nil, err
	}

	newSlug := ResolveSlug(form.Slug, form.Title)
	now := time.Now().UTC()

	_, err = s.db.SQL().ExecContext(ctx, `
		UPDATE notes
		SET title = ?, text = ?, slug = ?, updated_at = ?
		WHERE id = ?
	`, form.Title, form.Text, newSlug, now.Unix(), existing.ID)
	if err != nil {
		if db.IsUniqueConstraintError(err, "notes.slug") {
			return nil, &SlugTakenError{Slug: newSlug}
		}
		return nil, errs.Wrap(errs.Internal, "failed to update note", err)
	}

	existing.Title = form.Title
	existing.Text = form.Text
	existing.Slug = newSlug
	existing.UpdatedAt = now
	return existing, nil
}

// Delete removes the note at noteSlug if viewerID owns it. Deleting an absent
// or foreign note yields ErrNoteNotFound; a repeated delete is a no-op with
// the same outcome.
func (s *Service) Delete(ctx context.Context, noteSlug, viewerID string) error {
	res, err := s.db.SQL().ExecContext(ctx, `
		DELETE FROM notes WHERE slug = ? AND author_id = ?
	`, noteSlug, viewerID)
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to delete note", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// Count returns the total number of notes across all authors.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.SQL().QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "failed to count notes", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (Note, error) {
	var note Note
	var createdAt, updatedAt int64
	err := row.Scan(&note.ID, &note.Title, &note.Text, &note.Slug, &note.AuthorID, &createdAt, &updatedAt)
	if err != nil {
		return Note{}, err
	}
	note.CreatedAt = time.Unix(createdAt, 0).UTC()
	note.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return note, nil
}
