package notes

import "regexp"

// NoteForm holds user-submitted note fields. Only validated forms reach the
// storage layer.
type NoteForm struct {
	Title string
	Text  string
	Slug  string // optional; derived from Title when empty
}

// FieldErrors maps form field names to validation messages.
type FieldErrors map[string]string

// HasErrors reports whether any field failed validation.
func (fe FieldErrors) HasErrors() bool {
	return len(fe) > 0
}

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// ParseNoteForm validates raw form values and returns the form plus any
// field-level errors. A returned error map is empty on success.
func ParseNoteForm(title, text, slugValue string) (NoteForm, FieldErrors) {
	form := NoteForm{Title: title, Text: text, Slug: slugValue}
	fieldErrs := FieldErrors{}

	if form.Title == "" {
		fieldErrs["title"] = "This field is required."
	}
	if form.Text == "" {
		fieldErrs["text"] = "This field is required."
	}
	if form.Slug != "" {
		if len(form.Slug) > MaxSlugLength {
			fieldErrs["slug"] = "Ensure this value has at most 100 characters."
		} else if !slugPattern.MatchString(form.Slug) {
			fieldErrs["slug"] = "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
		}
	}

	return form, fieldErrs
}
