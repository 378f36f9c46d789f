package notes

import (
	"strings"

	"github.com/gosimple/slug"
)

// MaxSlugLength bounds derived slugs. User-supplied slugs are validated
// against the same limit in ParseNoteForm.
const MaxSlugLength = 100

// Slugify derives a URL-safe slug from a title: Unicode text is
// transliterated to ASCII, lowercased, non-alphanumerics stripped, and words
// joined with hyphens. The transform is deterministic and idempotent.
func Slugify(title string) string {
	s := slug.Make(title)
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-_")
	}
	return s
}

// ResolveSlug returns the candidate slug verbatim when present, otherwise a
// slug derived from the title. Uniqueness is not checked here; the repository
// enforces it at write time.
func ResolveSlug(candidate, title string) string {
	if c := strings.TrimSpace(candidate); c != "" {
		return c
	}
	return Slugify(title)
}
