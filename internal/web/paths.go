package web

// Named paths for the application's logical operations. Handlers and
// templates build URLs through these helpers instead of spelling paths
// inline, so an operation name plus its slug argument always resolves to one
// concrete path.
const (
	HomePath      = "/"
	LoginPath     = "/auth/login/"
	LogoutPath    = "/auth/logout/"
	SignupPath    = "/auth/signup/"
	NotesListPath = "/notes/"
	AddNotePath   = "/add/"
	DonePath      = "/done/"
)

// NotePath returns the detail path for a note slug.
func NotePath(slug string) string {
	return "/note/" + slug + "/"
}

// EditNotePath returns the edit path for a note slug.
func EditNotePath(slug string) string {
	return "/edit/" + slug + "/"
}

// DeleteNotePath returns the delete path for a note slug.
func DeleteNotePath(slug string) string {
	return "/delete/" + slug + "/"
}

// LoginNextPath returns the login path with a continuation back to next.
func LoginNextPath(next string) string {
	if next == "" {
		return LoginPath
	}
	return LoginPath + "?next=" + next
}
