package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kuitang/slugnotes/internal/auth"
	"github.com/kuitang/slugnotes/internal/errs"
	"github.com/kuitang/slugnotes/internal/notes"
	"github.com/kuitang/slugnotes/internal/obs"
	"github.com/kuitang/slugnotes/internal/ratelimit"
)

// WebHandler provides HTTP handlers for web UI pages.
type WebHandler struct {
	renderer       *Renderer
	notesService   *notes.Service
	userService    *auth.UserService
	sessionService *auth.SessionService
}

// NewWebHandler creates a new web handler.
func NewWebHandler(
	renderer *Renderer,
	notesService *notes.Service,
	userService *auth.UserService,
	sessionService *auth.SessionService,
) *WebHandler {
	return &WebHandler{
		renderer:       renderer,
		notesService:   notesService,
		userService:    userService,
		sessionService: sessionService,
	}
}

// RegisterRoutes registers all web UI routes on the given mux.
// Credential POSTs go through the rate limiter; pages that require an
// identity go through RequireAuthWithRedirect so anonymous callers are sent
// to the login page with a continuation parameter.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, limiter *ratelimit.RateLimiter) {
	// Public pages
	mux.Handle("GET /{$}", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleHome)))
	mux.HandleFunc("GET /auth/login/{$}", h.HandleLoginPage)
	mux.Handle("POST /auth/login/{$}", ratelimit.Middleware(limiter, http.HandlerFunc(h.HandleLogin)))
	mux.HandleFunc("GET /auth/logout/{$}", h.HandleLogoutPage)
	mux.HandleFunc("POST /auth/logout/{$}", h.HandleLogout)
	mux.HandleFunc("GET /auth/signup/{$}", h.HandleSignupPage)
	mux.Handle("POST /auth/signup/{$}", ratelimit.Middleware(limiter, http.HandlerFunc(h.HandleSignup)))

	// Notes CRUD (auth required - redirect to login with next parameter)
	mux.Handle("GET /notes/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleNotesList)))
	mux.Handle("GET /add/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleAddNotePage)))
	mux.Handle("POST /add/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleCreateNote)))
	mux.Handle("GET /done/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleDone)))
	mux.Handle("GET /note/{slug}/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleNoteDetail)))
	mux.Handle("GET /edit/{slug}/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleEditNotePage)))
	mux.Handle("POST /edit/{slug}/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleUpdateNote)))
	mux.Handle("GET /delete/{slug}/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleDeleteNotePage)))
	mux.Handle("POST /delete/{slug}/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleDeleteNote)))
	mux.Handle("DELETE /delete/{slug}/{$}", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleDeleteNote)))
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title string
	User  *auth.User
	Error string
}

// NotesListData contains data for the notes list page.
type NotesListData struct {
	PageData
	Notes []notes.Note
}

// NoteViewData contains data for the note detail and delete pages.
type NoteViewData struct {
	PageData
	Note *notes.Note
}

// NoteFormData contains data for the create and edit forms.
type NoteFormData struct {
	PageData
	Form        notes.NoteForm
	FieldErrors notes.FieldErrors
	Action      string
	IsEdit      bool
}

// LoginPageData contains data for the login page.
type LoginPageData struct {
	PageData
	Next     string
	Username string
}

// SignupPageData contains data for the signup page.
type SignupPageData struct {
	PageData
	Username string
}

// currentUser returns the authenticated user for the request, or nil.
func (h *WebHandler) currentUser(r *http.Request) *auth.User {
	userID := auth.GetUserID(r.Context())
	if userID == "" {
		return nil
	}
	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		obs.From(r.Context()).Warn("failed to load current user", "error", err)
		return &auth.User{ID: userID}
	}
	return user
}

// renderNoteNotFound answers 404 for an absent slug and for another user's
// slug alike, so existence of foreign notes is not observable.
func (h *WebHandler) renderNoteNotFound(w http.ResponseWriter) {
	h.renderer.RenderError(w, http.StatusNotFound, "Note not found")
}

// renderFailure logs an unexpected error and renders the error page with the
// status its code maps to. The raw error never reaches the response body.
func (h *WebHandler) renderFailure(w http.ResponseWriter, r *http.Request, err error, message string) {
	obs.From(r.Context()).Error(message, "error", err)
	h.renderer.RenderError(w, errs.HTTPStatus(errs.CodeOf(err)), message)
}

// Handler implementations

// HandleHome handles GET / - shows the home page.
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title: "Your notes, one slug away",
		User:  h.currentUser(r),
	}

	if err := h.renderer.Render(w, "home.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleLoginPage handles GET /auth/login/ - shows the login page.
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := LoginPageData{
		PageData: PageData{
			Title: "Sign In",
		},
		Next: r.URL.Query().Get("next"),
	}

	if err := h.renderer.Render(w, "auth/login.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleLogin handles POST /auth/login/ - verifies credentials and starts a
// session, then redirects to the continuation path when one was carried
// through the form.
func (h *WebHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	next := r.FormValue("next")

	user, err := h.userService.VerifyLogin(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			data := LoginPageData{
				PageData: PageData{
					Title: "Sign In",
					Error: "Please enter a correct username and password.",
				},
				Next:     next,
				Username: username,
			}
			if err := h.renderer.Render(w, "auth/login.html", data); err != nil {
				http.Error(w, "Failed to render page", http.StatusInternalServerError)
			}
			return
		}
		h.renderFailure(w, r, err, "Failed to sign in")
		return
	}

	sessionID, err := h.sessionService.Create(r.Context(), user.ID)
	if err != nil {
		h.renderFailure(w, r, err, "Failed to create session")
		return
	}
	h.sessionService.SetCookie(w, sessionID)

	http.Redirect(w, r, safeNextPath(next), http.StatusFound)
}

// HandleLogoutPage handles GET /auth/logout/ - clears the session and shows
// a logged-out page.
func (h *WebHandler) HandleLogoutPage(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)

	data := PageData{
		Title: "Signed Out",
	}
	if err := h.renderer.Render(w, "auth/logout.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleLogout handles POST /auth/logout/ - clears the session and redirects home.
func (h *WebHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	http.Redirect(w, r, HomePath, http.StatusFound)
}

func (h *WebHandler) endSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := auth.GetFromRequest(r)
	if err == nil {
		_ = h.sessionService.Delete(r.Context(), sessionID)
	}
	auth.ClearCookie(w)
}

// HandleSignupPage handles GET /auth/signup/ - shows the signup page.
func (h *WebHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	data := SignupPageData{
		PageData: PageData{
			Title: "Create Account",
		},
	}

	if err := h.renderer.Render(w, "auth/signup.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleSignup handles POST /auth/signup/ - creates the account and logs the
// new user straight in.
func (h *WebHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := h.userService.Register(r.Context(), username, password)
	if err != nil {
		message := "Failed to create account"
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			message = "A user with that username already exists."
		case errors.Is(err, auth.ErrWeakPassword):
			message = "Password must be at least 8 characters."
		}
		data := SignupPageData{
			PageData: PageData{
				Title: "Create Account",
				Error: message,
			},
			Username: username,
		}
		if err := h.renderer.Render(w, "auth/signup.html", data); err != nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
		return
	}

	sessionID, err := h.sessionService.Create(r.Context(), user.ID)
	if err != nil {
		h.renderFailure(w, r, err, "Failed to create session")
		return
	}
	h.sessionService.SetCookie(w, sessionID)

	http.Redirect(w, r, NotesListPath, http.StatusFound)
}

// HandleNotesList handles GET /notes/ - shows the author's notes in creation order.
func (h *WebHandler) HandleNotesList(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	noteList, err := h.notesService.ListForAuthor(r.Context(), userID)
	if err != nil {
		h.renderFailure(w, r, err, "Failed to load notes")
		return
	}

	data := NotesListData{
		PageData: PageData{
			Title: "My Notes",
			User:  h.currentUser(r),
		},
		Notes: noteList,
	}

	if err := h.renderer.Render(w, "notes/list.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleAddNotePage handles GET /add/ - shows the new note form.
func (h *WebHandler) HandleAddNotePage(w http.ResponseWriter, r *http.Request) {
	data := NoteFormData{
		PageData: PageData{
			Title: "New Note",
			User:  h.currentUser(r),
		},
		Action: AddNotePath,
	}

	if err := h.renderer.Render(w, "notes/form.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleCreateNote handles POST /add/ - creates a new note.
func (h *WebHandler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	form, fieldErrs := notes.ParseNoteForm(r.FormValue("title"), r.FormValue("text"), r.FormValue("slug"))
	if fieldErrs.HasErrors() {
		h.renderNoteForm(w, r, "New Note", AddNotePath, false, form, fieldErrs)
		return
	}

	userID := auth.GetUserID(r.Context())
	_, err := h.notesService.Create(r.Context(), userID, form)
	if err != nil {
		var slugErr *notes.SlugTakenError
		if errors.As(err, &slugErr) {
			fieldErrs["slug"] = slugErr.Error()
			h.renderNoteForm(w, r, "New Note", AddNotePath, false, form, fieldErrs)
			return
		}
		h.renderFailure(w, r, err, "Failed to create note")
		return
	}

	http.Redirect(w, r, DonePath, http.StatusFound)
}

// HandleDone handles GET /done/ - the success acknowledgement page.
func (h *WebHandler) HandleDone(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title: "Done",
		User:  h.currentUser(r),
	}

	if err := h.renderer.Render(w, "notes/done.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleNoteDetail handles GET /note/{slug}/ - shows a note to its owner.
func (h *WebHandler) HandleNoteDetail(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}

	data := NoteViewData{
		PageData: PageData{
			Title: note.Title,
			User:  h.currentUser(r),
		},
		Note: note,
	}

	if err := h.renderer.Render(w, "notes/detail.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleEditNotePage handles GET /edit/{slug}/ - shows the edit form.
func (h *WebHandler) HandleEditNotePage(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}

	form := notes.NoteForm{
		Title: note.Title,
		Text:  note.Text,
		Slug:  note.Slug,
	}
	h.renderNoteForm(w, r, "Edit: "+note.Title, EditNotePath(note.Slug), true, form, notes.FieldErrors{})
}

// HandleUpdateNote handles POST /edit/{slug}/ - updates a note.
func (h *WebHandler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	noteSlug := r.PathValue("slug")

	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	form, fieldErrs := notes.ParseNoteForm(r.FormValue("title"), r.FormValue("text"), r.FormValue("slug"))
	if fieldErrs.HasErrors() {
		h.renderNoteForm(w, r, "Edit Note", EditNotePath(noteSlug), true, form, fieldErrs)
		return
	}

	userID := auth.GetUserID(r.Context())
	_, err := h.notesService.Update(r.Context(), noteSlug, userID, form)
	if err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			h.renderNoteNotFound(w)
			return
		}
		var slugErr *notes.SlugTakenError
		if errors.As(err, &slugErr) {
			fieldErrs["slug"] = slugErr.Error()
			h.renderNoteForm(w, r, "Edit Note", EditNotePath(noteSlug), true, form, fieldErrs)
			return
		}
		h.renderFailure(w, r, err, "Failed to update note")
		return
	}

	http.Redirect(w, r, DonePath, http.StatusFound)
}

// HandleDeleteNotePage handles GET /delete/{slug}/ - shows the confirmation page.
func (h *WebHandler) HandleDeleteNotePage(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}

	data := NoteViewData{
		PageData: PageData{
			Title: "Delete: " + note.Title,
			User:  h.currentUser(r),
		},
		Note: note,
	}

	if err := h.renderer.Render(w, "notes/delete.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleDeleteNote handles POST and DELETE /delete/{slug}/ - deletes a note.
func (h *WebHandler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	noteSlug := r.PathValue("slug")
	userID := auth.GetUserID(r.Context())

	if err := h.notesService.Delete(r.Context(), noteSlug, userID); err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			h.renderNoteNotFound(w)
			return
		}
		h.renderFailure(w, r, err, "Failed to delete note")
		return
	}

	http.Redirect(w, r, DonePath, http.StatusFound)
}

// ownedNote loads the note at the request's slug on behalf of the caller.
// On failure it writes the 404 page and returns ok=false.
func (h *WebHandler) ownedNote(w http.ResponseWriter, r *http.Request) (*notes.Note, bool) {
	noteSlug := r.PathValue("slug")
	userID := auth.GetUserID(r.Context())

	note, err := h.notesService.GetBySlug(r.Context(), noteSlug, userID)
	if err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			h.renderNoteNotFound(w)
		} else {
			h.renderFailure(w, r, err, "Failed to load note")
		}
		return nil, false
	}
	return note, true
}

func (h *WebHandler) renderNoteForm(w http.ResponseWriter, r *http.Request, title, action string, isEdit bool, form notes.NoteForm, fieldErrs notes.FieldErrors) {
	data := NoteFormData{
		PageData: PageData{
			Title: title,
			User:  h.currentUser(r),
		},
		Form:        form,
		FieldErrors: fieldErrs,
		Action:      action,
		IsEdit:      isEdit,
	}

	if err := h.renderer.Render(w, "notes/form.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// safeNextPath keeps login redirects on-site: only rooted paths are honored,
// anything else falls back to the notes list.
func safeNextPath(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return NotesListPath
}
