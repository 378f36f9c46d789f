package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/slugnotes/internal/auth"
	"github.com/kuitang/slugnotes/internal/notes"
	"github.com/kuitang/slugnotes/internal/ratelimit"
	"github.com/kuitang/slugnotes/internal/testdb"
)

const testTemplatesDir = "../../web/templates"

type testApp struct {
	mux      *http.ServeMux
	users    *auth.UserService
	sessions *auth.SessionService
	notes    *notes.Service
}

func newTestApp(t *testing.T, name string) *testApp {
	t.Helper()

	database, err := testdb.NewInMemory(name)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	renderer, err := NewRenderer(testTemplatesDir)
	require.NoError(t, err)

	app := &testApp{
		mux:      http.NewServeMux(),
		users:    auth.NewUserService(database),
		sessions: auth.NewSessionService(database, auth.SessionDuration),
		notes:    notes.NewService(database),
	}

	// Generous limits so rate limiting never interferes with handler tests.
	limiter := ratelimit.NewRateLimiter(ratelimit.Config{RPS: 1000, Burst: 1000, CleanupInterval: time.Hour})
	t.Cleanup(limiter.Stop)

	handler := NewWebHandler(renderer, app.notes, app.users, app.sessions)
	handler.RegisterRoutes(app.mux, auth.NewMiddleware(app.sessions, LoginPath), limiter)

	return app
}

// loginAs registers a user and returns their ID plus a session cookie.
func (a *testApp) loginAs(t *testing.T, username string) (string, *http.Cookie) {
	t.Helper()

	user, err := a.users.Register(context.Background(), username, "password123")
	require.NoError(t, err)
	sessionID, err := a.sessions.Create(context.Background(), user.ID)
	require.NoError(t, err)

	return user.ID, &http.Cookie{Name: auth.SessionCookieName, Value: sessionID}
}

func (a *testApp) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) post(path string, cookie *http.Cookie, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func noteForm(title, text, slug string) url.Values {
	return url.Values{"title": {title}, "text": {text}, "slug": {slug}}
}

func TestAnonymousRedirectedToLogin(t *testing.T) {
	app := newTestApp(t, "web_anon")

	paths := []string{
		NotesListPath,
		AddNotePath,
		DonePath,
		NotePath("some-note"),
		EditNotePath("some-note"),
		DeleteNotePath("some-note"),
	}

	for _, path := range paths {
		rec := app.get(path, nil)
		assert.Equal(t, http.StatusFound, rec.Code, "path %s", path)
		assert.Equal(t, LoginNextPath(path), rec.Header().Get("Location"), "path %s", path)
	}
}

func TestPublicPages(t *testing.T) {
	app := newTestApp(t, "web_public")

	for _, path := range []string{HomePath, LoginPath, SignupPath, LogoutPath} {
		rec := app.get(path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}

	t.Run("home shows sign in links when anonymous", func(t *testing.T) {
		rec := app.get(HomePath, nil)
		assert.Contains(t, rec.Body.String(), "Sign In")
	})

	t.Run("home shows notes links when signed in", func(t *testing.T) {
		_, cookie := app.loginAs(t, "homer")
		rec := app.get(HomePath, cookie)
		assert.Contains(t, rec.Body.String(), "My Notes")
	})
}

func TestSignup(t *testing.T) {
	app := newTestApp(t, "web_signup")

	t.Run("creates account and signs in", func(t *testing.T) {
		rec := app.post(SignupPath, nil, url.Values{"username": {"alice"}, "password": {"password123"}})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, NotesListPath, rec.Header().Get("Location"))

		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		session := cookies[0]
		assert.Equal(t, auth.SessionCookieName, session.Name)

		// The fresh session grants access to protected pages.
		listRec := app.get(NotesListPath, session)
		assert.Equal(t, http.StatusOK, listRec.Code)
	})

	t.Run("duplicate username re-renders form", func(t *testing.T) {
		rec := app.post(SignupPath, nil, url.Values{"username": {"alice"}, "password": {"password123"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "already exists")
	})

	t.Run("short password re-renders form", func(t *testing.T) {
		rec := app.post(SignupPath, nil, url.Values{"username": {"bob"}, "password": {"short"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "at least 8 characters")
	})
}

func TestLogin(t *testing.T) {
	app := newTestApp(t, "web_login")
	_, err := app.users.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)

	t.Run("success redirects to notes list", func(t *testing.T) {
		rec := app.post(LoginPath, nil, url.Values{"username": {"alice"}, "password": {"password123"}})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, NotesListPath, rec.Header().Get("Location"))
		require.NotEmpty(t, rec.Result().Cookies())
	})

	t.Run("success honors next", func(t *testing.T) {
		rec := app.post(LoginPath, nil, url.Values{
			"username": {"alice"},
			"password": {"password123"},
			"next":     {AddNotePath},
		})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, AddNotePath, rec.Header().Get("Location"))
	})

	t.Run("offsite next falls back to notes list", func(t *testing.T) {
		rec := app.post(LoginPath, nil, url.Values{
			"username": {"alice"},
			"password": {"password123"},
			"next":     {"https://evil.example"},
		})
		assert.Equal(t, NotesListPath, rec.Header().Get("Location"))
	})

	t.Run("bad credentials re-render form", func(t *testing.T) {
		rec := app.post(LoginPath, nil, url.Values{"username": {"alice"}, "password": {"wrong"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Please enter a correct username and password.")
	})

	t.Run("login page carries next into the form", func(t *testing.T) {
		rec := app.get(LoginNextPath(NotesListPath), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `name="next" value="/notes/"`)
	})
}

func TestLogout(t *testing.T) {
	app := newTestApp(t, "web_logout")

	t.Run("post clears session and redirects home", func(t *testing.T) {
		_, cookie := app.loginAs(t, "alice")
		rec := app.post(LogoutPath, cookie, url.Values{})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, HomePath, rec.Header().Get("Location"))

		// The old session no longer works.
		listRec := app.get(NotesListPath, cookie)
		assert.Equal(t, http.StatusFound, listRec.Code)
	})

	t.Run("get renders logged-out page and clears session", func(t *testing.T) {
		_, cookie := app.loginAs(t, "bob")
		rec := app.get(LogoutPath, cookie)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "signed out")

		listRec := app.get(NotesListPath, cookie)
		assert.Equal(t, http.StatusFound, listRec.Code)
	})
}

func TestCreateNote(t *testing.T) {
	app := newTestApp(t, "web_create")
	userID, cookie := app.loginAs(t, "alice")

	t.Run("form page renders", func(t *testing.T) {
		rec := app.get(AddNotePath, cookie)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "New Note")
	})

	t.Run("create with explicit slug", func(t *testing.T) {
		rec := app.post(AddNotePath, cookie, noteForm("Groceries", "milk, eggs", "groceries"))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, DonePath, rec.Header().Get("Location"))

		note, err := app.notes.GetBySlug(context.Background(), "groceries", userID)
		require.NoError(t, err)
		assert.Equal(t, "Groceries", note.Title)
	})

	t.Run("create derives slug from title", func(t *testing.T) {
		rec := app.post(AddNotePath, cookie, noteForm("Weekend Plans", "hiking", ""))
		assert.Equal(t, http.StatusFound, rec.Code)

		detail := app.get(NotePath("weekend-plans"), cookie)
		assert.Equal(t, http.StatusOK, detail.Code)
	})

	t.Run("missing fields re-render with errors", func(t *testing.T) {
		rec := app.post(AddNotePath, cookie, noteForm("", "", "x"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "This field is required.")
	})

	t.Run("duplicate slug re-renders with field error", func(t *testing.T) {
		rec := app.post(AddNotePath, cookie, noteForm("Another", "body", "groceries"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "groceries - already exists, please enter a different value.")

		count, err := app.notes.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("done page renders", func(t *testing.T) {
		rec := app.get(DonePath, cookie)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestNotesListVisibility(t *testing.T) {
	app := newTestApp(t, "web_list")
	_, aliceCookie := app.loginAs(t, "alice")
	_, bobCookie := app.loginAs(t, "bob")

	require.Equal(t, http.StatusFound, app.post(AddNotePath, aliceCookie, noteForm("Alice Note", "a", "alice-note")).Code)
	require.Equal(t, http.StatusFound, app.post(AddNotePath, bobCookie, noteForm("Bob Note", "b", "bob-note")).Code)

	rec := app.get(NotesListPath, aliceCookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Alice Note")
	assert.NotContains(t, body, "Bob Note")
}

func TestNoteDetailOwnership(t *testing.T) {
	app := newTestApp(t, "web_detail")
	_, ownerCookie := app.loginAs(t, "owner")
	_, strangerCookie := app.loginAs(t, "stranger")

	require.Equal(t, http.StatusFound, app.post(AddNotePath, ownerCookie, noteForm("Private", "secret body", "private")).Code)

	t.Run("owner sees the note", func(t *testing.T) {
		rec := app.get(NotePath("private"), ownerCookie)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Private")
	})

	t.Run("stranger gets 404", func(t *testing.T) {
		rec := app.get(NotePath("private"), strangerCookie)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret body")
	})

	t.Run("absent slug gets the same 404", func(t *testing.T) {
		rec := app.get(NotePath("missing"), ownerCookie)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestEditNote(t *testing.T) {
	app := newTestApp(t, "web_edit")
	userID, ownerCookie := app.loginAs(t, "owner")
	_, strangerCookie := app.loginAs(t, "stranger")

	require.Equal(t, http.StatusFound, app.post(AddNotePath, ownerCookie, noteForm("Draft", "first version", "draft")).Code)

	t.Run("edit page prefills the form", func(t *testing.T) {
		rec := app.get(EditNotePath("draft"), ownerCookie)
		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `value="Draft"`)
		assert.Contains(t, body, "first version")
		assert.Contains(t, body, `value="draft"`)
	})

	t.Run("owner updates and is redirected", func(t *testing.T) {
		rec := app.post(EditNotePath("draft"), ownerCookie, noteForm("Final", "second version", "final"))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, DonePath, rec.Header().Get("Location"))

		note, err := app.notes.GetBySlug(context.Background(), "final", userID)
		require.NoError(t, err)
		assert.Equal(t, "Final", note.Title)
		assert.Equal(t, "second version", note.Text)
	})

	t.Run("stranger cannot open or submit the form", func(t *testing.T) {
		rec := app.get(EditNotePath("final"), strangerCookie)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = app.post(EditNotePath("final"), strangerCookie, noteForm("Hijack", "evil", "final"))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		note, err := app.notes.GetBySlug(context.Background(), "final", userID)
		require.NoError(t, err)
		assert.Equal(t, "Final", note.Title)
	})

	t.Run("rename onto a taken slug re-renders with field error", func(t *testing.T) {
		require.Equal(t, http.StatusFound, app.post(AddNotePath, ownerCookie, noteForm("Blocker", "b", "blocker")).Code)

		rec := app.post(EditNotePath("final"), ownerCookie, noteForm("Final", "second version", "blocker"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "blocker - already exists, please enter a different value.")
	})
}

func TestDeleteNote(t *testing.T) {
	app := newTestApp(t, "web_delete")
	userID, ownerCookie := app.loginAs(t, "owner")
	_, strangerCookie := app.loginAs(t, "stranger")

	require.Equal(t, http.StatusFound, app.post(AddNotePath, ownerCookie, noteForm("Doomed", "body", "doomed")).Code)

	t.Run("confirmation page renders", func(t *testing.T) {
		rec := app.get(DeleteNotePath("doomed"), ownerCookie)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Doomed")
	})

	t.Run("stranger cannot delete", func(t *testing.T) {
		rec := app.post(DeleteNotePath("doomed"), strangerCookie, url.Values{})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		_, err := app.notes.GetBySlug(context.Background(), "doomed", userID)
		assert.NoError(t, err)
	})

	t.Run("owner deletes and is redirected", func(t *testing.T) {
		rec := app.post(DeleteNotePath("doomed"), ownerCookie, url.Values{})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, DonePath, rec.Header().Get("Location"))

		_, err := app.notes.GetBySlug(context.Background(), "doomed", userID)
		assert.ErrorIs(t, err, notes.ErrNoteNotFound)
	})

	t.Run("repeated delete is a 404", func(t *testing.T) {
		rec := app.post(DeleteNotePath("doomed"), ownerCookie, url.Values{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("DELETE method works too", func(t *testing.T) {
		require.Equal(t, http.StatusFound, app.post(AddNotePath, ownerCookie, noteForm("Again", "b", "again")).Code)

		req := httptest.NewRequest(http.MethodDelete, DeleteNotePath("again"), nil)
		req.AddCookie(ownerCookie)
		rec := httptest.NewRecorder()
		app.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
	})
}

func TestMarkdownRendering(t *testing.T) {
	app := newTestApp(t, "web_markdown")
	_, cookie := app.loginAs(t, "writer")

	require.Equal(t, http.StatusFound, app.post(AddNotePath, cookie,
		noteForm("Formatted", "# Heading\n\n**bold** <script>alert(1)</script>", "formatted")).Code)

	rec := app.get(NotePath("formatted"), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.NotContains(t, body, "<script>", "scripts must be sanitized away")
}

func TestLoginRateLimited(t *testing.T) {
	database, err := testdb.NewInMemory("web_ratelimit")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	renderer, err := NewRenderer(testTemplatesDir)
	require.NoError(t, err)

	users := auth.NewUserService(database)
	sessions := auth.NewSessionService(database, auth.SessionDuration)
	notesSvc := notes.NewService(database)

	limiter := ratelimit.NewRateLimiter(ratelimit.Config{RPS: 0.1, Burst: 2, CleanupInterval: time.Hour})
	t.Cleanup(limiter.Stop)

	mux := http.NewServeMux()
	handler := NewWebHandler(renderer, notesSvc, users, sessions)
	handler.RegisterRoutes(mux, auth.NewMiddleware(sessions, LoginPath), limiter)

	form := url.Values{"username": {"nobody"}, "password": {"whatever"}}
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, LoginPath, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "10.0.0.1:12345"
		last = httptest.NewRecorder()
		mux.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}
