package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/churchdash/internal/hub"
)

// mockResolver はClientResolverのモック。
type mockResolver struct {
	resumeFn func(ctx context.Context, sid string) (*hub.Client, error)
}

func (m *mockResolver) Resume(ctx context.Context, sid string) (*hub.Client, error) {
	return m.resumeFn(ctx, sid)
}

func TestSessionMiddleware_NoCookieIsAnonymous(t *testing.T) {
	th := newTestHub(t)
	mw := NewSessionMiddleware(th.hub, th.signer, SessionConfig{})

	var client *hub.Client
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		client = ClientFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if !called {
		t.Fatal("expected next handler to be called")
	}
	if client != nil {
		t.Error("expected no client for anonymous request")
	}
	if findCookie(w.Result(), sessionCookieName) != nil {
		t.Error("anonymous request must not touch the session cookie")
	}
}

func TestSessionMiddleware_ValidCookieInjectsClient(t *testing.T) {
	th := newTestHub(t)
	signedIn, token := th.signIn(t)
	mw := NewSessionMiddleware(th.hub, th.signer, SessionConfig{})

	var got *hub.Client
	var userID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientFromContext(r.Context())
		userID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != signedIn {
		t.Fatal("expected the signed-in client in context")
	}
	if userID != signedIn.UserID() || userID == "" {
		t.Errorf("UserIDFromContext() = %q, want %q", userID, signedIn.UserID())
	}
}

func TestSessionMiddleware_InvalidTokenClearsCookie(t *testing.T) {
	th := newTestHub(t)
	mw := NewSessionMiddleware(th.hub, th.signer, SessionConfig{})

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if ClientFromContext(r.Context()) != nil {
			t.Error("expected no client for invalid token")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "not-a-jwt"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("expected next handler to be called")
	}
	cookie := findCookie(w.Result(), sessionCookieName)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Errorf("expected session cookie to be cleared, got %+v", cookie)
	}
}

func TestSessionMiddleware_RevokedSessionClearsCookie(t *testing.T) {
	th := newTestHub(t)
	mw := NewSessionMiddleware(th.hub, th.signer, SessionConfig{})

	token, err := th.signer.Sign("revoked-session", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	handler := mw(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	cookie := findCookie(w.Result(), sessionCookieName)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Errorf("expected session cookie to be cleared, got %+v", cookie)
	}
}

func TestSessionMiddleware_ResolverFailureKeepsCookie(t *testing.T) {
	th := newTestHub(t)
	resolver := &mockResolver{
		resumeFn: func(ctx context.Context, sid string) (*hub.Client, error) {
			return nil, errors.New("database unavailable")
		},
	}
	mw := NewSessionMiddleware(resolver, th.signer, SessionConfig{})

	token, _ := th.signer.Sign("some-session", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	w := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if findCookie(w.Result(), sessionCookieName) != nil {
		t.Error("a transient failure must not clear the session cookie")
	}
}

func TestSetSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, "token-value", time.Now().Add(time.Hour), SessionConfig{CookieSecure: true, CookieDomain: "example.com"})

	cookie := findCookie(w.Result(), sessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie attributes = %+v", cookie)
	}
	if cookie.Value != "token-value" || cookie.Domain != "example.com" {
		t.Errorf("cookie = %+v", cookie)
	}
	if cookie.MaxAge <= 0 || cookie.MaxAge > 3600 {
		t.Errorf("MaxAge = %d, want within an hour", cookie.MaxAge)
	}
}

func TestSnapshotFromContext_Anonymous(t *testing.T) {
	snap := SnapshotFromContext(context.Background())
	if snap.Loading || snap.Identity != nil {
		t.Errorf("snapshot = %+v, want resolved anonymous", snap)
	}
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for anonymous context")
	}
}
