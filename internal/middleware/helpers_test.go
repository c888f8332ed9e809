package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/churchdash/internal/auth"
	"github.com/hitoshi/churchdash/internal/hub"
	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/repository/repotest"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

// testHub は実際の認証サービスとメモリ上のリポジトリで構成したHub。
type testHub struct {
	hub      *hub.Hub
	signer   *auth.TokenSigner
	profiles *repotest.Profiles
	sessions *repotest.Sessions
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	creds := repotest.NewCredentials()
	sessions := repotest.NewSessions()
	profiles := repotest.NewProfiles()
	svc := auth.NewService(creds, sessions, auth.ServiceConfig{SessionMaxAge: 3600, BcryptCost: bcrypt.MinCost})

	h := hub.New(svc, profiles, discardLogger(), hub.Config{IdleTTL: time.Hour, CleanupInterval: time.Hour})
	t.Cleanup(h.Stop)

	if _, err := svc.Register(context.Background(), "ada@example.com", "password123", "Ada Lovelace"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return &testHub{
		hub:      h,
		signer:   auth.NewTokenSigner(testSecret, "churchdash-test"),
		profiles: profiles,
		sessions: sessions,
	}
}

// signIn はサインインしたクライアントとセッションCookieの値を返す。
func (th *testHub) signIn(t *testing.T) (*hub.Client, string) {
	t.Helper()
	ctx := context.Background()
	c, err := th.hub.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := c.Session().SignIn(ctx, "ada@example.com", "password123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if err := th.hub.Attach(c); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	token, err := th.signer.Sign(c.SessionID(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return c, token
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadCatalog(t *testing.T) *i18n.Catalog {
	t.Helper()
	c, err := i18n.LoadEmbedded(i18n.DefaultLanguage)
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	return c
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
