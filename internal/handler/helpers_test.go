package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/churchdash/internal/auth"
	"github.com/hitoshi/churchdash/internal/guard"
	"github.com/hitoshi/churchdash/internal/hub"
	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/metrics"
	"github.com/hitoshi/churchdash/internal/middleware"
	"github.com/hitoshi/churchdash/internal/prefs"
	"github.com/hitoshi/churchdash/internal/repository/repotest"
	"github.com/hitoshi/churchdash/internal/roles"
	"github.com/hitoshi/churchdash/internal/session"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

// mockHealthChecker はHealthCheckerのモック。
type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.pingFn(ctx)
}

// testServer は実際のHubとメモリ上のリポジトリで構成したルーターを起動する。
type testServer struct {
	*httptest.Server
	hub      *hub.Hub
	profiles *repotest.Profiles
	sessions *repotest.Sessions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	creds := repotest.NewCredentials()
	sessions := repotest.NewSessions()
	profiles := repotest.NewProfiles()
	svc := auth.NewService(creds, sessions, auth.ServiceConfig{SessionMaxAge: 3600, BcryptCost: bcrypt.MinCost})
	if _, err := svc.Register(context.Background(), "ada@example.com", "password123", "Ada Lovelace"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	catalog, err := i18n.LoadEmbedded(i18n.DefaultLanguage)
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	h := hub.New(svc, profiles, discardLogger(), hub.Config{IdleTTL: time.Hour, CleanupInterval: time.Hour},
		hub.WithObserver(collector),
		hub.WithStoreOptions(session.WithRecorder(collector)))
	t.Cleanup(h.Stop)

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, 1000))
	t.Cleanup(rl.Stop)

	registry := roles.Default()
	router := NewRouter(&RouterDeps{
		Logger:            discardLogger(),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Metrics:           collector,
		Gatherer:          reg,
		HealthChecker: &mockHealthChecker{pingFn: func(ctx context.Context) error {
			return nil
		}},
		Hub:           h,
		Tokens:        auth.NewTokenSigner(testSecret, "churchdash-test"),
		SessionMaxAge: 3600,
		CSRFSecret:    []byte(testSecret),
		Catalog:       catalog,
		Prefs:         prefs.NewMemoryStore(time.Hour),
		Registry:      registry,
		Guard:         guard.New(registry),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, hub: h, profiles: profiles, sessions: sessions}
}

// browser はCookieを保持し、リダイレクトを追わないHTTPクライアント。
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
	csrf   string
}

func newBrowser(t *testing.T, srv *testServer) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	return &browser{
		t:    t,
		base: srv.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(method, path string, body any, header http.Header) *http.Response {
	b.t.Helper()
	var r io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			r = bytes.NewBufferString(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				b.t.Fatalf("json.Marshal() error = %v", err)
			}
			r = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, b.base+path, r)
	if err != nil {
		b.t.Fatalf("http.NewRequest() error = %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if b.csrf != "" {
		req.Header.Set("X-CSRF-Token", b.csrf)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s error = %v", method, path, err)
	}
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (b *browser) get(path string) *http.Response {
	return b.do(http.MethodGet, path, nil, nil)
}

// fetchCSRF はCSRFトークンを取得し、以降のリクエストに付与する。
func (b *browser) fetchCSRF() {
	b.t.Helper()
	resp := b.get("/api/csrf-token")
	if resp.StatusCode != http.StatusOK {
		b.t.Fatalf("csrf-token status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(b.t, resp, &body)
	if body.Token == "" {
		b.t.Fatal("csrf token is empty")
	}
	b.csrf = body.Token
}

func (b *browser) login(email, password string) *http.Response {
	return b.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, nil)
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
}

func decodeError(t *testing.T, resp *http.Response) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	decodeBody(t, resp, &body)
	return body
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
