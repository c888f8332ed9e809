package handler

import (
	"net/http"
	"testing"
	"time"
)

func TestPageHandler(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name         string
		signedIn     bool
		path         string
		lang         string
		wantStatus   int
		wantLocation string
		wantTitle    string
	}{
		{name: "未サインインのサインイン画面", path: "/login", wantStatus: http.StatusOK, wantTitle: "Sign in"},
		{name: "未サインインのサインイン画面（仏語）", path: "/login", lang: "fr", wantStatus: http.StatusOK, wantTitle: "Connexion"},
		{name: "未サインインの保護画面", path: "/member/dashboard", wantStatus: http.StatusFound, wantLocation: "/login"},
		{name: "未サインインのルート", path: "/", wantStatus: http.StatusFound, wantLocation: "/login"},
		{name: "サインイン済みのサインイン画面", signedIn: true, path: "/login", wantStatus: http.StatusFound, wantLocation: "/newcomer/dashboard"},
		{name: "サインイン済みのルート", signedIn: true, path: "/", wantStatus: http.StatusFound, wantLocation: "/newcomer/dashboard"},
		{name: "メニューの画面", signedIn: true, path: "/newcomer/welcome", wantStatus: http.StatusOK, wantTitle: "Welcome"},
		{name: "プロフィール画面", signedIn: true, path: "/profile", wantStatus: http.StatusOK, wantTitle: "My Profile"},
		{name: "他ロールの画面", signedIn: true, path: "/pastor/users", wantStatus: http.StatusFound, wantLocation: "/newcomer/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBrowser(t, srv)
			if tt.signedIn {
				b.login("ada@example.com", "password123")
			}
			var header http.Header
			if tt.lang != "" {
				header = http.Header{"Accept-Language": {tt.lang}}
			}
			resp := b.do(http.MethodGet, tt.path, nil, header)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if loc := resp.Header.Get("Location"); loc != tt.wantLocation {
				t.Errorf("Location = %q, want %q", loc, tt.wantLocation)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got pageResponse
			decodeBody(t, resp, &got)
			if got.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", got.Title, tt.wantTitle)
			}
			if tt.signedIn && len(got.Navigation) == 0 {
				t.Error("navigation is empty for signed-in page")
			}
			if !tt.signedIn && got.Identity != nil {
				t.Errorf("identity = %+v, want nil", got.Identity)
			}
		})
	}
}

func TestPageHandler_RoleChangeRedirects(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	resp := b.login("ada@example.com", "password123")
	var login loginResponse
	decodeBody(t, resp, &login)

	resp = b.get("/newcomer/welcome")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status before role change = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	srv.profiles.SetRole(login.Identity.ID, "member")
	srv.hub.NotifyUser(login.Identity.ID)

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp = b.get("/newcomer/welcome")
		if resp.StatusCode == http.StatusFound {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status after role change = %d, want %d", resp.StatusCode, http.StatusFound)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if loc := resp.Header.Get("Location"); loc != "/member/dashboard" {
		t.Errorf("Location = %q, want /member/dashboard", loc)
	}
}
