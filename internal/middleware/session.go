// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/churchdash/internal/auth"
	"github.com/hitoshi/churchdash/internal/guard"
	"github.com/hitoshi/churchdash/internal/hub"
)

const sessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var clientContextKey = contextKey("client")

// ClientResolver はセッションIDからクライアントを取得する。
// hub.Hubが実装する。
type ClientResolver interface {
	Resume(ctx context.Context, sid string) (*hub.Client, error)
}

// TokenParser はセッションCookieの値を検証してセッションIDを取り出す。
// auth.TokenSignerが実装する。
type TokenParser interface {
	Parse(token string) (string, error)
}

// SessionConfig はセッションCookieの設定を保持する。
type SessionConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewSessionMiddleware はセッションCookieからクライアントを復元し、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、または無効な場合は未サインインとして処理を続ける。
// アクセス可否の判定はガードミドルウェアとRequireIdentityが行う。
func NewSessionMiddleware(clients ClientResolver, tokens TokenParser, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sid, err := tokens.Parse(cookie.Value)
			if err != nil {
				ClearSessionCookie(w, config)
				next.ServeHTTP(w, r)
				return
			}

			c, err := clients.Resume(r.Context(), sid)
			if err != nil {
				if errors.Is(err, auth.ErrSessionNotFound) {
					ClearSessionCookie(w, config)
				} else {
					slog.Error("failed to resume session",
						slog.String("error", err.Error()),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := ContextWithClient(r.Context(), c)
			annotateUserID(ctx, c.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetSessionCookie はセッショントークンをHTTP Only Cookieに設定する。
// Cookieの有効期限はトークンの有効期限と揃える。
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, config SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClientFromContext はリクエストコンテキストからクライアントを取得する。
// サインインしていないリクエストではnilを返す。
func ClientFromContext(ctx context.Context) *hub.Client {
	c, _ := ctx.Value(clientContextKey).(*hub.Client)
	return c
}

// ContextWithClient はコンテキストにクライアントを注入する。
func ContextWithClient(ctx context.Context, c *hub.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, c)
}

// SnapshotFromContext はリクエストのセッション状態を返す。
// クライアントがない場合は解決済みの未サインイン状態を返す。
func SnapshotFromContext(ctx context.Context) guard.Snapshot {
	c := ClientFromContext(ctx)
	if c == nil {
		return guard.Snapshot{}
	}
	return c.Session().Snapshot()
}

// UserIDFromContext はリクエストコンテキストからサインイン中のユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	snap := SnapshotFromContext(ctx)
	if snap.Identity == nil || snap.Identity.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return snap.Identity.ID, nil
}
