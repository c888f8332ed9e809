// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/churchdash/internal/guard"
	"github.com/hitoshi/churchdash/internal/hub"
	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/middleware"
	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/roles"
)

// ClientHub は認証ハンドラーが必要とするクライアント管理のインターフェース。
// hub.Hubが実装する。
type ClientHub interface {
	Open(ctx context.Context) (*hub.Client, error)
	Attach(c *hub.Client) error
	Release(c *hub.Client)
	Remove(sid string)
}

// TokenSigner はセッションIDをCookie用のトークンに変換する。
// auth.TokenSignerが実装する。
type TokenSigner interface {
	Sign(sessionID string, expiresAt time.Time) (string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookie        middleware.SessionConfig
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインイン・登録・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	clients ClientHub
	tokens  TokenSigner
	guard   *guard.Guard
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(clients ClientHub, tokens TokenSigner, g *guard.Guard, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		clients: clients,
		tokens:  tokens,
		guard:   g,
		config:  config,
	}
}

// loginRequest はサインインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// signupRequest は登録リクエストのボディ。
type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"required,max=200"`
}

// loginResponse はサインイン成功時のレスポンス。
// Redirectはロールの既定画面。
type loginResponse struct {
	Identity *identityResponse `json:"identity"`
	Redirect string            `json:"redirect"`
}

// Login はメールアドレスとパスワードでサインインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if apiErr := decodeRequest(w, r, &req); apiErr != nil {
		middleware.WriteError(w, r, apiErr)
		return
	}

	c, err := h.clients.Open(r.Context())
	if err != nil {
		slog.Error("failed to open client", slog.String("error", err.Error()))
		middleware.WriteError(w, r, model.NewNetworkFailureError())
		return
	}

	if err := c.Session().SignIn(r.Context(), req.Email, req.Password); err != nil {
		// 認証後にプロフィールの解決で失敗した場合は作成済みのセッションを破棄する
		if signOutErr := c.Session().SignOut(r.Context()); signOutErr != nil {
			slog.Error("failed to revoke session after sign-in failure", slog.String("error", signOutErr.Error()))
		}
		h.clients.Release(c)
		middleware.WriteErr(w, r, err)
		return
	}

	if err := h.clients.Attach(c); err != nil {
		h.clients.Release(c)
		slog.Error("failed to attach client", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, r)
		return
	}

	expiresAt := time.Now().Add(time.Duration(h.config.SessionMaxAge) * time.Second)
	token, err := h.tokens.Sign(c.SessionID(), expiresAt)
	if err != nil {
		h.clients.Remove(c.SessionID())
		slog.Error("failed to sign session token", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, r)
		return
	}
	middleware.SetSessionCookie(w, token, expiresAt, h.config.Cookie)

	snap := c.Session().Snapshot()
	l, _ := i18n.FromContext(r.Context())
	writeJSON(w, http.StatusOK, loginResponse{
		Identity: toIdentityResponse(l, snap.Identity),
		Redirect: h.guard.Decide(roles.LoginPath, snap.Identity).Target,
	})
}

// Signup は認証情報を登録する。サインインは行わない。
// プロフィールは初回サインイン時に新来者として作成される。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if apiErr := decodeRequest(w, r, &req); apiErr != nil {
		middleware.WriteError(w, r, apiErr)
		return
	}

	c, err := h.clients.Open(r.Context())
	if err != nil {
		slog.Error("failed to open client", slog.String("error", err.Error()))
		middleware.WriteError(w, r, model.NewNetworkFailureError())
		return
	}
	defer h.clients.Release(c)

	if err := c.Session().SignUp(r.Context(), req.Email, req.Password, req.FullName); err != nil {
		middleware.WriteErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// Logout はサインアウトし、セッションCookieを削除する。
// 外部セッションの破棄に失敗してもCookieは削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c := middleware.ClientFromContext(r.Context()); c != nil {
		sid := c.SessionID()
		if err := c.Session().SignOut(r.Context()); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
		h.clients.Remove(sid)
	}

	middleware.ClearSessionCookie(w, h.config.Cookie)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のサインインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	snap := middleware.SnapshotFromContext(r.Context())
	if !snap.SignedIn() {
		middleware.WriteError(w, r, model.NewNotAuthenticatedError())
		return
	}

	l, _ := i18n.FromContext(r.Context())
	writeJSON(w, http.StatusOK, toIdentityResponse(l, snap.Identity))
}
