package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/churchdash/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	Secret       []byte
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はCSRFトークンの検証ミドルウェアを返す。
// トークンは端末IDのHMACで、端末ごとに固定される。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証をスキップし、トークンCookieを設定する。
// 状態変更メソッドはX-CSRF-Tokenヘッダーのトークンが端末IDと一致することを必須とする。
// DeviceMiddlewareの後に配置すること。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := DeviceIDFromContext(r.Context())

			if isSafeMethod(r.Method) {
				if deviceID != "" {
					ensureCSRFCookie(w, r, config, csrfToken(config.Secret, deviceID))
				}
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get(csrfHeaderName)
			if deviceID == "" || headerToken == "" {
				slog.Warn("CSRF validation failed: missing token",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteError(w, r, model.NewCSRFRejectedError())
				return
			}

			expected := csrfToken(config.Secret, deviceID)
			if !hmac.Equal([]byte(headerToken), []byte(expected)) {
				slog.Warn("CSRF validation failed: token mismatch",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteError(w, r, model.NewCSRFRejectedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/csrf-token
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := DeviceIDFromContext(r.Context())
		if deviceID == "" {
			slog.Error("device ID missing for CSRF token request")
			WriteInternalServerError(w, r)
			return
		}

		token := csrfToken(config.Secret, deviceID)
		ensureCSRFCookie(w, r, config, token)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	})
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ensureCSRFCookie はCSRFトークンCookieが未設定または古い場合に設定する。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig, token string) {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value == token {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   deviceCookieMaxAge,
		HttpOnly: false, // フロントエンドから読み取り可能
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// csrfToken は端末IDに対するCSRFトークンを導出する。
func csrfToken(secret []byte, deviceID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("csrf:" + deviceID))
	return hex.EncodeToString(mac.Sum(nil))
}
