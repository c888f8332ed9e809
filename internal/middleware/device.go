package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const deviceCookieName = "device_id"

// deviceCookieMaxAge は端末IDのCookieの有効期間（400日）。
const deviceCookieMaxAge = 400 * 24 * 60 * 60

var deviceIDContextKey = contextKey("device_id")

// DeviceConfig は端末ID Cookieの設定を保持する。
type DeviceConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewDeviceMiddleware はブラウザを識別する端末IDをCookieで払い出すミドルウェアを返す。
// 端末IDは言語設定の保存とCSRFトークンの導出に使う。サインイン状態とは無関係に維持される。
func NewDeviceMiddleware(config DeviceConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := ""
			if cookie, err := r.Cookie(deviceCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					deviceID = id.String()
				}
			}

			if deviceID == "" {
				deviceID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     deviceCookieName,
					Value:    deviceID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   deviceCookieMaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithDeviceID(r.Context(), deviceID)))
		})
	}
}

// DeviceIDFromContext はリクエストコンテキストから端末IDを取得する。
// デバイスミドルウェアを通過していない場合は空文字列を返す。
func DeviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDContextKey).(string)
	return id
}

// ContextWithDeviceID はコンテキストに端末IDを注入する。
func ContextWithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey, deviceID)
}
