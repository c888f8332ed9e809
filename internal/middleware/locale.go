package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/prefs"
)

// NewLocaleMiddleware はリクエストの表示言語を決め、Localizerをコンテキストに注入するミドルウェアを返す。
// 端末の保存設定、プロフィールの言語、Accept-Languageの順に採用する。
// サインイン中は言語変更がプロフィールにも保存されるようSession Storeを保存先に設定する。
// DeviceMiddlewareとSessionMiddlewareの後に配置すること。
func NewLocaleMiddleware(catalog *i18n.Catalog, store prefs.Store, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			deviceID := DeviceIDFromContext(ctx)
			snap := SnapshotFromContext(ctx)

			lang := i18n.ResolveLanguage(ctx, catalog, store, deviceID, snap.Identity, r.Header.Get("Accept-Language"))

			opts := []i18n.LocalizerOption{i18n.WithLogger(logger)}
			if c := ClientFromContext(ctx); c != nil && snap.Identity != nil {
				opts = append(opts, i18n.WithSaver(c.Session()))
			}
			l := i18n.NewLocalizer(catalog, store, deviceID, lang, opts...)

			w.Header().Set("Content-Language", l.Language())
			w.Header().Add("Vary", "Accept-Language")
			next.ServeHTTP(w, r.WithContext(i18n.WithLocalizer(ctx, l)))
		})
	}
}
