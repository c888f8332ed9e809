package middleware

import (
	"net/http"

	"github.com/hitoshi/churchdash/internal/guard"
	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/roles"
)

// retryAfterPending はセッション解決中に返すRetry-Afterの秒数。
const retryAfterPending = "1"

// DecisionRecorder はアクセス判定結果の記録先。
// metrics.MetricsCollectorが実装する。
type DecisionRecorder interface {
	RecordGuardDecision(decision string)
}

// NewGuardMiddleware は画面のパスに対するアクセス判定を行うミドルウェアを返す。
// 許可された場合のみ次のハンドラーを呼び出し、それ以外は判定結果の遷移先へリダイレクトする。
// セッション解決中は判定せず503とRetry-Afterを返す。
// 未サインインでのサインイン画面の表示は許可する。
func NewGuardMiddleware(g *guard.Guard, recorder DecisionRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := g.Access(SnapshotFromContext(r.Context()), r.URL.Path)
			if !ok {
				recorder.RecordGuardDecision("pending")
				w.Header().Set("Retry-After", retryAfterPending)
				WriteError(w, r, model.NewSessionPendingError())
				return
			}

			if res.Decision == guard.RedirectToLogin && roles.CleanPath(r.URL.Path) == roles.LoginPath {
				recorder.RecordGuardDecision(guard.Allow.String())
				next.ServeHTTP(w, r)
				return
			}

			recorder.RecordGuardDecision(res.Decision.String())
			if res.Decision != guard.Allow {
				http.Redirect(w, r, res.Target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRequireIdentityMiddleware はサインイン済みのリクエストのみを通すミドルウェアを返す。
// API向けでリダイレクトは行わず、未サインインには401、セッション解決中には503を返す。
func NewRequireIdentityMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := SnapshotFromContext(r.Context())
			if snap.Loading {
				w.Header().Set("Retry-After", retryAfterPending)
				WriteError(w, r, model.NewSessionPendingError())
				return
			}
			if !snap.SignedIn() {
				WriteError(w, r, model.NewNotAuthenticatedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
