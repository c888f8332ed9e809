package handler

import (
	"net/http"

	"github.com/hitoshi/churchdash/internal/guard"
	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/middleware"
	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/roles"
)

// SessionHandler はサインイン中のセッションに関するHTTPハンドラー。
type SessionHandler struct {
	registry *roles.Registry
	guard    *guard.Guard
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(registry *roles.Registry, g *guard.Guard) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		guard:    g,
	}
}

// sessionResponse はセッション状態のAPIレスポンス。
type sessionResponse struct {
	Loading     bool              `json:"loading"`
	Identity    *identityResponse `json:"identity"`
	Language    string            `json:"language"`
	DefaultPath string            `json:"default_path"`
}

// accessResponse はアクセス判定のAPIレスポンス。
type accessResponse struct {
	Path     string `json:"path"`
	Decision string `json:"decision"`
	Target   string `json:"target,omitempty"`
}

// updateProfileRequest はプロフィール部分更新リクエストのボディ。
// 省略したフィールドは変更しない。ロールは変更できない。
type updateProfileRequest struct {
	FullName     *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Phone        *string `json:"phone" validate:"omitempty,max=50"`
	Address      *string `json:"address" validate:"omitempty,max=500"`
	DepartmentID *string `json:"department_id" validate:"omitempty,uuid"`
}

// setLanguageRequest は表示言語変更リクエストのボディ。
type setLanguageRequest struct {
	Language string `json:"language" validate:"required,max=35"`
}

// Session は現在のセッション状態を返す。
// GET /api/session
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	snap := middleware.SnapshotFromContext(r.Context())
	l, _ := i18n.FromContext(r.Context())

	resp := sessionResponse{
		Loading:  snap.Loading,
		Identity: toIdentityResponse(l, snap.Identity),
	}
	if l != nil {
		resp.Language = l.Language()
	}
	if snap.SignedIn() {
		resp.DefaultPath = h.registry.DefaultPathFor(snap.Identity.Role)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Navigation はロールのメニューを表示言語に翻訳して返す。
// GET /api/navigation
func (h *SessionHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	snap := middleware.SnapshotFromContext(r.Context())
	if !snap.SignedIn() {
		middleware.WriteError(w, r, model.NewNotAuthenticatedError())
		return
	}

	l, _ := i18n.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"role":       snap.Identity.Role,
		"navigation": toNavigationResponse(l, h.registry, snap.Identity.Role),
	})
}

// Access は指定パスに対するアクセス判定を返す。画面遷移前の確認に使う。
// セッション解決中は503とRetry-Afterを返す。
// GET /api/access?path=/member/dashboard
func (h *SessionHandler) Access(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		middleware.WriteError(w, r, model.NewValidationError(map[string]string{
			"path": translate(localizerFrom(r), "validation.required", ""),
		}))
		return
	}

	res, ok := h.guard.Access(middleware.SnapshotFromContext(r.Context()), p)
	if !ok {
		w.Header().Set("Retry-After", "1")
		middleware.WriteError(w, r, model.NewSessionPendingError())
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{
		Path:     roles.CleanPath(p),
		Decision: res.Decision.String(),
		Target:   res.Target,
	})
}

// UpdateProfile はサインイン中のユーザーのプロフィールを部分更新する。
// PATCH /api/profile
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	c := middleware.ClientFromContext(r.Context())
	if c == nil {
		middleware.WriteError(w, r, model.NewNotAuthenticatedError())
		return
	}

	var req updateProfileRequest
	if apiErr := decodeRequest(w, r, &req); apiErr != nil {
		middleware.WriteError(w, r, apiErr)
		return
	}

	update := model.ProfileUpdate{
		FullName:     req.FullName,
		Phone:        req.Phone,
		Address:      req.Address,
		DepartmentID: req.DepartmentID,
	}
	if err := c.Session().UpdateProfile(r.Context(), update); err != nil {
		middleware.WriteErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toIdentityResponse(localizerFrom(r), c.Session().Snapshot().Identity))
}

// SetLanguage は表示言語を変更する。
// 端末の設定に保存し、サインイン中であればプロフィールにも非同期で保存する。
// PUT /api/language
func (h *SessionHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	l := localizerFrom(r)
	if l == nil {
		middleware.WriteInternalServerError(w, r)
		return
	}

	var req setLanguageRequest
	if apiErr := decodeRequest(w, r, &req); apiErr != nil {
		middleware.WriteError(w, r, apiErr)
		return
	}

	lang, err := l.SetLanguage(r.Context(), req.Language)
	if err != nil {
		middleware.WriteErr(w, r, err)
		return
	}

	w.Header().Set("Content-Language", lang)
	writeJSON(w, http.StatusOK, map[string]string{"language": lang})
}

func localizerFrom(r *http.Request) *i18n.Localizer {
	l, _ := i18n.FromContext(r.Context())
	return l
}
