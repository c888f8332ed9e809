package handler

import (
	"net/http"

	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/middleware"
	"github.com/hitoshi/churchdash/internal/roles"
)

// PageHandler はガードを通過した画面の表示情報を返す。
// 画面の描画はクライアントが行い、サーバーはタイトルとメニューのみを決める。
type PageHandler struct {
	registry *roles.Registry
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(registry *roles.Registry) *PageHandler {
	return &PageHandler{registry: registry}
}

// pageResponse は画面の表示情報。
type pageResponse struct {
	Path       string                    `json:"path"`
	Title      string                    `json:"title"`
	Navigation []navigationEntryResponse `json:"navigation"`
	Identity   *identityResponse         `json:"identity"`
	Language   string                    `json:"language"`
}

// Page は画面の表示情報を返す。
// GET /login, GET /profile, GET /{role}/{page}
func (h *PageHandler) Page(w http.ResponseWriter, r *http.Request) {
	p := roles.CleanPath(r.URL.Path)
	snap := middleware.SnapshotFromContext(r.Context())
	l := localizerFrom(r)

	resp := pageResponse{
		Path:       p,
		Navigation: []navigationEntryResponse{},
		Identity:   toIdentityResponse(l, snap.Identity),
	}
	if l != nil {
		resp.Language = l.Language()
	}
	if snap.Identity != nil {
		resp.Navigation = toNavigationResponse(l, h.registry, snap.Identity.Role)
	}
	resp.Title = h.title(l, p, resp.Navigation)

	writeJSON(w, http.StatusOK, resp)
}

func (h *PageHandler) title(l *i18n.Localizer, p string, nav []navigationEntryResponse) string {
	switch p {
	case roles.LoginPath:
		return translate(l, "page.login", "")
	case roles.ProfilePath:
		return translate(l, "page.profile", "")
	}
	for _, e := range nav {
		if roles.CleanPath(e.Path) == p {
			return e.Label
		}
	}
	return p
}
