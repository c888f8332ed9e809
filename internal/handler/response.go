package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/roles"
)

// identityResponse はサインイン中のユーザー情報のAPIレスポンス。
type identityResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
	RoleLabel      string `json:"role_label"`
	Language       string `json:"language,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	DepartmentID   string `json:"department_id,omitempty"`
	DepartmentName string `json:"department_name,omitempty"`
}

// navigationEntryResponse は翻訳済みのメニュー項目。
type navigationEntryResponse struct {
	Label    string `json:"label"`
	LabelKey string `json:"label_key"`
	Path     string `json:"path"`
	Icon     string `json:"icon"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func toIdentityResponse(l *i18n.Localizer, id *model.Identity) *identityResponse {
	if id == nil {
		return nil
	}
	label := id.Role.String()
	if id.Role.Valid() {
		label = translate(l, "role."+id.Role.String(), "")
	}
	return &identityResponse{
		ID:             id.ID,
		Email:          id.Email,
		FullName:       id.FullName,
		Role:           id.Role.String(),
		RoleLabel:      label,
		Language:       id.Language,
		Phone:          id.Phone,
		Address:        id.Address,
		DepartmentID:   id.DepartmentID,
		DepartmentName: id.DepartmentName,
	}
}

// toNavigationResponse はロールのメニューを表示言語に翻訳して返す。
func toNavigationResponse(l *i18n.Localizer, registry *roles.Registry, role model.Role) []navigationEntryResponse {
	entries := registry.NavigationFor(role)
	out := make([]navigationEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = navigationEntryResponse{
			Label:    translate(l, e.LabelKey, ""),
			LabelKey: e.LabelKey,
			Path:     e.Path,
			Icon:     string(e.Icon),
		}
	}
	return out
}
