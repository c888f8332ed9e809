package handler

import (
	"net/http"

	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/middleware"
	"github.com/hitoshi/churchdash/internal/model"
)

// LocaleHandler は言語一覧と翻訳テーブルのHTTPハンドラー。
type LocaleHandler struct {
	catalog *i18n.Catalog
}

// NewLocaleHandler はLocaleHandlerを生成する。
func NewLocaleHandler(catalog *i18n.Catalog) *LocaleHandler {
	return &LocaleHandler{catalog: catalog}
}

// Languages は選択可能な言語の一覧と現在の表示言語を返す。
// GET /api/languages
func (h *LocaleHandler) Languages(w http.ResponseWriter, r *http.Request) {
	current := h.catalog.DefaultLanguage()
	if l := localizerFrom(r); l != nil {
		current = l.Language()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current":   current,
		"default":   h.catalog.DefaultLanguage(),
		"languages": h.catalog.Languages(),
	})
}

// Translations は指定言語の翻訳テーブルを返す。既定言語で欠けているキーを補完済み。
// langを省略した場合は現在の表示言語のテーブルを返す。
// GET /api/translations?lang=fr
func (h *LocaleHandler) Translations(w http.ResponseWriter, r *http.Request) {
	lang := h.catalog.DefaultLanguage()
	if l := localizerFrom(r); l != nil {
		lang = l.Language()
	}

	if q := r.URL.Query().Get("lang"); q != "" {
		code, ok := h.catalog.Canonicalize(q)
		if !ok {
			middleware.WriteError(w, r, model.NewInvalidLanguageError(q))
			return
		}
		lang = code
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"language": lang,
		"messages": h.catalog.Table(lang),
	})
}
