package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category"`
	Action   string            `json:"action"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// StatusFor はエラーコードに対応するHTTPステータスコードを返す。
func StatusFor(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeNetworkFailure, model.ErrCodeSessionPending:
		return http.StatusServiceUnavailable
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidLanguage:
		return http.StatusBadRequest
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeCSRFRejected:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// 文言は翻訳せずにそのまま返す。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Fields:   apiErr.Fields,
	})
}

// WriteError はAPIErrorをリクエストの表示言語に翻訳し、対応するステータスコードで書き込む。
// 翻訳が見つからない文言は既定言語のまま返す。
func WriteError(w http.ResponseWriter, r *http.Request, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusFor(apiErr), Localize(r, apiErr))
}

// WriteErr はerrがAPIErrorであればWriteErrorで、それ以外は内部エラーとして書き込む。
func WriteErr(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteError(w, r, apiErr)
		return
	}
	WriteInternalServerError(w, r)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, model.NewInternalError())
}

// Localize はAPIErrorの文言をリクエストの表示言語に置き換えたコピーを返す。
func Localize(r *http.Request, apiErr *model.APIError) *model.APIError {
	l, ok := i18n.FromContext(r.Context())
	if !ok {
		return apiErr
	}
	out := *apiErr
	if msg := l.Translate(apiErr.MessageKey()); msg != apiErr.MessageKey() {
		out.Message = msg
	}
	if action := l.Translate(apiErr.ActionKey()); action != apiErr.ActionKey() {
		out.Action = action
	}
	// フィールドの値が翻訳キーの場合は翻訳する
	if len(apiErr.Fields) > 0 {
		out.Fields = make(map[string]string, len(apiErr.Fields))
		for field, msg := range apiErr.Fields {
			out.Fields[field] = l.Translate(msg)
		}
	}
	return &out
}
