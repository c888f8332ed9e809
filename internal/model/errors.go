// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// MessageとActionは既定言語の文言で、表示時にi18nキー（error.<code>）があれば置き換えられる。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, config, system
	Action   string // ユーザー向け対処方法
	// Fields は入力値検証エラーのフィールド名とメッセージ。その他のエラーではnil。
	Fields map[string]string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// MessageKey はエラーメッセージのi18nキーを返す。
func (e *APIError) MessageKey() string {
	return "error." + strings.ToLower(e.Code)
}

// ActionKey は対処方法のi18nキーを返す。
func (e *APIError) ActionKey() string {
	return "action." + strings.ToLower(e.Code)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeNetworkFailure      = "NETWORK_FAILURE"
	ErrCodeNotAuthenticated    = "NOT_AUTHENTICATED"
	ErrCodeConfigurationDefect = "CONFIGURATION_DEFECT"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeInvalidLanguage     = "INVALID_LANGUAGE"
	ErrCodeSessionPending      = "SESSION_PENDING"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeCSRFRejected        = "CSRF_REJECTED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: "auth",
		Action:   "Check your email address and password and sign in again.",
	}
}

// NewNetworkFailureError は外部サービスとの通信失敗エラーを生成する。
// 手動での再試行は安全。
func NewNetworkFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeNetworkFailure,
		Message:  "The service could not be reached.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewNotAuthenticatedError は未サインイン状態での更新操作エラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "You are not signed in.",
		Category: "auth",
		Action:   "Please sign in.",
	}
}

// NewConfigurationDefectError はロール設定の不備を表すエラーを生成する。
func NewConfigurationDefectError(problems []string) *APIError {
	return &APIError{
		Code:     ErrCodeConfigurationDefect,
		Message:  fmt.Sprintf("role registry is misconfigured: %s", strings.Join(problems, "; ")),
		Category: "config",
		Action:   "Fix the role registry definition and restart the server.",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "An account with this email address already exists.",
		Category: "auth",
		Action:   "Sign in with this email address or use a different one.",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(fields map[string]string) *APIError {
	parts := make([]string, 0, len(fields))
	for field, msg := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("Invalid input: %s", strings.Join(parts, ", ")),
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
		Fields:   fields,
	}
}

// NewInvalidLanguageError は言語コード不正エラーを生成する。
func NewInvalidLanguageError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLanguage,
		Message:  fmt.Sprintf("Unknown language code: %q", code),
		Category: "validation",
		Action:   "Choose a language from the language list.",
	}
}

// NewSessionPendingError はセッション解決中エラーを生成する。
func NewSessionPendingError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionPending,
		Message:  "Your session is still loading.",
		Category: "auth",
		Action:   "Retry in a moment.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewCSRFRejectedError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFRejected,
		Message:  "The request could not be verified.",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}
