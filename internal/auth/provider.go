package auth

import "errors"

// User は認証プロバイダーが把握しているサインイン中のユーザーを表す。
// ロールや言語などのプロフィール情報は含まない。
type User struct {
	ID       string
	Email    string
	FullName string
}

// EventType は認証状態の変化の種類を表す。
type EventType string

const (
	// EventInitialSession はクライアント開始時の初期状態を示す。Userはnilの場合がある。
	EventInitialSession EventType = "INITIAL_SESSION"
	// EventSignedIn はサインインが成立したことを示す。
	EventSignedIn EventType = "SIGNED_IN"
	// EventSignedOut はサインアウトしたことを示す。Userはnil。
	EventSignedOut EventType = "SIGNED_OUT"
	// EventUserUpdated はユーザーのプロフィールが外部で変更されたことを示す。
	EventUserUpdated EventType = "USER_UPDATED"
)

// Event は認証状態の変化の通知。
type Event struct {
	Type EventType
	User *User
}

var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しないことを示す。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken はメールアドレスが既に登録されていることを示す。
	ErrEmailTaken = errors.New("email already registered")
	// ErrSessionNotFound はセッションが存在しないか期限切れであることを示す。
	ErrSessionNotFound = errors.New("session not found or expired")
)
