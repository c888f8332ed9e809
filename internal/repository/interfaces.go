// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/churchdash/internal/model"
)

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// Get は指定IDのプロフィールを部署名付きで取得する。見つからない場合はnilを返す。
	Get(ctx context.Context, id string) (*model.ProfileRow, error)

	// Insert はプロフィールを作成し、DBが採番した値を反映した行を返す。
	// 同じIDの行が既に存在する場合はErrDuplicateを返す。
	Insert(ctx context.Context, row *model.ProfileRow) (*model.ProfileRow, error)

	// Update はnilでないフィールドだけを更新する。
	// 対象の行が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, id string, update model.ProfileUpdate) error
}

// CredentialRepository は認証情報の永続化インターフェース。
type CredentialRepository interface {
	// FindByEmail はメールアドレスで認証情報を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Credential, error)

	// FindByID は指定IDの認証情報を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Credential, error)

	// Create は認証情報を作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, cred *model.Credential) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// Extend はセッションの有効期限を延長する。
	Extend(ctx context.Context, id string, expiresAt time.Time) error
}
