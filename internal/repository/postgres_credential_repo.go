package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/churchdash/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用した認証情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// FindByEmail はメールアドレスで認証情報を検索する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByEmail(ctx context.Context, email string) (*model.Credential, error) {
	return r.findOne(ctx,
		`SELECT id, email, password_hash, full_name, created_at FROM credentials WHERE email = $1`,
		email,
	)
}

// FindByID は指定IDの認証情報を取得する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByID(ctx context.Context, id string) (*model.Credential, error) {
	return r.findOne(ctx,
		`SELECT id, email, password_hash, full_name, created_at FROM credentials WHERE id = $1`,
		id,
	)
}

func (r *PostgresCredentialRepo) findOne(ctx context.Context, query string, arg string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&cred.ID, &cred.Email, &cred.PasswordHash, &cred.FullName, &cred.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return cred, nil
}

// Create は認証情報を作成する。メールアドレスが重複する場合はErrDuplicateを返す。
func (r *PostgresCredentialRepo) Create(ctx context.Context, cred *model.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (id, email, password_hash, full_name, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		cred.ID, cred.Email, cred.PasswordHash, cred.FullName, cred.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create credential: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
