package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/churchdash/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Get は指定IDのプロフィールを部署名付きで取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) Get(ctx context.Context, id string) (*model.ProfileRow, error) {
	row := &model.ProfileRow{}
	err := r.db.QueryRowContext(ctx,
		`SELECT p.id, p.email, p.full_name, p.role, p.language,
		        COALESCE(p.department_id::text, ''), COALESCE(d.name, ''),
		        COALESCE(p.phone, ''), COALESCE(p.address, ''),
		        p.joined_at, p.created_at
		 FROM profiles p
		 LEFT JOIN departments d ON d.id = p.department_id
		 WHERE p.id = $1`,
		id,
	).Scan(
		&row.ID, &row.Email, &row.FullName, &row.Role, &row.Language,
		&row.DepartmentID, &row.DepartmentName,
		&row.Phone, &row.Address,
		&row.JoinedAt, &row.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return row, nil
}

// Insert はプロフィールを作成する。
// 空文字列の任意項目はNULLとして保存する。部署名は返り値に含まれない。
func (r *PostgresProfileRepo) Insert(ctx context.Context, row *model.ProfileRow) (*model.ProfileRow, error) {
	inserted := *row
	inserted.DepartmentName = ""

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (id, email, full_name, role, language, department_id, phone, address)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, NULLIF($7, ''), NULLIF($8, ''))
		 RETURNING joined_at, created_at`,
		row.ID, row.Email, row.FullName, row.Role, row.Language,
		row.DepartmentID, row.Phone, row.Address,
	).Scan(&inserted.JoinedAt, &inserted.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to insert profile %s: %w", row.ID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	return &inserted, nil
}

// Update はnilでないフィールドだけを更新する。
// 任意項目に空文字列を渡すと値を消去する。存在しない部署IDの場合はErrInvalidReferenceを返す。
func (r *PostgresProfileRepo) Update(ctx context.Context, id string, update model.ProfileUpdate) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET
		    full_name     = COALESCE($2, full_name),
		    phone         = CASE WHEN $3::text IS NULL THEN phone ELSE NULLIF($3::text, '') END,
		    address       = CASE WHEN $4::text IS NULL THEN address ELSE NULLIF($4::text, '') END,
		    language      = COALESCE($5, language),
		    department_id = CASE WHEN $6::text IS NULL THEN department_id ELSE NULLIF($6::text, '')::uuid END,
		    updated_at    = now()
		 WHERE id = $1`,
		id, update.FullName, update.Phone, update.Address, update.Language, update.DepartmentID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("failed to update profile %s: %w", id, ErrInvalidReference)
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
