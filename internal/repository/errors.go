package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate は一意制約違反で挿入が拒否されたことを示す。
	ErrDuplicate = errors.New("duplicate key")
	// ErrNotFound は更新対象の行が存在しないことを示す。
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference は外部キーの参照先が存在しないことを示す。
	ErrInvalidReference = errors.New("invalid reference")
)

// PostgreSQLのSQLSTATE。
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// isUniqueViolation はエラーが一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	return hasSQLState(err, uniqueViolation)
}

// isForeignKeyViolation はエラーが外部キー制約違反かどうかを返す。
func isForeignKeyViolation(err error) bool {
	return hasSQLState(err, foreignKeyViolation)
}

func hasSQLState(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}
