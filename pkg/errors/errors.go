package errors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation PostgreSQL 唯一约束冲突的 SQLSTATE
const pgUniqueViolation = "23505"

// UniqueViolation 判断 err 是否为唯一约束冲突，并返回冲突的约束名。
// GORM 开启 TranslateError 时原始错误被替换为 gorm.ErrDuplicatedKey，此时约束名为空。
func UniqueViolation(err error) (constraint string, ok bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	return "", false
}
