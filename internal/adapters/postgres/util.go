package postgres

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isUniqueViolation catches unique-constraint failures both as gorm's
// translated error and as the raw driver message, since TranslateError does
// not cover every execution path.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlstate 23505") || strings.Contains(msg, "duplicate key")
}
