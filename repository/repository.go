package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrDuplicateKey marks a write rejected by a uniqueness constraint. The
// constraint is the source of truth for natural-key dedup; callers resolve
// the conflict by re-reading the surviving row.
var ErrDuplicateKey = errors.New("duplicate key")

// IsDuplicateKey reports whether err was caused by a uniqueness violation.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, ErrDuplicateKey) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
