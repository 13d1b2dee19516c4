package specification

import (
	"strings"

	"gorm.io/gorm"
)

// TitleContains filters conversations by a case-insensitive title match.
// LOWER/LIKE keeps it portable between postgres and sqlite.
type TitleContains struct {
	Query string
}

func (s TitleContains) Apply(db *gorm.DB) *gorm.DB {
	if strings.TrimSpace(s.Query) == "" {
		return db
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(s.Query)) + "%"
	return db.Where("LOWER(title) LIKE ?", pattern)
}
