package orders

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdateClause returns a row lock on dialects that support it. The
// sqlite databases used in tests serialize writes on their own and reject
// FOR UPDATE syntax.
func forUpdateClause(db *gorm.DB) []clause.Expression {
	if db.Dialector.Name() == "sqlite" {
		return nil
	}
	return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
}
