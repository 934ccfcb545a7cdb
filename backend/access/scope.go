package access

import "gorm.io/gorm"

// Scope translates the decision into a gorm scope. Deny yields a scope that
// matches nothing; callers are expected to have rejected it already.
func (d Decision) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch d.Effect {
		case Allow:
			return db
		case RowFilter:
			clause, args := d.Filter.SQL()
			return db.Where(clause, args...)
		default:
			return db.Where("1 = 0")
		}
	}
}
