package models

import "time"

// Model is the common primary key and timestamps. Rows are hard-deleted so
// unique columns such as slugs and emails can be reused.
type Model struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
