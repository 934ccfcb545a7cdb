package models

import "time"

type PurchaseStatus string

const (
	PurchasePending  PurchaseStatus = "pending"
	PurchasePaid     PurchaseStatus = "paid"
	PurchaseFailed   PurchaseStatus = "failed"
	PurchaseRefunded PurchaseStatus = "refunded"
)

// Purchase is a course order. Amount is in minor currency units.
type Purchase struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID           string         `gorm:"uniqueIndex;not null" json:"order_id"`
	UserID            uint           `gorm:"not null;index" json:"user_id"`
	CourseID          uint           `gorm:"not null;index" json:"course_id"`
	Amount            int64          `gorm:"not null;check:amount >= 0" json:"amount"`
	Currency          string         `gorm:"type:varchar(3);not null" json:"currency"`
	Status            PurchaseStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	TransactionID     string         `json:"transaction_id,omitempty"`
	PaymentMethod     string         `json:"payment_method,omitempty"`
	CheckoutSessionID string         `gorm:"index" json:"checkout_session_id,omitempty"`
	PaidAt            *time.Time     `json:"paid_at,omitempty"`
}
