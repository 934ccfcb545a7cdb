// Package payments talks to the hosted checkout provider: it opens payment
// sessions and turns verified webhook deliveries into purchase outcomes.
package payments

import (
	"errors"

	"academy/backend/models"
)

var ErrSignature = errors.New("invalid webhook signature")

// SessionRequest is everything the provider needs to charge for one course.
type SessionRequest struct {
	Amount        int64
	Currency      string
	ProductName   string
	Description   string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	OrderID       string
	UserID        uint
	CourseID      uint
}

type Session struct {
	ID  string
	URL string
}

// Event is a verified provider notification. Outcome is empty when the event
// does not move a purchase.
type Event struct {
	ID            string
	Type          string
	OrderID       string
	SessionID     string
	Outcome       models.PurchaseStatus
	TransactionID string
	PaymentMethod string
}
