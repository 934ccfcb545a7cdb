// Package purchase implements the course order lifecycle:
// pending -> paid | failed, paid -> refunded. Moving to paid enrolls the
// buyer in the course, at most once.
package purchase

import (
	"fmt"
	"time"

	"academy/backend/apperr"
	"academy/backend/models"
)

var transitions = map[models.PurchaseStatus][]models.PurchaseStatus{
	models.PurchasePending: {models.PurchasePaid, models.PurchaseFailed},
	models.PurchasePaid:    {models.PurchaseRefunded},
}

func CanTransition(from, to models.PurchaseStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Change describes a requested transition. Provider fields are optional and
// only recorded on the way to paid.
type Change struct {
	Status        models.PurchaseStatus `json:"status"`
	TransactionID string                `json:"transaction_id,omitempty"`
	PaymentMethod string                `json:"payment_method,omitempty"`
	PaidAt        *time.Time            `json:"paid_at,omitempty"`
}

// Apply returns p moved to ch.Status. Amount and currency are carried over
// unchanged. Apply does not treat a repeat of the current status as valid;
// replays are handled by Service.
func Apply(p models.Purchase, ch Change, now time.Time) (models.Purchase, error) {
	if !CanTransition(p.Status, ch.Status) {
		return p, fmt.Errorf("purchase %s: %s -> %s: %w", p.OrderID, p.Status, ch.Status, apperr.ErrInvalidTransition)
	}

	next := p
	next.Status = ch.Status
	if ch.Status == models.PurchasePaid {
		paidAt := now.UTC()
		if ch.PaidAt != nil {
			paidAt = ch.PaidAt.UTC()
		}
		next.PaidAt = &paidAt
		if ch.TransactionID != "" {
			next.TransactionID = ch.TransactionID
		}
		if ch.PaymentMethod != "" {
			next.PaymentMethod = ch.PaymentMethod
		}
	}
	return next, nil
}
