package repository

import (
	"context"
	"time"

	"academy/backend/models"
)

func (s *Store) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) FindPurchase(ctx context.Context, id uint) (*models.Purchase, error) {
	var p models.Purchase
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "purchase")
	}
	return &p, nil
}

func (s *Store) FindPurchaseByOrderID(ctx context.Context, orderID string) (*models.Purchase, error) {
	var p models.Purchase
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, notFound(err, "purchase")
	}
	return &p, nil
}

func (s *Store) SetCheckoutSession(ctx context.Context, id uint, sessionID string) error {
	return s.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ?", id).
		Update("checkout_session_id", sessionID).Error
}

// UpdateStatus is a compare-and-set on status. Only the lifecycle columns are
// written; amount and currency are left alone.
func (s *Store) UpdateStatus(ctx context.Context, next *models.Purchase, from models.PurchaseStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ? AND status = ?", next.ID, from).
		Updates(map[string]any{
			"status":         next.Status,
			"transaction_id": next.TransactionID,
			"payment_method": next.PaymentMethod,
			"paid_at":        next.PaidAt,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
