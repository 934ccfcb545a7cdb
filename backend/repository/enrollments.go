package repository

import (
	"context"

	"gorm.io/gorm"

	"academy/backend/apperr"
	"academy/backend/models"
)

func (s *Store) FindEnrollment(ctx context.Context, id uint) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err, "enrollment")
	}
	return &e, nil
}

func (s *Store) EnrollmentExists(ctx context.Context, userID, courseID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&n).Error
	return n > 0, err
}

// CreateEnrollment relies on the (user_id, course_id) unique index, so two
// concurrent inserts for the same pair cannot both succeed.
func (s *Store) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperr.ErrDuplicateEnrollment
		}
		return err
	}
	return nil
}

// UpdateEnrollment reads the enrollment under a row lock, applies fn and
// saves the result in the same transaction.
func (s *Store) UpdateEnrollment(ctx context.Context, id uint, fn func(*models.Enrollment) error) (*models.Enrollment, error) {
	var e models.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&e, id).Error; err != nil {
			return notFound(err, "enrollment")
		}
		if err := fn(&e); err != nil {
			return err
		}
		return tx.Save(&e).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) DeleteEnrollment(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Enrollment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("enrollment")
	}
	return nil
}
