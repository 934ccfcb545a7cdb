package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"academy/backend/apperr"
	"academy/backend/models"
)

// FindCourseByKey loads a course by numeric id or by slug, applying scope.
func (s *Store) FindCourseByKey(ctx context.Context, key string, scope func(*gorm.DB) *gorm.DB) (*models.Course, error) {
	q := s.db.WithContext(ctx).Scopes(scope).Preload("Tags")
	var c models.Course
	var err error
	if id, convErr := strconv.ParseUint(key, 10, 64); convErr == nil {
		err = q.First(&c, uint(id)).Error
	} else {
		err = q.Where("slug = ?", key).First(&c).Error
	}
	if err != nil {
		return nil, notFound(err, "course")
	}
	return &c, nil
}

// SaveCourse creates or updates c with its tag set replaced by tags. A taken
// slug is a validation error.
func (s *Store) SaveCourse(ctx context.Context, c *models.Course, tags []models.Tag) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags").Save(c).Error; err != nil {
			return err
		}
		return tx.Model(c).Association("Tags").Replace(tags)
	})
	if IsUniqueViolation(err) {
		return apperr.Invalid("slug", "is already in use")
	}
	return err
}

// FindTags loads the tags with the given ids and fails if any is missing.
func (s *Store) FindTags(ctx context.Context, ids []uint) ([]models.Tag, error) {
	if len(ids) == 0 {
		return []models.Tag{}, nil
	}
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(unique(ids)) {
		return nil, apperr.Invalid("tag_ids", "references an unknown tag")
	}
	return tags, nil
}

func unique(ids []uint) map[uint]struct{} {
	out := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// SaveTag creates or updates a tag. A taken title or slug is a validation
// error.
func (s *Store) SaveTag(ctx context.Context, t *models.Tag) error {
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperr.Invalid("title", "is already in use")
		}
		return err
	}
	return nil
}
