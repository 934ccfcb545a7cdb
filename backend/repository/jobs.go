package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"academy/backend/models"
)

var ErrClaimLost = errors.New("job claim lost")

// JobQueue stores dispatcher jobs in the jobs table.
type JobQueue struct {
	db *gorm.DB
}

func NewJobQueue(db *gorm.DB) *JobQueue {
	return &JobQueue{db: db}
}

func (q *JobQueue) Insert(ctx context.Context, job *models.Job) error {
	return q.db.WithContext(ctx).Create(job).Error
}

// Claim takes due queued jobs, and running jobs whose claim expired, marks
// them running under token and counts the attempt.
func (q *JobQueue) Claim(ctx context.Context, now time.Time, limit int, token string, until time.Time) ([]models.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	if token == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	var jobs []models.Job
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		due := tx.Model(&models.Job{}).
			Select("id").
			Where("(status = ? AND not_before <= ?) OR (status = ? AND claimed_until < ?)",
				models.JobQueued, now, models.JobRunning, now).
			Order("not_before ASC").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			due = due.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		if err := tx.Model(&models.Job{}).
			Where("id IN (?)", due).
			Updates(map[string]any{
				"status":        models.JobRunning,
				"claim_token":   token,
				"claimed_until": until,
				"attempts":      gorm.Expr("attempts + 1"),
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}

		return tx.Where("claim_token = ? AND status = ?", token, models.JobRunning).
			Order("not_before ASC").
			Find(&jobs).Error
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (q *JobQueue) Complete(ctx context.Context, id, token string, at time.Time) error {
	return q.finish(ctx, id, token, map[string]any{
		"status":       models.JobSucceeded,
		"completed_at": at,
		"last_error":   "",
	})
}

func (q *JobQueue) Retry(ctx context.Context, id, token, lastErr string, notBefore time.Time) error {
	return q.finish(ctx, id, token, map[string]any{
		"status":     models.JobQueued,
		"not_before": notBefore,
		"last_error": lastErr,
	})
}

func (q *JobQueue) Fail(ctx context.Context, id, token, lastErr string, at time.Time) error {
	return q.finish(ctx, id, token, map[string]any{
		"status":       models.JobFailed,
		"completed_at": at,
		"last_error":   lastErr,
	})
}

func (q *JobQueue) finish(ctx context.Context, id, token string, updates map[string]any) error {
	updates["claim_token"] = ""
	updates["claimed_until"] = nil
	updates["updated_at"] = time.Now().UTC()
	res := q.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND claim_token = ?", id, token).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClaimLost
	}
	return nil
}

// List returns the newest jobs, optionally filtered by status.
func (q *JobQueue) List(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	tx := q.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var jobs []models.Job
	return jobs, tx.Find(&jobs).Error
}
