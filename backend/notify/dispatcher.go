// Package notify queues deferred, retryable email tasks and runs them in
// the background, away from the request that triggered them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"academy/backend/models"
)

const (
	TaskWelcomeEmail            = "sendWelcomeEmail"
	TaskPromotionalWelcomeEmail = "sendPromotionalWelcomeEmail"
	TaskVerificationEmail       = "sendVerificationEmail"
	TaskPasswordResetEmail      = "sendPasswordResetEmail"
)

const (
	DefaultMaxRetries = 3
	PromotionalDelay  = 48 * time.Hour
)

// Queue is the durable job table.
type Queue interface {
	Insert(ctx context.Context, job *models.Job) error
	// Claim marks up to limit due jobs as running under token until the
	// claim expires, and returns them.
	Claim(ctx context.Context, now time.Time, limit int, token string, until time.Time) ([]models.Job, error)
	Complete(ctx context.Context, id, token string, at time.Time) error
	Retry(ctx context.Context, id, token, lastErr string, notBefore time.Time) error
	Fail(ctx context.Context, id, token, lastErr string, at time.Time) error
}

// EmailPayload is the input of every email task.
type EmailPayload struct {
	UserID   uint   `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Token    string `json:"token,omitempty"`
}

type Dispatcher struct {
	queue      Queue
	maxRetries int
	log        *slog.Logger
	now        func() time.Time
}

func NewDispatcher(queue Queue, maxRetries int, logger *slog.Logger) *Dispatcher {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Dispatcher{queue: queue, maxRetries: maxRetries, log: logger, now: time.Now}
}

// Enqueue stores a job that runs no earlier than notBefore, or as soon as a
// worker picks it up when notBefore is nil.
func (d *Dispatcher) Enqueue(ctx context.Context, task string, payload any, notBefore *time.Time) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", task, err)
	}

	at := d.now().UTC()
	if notBefore != nil {
		at = notBefore.UTC()
	}
	job := &models.Job{
		ID:         uuid.NewString(),
		Task:       task,
		Payload:    raw,
		Status:     models.JobQueued,
		NotBefore:  at,
		MaxRetries: d.maxRetries,
	}
	if err := d.queue.Insert(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task, err)
	}

	d.log.InfoContext(ctx, "job enqueued",
		"module", "notify",
		"operation", "enqueue",
		"job_id", job.ID,
		"task", task,
		"not_before", at,
	)
	return job.ID, nil
}

// OnUserCreated queues the welcome email now and the promotional follow-up
// two days later. Failures are logged and never returned: registration does
// not depend on delivery.
func (d *Dispatcher) OnUserCreated(ctx context.Context, user models.User) {
	payload := EmailPayload{UserID: user.ID, Email: user.Email, FullName: user.FullName()}

	if _, err := d.Enqueue(ctx, TaskWelcomeEmail, payload, nil); err != nil {
		d.logEnqueueFailure(ctx, TaskWelcomeEmail, user.ID, err)
	}
	later := d.now().Add(PromotionalDelay)
	if _, err := d.Enqueue(ctx, TaskPromotionalWelcomeEmail, payload, &later); err != nil {
		d.logEnqueueFailure(ctx, TaskPromotionalWelcomeEmail, user.ID, err)
	}
}

func (d *Dispatcher) SendVerification(ctx context.Context, user models.User, token string) {
	payload := EmailPayload{UserID: user.ID, Email: user.Email, FullName: user.FullName(), Token: token}
	if _, err := d.Enqueue(ctx, TaskVerificationEmail, payload, nil); err != nil {
		d.logEnqueueFailure(ctx, TaskVerificationEmail, user.ID, err)
	}
}

func (d *Dispatcher) SendPasswordReset(ctx context.Context, user models.User, token string) {
	payload := EmailPayload{UserID: user.ID, Email: user.Email, FullName: user.FullName(), Token: token}
	if _, err := d.Enqueue(ctx, TaskPasswordResetEmail, payload, nil); err != nil {
		d.logEnqueueFailure(ctx, TaskPasswordResetEmail, user.ID, err)
	}
}

func (d *Dispatcher) logEnqueueFailure(ctx context.Context, task string, userID uint, err error) {
	d.log.ErrorContext(ctx, "job enqueue failed",
		"module", "notify",
		"operation", "enqueue",
		"outcome", "failure",
		"task", task,
		"user_id", userID,
		"error", err,
	)
}
