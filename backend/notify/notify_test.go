package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/backend/mail"
	"academy/backend/models"
)

type memQueue struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMemQueue() *memQueue {
	return &memQueue{jobs: map[string]*models.Job{}}
}

func (q *memQueue) Insert(_ context.Context, job *models.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *job
	q.jobs[job.ID] = &cp
	return nil
}

func (q *memQueue) Claim(_ context.Context, now time.Time, limit int, token string, until time.Time) ([]models.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.Job
	for _, j := range q.jobs {
		if len(out) == limit {
			break
		}
		if j.Status != models.JobQueued || j.NotBefore.After(now) {
			continue
		}
		j.Status = models.JobRunning
		j.ClaimToken = token
		j.ClaimedUntil = &until
		j.Attempts++
		out = append(out, *j)
	}
	return out, nil
}

func (q *memQueue) Complete(_ context.Context, id, token string, at time.Time) error {
	return q.finish(id, token, func(j *models.Job) {
		j.Status = models.JobSucceeded
		j.CompletedAt = &at
	})
}

func (q *memQueue) Retry(_ context.Context, id, token, lastErr string, notBefore time.Time) error {
	return q.finish(id, token, func(j *models.Job) {
		j.Status = models.JobQueued
		j.LastError = lastErr
		j.NotBefore = notBefore
	})
}

func (q *memQueue) Fail(_ context.Context, id, token, lastErr string, at time.Time) error {
	return q.finish(id, token, func(j *models.Job) {
		j.Status = models.JobFailed
		j.LastError = lastErr
		j.CompletedAt = &at
	})
}

func (q *memQueue) finish(id, token string, fn func(*models.Job)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok || j.ClaimToken != token {
		return errors.New("claim lost")
	}
	fn(j)
	j.ClaimToken = ""
	j.ClaimedUntil = nil
	return nil
}

func (q *memQueue) byTask(task string) *models.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.Task == task {
			cp := *j
			return &cp
		}
	}
	return nil
}

type failingQueue struct{ memQueue }

func (*failingQueue) Insert(context.Context, *models.Job) error { return errors.New("db down") }

type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testUser() models.User {
	u := models.User{Email: "ana@example.com", FirstName: "Ana", LastName: "Silva"}
	u.ID = 3
	return u
}

func TestOnUserCreatedQueuesWelcomeSeries(t *testing.T) {
	q := newMemQueue()
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	d := NewDispatcher(q, DefaultMaxRetries, discard())
	d.now = c.now

	d.OnUserCreated(context.Background(), testUser())

	welcome := q.byTask(TaskWelcomeEmail)
	promo := q.byTask(TaskPromotionalWelcomeEmail)
	require.NotNil(t, welcome)
	require.NotNil(t, promo)
	assert.True(t, welcome.NotBefore.Equal(c.t))
	assert.True(t, promo.NotBefore.Equal(c.t.Add(48*time.Hour)))
	assert.Equal(t, 3, promo.MaxRetries)

	var p EmailPayload
	require.NoError(t, json.Unmarshal(welcome.Payload, &p))
	assert.Equal(t, EmailPayload{UserID: 3, Email: "ana@example.com", FullName: "Ana Silva"}, p)
}

func TestOnUserCreatedSwallowsEnqueueErrors(t *testing.T) {
	d := NewDispatcher(&failingQueue{}, DefaultMaxRetries, discard())
	assert.NotPanics(t, func() { d.OnUserCreated(context.Background(), testUser()) })
}

func TestDelayedJobWaitsForNotBefore(t *testing.T) {
	q := newMemQueue()
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	d := NewDispatcher(q, DefaultMaxRetries, discard())
	d.now = c.now

	var ran []string
	w := NewWorker(discard(), q, map[string]Handler{
		TaskWelcomeEmail:            func(_ context.Context, j models.Job) error { ran = append(ran, j.Task); return nil },
		TaskPromotionalWelcomeEmail: func(_ context.Context, j models.Job) error { ran = append(ran, j.Task); return nil },
	}, time.Second, 10)
	w.now = c.now

	d.OnUserCreated(context.Background(), testUser())

	n, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{TaskWelcomeEmail}, ran)

	c.add(48 * time.Hour)
	n, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sort.Strings(ran)
	assert.Equal(t, []string{TaskPromotionalWelcomeEmail, TaskWelcomeEmail}, ran)
	assert.Equal(t, models.JobSucceeded, q.byTask(TaskPromotionalWelcomeEmail).Status)
}

func TestWorkerRetriesThenFails(t *testing.T) {
	q := newMemQueue()
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	d := NewDispatcher(q, DefaultMaxRetries, discard())
	d.now = c.now

	attempts := 0
	w := NewWorker(discard(), q, map[string]Handler{
		TaskWelcomeEmail: func(context.Context, models.Job) error {
			attempts++
			return errors.New("smtp: connection refused")
		},
	}, time.Second, 10)
	w.now = c.now

	id, err := d.Enqueue(context.Background(), TaskWelcomeEmail, EmailPayload{Email: "ana@example.com"}, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := w.ProcessOnce(context.Background())
		require.NoError(t, err)
		c.add(time.Hour)
	}

	job := q.jobs[id]
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 4, job.Attempts)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, "smtp: connection refused", job.LastError)
}

func TestWorkerRecoversAfterTransientFailure(t *testing.T) {
	q := newMemQueue()
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	d := NewDispatcher(q, DefaultMaxRetries, discard())
	d.now = c.now

	calls := 0
	w := NewWorker(discard(), q, map[string]Handler{
		TaskVerificationEmail: func(context.Context, models.Job) error {
			calls++
			if calls == 1 {
				return errors.New("timeout")
			}
			return nil
		},
	}, time.Second, 10)
	w.now = c.now

	id, err := d.Enqueue(context.Background(), TaskVerificationEmail, EmailPayload{Email: "ana@example.com"}, nil)
	require.NoError(t, err)

	_, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, q.jobs[id].Status)
	assert.True(t, q.jobs[id].NotBefore.After(c.t))

	c.add(time.Minute)
	_, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.JobSucceeded, q.jobs[id].Status)
	assert.Equal(t, 2, calls)
}

func TestWorkerFailsUnknownTaskAndIsolatesPanics(t *testing.T) {
	q := newMemQueue()
	d := NewDispatcher(q, 0, discard())
	w := NewWorker(discard(), q, map[string]Handler{
		TaskWelcomeEmail: func(context.Context, models.Job) error { panic("boom") },
		TaskPasswordResetEmail: func(context.Context, models.Job) error {
			return nil
		},
	}, time.Second, 10)

	ctx := context.Background()
	unknown, err := d.Enqueue(ctx, "sendNewsletter", nil, nil)
	require.NoError(t, err)
	panicky, err := d.Enqueue(ctx, TaskWelcomeEmail, EmailPayload{Email: "a@b.c"}, nil)
	require.NoError(t, err)
	fine, err := d.Enqueue(ctx, TaskPasswordResetEmail, EmailPayload{Email: "a@b.c"}, nil)
	require.NoError(t, err)

	_, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, q.jobs[unknown].Status)
	assert.Equal(t, models.JobFailed, q.jobs[panicky].Status)
	assert.Contains(t, q.jobs[panicky].LastError, "panic")
	assert.Equal(t, models.JobSucceeded, q.jobs[fine].Status)
}

type recordingSender struct {
	sent []mail.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func TestEmailHandlers(t *testing.T) {
	tpl, err := mail.LoadTemplates("Academy", "https://academy.test")
	require.NoError(t, err)
	sender := &recordingSender{}
	handlers := EmailHandlers(sender, tpl, "Academy", "https://academy.test/", "https://api.academy.test")

	require.Len(t, handlers, 4)
	payload, _ := json.Marshal(EmailPayload{Email: "ana@example.com", FullName: "Ana", Token: "abc123"})

	require.NoError(t, handlers[TaskVerificationEmail](context.Background(), models.Job{Payload: payload}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ana@example.com", sender.sent[0].To)
	assert.Equal(t, "Verify your Academy account", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].HTML, "https://api.academy.test/api/auth/verify?token=abc123")

	require.NoError(t, handlers[TaskPromotionalWelcomeEmail](context.Background(), models.Job{Payload: payload}))
	assert.Equal(t, "Getting Started With Academy", sender.sent[1].Subject)

	sender.err = errors.New("smtp down")
	assert.Error(t, handlers[TaskWelcomeEmail](context.Background(), models.Job{Payload: payload}))

	empty, _ := json.Marshal(EmailPayload{})
	assert.Error(t, handlers[TaskPasswordResetEmail](context.Background(), models.Job{Payload: empty}))
}
