package purchase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/backend/apperr"
	"academy/backend/models"
	"academy/backend/payments"
)

type fakeStore struct {
	mu        sync.Mutex
	courses   map[uint]models.Course
	purchases map[uint]models.Purchase
	enrolled  map[[2]uint]bool
	nextID    uint
}

func newFakeStore() *fakeStore {
	c := models.Course{Title: "Risk 101", Slug: "risk-101", Excerpt: "basics", Price: 99900, IsPublished: true}
	c.ID = 7
	return &fakeStore{
		courses:   map[uint]models.Course{7: c},
		purchases: map[uint]models.Purchase{},
		enrolled:  map[[2]uint]bool{},
	}
}

func (s *fakeStore) FindCourse(_ context.Context, id uint) (*models.Course, error) {
	c, ok := s.courses[id]
	if !ok {
		return nil, apperr.NotFound("course")
	}
	return &c, nil
}

func (s *fakeStore) FindUser(_ context.Context, id uint) (*models.User, error) {
	u := models.User{Email: "buyer@example.com"}
	u.ID = id
	return &u, nil
}

func (s *fakeStore) EnrollmentExists(_ context.Context, userID, courseID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrolled[[2]uint{userID, courseID}], nil
}

func (s *fakeStore) CreatePurchase(_ context.Context, p *models.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.purchases[p.ID] = *p
	return nil
}

func (s *fakeStore) FindPurchase(_ context.Context, id uint) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return nil, apperr.NotFound("purchase")
	}
	return &p, nil
}

func (s *fakeStore) FindPurchaseByOrderID(_ context.Context, orderID string) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("purchase")
}

func (s *fakeStore) SetCheckoutSession(_ context.Context, id uint, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.purchases[id]
	p.CheckoutSessionID = sessionID
	s.purchases[id] = p
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, next *models.Purchase, from models.PurchaseStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.purchases[next.ID]
	if cur.Status != from {
		return false, nil
	}
	cur.Status = next.Status
	cur.PaidAt = next.PaidAt
	cur.TransactionID = next.TransactionID
	cur.PaymentMethod = next.PaymentMethod
	s.purchases[next.ID] = cur
	return true, nil
}

type fakeEnroller struct {
	store *fakeStore
	calls int
}

func (e *fakeEnroller) Create(_ context.Context, userID, courseID uint) (*models.Enrollment, error) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.calls++
	key := [2]uint{userID, courseID}
	if e.store.enrolled[key] {
		return nil, apperr.ErrDuplicateEnrollment
	}
	e.store.enrolled[key] = true
	return &models.Enrollment{UserID: userID, CourseID: courseID}, nil
}

type fakeGateway struct {
	last payments.SessionRequest
	err  error
}

func (g *fakeGateway) CreateSession(_ context.Context, req payments.SessionRequest) (*payments.Session, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &payments.Session{ID: "cs_1", URL: "https://checkout.test/cs_1"}, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, any) error { return nil }

func newService(t *testing.T) (*Service, *fakeStore, *fakeEnroller, *fakeGateway) {
	t.Helper()
	store := newFakeStore()
	enroller := &fakeEnroller{store: store}
	gateway := &fakeGateway{}
	svc := NewService(store, enroller, gateway, nopPublisher{}, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Currency: "ngn",
		AppURL:   "https://academy.test/",
	})
	return svc, store, enroller, gateway
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to models.PurchaseStatus
		ok       bool
	}{
		{models.PurchasePending, models.PurchasePaid, true},
		{models.PurchasePending, models.PurchaseFailed, true},
		{models.PurchasePaid, models.PurchaseRefunded, true},
		{models.PurchasePending, models.PurchaseRefunded, false},
		{models.PurchasePaid, models.PurchaseFailed, false},
		{models.PurchasePaid, models.PurchasePaid, false},
		{models.PurchaseFailed, models.PurchasePaid, false},
		{models.PurchaseRefunded, models.PurchasePaid, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestApplyKeepsAmountAndCurrency(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := models.Purchase{OrderID: "o1", Amount: 500, Currency: "NGN", Status: models.PurchasePending}

	next, err := Apply(p, Change{Status: models.PurchasePaid, TransactionID: "pi_1"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(500), next.Amount)
	assert.Equal(t, "NGN", next.Currency)
	assert.Equal(t, "pi_1", next.TransactionID)
	require.NotNil(t, next.PaidAt)
	assert.True(t, now.Equal(*next.PaidAt))

	refunded, err := Apply(next, Change{Status: models.PurchaseRefunded}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, now.Equal(*refunded.PaidAt))

	_, err = Apply(refunded, Change{Status: models.PurchasePaid}, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestCheckoutCreatesPendingPurchase(t *testing.T) {
	svc, store, _, gateway := newService(t)

	p, url, err := svc.Checkout(context.Background(), 4, 7)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/cs_1", url)
	assert.Equal(t, models.PurchasePending, p.Status)
	assert.Equal(t, int64(99900), p.Amount)
	assert.Equal(t, "NGN", p.Currency)
	assert.True(t, strings.HasPrefix(p.OrderID, "order_"))
	assert.Equal(t, "cs_1", store.purchases[p.ID].CheckoutSessionID)

	assert.Equal(t, "ngn", gateway.last.Currency)
	assert.Equal(t, p.OrderID, gateway.last.OrderID)
	assert.Equal(t, "https://academy.test/dashboard/courses/risk-101?purchase=success", gateway.last.SuccessURL)
	assert.Equal(t, "https://academy.test/dashboard/courses/risk-101?purchase=cancel", gateway.last.CancelURL)
}

func TestCheckoutRejects(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	c := store.courses[7]
	c.IsPublished = false
	store.courses[8] = withID(c, 8)
	_, _, err := svc.Checkout(ctx, 4, 8)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	store.enrolled[[2]uint{4, 7}] = true
	_, _, err = svc.Checkout(ctx, 4, 7)
	assert.ErrorIs(t, err, apperr.ErrDuplicateEnrollment)
}

func TestCheckoutGatewayErrorFailsPurchase(t *testing.T) {
	svc, store, _, gateway := newService(t)
	gateway.err = errors.New("stripe down")

	_, _, err := svc.Checkout(context.Background(), 4, 7)
	require.Error(t, err)
	require.Len(t, store.purchases, 1)
	for _, p := range store.purchases {
		assert.Equal(t, models.PurchaseFailed, p.Status)
	}
}

func TestDuplicatePaidDeliveryEnrollsOnce(t *testing.T) {
	svc, store, enroller, _ := newService(t)
	ctx := context.Background()
	p, _, err := svc.Checkout(ctx, 4, 7)
	require.NoError(t, err)

	ev := payments.Event{ID: "evt_1", OrderID: p.OrderID, Outcome: models.PurchasePaid, TransactionID: "pi_1"}
	first, err := svc.HandlePaymentEvent(ctx, ev)
	require.NoError(t, err)
	second, err := svc.HandlePaymentEvent(ctx, ev)
	require.NoError(t, err)

	assert.Equal(t, models.PurchasePaid, first.Status)
	assert.Equal(t, models.PurchasePaid, second.Status)
	assert.Equal(t, models.PurchasePaid, store.purchases[p.ID].Status)
	assert.Len(t, store.enrolled, 1)
	assert.Equal(t, 2, enroller.calls)
}

func TestConcurrentPaidDeliveries(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()
	p, _, err := svc.Checkout(ctx, 4, 7)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transition(ctx, p.ID, Change{Status: models.PurchasePaid})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, models.PurchasePaid, store.purchases[p.ID].Status)
	assert.Len(t, store.enrolled, 1)
}

func TestTransitionRejectsInvalid(t *testing.T) {
	svc, _, enroller, _ := newService(t)
	ctx := context.Background()
	p, _, err := svc.Checkout(ctx, 4, 7)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, p.ID, Change{Status: models.PurchaseRefunded})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = svc.Transition(ctx, p.ID, Change{Status: models.PurchaseFailed})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, p.ID, Change{Status: models.PurchasePaid})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Zero(t, enroller.calls)
}

func TestRepeatedStatusOnlyReplaysPaid(t *testing.T) {
	svc, _, enroller, _ := newService(t)
	ctx := context.Background()
	p, _, err := svc.Checkout(ctx, 4, 7)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, p.ID, Change{Status: models.PurchasePending})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = svc.Transition(ctx, p.ID, Change{Status: models.PurchasePaid})
	require.NoError(t, err)
	got, err := svc.Transition(ctx, p.ID, Change{Status: models.PurchasePaid})
	require.NoError(t, err)
	assert.Equal(t, models.PurchasePaid, got.Status)
	assert.Equal(t, 2, enroller.calls)

	q, _, err := svc.Checkout(ctx, 5, 7)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, q.ID, Change{Status: models.PurchaseFailed})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, q.ID, Change{Status: models.PurchaseFailed})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestRefundKeepsEnrollment(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()
	p, _, err := svc.Checkout(ctx, 4, 7)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, p.ID, Change{Status: models.PurchasePaid})
	require.NoError(t, err)
	got, err := svc.Transition(ctx, p.ID, Change{Status: models.PurchaseRefunded})
	require.NoError(t, err)

	assert.Equal(t, models.PurchaseRefunded, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.Len(t, store.enrolled, 1)
}

func TestHandlePaymentEventWithoutOutcome(t *testing.T) {
	svc, _, _, _ := newService(t)
	got, err := svc.HandlePaymentEvent(context.Background(), payments.Event{ID: "evt_2", Type: "customer.created"})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func withID(c models.Course, id uint) models.Course {
	c.ID = id
	return c
}
