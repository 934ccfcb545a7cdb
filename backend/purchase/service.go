package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"academy/backend/apperr"
	"academy/backend/events"
	"academy/backend/models"
	"academy/backend/payments"
)

// Store persists purchases.
//
// UpdateStatus writes next only while the stored status is still from, and
// reports whether the row was changed. Amount and currency are never part of
// the update.
type Store interface {
	FindCourse(ctx context.Context, id uint) (*models.Course, error)
	FindUser(ctx context.Context, id uint) (*models.User, error)
	EnrollmentExists(ctx context.Context, userID, courseID uint) (bool, error)
	CreatePurchase(ctx context.Context, p *models.Purchase) error
	FindPurchase(ctx context.Context, id uint) (*models.Purchase, error)
	FindPurchaseByOrderID(ctx context.Context, orderID string) (*models.Purchase, error)
	SetCheckoutSession(ctx context.Context, id uint, sessionID string) error
	UpdateStatus(ctx context.Context, next *models.Purchase, from models.PurchaseStatus) (bool, error)
}

// Enroller is the enrollment side effect of a paid purchase.
type Enroller interface {
	Create(ctx context.Context, userID, courseID uint) (*models.Enrollment, error)
}

// Gateway opens hosted payment sessions.
type Gateway interface {
	CreateSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error)
}

type Config struct {
	Currency string
	AppURL   string
}

type Service struct {
	store    Store
	enroller Enroller
	gateway  Gateway
	events   events.Publisher
	log      *slog.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(store Store, enroller Enroller, gateway Gateway, publisher events.Publisher, logger *slog.Logger, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "ngn"
	}
	return &Service{
		store:    store,
		enroller: enroller,
		gateway:  gateway,
		events:   publisher,
		log:      logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NewOrderID returns order_<unix millis>_<random>.
func NewOrderID(now time.Time) string {
	frag := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("order_%d_%s", now.UnixMilli(), frag)
}

// Create records a pending purchase of courseID at the course's current
// price.
func (s *Service) Create(ctx context.Context, userID, courseID uint) (*models.Purchase, *models.Course, error) {
	course, err := s.store.FindCourse(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	if !course.IsPublished || course.IsFree || course.Price <= 0 {
		return nil, nil, apperr.Invalid("course_id", "course is not available for purchase")
	}
	enrolled, err := s.store.EnrollmentExists(ctx, userID, courseID)
	if err != nil {
		return nil, nil, err
	}
	if enrolled {
		return nil, nil, apperr.ErrDuplicateEnrollment
	}

	p := &models.Purchase{
		OrderID:  NewOrderID(s.now()),
		UserID:   userID,
		CourseID: courseID,
		Amount:   course.Price,
		Currency: strings.ToUpper(s.cfg.Currency),
		Status:   models.PurchasePending,
	}
	if err := s.store.CreatePurchase(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("create purchase: %w", err)
	}
	return p, course, nil
}

// Checkout creates a pending purchase and a gateway session for it, and
// returns the purchase with the URL the buyer should be sent to.
func (s *Service) Checkout(ctx context.Context, userID, courseID uint) (*models.Purchase, string, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	p, course, err := s.Create(ctx, userID, courseID)
	if err != nil {
		return nil, "", err
	}

	base := strings.TrimRight(s.cfg.AppURL, "/") + "/dashboard/courses/" + course.Slug
	session, err := s.gateway.CreateSession(ctx, payments.SessionRequest{
		Amount:        p.Amount,
		Currency:      strings.ToLower(p.Currency),
		ProductName:   course.Title,
		Description:   course.Excerpt,
		SuccessURL:    base + "?purchase=success",
		CancelURL:     base + "?purchase=cancel",
		CustomerEmail: user.Email,
		OrderID:       p.OrderID,
		UserID:        userID,
		CourseID:      courseID,
	})
	if err != nil {
		if _, ferr := s.Transition(ctx, p.ID, Change{Status: models.PurchaseFailed}); ferr != nil {
			s.log.ErrorContext(ctx, "failed to close purchase after gateway error", "order_id", p.OrderID, "error", ferr)
		}
		return nil, "", fmt.Errorf("create payment session: %w", err)
	}

	if err := s.store.SetCheckoutSession(ctx, p.ID, session.ID); err != nil {
		return nil, "", err
	}
	p.CheckoutSessionID = session.ID
	return p, session.URL, nil
}

// Transition moves purchase id to ch.Status. Repeating paid on a paid
// purchase is accepted as a replay: nothing changes and the enrollment is
// re-attempted. Any other repeat is an invalid transition.
func (s *Service) Transition(ctx context.Context, id uint, ch Change) (*models.Purchase, error) {
	p, err := s.store.FindPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p, ch)
}

// HandlePaymentEvent applies a verified gateway event to its purchase.
// Events without an outcome are ignored.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev payments.Event) (*models.Purchase, error) {
	if ev.Outcome == "" {
		return nil, nil
	}
	if ev.OrderID == "" {
		return nil, apperr.Invalid("order_id", "payment event carries no order id")
	}
	p, err := s.store.FindPurchaseByOrderID(ctx, ev.OrderID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p, Change{
		Status:        ev.Outcome,
		TransactionID: ev.TransactionID,
		PaymentMethod: ev.PaymentMethod,
	})
}

func (s *Service) apply(ctx context.Context, p *models.Purchase, ch Change) (*models.Purchase, error) {
	if p.Status == models.PurchasePaid && ch.Status == models.PurchasePaid {
		s.log.InfoContext(ctx, "purchase transition replayed",
			"module", "purchase", "operation", "transition", "order_id", p.OrderID, "status", p.Status)
		if err := s.afterPaid(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	next, err := Apply(*p, ch, s.now())
	if err != nil {
		return nil, err
	}
	changed, err := s.store.UpdateStatus(ctx, &next, p.Status)
	if err != nil {
		return nil, fmt.Errorf("update purchase %s: %w", p.OrderID, err)
	}
	if !changed {
		// Another delivery got there first.
		current, err := s.store.FindPurchase(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.PurchasePaid || ch.Status != models.PurchasePaid {
			return nil, fmt.Errorf("purchase %s is now %s: %w", current.OrderID, current.Status, apperr.ErrInvalidTransition)
		}
		if err := s.afterPaid(ctx, current); err != nil {
			return nil, err
		}
		return current, nil
	}

	s.log.InfoContext(ctx, "purchase transitioned",
		"module", "purchase",
		"operation", "transition",
		"order_id", next.OrderID,
		"from", p.Status,
		"to", next.Status,
	)
	if err := s.events.Publish(ctx, events.PurchaseStatusChanged, next.OrderID, map[string]any{
		"order_id":  next.OrderID,
		"user_id":   next.UserID,
		"course_id": next.CourseID,
		"from":      p.Status,
		"to":        next.Status,
	}); err != nil {
		s.log.WarnContext(ctx, "publish purchase event failed", "order_id", next.OrderID, "error", err)
	}

	if err := s.afterPaid(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// afterPaid enrolls the buyer when p is paid with a payment time. An existing
// enrollment counts as success.
func (s *Service) afterPaid(ctx context.Context, p *models.Purchase) error {
	if p.Status != models.PurchasePaid || p.PaidAt == nil {
		return nil
	}
	_, err := s.enroller.Create(ctx, p.UserID, p.CourseID)
	if errors.Is(err, apperr.ErrDuplicateEnrollment) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enroll buyer of %s: %w", p.OrderID, err)
	}
	return nil
}
