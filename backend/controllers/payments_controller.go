package controllers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"academy/backend/access"
	"academy/backend/apperr"
	"academy/backend/cache"
	"academy/backend/models"
	"academy/backend/payments"
	"academy/backend/purchase"
	"academy/backend/utils"
)

// WebhookParser verifies and decodes gateway webhook deliveries.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (payments.Event, error)
}

type PaymentsController struct {
	DB        *gorm.DB
	Purchases *purchase.Service
	Webhooks  WebhookParser
	Deduper   cache.Deduper
	Log       *slog.Logger
}

func NewPaymentsController(db *gorm.DB, purchases *purchase.Service, webhooks WebhookParser,
	deduper cache.Deduper, logger *slog.Logger) *PaymentsController {
	return &PaymentsController{DB: db, Purchases: purchases, Webhooks: webhooks, Deduper: deduper, Log: logger}
}

type CheckoutRequest struct {
	CourseID uint `json:"course_id" validate:"required"`
}

type TransitionRequest struct {
	Status        string `json:"status" validate:"required,oneof=paid failed refunded"`
	TransactionID string `json:"transaction_id"`
	PaymentMethod string `json:"payment_method"`
}

func (pc *PaymentsController) List(c *fiber.Ctx) error {
	decision, err := access.Authorize(utils.Principal(c), access.ResourcePurchase, access.OpRead)
	if err != nil {
		return utils.HandleError(c, err)
	}
	page, pageSize := pageParams(c)

	q := pc.DB.WithContext(c.UserContext()).Model(&models.Purchase{}).Scopes(decision.Scope())
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.HandleError(c, err)
	}
	var list []models.Purchase
	if err := q.Order("id DESC").Offset(offset(page, pageSize)).Limit(pageSize).Find(&list).Error; err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Paginate(c, list, total, page, pageSize)
}

func (pc *PaymentsController) Get(c *fiber.Ctx) error {
	decision, err := access.Authorize(utils.Principal(c), access.ResourcePurchase, access.OpRead)
	if err != nil {
		return utils.HandleError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}
	var p models.Purchase
	if err := pc.DB.WithContext(c.UserContext()).Scopes(decision.Scope()).First(&p, id).Error; err != nil {
		return utils.HandleError(c, notFoundOr(err, "purchase"))
	}
	return utils.Success(c, fiber.StatusOK, p)
}

// Checkout opens a pending purchase for the caller and returns the hosted
// payment page URL.
func (pc *PaymentsController) Checkout(c *fiber.Ctx) error {
	var input CheckoutRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}
	p, url, err := pc.Purchases.Checkout(c.UserContext(), utils.Principal(c).UserID, input.CourseID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Created(c, fiber.Map{"purchase": p, "url": url})
}

// StripeWebhook applies a verified delivery once per event id. Failures
// release the id so the gateway's redelivery is processed.
func (pc *PaymentsController) StripeWebhook(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ev, err := pc.Webhooks.ParseWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		pc.Log.WarnContext(ctx, "rejected webhook", "module", "payments", "error", err)
		if errors.Is(err, payments.ErrSignature) {
			return utils.BadRequest(c, "Invalid signature")
		}
		return utils.BadRequest(c, "Invalid payload")
	}

	claimed, err := pc.Deduper.Claim(ctx, ev.ID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	if !claimed {
		pc.Log.InfoContext(ctx, "duplicate webhook delivery", "module", "payments", "event_id", ev.ID)
		return utils.Success(c, fiber.StatusOK, fiber.Map{"received": true, "duplicate": true})
	}

	p, err := pc.Purchases.HandlePaymentEvent(ctx, ev)
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrValidation):
		// Redelivery cannot fix an unknown order.
		pc.Log.WarnContext(ctx, "webhook for unknown order",
			"module", "payments", "event_id", ev.ID, "order_id", ev.OrderID, "error", err)
		return utils.Success(c, fiber.StatusOK, fiber.Map{"received": true})
	case errors.Is(err, apperr.ErrInvalidTransition):
		pc.Log.WarnContext(ctx, "webhook transition rejected",
			"module", "payments", "event_id", ev.ID, "order_id", ev.OrderID, "error", err)
		return utils.Success(c, fiber.StatusOK, fiber.Map{"received": true})
	case err != nil:
		if rerr := pc.Deduper.Release(ctx, ev.ID); rerr != nil {
			pc.Log.ErrorContext(ctx, "release webhook id", "event_id", ev.ID, "error", rerr)
		}
		return utils.HandleError(c, err)
	}

	resp := fiber.Map{"received": true}
	if p != nil {
		resp["order_id"] = p.OrderID
		resp["status"] = p.Status
	}
	return utils.Success(c, fiber.StatusOK, resp)
}

// Transition lets an admin drive a purchase directly, e.g. to record a
// refund.
func (pc *PaymentsController) Transition(c *fiber.Ctx) error {
	if _, err := access.Authorize(utils.Principal(c), access.ResourcePurchase, access.OpUpdate); err != nil {
		return utils.HandleError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}
	var input TransitionRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}

	p, err := pc.Purchases.Transition(c.UserContext(), id, purchase.Change{
		Status:        models.PurchaseStatus(input.Status),
		TransactionID: input.TransactionID,
		PaymentMethod: input.PaymentMethod,
	})
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, p)
}
