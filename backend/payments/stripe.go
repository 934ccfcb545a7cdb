package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"academy/backend/models"
)

const (
	eventSessionCompleted    = "checkout.session.completed"
	eventAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
	eventAsyncPaymentFailed  = "checkout.session.async_payment_failed"
	eventSessionExpired      = "checkout.session.expired"
)

type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(apiKey, webhookSecret string) *Stripe {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Stripe{api: api, webhookSecret: webhookSecret}
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	metadata := map[string]string{
		"orderId":  req.OrderID,
		"userId":   strconv.FormatUint(uint64(req.UserID), 10),
		"courseId": strconv.FormatUint(uint64(req.CourseID), 10),
	}

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.Description != "" {
		product.Description = stripe.String(req.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(req.Amount),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &Session{ID: cs.ID, URL: cs.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	switch out.Type {
	case eventSessionCompleted, eventAsyncPaymentSuccess, eventAsyncPaymentFailed, eventSessionExpired:
	default:
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return Event{}, fmt.Errorf("decode checkout session: %w", err)
	}
	return sessionEvent(out, &cs), nil
}

func sessionEvent(out Event, cs *stripe.CheckoutSession) Event {
	out.SessionID = cs.ID
	out.OrderID = cs.Metadata["orderId"]
	if out.OrderID == "" {
		out.OrderID = cs.ClientReferenceID
	}
	if cs.PaymentIntent != nil {
		out.TransactionID = cs.PaymentIntent.ID
	}
	if len(cs.PaymentMethodTypes) > 0 {
		out.PaymentMethod = cs.PaymentMethodTypes[0]
	}

	switch out.Type {
	case eventSessionCompleted:
		// Delayed methods complete the session unpaid and follow up with an
		// async_payment event.
		if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			out.Outcome = models.PurchasePaid
		}
	case eventAsyncPaymentSuccess:
		out.Outcome = models.PurchasePaid
	case eventAsyncPaymentFailed, eventSessionExpired:
		out.Outcome = models.PurchaseFailed
	}
	return out
}
