// Package payments collects settlement payments through Stripe.
package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"

	"github.com/travelties/service_layer/internal/app/domain/expense"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

const eventIntentSucceeded = "payment_intent.succeeded"

// Settlements is the part of the expenses service payments drive.
type Settlements interface {
	Settlement(ctx context.Context, userID, tripID, id string) (expense.Settlement, error)
	AttachPaymentIntent(ctx context.Context, st expense.Settlement, intentID string) (expense.Settlement, error)
	CompleteByPaymentIntent(ctx context.Context, intentID string) (expense.Settlement, error)
}

// Options configures the Stripe client. Backends overrides the API endpoint
// and is nil in production.
type Options struct {
	SecretKey     string
	WebhookSecret string
	Backends      *stripe.Backends
}

// Intent is returned to the client to confirm the payment.
type Intent struct {
	SettlementID    string `json:"settlementId"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// Service creates payment intents and consumes Stripe webhooks.
type Service struct {
	api           *client.API
	webhookSecret string
	settlements   Settlements
	log           *logger.Logger
}

// New returns a payments service. An empty secret key leaves it disabled.
func New(opts Options, settlements Settlements, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	s := &Service{webhookSecret: opts.WebhookSecret, settlements: settlements, log: log}
	if strings.TrimSpace(opts.SecretKey) != "" {
		s.api = client.New(opts.SecretKey, opts.Backends)
	}
	return s
}

// Enabled reports whether a Stripe key is configured.
func (s *Service) Enabled() bool { return s.api != nil }

// zeroDecimal lists currencies Stripe charges in whole units.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// MinorUnits converts a settlement amount to the integer Stripe expects.
func MinorUnits(st expense.Settlement) int64 {
	if zeroDecimal[strings.ToUpper(st.Currency)] {
		return st.Amount.Round(0).IntPart()
	}
	return st.Amount.Shift(2).Round(0).IntPart()
}

// CreateIntent opens a payment intent for a pending settlement. Only the
// paying member may start a payment.
func (s *Service) CreateIntent(ctx context.Context, userID, tripID, settlementID string) (Intent, error) {
	if !s.Enabled() {
		return Intent{}, svcerrors.NotConfigured("payments")
	}
	st, err := s.settlements.Settlement(ctx, userID, tripID, settlementID)
	if err != nil {
		return Intent{}, err
	}
	if st.From != userID {
		return Intent{}, svcerrors.Forbidden("only the paying member can start a payment")
	}
	if st.Status == expense.SettlementCompleted {
		return Intent{}, svcerrors.Conflict("settlement is already completed")
	}

	amount := MinorUnits(st)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(st.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("settlement-" + st.ID)
	params.AddMetadata("trip_id", st.TripID)
	params.AddMetadata("settlement_id", st.ID)

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		s.log.WithError(err).WithField("settlement_id", st.ID).Warn("create payment intent failed")
		return Intent{}, svcerrors.Internal("create payment intent", err)
	}
	if _, err := s.settlements.AttachPaymentIntent(ctx, st, pi.ID); err != nil {
		return Intent{}, err
	}
	s.log.WithField("settlement_id", st.ID).WithField("payment_intent", pi.ID).Info("payment intent created")
	return Intent{
		SettlementID:    st.ID,
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Amount:          amount,
		Currency:        strings.ToLower(st.Currency),
	}, nil
}

// HandleWebhook verifies a Stripe event and completes the settlement of a
// succeeded payment intent. Unknown intents and other event types are
// acknowledged without action.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return svcerrors.NotConfigured("payments webhook")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.log.WithError(err).Warn("rejected webhook")
		return svcerrors.BadRequest("invalid webhook signature")
	}
	if string(event.Type) != eventIntentSucceeded {
		s.log.WithField("type", string(event.Type)).Debug("ignoring webhook event")
		return nil
	}

	intentID := gjson.GetBytes(event.Data.Raw, "id").String()
	if intentID == "" {
		return svcerrors.BadRequest("payment intent id missing")
	}
	st, err := s.settlements.CompleteByPaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, svcerrors.ErrNotFound) {
			s.log.WithField("payment_intent", intentID).
				WithField("settlement_id", gjson.GetBytes(event.Data.Raw, "metadata.settlement_id").String()).
				Warn("no settlement for payment intent")
			return nil
		}
		return err
	}
	s.log.WithField("settlement_id", st.ID).WithField("payment_intent", intentID).Info("settlement paid")
	return nil
}
