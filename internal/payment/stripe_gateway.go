package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vipra-store/internal/config"
	"vipra-store/internal/logger"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"go.uber.org/zap"
)

type stripeGateway struct {
	sessions   checkoutsession.Client
	currency   string
	httpClient *http.Client
}

// NewStripeGateway builds a Checkout client with its own backend, so the key
// and base URL come from cfg rather than stripe-go's package globals.
func NewStripeGateway(cfg config.Stripe) Gateway {
	if cfg.SecretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}

	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = stripe.APIURL
	}

	httpClient := &http.Client{
		Timeout: 15 * time.Second,
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        httpClient,
		URL:               stripe.String(baseURL),
		MaxNetworkRetries: stripe.Int64(0),
		EnableTelemetry:   stripe.Bool(false),
		LeveledLogger:     logger.L().Named("stripe").Sugar(),
	})

	return &stripeGateway{
		sessions:   checkoutsession.Client{B: backend, Key: cfg.SecretKey},
		currency:   strings.ToLower(cfg.Currency),
		httpClient: httpClient,
	}
}

func (s *stripeGateway) CreateSession(ctx context.Context, in SessionRequest) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("method", "CreateSession"),
		zap.String("client_reference_id", in.ClientReferenceID),
		zap.Int("line_items", len(in.LineItems)),
	)

	if len(in.LineItems) == 0 {
		return nil, errors.New("stripe: at least one line item is required")
	}

	params := s.sessionParams(in)
	params.Context = ctx

	log.Info("creating stripe checkout session")

	cs, err := s.sessions.New(params)
	if err != nil {
		log.Error("stripe create session failed", zap.Error(err))
		return nil, translateError(err)
	}

	log.Info("stripe checkout session created", zap.String("session_id", cs.ID))
	return toSession(cs), nil
}

func (s *stripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("method", "RetrieveSession"),
		zap.String("session_id", sessionID),
	)

	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("stripe: session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := s.sessions.Get(sessionID, params)
	if err != nil {
		log.Error("stripe retrieve session failed", zap.Error(err))
		return nil, translateError(err)
	}

	log.Info("stripe checkout session retrieved", zap.String("payment_status", string(cs.PaymentStatus)))
	return toSession(cs), nil
}

func (s *stripeGateway) sessionParams(in SessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
	}
	if in.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(in.ClientReferenceID)
	}

	for _, item := range in.LineItems {
		currency := item.Currency
		if currency == "" {
			currency = s.currency
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	return params
}

// translateError keeps stripe-go types out of callers.
func translateError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &APIError{
			HTTPStatus: se.HTTPStatusCode,
			Type:       string(se.Type),
			Code:       string(se.Code),
			Message:    se.Msg,
		}
	}
	return fmt.Errorf("stripe request: %w", err)
}

func toSession(cs *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:                cs.ID,
		URL:               cs.URL,
		PaymentStatus:     string(cs.PaymentStatus),
		ClientReferenceID: cs.ClientReferenceID,
	}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	return out
}
