package payment

import "fmt"

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"

	// SessionIDPlaceholder is substituted by the provider in the success URL.
	SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
)

// LineItem is one purchasable line. UnitAmount is in minor units (paise).
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int
	Currency   string
}

type SessionRequest struct {
	LineItems         []LineItem
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
}

type Session struct {
	ID                string
	URL               string
	PaymentStatus     string
	PaymentIntentID   string
	ClientReferenceID string
}

func (s *Session) IsPaid() bool {
	return s != nil && s.PaymentStatus == PaymentStatusPaid
}

// APIError is the error object returned by the provider on non-2xx responses.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (%s, status %d): %s", e.Type, e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("stripe: %s (status %d): %s", e.Type, e.HTTPStatus, e.Message)
}
