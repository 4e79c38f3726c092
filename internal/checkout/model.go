package checkout

import (
	"math"
	"net/url"

	"vipra-store/internal/flash"
	"vipra-store/internal/order"
	"vipra-store/internal/product"
)

const (
	CheckoutPath = "/checkout/"
	HomePath     = "/"

	quantityFieldPrefix = "qty_"

	// maxAmount is the largest quantity or rupee total the INTEGER columns hold.
	maxAmount = math.MaxInt32
)

// User-facing messages.
const (
	MsgEmptyCart      = "Please select at least one product quantity to continue."
	MsgTotalTooLarge  = "The order total is too large. Please reduce the quantities and try again."
	MsgGatewayDown    = "Payment service is temporarily unavailable. Please try again."
	MsgUnknownSession = "We could not find an order for this payment session."
	MsgVerifyFailed   = "Unable to verify payment status. Please try again."
	MsgPaid           = "Payment successful! Your order has been confirmed."
	MsgNotPaid        = "Payment not completed. No charge was made."
)

// Request is a checkout submission. BaseURL is the scheme and host the
// caller reached us on, used for the provider's return URLs.
type Request struct {
	UserID  *uint
	Method  string
	Form    url.Values
	BaseURL string
}

// Result tells the web layer what to do next. An empty Redirect means the
// storefront should be rendered in the same response.
type Result struct {
	Redirect string
	Code     int
	Message  *flash.Message
	OrderID  uint
}

func (r *Result) IsRedirect() bool {
	return r != nil && r.Redirect != ""
}

// Storefront is the data behind the home page.
type Storefront struct {
	Products   []product.Product
	PaidOrders []order.Order
}

type Options struct {
	// BaseURL overrides the request-derived base when set.
	BaseURL  string
	Currency string
	LoginURL string
}
