package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"vipra-store/internal/flash"
	"vipra-store/internal/logger"
	"vipra-store/internal/metrics"
	"vipra-store/internal/order"
	"vipra-store/internal/payment"
	"vipra-store/internal/product"

	"go.uber.org/zap"
)

type Service interface {
	Initiate(ctx context.Context, req Request) (*Result, error)
	Reconcile(ctx context.Context, sessionID string) (*Result, error)
	Storefront(ctx context.Context, userID *uint) (*Storefront, error)
}

type service struct {
	products product.Repository
	orders   order.Repository
	gateway  payment.Gateway
	opts     Options
}

func NewService(products product.Repository, orders order.Repository, gateway payment.Gateway, opts Options) Service {
	if opts.LoginURL == "" {
		opts.LoginURL = "/login/"
	}
	if opts.Currency == "" {
		opts.Currency = "inr"
	}
	opts.Currency = strings.ToLower(opts.Currency)
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &service{
		products: products,
		orders:   orders,
		gateway:  gateway,
		opts:     opts,
	}
}

func (s *service) Initiate(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Initiate"),
	)

	if req.UserID == nil {
		metrics.ObserveCheckout(metrics.CheckoutUnauthenticated)
		return &Result{
			Redirect: s.opts.LoginURL + "?next=" + CheckoutPath,
			Code:     http.StatusFound,
		}, nil
	}
	log = log.With(zap.Uint("user_id", *req.UserID))

	if req.Method != http.MethodPost {
		metrics.ObserveCheckout(metrics.CheckoutNotSubmitted)
		return redirectHome(nil), nil
	}

	products, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	o, err := s.orders.Create(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	log = log.With(zap.Uint("order_id", o.ID))

	var (
		lines []payment.LineItem
		total int
	)
	for _, p := range products {
		qty := parseQuantity(req.Form.Get(quantityFieldPrefix + strconv.FormatUint(uint64(p.ID), 10)))
		if qty <= 0 {
			continue
		}

		if int64(total)+int64(p.PriceINR)*int64(qty) > maxAmount {
			if err := s.orders.Delete(ctx, o.ID); err != nil {
				return nil, fmt.Errorf("discard oversized order: %w", err)
			}
			log.Warn("checkout rejected: total exceeds limit",
				zap.Uint("product_id", p.ID), zap.Int("quantity", qty))
			metrics.ObserveCheckout(metrics.CheckoutTooLarge)
			return redirectHome(flash.Error(MsgTotalTooLarge)), nil
		}

		item := &order.OrderItem{
			OrderID:      o.ID,
			ProductID:    p.ID,
			ProductName:  p.Name,
			Quantity:     qty,
			UnitPriceINR: p.PriceINR,
		}
		if err := s.orders.CreateItem(ctx, item); err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		lines = append(lines, payment.LineItem{
			Name:       p.Name,
			UnitAmount: int64(p.PriceINR) * 100,
			Quantity:   qty,
			Currency:   s.opts.Currency,
		})
		total += item.Subtotal()
	}

	if len(lines) == 0 {
		if err := s.orders.Delete(ctx, o.ID); err != nil {
			return nil, fmt.Errorf("discard empty order: %w", err)
		}
		log.Info("checkout rejected: no positive quantities")
		metrics.ObserveCheckout(metrics.CheckoutEmptyCart)
		return redirectHome(flash.Error(MsgEmptyCart)), nil
	}

	if err := s.orders.UpdateTotal(ctx, o.ID, total); err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}

	base := s.baseURL(req.BaseURL)
	sess, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		LineItems:         lines,
		SuccessURL:        base + HomePath + "?session_id=" + payment.SessionIDPlaceholder,
		CancelURL:         base + HomePath,
		ClientReferenceID: strconv.FormatUint(uint64(o.ID), 10),
	})
	if err != nil {
		log.Error("payment session creation failed", zap.Error(err))
		if cerr := s.orders.MarkCanceled(ctx, o.ID); cerr != nil {
			log.Error("failed to cancel order after gateway error", zap.Error(cerr))
		}
		metrics.ObserveCheckout(metrics.CheckoutGatewayError)
		res := redirectHome(flash.Error(MsgGatewayDown))
		res.OrderID = o.ID
		return res, nil
	}

	if err := s.orders.AttachSession(ctx, o.ID, sess.ID); err != nil {
		return nil, fmt.Errorf("attach payment session: %w", err)
	}

	log.Info("checkout redirected to payment",
		zap.String("session_id", sess.ID),
		zap.Int("total_amount_inr", total),
		zap.Int("lines", len(lines)),
	)
	metrics.ObserveCheckout(metrics.CheckoutRedirected)

	return &Result{
		Redirect: sess.URL,
		Code:     http.StatusSeeOther,
		OrderID:  o.ID,
	}, nil
}

func (s *service) Reconcile(ctx context.Context, sessionID string) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Reconcile"),
		zap.String("session_id", sessionID),
	)

	o, err := s.orders.GetBySessionID(ctx, sessionID)
	if errors.Is(err, order.ErrOrderNotFound) {
		log.Warn("no order for payment session")
		metrics.ObserveReconciliation(metrics.ReconcileNotFound)
		return redirectHome(flash.Error(MsgUnknownSession)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order by session: %w", err)
	}
	log = log.With(zap.Uint("order_id", o.ID))

	if o.Status.IsTerminal() {
		log.Debug("order already settled", zap.String("status", string(o.Status)))
		metrics.ObserveReconciliation(metrics.ReconcileSkipped)
		return &Result{OrderID: o.ID}, nil
	}

	sess, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		log.Error("payment session retrieval failed", zap.Error(err))
		metrics.ObserveReconciliation(metrics.ReconcileVerifyError)
		res := redirectHome(flash.Error(MsgVerifyFailed))
		res.OrderID = o.ID
		return res, nil
	}

	if !sess.IsPaid() {
		log.Info("payment not completed", zap.String("payment_status", sess.PaymentStatus))
		metrics.ObserveReconciliation(metrics.ReconcileNotPaid)
		res := redirectHome(flash.Error(MsgNotPaid))
		res.OrderID = o.ID
		return res, nil
	}

	err = s.orders.MarkPaid(ctx, o.ID, sess.PaymentIntentID)
	switch {
	case errors.Is(err, order.ErrInvalidTransition):
		// A concurrent reconciliation got there first.
		log.Info("order already confirmed by another request")
	case err != nil:
		return nil, fmt.Errorf("mark order paid: %w", err)
	default:
		log.Info("order paid", zap.String("payment_intent_id", sess.PaymentIntentID))
	}
	metrics.ObserveReconciliation(metrics.ReconcilePaid)

	return &Result{Message: flash.Success(MsgPaid), OrderID: o.ID}, nil
}

func (s *service) Storefront(ctx context.Context, userID *uint) (*Storefront, error) {
	products, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	sf := &Storefront{Products: products}
	if userID == nil {
		return sf, nil
	}

	sf.PaidOrders, err = s.orders.ListPaidByUser(ctx, *userID)
	if err != nil {
		return nil, fmt.Errorf("load paid orders: %w", err)
	}
	return sf, nil
}

func (s *service) baseURL(fromRequest string) string {
	if s.opts.BaseURL != "" {
		return s.opts.BaseURL
	}
	return strings.TrimRight(fromRequest, "/")
}

func redirectHome(msg *flash.Message) *Result {
	return &Result{Redirect: HomePath, Code: http.StatusFound, Message: msg}
}

// parseQuantity treats anything that is not a positive integer within the
// column range as zero.
func parseQuantity(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 || n > maxAmount {
		return 0
	}
	return n
}
