package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"vipra-store/internal/flash"
	"vipra-store/internal/metrics"
	"vipra-store/internal/order"
	"vipra-store/internal/payment"
	"vipra-store/internal/product"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	products *MockProductRepository
	orders   *MockOrderRepository
	gateway  *MockGateway
	svc      Service
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		products: new(MockProductRepository),
		orders:   new(MockOrderRepository),
		gateway:  new(MockGateway),
	}
	f.svc = NewService(f.products, f.orders, f.gateway, opts)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.products.AssertExpectations(t)
	f.orders.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func uintPtr(v uint) *uint { return &v }

var catalog = []product.Product{
	{ID: 1, Name: "Masala Chai", PriceINR: 100, IsActive: true},
	{ID: 2, Name: "Filter Coffee", PriceINR: 150, IsActive: true},
}

func postForm(userID *uint, values map[string]string) Request {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	return Request{UserID: userID, Method: http.MethodPost, Form: form, BaseURL: "http://shop.test"}
}

func TestInitiate_Unauthenticated(t *testing.T) {
	f := newFixture(Options{})
	before := testutil.ToFloat64(metrics.CheckoutsTotal.WithLabelValues(metrics.CheckoutUnauthenticated))

	res, err := f.svc.Initiate(context.Background(), postForm(nil, map[string]string{"qty_1": "1"}))
	require.NoError(t, err)

	assert.Equal(t, "/login/?next=/checkout/", res.Redirect)
	assert.Equal(t, http.StatusFound, res.Code)
	assert.Nil(t, res.Message)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CheckoutsTotal.WithLabelValues(metrics.CheckoutUnauthenticated)))
	f.assertExpectations(t)
}

func TestInitiate_NotPost(t *testing.T) {
	f := newFixture(Options{})

	res, err := f.svc.Initiate(context.Background(), Request{UserID: uintPtr(1), Method: http.MethodGet})
	require.NoError(t, err)

	assert.Equal(t, HomePath, res.Redirect)
	assert.Equal(t, http.StatusFound, res.Code)
	f.products.AssertNotCalled(t, "ListActive", mock.Anything)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInitiate_SingleLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	userID := uintPtr(4)

	f.products.On("ListActive", ctx).Return(catalog, nil)
	f.orders.On("Create", ctx, userID).Return(&order.Order{ID: 10, UserID: userID, Status: order.StatusPending}, nil)
	f.orders.On("CreateItem", ctx, mock.MatchedBy(func(i *order.OrderItem) bool {
		return i.OrderID == 10 && i.ProductID == 1 && i.Quantity == 3 && i.UnitPriceINR == 100
	})).Return(nil).Once()
	f.orders.On("UpdateTotal", ctx, uint(10), 300).Return(nil)
	f.gateway.On("CreateSession", ctx, payment.SessionRequest{
		LineItems: []payment.LineItem{
			{Name: "Masala Chai", UnitAmount: 10000, Quantity: 3, Currency: "inr"},
		},
		SuccessURL:        "http://shop.test/?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         "http://shop.test/",
		ClientReferenceID: "10",
	}).Return(&payment.Session{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil)
	f.orders.On("AttachSession", ctx, uint(10), "cs_test_1").Return(nil)

	res, err := f.svc.Initiate(ctx, postForm(userID, map[string]string{"qty_1": "3", "qty_2": "0"}))
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", res.Redirect)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, uint(10), res.OrderID)
	assert.Nil(t, res.Message)
	f.assertExpectations(t)
}

func TestInitiate_MultipleLinesAndLenientParsing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{BaseURL: "https://shop.example.com/", Currency: "INR"})
	userID := uintPtr(4)

	f.products.On("ListActive", ctx).Return(catalog, nil)
	f.orders.On("Create", ctx, userID).Return(&order.Order{ID: 11}, nil)
	f.orders.On("CreateItem", ctx, mock.AnythingOfType("*order.OrderItem")).Return(nil).Twice()
	f.orders.On("UpdateTotal", ctx, uint(11), 2*100+1*150).Return(nil)
	f.gateway.On("CreateSession", ctx, mock.MatchedBy(func(r payment.SessionRequest) bool {
		return len(r.LineItems) == 2 &&
			r.LineItems[0].UnitAmount == 10000 && r.LineItems[0].Quantity == 2 &&
			r.LineItems[1].UnitAmount == 15000 && r.LineItems[1].Quantity == 1 &&
			r.LineItems[1].Currency == "inr" &&
			r.SuccessURL == "https://shop.example.com/?session_id={CHECKOUT_SESSION_ID}" &&
			r.CancelURL == "https://shop.example.com/"
	})).Return(&payment.Session{ID: "cs_test_2", URL: "https://checkout.stripe.test/cs_test_2"}, nil)
	f.orders.On("AttachSession", ctx, uint(11), "cs_test_2").Return(nil)

	res, err := f.svc.Initiate(ctx, postForm(userID, map[string]string{
		"qty_1":  " 2 ",
		"qty_2":  "+1",
		"qty_99": "5",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	f.assertExpectations(t)
}

func TestInitiate_EmptyCart(t *testing.T) {
	inputs := map[string]map[string]string{
		"AllZero":  {"qty_1": "0", "qty_2": "0"},
		"Missing":  {},
		"Invalid":  {"qty_1": "abc", "qty_2": "1.5"},
		"Negative": {"qty_1": "-3"},
		"Overflow": {"qty_1": "92233720368547759"},
		"AboveInt": {"qty_1": "2147483648"},
	}

	for name, values := range inputs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(Options{})
			userID := uintPtr(4)

			f.products.On("ListActive", ctx).Return(catalog, nil)
			f.orders.On("Create", ctx, userID).Return(&order.Order{ID: 12}, nil)
			f.orders.On("Delete", ctx, uint(12)).Return(nil)

			res, err := f.svc.Initiate(ctx, postForm(userID, values))
			require.NoError(t, err)

			assert.Equal(t, HomePath, res.Redirect)
			require.NotNil(t, res.Message)
			assert.Equal(t, flash.LevelError, res.Message.Level)
			assert.Equal(t, MsgEmptyCart, res.Message.Text)

			f.orders.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
			f.orders.AssertNotCalled(t, "UpdateTotal", mock.Anything, mock.Anything, mock.Anything)
			f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
			f.assertExpectations(t)
		})
	}
}

func TestInitiate_GatewayError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	userID := uintPtr(4)
	before := testutil.ToFloat64(metrics.CheckoutsTotal.WithLabelValues(metrics.CheckoutGatewayError))

	f.products.On("ListActive", ctx).Return(catalog, nil)
	f.orders.On("Create", ctx, userID).Return(&order.Order{ID: 13}, nil)
	f.orders.On("CreateItem", ctx, mock.Anything).Return(nil)
	f.orders.On("UpdateTotal", ctx, uint(13), 100).Return(nil)
	f.gateway.On("CreateSession", ctx, mock.Anything).
		Return(nil, &payment.APIError{HTTPStatus: 401, Type: "invalid_request_error", Message: "Invalid API Key"})
	f.orders.On("MarkCanceled", ctx, uint(13)).Return(nil)

	res, err := f.svc.Initiate(ctx, postForm(userID, map[string]string{"qty_1": "1"}))
	require.NoError(t, err)

	assert.Equal(t, HomePath, res.Redirect)
	assert.Equal(t, uint(13), res.OrderID)
	require.NotNil(t, res.Message)
	assert.Equal(t, MsgGatewayDown, res.Message.Text)
	assert.NotContains(t, res.Message.Text, "API Key")
	f.orders.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "AttachSession", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CheckoutsTotal.WithLabelValues(metrics.CheckoutGatewayError)))
	f.assertExpectations(t)
}

func TestInitiate_PersistenceErrors(t *testing.T) {
	ctx := context.Background()
	userID := uintPtr(4)

	t.Run("CatalogUnavailable", func(t *testing.T) {
		f := newFixture(Options{})
		f.products.On("ListActive", ctx).Return(nil, errors.New("db down"))

		_, err := f.svc.Initiate(ctx, postForm(userID, nil))
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("OrderCreateFails", func(t *testing.T) {
		f := newFixture(Options{})
		f.products.On("ListActive", ctx).Return(catalog, nil)
		f.orders.On("Create", ctx, userID).Return(nil, errors.New("insert failed"))

		_, err := f.svc.Initiate(ctx, postForm(userID, map[string]string{"qty_1": "1"}))
		assert.ErrorContains(t, err, "create order")
	})

	t.Run("AttachSessionFails", func(t *testing.T) {
		f := newFixture(Options{})
		f.products.On("ListActive", ctx).Return(catalog, nil)
		f.orders.On("Create", ctx, userID).Return(&order.Order{ID: 14}, nil)
		f.orders.On("CreateItem", ctx, mock.Anything).Return(nil)
		f.orders.On("UpdateTotal", ctx, uint(14), 100).Return(nil)
		f.gateway.On("CreateSession", ctx, mock.Anything).Return(&payment.Session{ID: "cs_dup", URL: "https://x"}, nil)
		f.orders.On("AttachSession", ctx, uint(14), "cs_dup").Return(errors.New("unique violation"))

		_, err := f.svc.Initiate(ctx, postForm(userID, map[string]string{"qty_1": "1"}))
		assert.ErrorContains(t, err, "attach payment session")
	})
}

func TestReconcile_Paid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})
	before := testutil.ToFloat64(metrics.ReconciliationsTotal.WithLabelValues(metrics.ReconcilePaid))

	f.orders.On("GetBySessionID", ctx, "cs_test_1").Return(&order.Order{ID: 10, Status: order.StatusPending}, nil)
	f.gateway.On("RetrieveSession", ctx, "cs_test_1").
		Return(&payment.Session{ID: "cs_test_1", PaymentStatus: "paid", PaymentIntentID: "pi_123"}, nil)
	f.orders.On("MarkPaid", ctx, uint(10), "pi_123").Return(nil)

	res, err := f.svc.Reconcile(ctx, "cs_test_1")
	require.NoError(t, err)

	assert.False(t, res.IsRedirect())
	require.NotNil(t, res.Message)
	assert.Equal(t, flash.LevelSuccess, res.Message.Level)
	assert.Equal(t, MsgPaid, res.Message.Text)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ReconciliationsTotal.WithLabelValues(metrics.ReconcilePaid)))
	f.assertExpectations(t)
}

func TestReconcile_PaidRaceLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	f.orders.On("GetBySessionID", ctx, "cs_test_1").Return(&order.Order{ID: 10, Status: order.StatusPending}, nil)
	f.gateway.On("RetrieveSession", ctx, "cs_test_1").
		Return(&payment.Session{PaymentStatus: "paid", PaymentIntentID: "pi_123"}, nil)
	f.orders.On("MarkPaid", ctx, uint(10), "pi_123").Return(order.ErrInvalidTransition)

	res, err := f.svc.Reconcile(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, MsgPaid, res.Message.Text)
}

func TestReconcile_NotPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	f.orders.On("GetBySessionID", ctx, "cs_test_1").Return(&order.Order{ID: 10, Status: order.StatusPending}, nil)
	f.gateway.On("RetrieveSession", ctx, "cs_test_1").
		Return(&payment.Session{PaymentStatus: "unpaid"}, nil)

	res, err := f.svc.Reconcile(ctx, "cs_test_1")
	require.NoError(t, err)

	assert.Equal(t, HomePath, res.Redirect)
	require.NotNil(t, res.Message)
	assert.Equal(t, flash.LevelError, res.Message.Level)
	assert.Equal(t, MsgNotPaid, res.Message.Text)
	f.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "MarkCanceled", mock.Anything, mock.Anything)
}

func TestReconcile_UnknownSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	f.orders.On("GetBySessionID", ctx, "cs_missing").Return(nil, order.ErrOrderNotFound)

	res, err := f.svc.Reconcile(ctx, "cs_missing")
	require.NoError(t, err)

	assert.Equal(t, HomePath, res.Redirect)
	assert.Equal(t, MsgUnknownSession, res.Message.Text)
	f.gateway.AssertNotCalled(t, "RetrieveSession", mock.Anything, mock.Anything)
}

func TestReconcile_SettledOrdersAreNotReverified(t *testing.T) {
	for _, status := range []order.OrderStatus{order.StatusPaid, order.StatusCanceled} {
		t.Run(string(status), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(Options{})

			f.orders.On("GetBySessionID", ctx, "cs_test_1").Return(&order.Order{ID: 10, Status: status}, nil)

			res, err := f.svc.Reconcile(ctx, "cs_test_1")
			require.NoError(t, err)

			assert.False(t, res.IsRedirect())
			assert.Nil(t, res.Message)
			f.gateway.AssertNotCalled(t, "RetrieveSession", mock.Anything, mock.Anything)
			f.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestReconcile_RetrievalError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	f.orders.On("GetBySessionID", ctx, "cs_test_1").Return(&order.Order{ID: 10, Status: order.StatusPending}, nil)
	f.gateway.On("RetrieveSession", ctx, "cs_test_1").Return(nil, errors.New("timeout"))

	res, err := f.svc.Reconcile(ctx, "cs_test_1")
	require.NoError(t, err)

	assert.Equal(t, HomePath, res.Redirect)
	assert.Equal(t, MsgVerifyFailed, res.Message.Text)
	f.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_LookupError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{})

	f.orders.On("GetBySessionID", ctx, "cs_test_1").Return(nil, errors.New("db down"))

	_, err := f.svc.Reconcile(ctx, "cs_test_1")
	assert.ErrorContains(t, err, "db down")
}

func TestStorefront(t *testing.T) {
	ctx := context.Background()

	t.Run("Anonymous", func(t *testing.T) {
		f := newFixture(Options{})
		f.products.On("ListActive", ctx).Return(catalog, nil)

		sf, err := f.svc.Storefront(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, sf.Products, 2)
		assert.Empty(t, sf.PaidOrders)
		f.orders.AssertNotCalled(t, "ListPaidByUser", mock.Anything, mock.Anything)
	})

	t.Run("WithPaidOrders", func(t *testing.T) {
		f := newFixture(Options{})
		f.products.On("ListActive", ctx).Return(catalog, nil)
		f.orders.On("ListPaidByUser", ctx, uint(4)).Return([]order.Order{{ID: 10, Status: order.StatusPaid}}, nil)

		sf, err := f.svc.Storefront(ctx, uintPtr(4))
		require.NoError(t, err)
		require.Len(t, sf.PaidOrders, 1)
		assert.Equal(t, uint(10), sf.PaidOrders[0].ID)
	})

	t.Run("OrdersError", func(t *testing.T) {
		f := newFixture(Options{})
		f.products.On("ListActive", ctx).Return(catalog, nil)
		f.orders.On("ListPaidByUser", ctx, uint(4)).Return(nil, errors.New("db down"))

		_, err := f.svc.Storefront(ctx, uintPtr(4))
		assert.Error(t, err)
	})
}

func TestInitiate_TotalTooLarge(t *testing.T) {
	t.Run("Single line", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(Options{})
		userID := uintPtr(4)
		before := testutil.ToFloat64(metrics.CheckoutsTotal.WithLabelValues(metrics.CheckoutTooLarge))

		f.products.On("ListActive", ctx).Return(catalog, nil)
		f.orders.On("Create", ctx, userID).Return(&order.Order{ID: 15}, nil)
		f.orders.On("Delete", ctx, uint(15)).Return(nil)

		// 100 * 30,000,000 overflows the INTEGER total column.
		res, err := f.svc.Initiate(ctx, postForm(userID, map[string]string{"qty_1": "30000000"}))
		require.NoError(t, err)

		assert.Equal(t, HomePath, res.Redirect)
		require.NotNil(t, res.Message)
		assert.Equal(t, flash.LevelError, res.Message.Level)
		assert.Equal(t, MsgTotalTooLarge, res.Message.Text)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.CheckoutsTotal.WithLabelValues(metrics.CheckoutTooLarge)))
		f.orders.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
		f.orders.AssertNotCalled(t, "UpdateTotal", mock.Anything, mock.Anything, mock.Anything)
		f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("Running total crosses the limit", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(Options{})
		userID := uintPtr(4)

		f.products.On("ListActive", ctx).Return(catalog, nil)
		f.orders.On("Create", ctx, userID).Return(&order.Order{ID: 16}, nil)
		f.orders.On("CreateItem", ctx, mock.MatchedBy(func(i *order.OrderItem) bool {
			return i.ProductID == 1 && i.Quantity == 20000000
		})).Return(nil).Once()
		f.orders.On("Delete", ctx, uint(16)).Return(nil)

		// 2,000,000,000 fits on its own; adding 150 * 1,000,000 does not.
		res, err := f.svc.Initiate(ctx, postForm(userID, map[string]string{
			"qty_1": "20000000",
			"qty_2": "1000000",
		}))
		require.NoError(t, err)

		require.NotNil(t, res.Message)
		assert.Equal(t, MsgTotalTooLarge, res.Message.Text)
		f.orders.AssertNotCalled(t, "UpdateTotal", mock.Anything, mock.Anything, mock.Anything)
		f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("Exactly at the limit is accepted", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(Options{})
		userID := uintPtr(4)
		one := []product.Product{{ID: 3, Name: "Rupee", PriceINR: 1, IsActive: true}}

		f.products.On("ListActive", ctx).Return(one, nil)
		f.orders.On("Create", ctx, userID).Return(&order.Order{ID: 17}, nil)
		f.orders.On("CreateItem", ctx, mock.Anything).Return(nil).Once()
		f.orders.On("UpdateTotal", ctx, uint(17), 2147483647).Return(nil)
		f.gateway.On("CreateSession", ctx, mock.Anything).Return(&payment.Session{ID: "cs_max", URL: "https://checkout.stripe.test/cs_max"}, nil)
		f.orders.On("AttachSession", ctx, uint(17), "cs_max").Return(nil)

		res, err := f.svc.Initiate(ctx, postForm(userID, map[string]string{"qty_3": "2147483647"}))
		require.NoError(t, err)
		assert.True(t, res.IsRedirect())
		assert.Nil(t, res.Message)
		f.assertExpectations(t)
	})
}

func TestParseQuantity(t *testing.T) {
	cases := map[string]int{
		"3":    3,
		" 3 ":  3,
		"+2":   2,
		"0":    0,
		"-1":   0,
		"":     0,
		"abc":  0,
		"1.5":  0,
		"10\n": 10,

		"2147483647":        2147483647,
		"2147483648":        0,
		"92233720368547759": 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseQuantity(in), "input %q", in)
	}
}
