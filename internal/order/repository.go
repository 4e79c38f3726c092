package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vipra-store/internal/logger"

	"go.uber.org/zap"
)

const orderColumns = "id, user_id, status, total_amount_inr, stripe_session_id, stripe_payment_intent_id, created_at"

type Repository interface {
	Create(ctx context.Context, userID *uint) (*Order, error)
	CreateItem(ctx context.Context, item *OrderItem) error
	UpdateTotal(ctx context.Context, orderID uint, total int) error
	AttachSession(ctx context.Context, orderID uint, sessionID string) error
	MarkCanceled(ctx context.Context, orderID uint) error
	MarkPaid(ctx context.Context, orderID uint, paymentIntentID string) error
	Delete(ctx context.Context, orderID uint) error

	GetByID(ctx context.Context, orderID uint) (*Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*Order, error)
	ListItems(ctx context.Context, orderID uint) ([]OrderItem, error)
	ListByStatus(ctx context.Context, status OrderStatus, limit int) ([]Order, error)
	ListPaidByUser(ctx context.Context, userID uint) ([]Order, error)
	ListPendingWithoutSession(ctx context.Context) ([]Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Create inserts a PENDING order with a zero total.
func (r *repository) Create(ctx context.Context, userID *uint) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Create"),
	)

	o := Order{UserID: userID, Status: StatusPending}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, status, total_amount_inr)
		VALUES ($1, $2, 0)
		RETURNING id, created_at
	`, nullableUint(userID), o.Status).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		log.Error("db: failed to insert order", zap.Error(err))
		return nil, fmt.Errorf("insert order: %w", err)
	}

	return &o, nil
}

func (r *repository) CreateItem(ctx context.Context, item *OrderItem) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price_inr)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, item.OrderID, item.ProductID, item.Quantity, item.UnitPriceINR).Scan(&item.ID)
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to insert order item",
			zap.String("layer", "repository"),
			zap.Uint("order_id", item.OrderID),
			zap.Uint("product_id", item.ProductID),
			zap.Error(err),
		)
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func (r *repository) UpdateTotal(ctx context.Context, orderID uint, total int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET total_amount_inr = $1 WHERE id = $2", total, orderID)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	return expectRow(res, ErrOrderNotFound)
}

func (r *repository) AttachSession(ctx context.Context, orderID uint, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET stripe_session_id = $1 WHERE id = $2", sessionID, orderID)
	if err != nil {
		return fmt.Errorf("attach payment session: %w", err)
	}
	return expectRow(res, ErrOrderNotFound)
}

// MarkCanceled moves a PENDING order to CANCELED.
func (r *repository) MarkCanceled(ctx context.Context, orderID uint) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2 AND status = $3",
		StatusCanceled, orderID, StatusPending)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return expectRow(res, ErrInvalidTransition)
}

// MarkPaid moves a PENDING order to PAID and records the payment intent.
// Empty paymentIntentID is stored as NULL.
func (r *repository) MarkPaid(ctx context.Context, orderID uint, paymentIntentID string) error {
	var intent any
	if paymentIntentID != "" {
		intent = paymentIntentID
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, stripe_payment_intent_id = $2 WHERE id = $3 AND status = $4",
		StatusPaid, intent, orderID, StatusPending)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	return expectRow(res, ErrInvalidTransition)
}

// Delete removes an order; its items cascade.
func (r *repository) Delete(ctx context.Context, orderID uint) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, orderID uint) (*Order, error) {
	return r.getOne(ctx, "id", orderID)
}

func (r *repository) GetBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	return r.getOne(ctx, "stripe_session_id", sessionID)
}

func (r *repository) GetByPaymentIntentID(ctx context.Context, intentID string) (*Order, error) {
	return r.getOne(ctx, "stripe_payment_intent_id", intentID)
}

// getOne looks an order up by a unique column. column is never user input.
func (r *repository) getOne(ctx context.Context, column string, value any) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE "+column+" = $1", value)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order by %s: %w", column, err)
	}
	return o, nil
}

// ListItems returns an order's lines in insertion order with product names.
func (r *repository) ListItems(ctx context.Context, orderID uint) ([]OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price_inr
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPriceINR); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListByStatus returns the newest orders first. An empty status matches all.
func (r *repository) ListByStatus(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + orderColumns + " FROM orders"
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// ListPaidByUser returns the user's PAID orders newest first, items included.
func (r *repository) ListPaidByUser(ctx context.Context, userID uint) ([]Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListPaidByUser"),
		zap.Uint("user_id", userID),
	)

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			o.id, o.user_id, o.status, o.total_amount_inr,
			o.stripe_session_id, o.stripe_payment_intent_id, o.created_at,
			oi.id, oi.product_id, p.name, oi.quantity, oi.unit_price_inr
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE o.user_id = $1 AND o.status = $2
		ORDER BY o.created_at DESC, o.id DESC, oi.id
	`, userID, StatusPaid)
	if err != nil {
		log.Error("db: failed to query paid orders", zap.Error(err))
		return nil, fmt.Errorf("query paid orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	index := map[uint]int{}

	for rows.Next() {
		var (
			o           Order
			ownerID     sql.NullInt64
			sessionID   sql.NullString
			intentID    sql.NullString
			itemID      sql.NullInt64
			productID   sql.NullInt64
			productName sql.NullString
			quantity    sql.NullInt64
			unitPrice   sql.NullInt64
		)
		if err := rows.Scan(
			&o.ID, &ownerID, &o.Status, &o.TotalAmountINR,
			&sessionID, &intentID, &o.CreatedAt,
			&itemID, &productID, &productName, &quantity, &unitPrice,
		); err != nil {
			log.Error("db: failed to scan paid order", zap.Error(err))
			return nil, fmt.Errorf("scan paid order: %w", err)
		}

		pos, seen := index[o.ID]
		if !seen {
			o.UserID = uintPtr(ownerID)
			o.StripeSessionID = stringPtr(sessionID)
			o.StripePaymentIntentID = stringPtr(intentID)
			orders = append(orders, o)
			pos = len(orders) - 1
			index[o.ID] = pos
		}

		if itemID.Valid {
			orders[pos].Items = append(orders[pos].Items, OrderItem{
				ID:           uint(itemID.Int64),
				OrderID:      o.ID,
				ProductID:    uint(productID.Int64),
				ProductName:  productName.String,
				Quantity:     int(quantity.Int64),
				UnitPriceINR: int(unitPrice.Int64),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paid orders: %w", err)
	}

	return orders, nil
}

// ListPendingWithoutSession finds orders left behind when checkout stopped
// between order creation and session attachment.
func (r *repository) ListPendingWithoutSession(ctx context.Context) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status = $1 AND stripe_session_id IS NULL ORDER BY id",
		StatusPending)
	if err != nil {
		return nil, fmt.Errorf("query pending orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*Order, error) {
	var (
		o         Order
		userID    sql.NullInt64
		sessionID sql.NullString
		intentID  sql.NullString
	)
	if err := s.Scan(&o.ID, &userID, &o.Status, &o.TotalAmountINR, &sessionID, &intentID, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.UserID = uintPtr(userID)
	o.StripeSessionID = stringPtr(sessionID)
	o.StripePaymentIntentID = stringPtr(intentID)
	return &o, nil
}

func expectRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

func nullableUint(v *uint) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func uintPtr(v sql.NullInt64) *uint {
	if !v.Valid {
		return nil
	}
	u := uint(v.Int64)
	return &u
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
