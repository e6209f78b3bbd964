package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db"
)

type Repository interface {
	// Create inserts the header and every line. It joins the unit of work in ctx.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, filter ListFilter) (*QueryResult, error)
	// UpdateStatus moves the order from one status to another only if it is
	// still in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

type ListFilter struct {
	UserID *uuid.UUID
	QueryOptions
}

type postgresRepository struct {
	db   db.Querier
	read *sqlx.DB
}

func NewRepository(q db.Querier, read *sqlx.DB) Repository {
	return &postgresRepository{db: q, read: read}
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	conn := db.Conn(ctx, r.db)

	queryOrder := `
		INSERT INTO orders (id, user_id, status, shipping_address, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := conn.Exec(ctx, queryOrder,
		o.ID,
		o.UserID,
		string(o.Status),
		o.ShippingAddress,
		o.TotalAmount,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order %s: %w", o.ID, err)
	}

	queryLine := `
		INSERT INTO order_lines (order_id, product_id, position, title, thumbnail, unit_price, quantity, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	batch := &pgx.Batch{}
	for _, l := range o.Lines {
		batch.Queue(queryLine, o.ID, l.ProductID, l.Position, l.Title, l.Thumbnail, l.UnitPrice, l.Quantity, l.LineTotal)
	}

	results := conn.SendBatch(ctx, batch)
	for _, l := range o.Lines {
		if _, err := results.Exec(); err != nil {
			discardBatch(results, o.ID)
			if db.IsUniqueViolation(err, "order_lines_pkey") {
				return fmt.Errorf("%w: product %s", ErrDuplicateLine, l.ProductID)
			}
			return fmt.Errorf("repository: failed to insert line for product %s of order %s: %w", l.ProductID, o.ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("repository: failed to close line batch for order %s: %w", o.ID, err)
	}

	return nil
}

// discardBatch closes results after a failed line insert. The insert error is
// returned to the caller, so a close failure is only logged.
func discardBatch(results pgx.BatchResults, orderID uuid.UUID) {
	if err := results.Close(); err != nil {
		log.Warn().Err(err).Stringer("order_id", orderID).Msg("Failed to close line batch after insert error")
	}
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `
		SELECT id, user_id, status, shipping_address, total_amount, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var o Order
	if err := r.read.GetContext(ctx, &o, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	orders := []Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) (*QueryResult, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := r.read.Rebind("SELECT count(*) FROM orders" + whereClause)
	if err := r.read.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	pageQuery := r.read.Rebind(fmt.Sprintf(`
		SELECT id, user_id, status, shipping_address, total_amount, created_at, updated_at
		FROM orders%s
		ORDER BY created_at %s, id %s
		LIMIT ? OFFSET ?
	`, whereClause, direction, direction))

	orders := make([]Order, 0, filter.Limit)
	if err := r.read.SelectContext(ctx, &orders, pageQuery, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, fmt.Errorf("repository: failed to select orders: %w", err)
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}

	return &QueryResult{Data: orders, TotalCount: total}, nil
}

// attachLines loads the lines of every order in one round trip.
func (r *postgresRepository) attachLines(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	byID := make(map[uuid.UUID]*Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		orders[i].Lines = []Line{}
		byID[orders[i].ID] = &orders[i]
	}

	query, args, err := sqlx.In(`
		SELECT order_id, product_id, position, title, thumbnail, unit_price, quantity, line_total
		FROM order_lines
		WHERE order_id IN (?)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to build order lines query: %w", err)
	}

	var lines []Line
	if err := r.read.SelectContext(ctx, &lines, r.read.Rebind(query), args...); err != nil {
		return fmt.Errorf("repository: failed to select order lines: %w", err)
	}

	for _, l := range lines {
		if o, ok := byID[l.OrderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}

	return nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	conn := db.Conn(ctx, r.db)
	cmdTag, err := conn.Exec(ctx, query, string(to), at, id, string(from))
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Stringer("new_status", to).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", id, err)
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("repository: failed to check order %s: %w", id, err)
	}
	if !exists {
		log.Warn().Stringer("order_id", id).Stringer("new_status", to).Msg("repository: order not found for status update")
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}

	return fmt.Errorf("%w: order %s is no longer %s", ErrStatusConflict, id, from)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return nil
}

func (r *postgresRepository) HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_lines l ON l.order_id = o.id
			WHERE o.user_id = $1 AND l.product_id = $2
		)
	`

	var purchased bool
	if err := db.Conn(ctx, r.db).QueryRow(ctx, query, userID, productID).Scan(&purchased); err != nil {
		return false, fmt.Errorf("repository: failed to check purchase of product %s by user %s: %w", productID, userID, err)
	}
	return purchased, nil
}
