package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/yuankeMiao/Marmotshop-backend/internal/apperr"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db"
)

var (
	ErrProductNotFound   = apperr.New(apperr.ErrNotFound, "product", "product not found")
	ErrInsufficientStock = apperr.New(apperr.ErrInsufficientStock, "product", "insufficient stock")
)

// Repository is the catalog accessor used by the order and review flows.
// Every method joins the unit of work carried by ctx, if any.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// ReserveStock decrements stock only if the result stays non-negative
	// and returns the remaining stock.
	ReserveStock(ctx context.Context, id uuid.UUID, quantity int) (int, error)
	// LockRating row-locks the product until the surrounding transaction ends
	// and returns its current rating.
	LockRating(ctx context.Context, id uuid.UUID) (decimal.NullDecimal, error)
	UpdateRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal) error
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `
		SELECT id, title, description, price, discount_percentage, thumbnail, stock, rating, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var p Product
	err := db.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.DiscountPercentage,
		&p.Thumbnail,
		&p.Stock,
		&p.Rating,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	return &p, nil
}

func (r *postgresRepository) ReserveStock(ctx context.Context, id uuid.UUID, quantity int) (int, error) {
	conn := db.Conn(ctx, r.db)

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`

	var remaining int
	err := conn.QueryRow(ctx, query, id, quantity).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if db.IsCheckViolation(err, "products_stock_check") {
		return 0, fmt.Errorf("%w: product %s", ErrInsufficientStock, id)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("repository: failed to reserve stock for product %s: %w", id, err)
	}

	// Zero rows: the product is either gone or short on stock.
	var available int
	err = conn.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return 0, fmt.Errorf("repository: failed to check stock for product %s: %w", id, err)
	}

	log.Warn().Stringer("product_id", id).Int("requested", quantity).Int("available", available).Msg("repository: stock reservation rejected")
	return 0, fmt.Errorf("%w: product %s has %d left, %d requested", ErrInsufficientStock, id, available, quantity)
}

func (r *postgresRepository) LockRating(ctx context.Context, id uuid.UUID) (decimal.NullDecimal, error) {
	var rating decimal.NullDecimal
	err := db.Conn(ctx, r.db).QueryRow(ctx, `SELECT rating FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&rating)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.NullDecimal{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return decimal.NullDecimal{}, fmt.Errorf("repository: failed to lock product %s: %w", id, err)
	}
	return rating, nil
}

func (r *postgresRepository) UpdateRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal) error {
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx,
		`UPDATE products SET rating = $2, updated_at = now() WHERE id = $1`,
		id, rating,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update rating of product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return nil
}
