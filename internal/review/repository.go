package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db"
)

type Repository interface {
	Create(ctx context.Context, r *Review) error
	// CountByProduct counts the reviews already stored for a product.
	CountByProduct(ctx context.Context, productID uuid.UUID) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Review, error)
	List(ctx context.Context, filter ListFilter) (*QueryResult, error)
	Update(ctx context.Context, r *Review) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ListFilter struct {
	ProductID *uuid.UUID
	UserID    *uuid.UUID
	QueryOptions
}

type postgresRepository struct {
	db   db.Querier
	read *sqlx.DB
}

func NewRepository(q db.Querier, read *sqlx.DB) Repository {
	return &postgresRepository{db: q, read: read}
}

func (r *postgresRepository) Create(ctx context.Context, rv *Review) error {
	query := `
		INSERT INTO reviews (id, user_id, product_id, rating, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query,
		rv.ID,
		rv.UserID,
		rv.ProductID,
		rv.Rating,
		rv.Content,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert review %s: %w", rv.ID, err)
	}
	return nil
}

func (r *postgresRepository) CountByProduct(ctx context.Context, productID uuid.UUID) (int, error) {
	var count int
	err := db.Conn(ctx, r.db).QueryRow(ctx, `SELECT count(*) FROM reviews WHERE product_id = $1`, productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count reviews of product %s: %w", productID, err)
	}
	return count, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	query := `
		SELECT id, user_id, product_id, rating, content, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`

	var rv Review
	if err := r.read.GetContext(ctx, &rv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrReviewNotFound, id)
		}
		return nil, fmt.Errorf("repository: failed to select review by id %s: %w", id, err)
	}
	return &rv, nil
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) (*QueryResult, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProductID != nil {
		where = append(where, "product_id = ?")
		args = append(args, *filter.ProductID)
	}
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Rating != nil {
		where = append(where, "rating = ?")
		args = append(args, *filter.Rating)
	}
	if filter.HasContent != nil {
		if *filter.HasContent {
			where = append(where, "content IS NOT NULL")
		} else {
			where = append(where, "content IS NULL")
		}
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.read.GetContext(ctx, &total, r.read.Rebind("SELECT count(*) FROM reviews"+whereClause), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to count reviews: %w", err)
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	orderBy := fmt.Sprintf("created_at %s, id %s", direction, direction)
	if filter.SortBy == SortByRating {
		orderBy = fmt.Sprintf("rating %s, %s", direction, orderBy)
	}
	pageQuery := r.read.Rebind(fmt.Sprintf(`
		SELECT id, user_id, product_id, rating, content, created_at, updated_at
		FROM reviews%s
		ORDER BY %s
		LIMIT ? OFFSET ?
	`, whereClause, orderBy))

	reviews := make([]Review, 0, filter.Limit)
	if err := r.read.SelectContext(ctx, &reviews, pageQuery, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, fmt.Errorf("repository: failed to select reviews: %w", err)
	}

	return &QueryResult{Data: reviews, TotalCount: total}, nil
}

func (r *postgresRepository) Update(ctx context.Context, rv *Review) error {
	query := `
		UPDATE reviews
		SET rating = $2, content = $3, updated_at = $4
		WHERE id = $1
	`
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, query, rv.ID, rv.Rating, rv.Content, rv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to update review %s: %w", rv.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrReviewNotFound, rv.ID)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete review %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrReviewNotFound, id)
	}
	return nil
}
