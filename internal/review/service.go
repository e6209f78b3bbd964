package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/yuankeMiao/Marmotshop-backend/internal/apperr"
	"github.com/yuankeMiao/Marmotshop-backend/internal/catalog"
	"github.com/yuankeMiao/Marmotshop-backend/internal/metrics"
	"github.com/yuankeMiao/Marmotshop-backend/internal/user"
)

type Service interface {
	SubmitReview(ctx context.Context, in SubmitInput) (*Review, error)
	GetReview(ctx context.Context, id uuid.UUID) (*Review, error)
	ListReviews(ctx context.Context, opts QueryOptions) (*QueryResult, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, opts QueryOptions) (*QueryResult, error)
	ListByUser(ctx context.Context, userID uuid.UUID, opts QueryOptions) (*QueryResult, error)
	UpdateReview(ctx context.Context, id uuid.UUID, actor Actor, in UpdateInput) (*Review, error)
	DeleteReview(ctx context.Context, id uuid.UUID, actor Actor) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RatingStore is the part of the catalog the aggregator mutates.
type RatingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	LockRating(ctx context.Context, id uuid.UUID) (decimal.NullDecimal, error)
	UpdateRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal) error
}

type PurchaseChecker interface {
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

type UserChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type service struct {
	tx        Transactor
	repo      Repository
	products  RatingStore
	purchases PurchaseChecker
	users     UserChecker
	metrics   *metrics.Transactions
	now       func() time.Time
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithMetrics(m *metrics.Transactions) Option {
	return func(s *service) { s.metrics = m }
}

func NewService(tx Transactor, repo Repository, products RatingStore, purchases PurchaseChecker, users UserChecker, opts ...Option) Service {
	s := &service{
		tx:        tx,
		repo:      repo,
		products:  products,
		purchases: purchases,
		users:     users,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunningMean folds one more score into a mean over count previous scores.
// A missing mean counts as zero.
func RunningMean(mean decimal.NullDecimal, count, rating int) decimal.Decimal {
	old := decimal.Zero
	if mean.Valid {
		old = mean.Decimal
	}
	sum := old.Mul(decimal.NewFromInt(int64(count))).Add(decimal.NewFromInt(int64(rating)))
	return sum.Div(decimal.NewFromInt(int64(count + 1))).RoundBank(2)
}

// SubmitReview stores the review and folds its rating into the product's
// mean in one transaction. The product row stays locked until commit, so
// concurrent reviews of the same product are applied one after another.
func (s *service) SubmitReview(ctx context.Context, in SubmitInput) (created *Review, err error) {
	defer func() { s.metrics.ReviewSubmitted(err) }()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", user.ErrNotFound, in.UserID)
	}

	reviewID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate review ID: %w", err)
	}

	var newRating decimal.Decimal
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.products.LockRating(ctx, in.ProductID)
		if err != nil {
			return err
		}

		purchased, err := s.purchases.HasPurchased(ctx, in.UserID, in.ProductID)
		if err != nil {
			return err
		}
		if !purchased {
			return fmt.Errorf("%w: product %s", ErrNotPurchased, in.ProductID)
		}

		count, err := s.repo.CountByProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}

		now := s.now()
		rv := &Review{
			ID:        reviewID,
			UserID:    in.UserID,
			ProductID: in.ProductID,
			Rating:    in.Rating,
			Content:   normalizeContent(in.Content),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, rv); err != nil {
			return err
		}

		newRating = RunningMean(current, count, in.Rating)
		if err := s.products.UpdateRating(ctx, in.ProductID, newRating); err != nil {
			return err
		}

		created = rv
		return nil
	})
	if err != nil {
		if apperr.Kind(err) == apperr.ErrInternal {
			log.Error().Err(err).Stringer("user_id", in.UserID).Stringer("product_id", in.ProductID).Msg("service: failed to submit review")
			return nil, fmt.Errorf("service: failed to submit review: %w", err)
		}
		log.Warn().Err(err).Stringer("user_id", in.UserID).Stringer("product_id", in.ProductID).Msg("service: review rejected")
		return nil, err
	}

	log.Info().Stringer("review_id", created.ID).Stringer("product_id", created.ProductID).Str("rating", newRating.StringFixed(2)).Msg("service: review submitted")
	return created, nil
}

func (s *service) GetReview(ctx context.Context, id uuid.UUID) (*Review, error) {
	rv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("review_id", id).Msg("service: failed to fetch review in repository")
		return nil, fmt.Errorf("service: failed to fetch review: %w", err)
	}
	return rv, nil
}

func (s *service) ListReviews(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	res, err := s.repo.List(ctx, ListFilter{QueryOptions: opts})
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list reviews")
		return nil, fmt.Errorf("service: failed to list reviews: %w", err)
	}
	return res, nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, opts QueryOptions) (*QueryResult, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	res, err := s.repo.List(ctx, ListFilter{ProductID: &productID, QueryOptions: opts})
	if err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to list product reviews")
		return nil, fmt.Errorf("service: failed to list product reviews: %w", err)
	}
	return res, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, opts QueryOptions) (*QueryResult, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", user.ErrNotFound, userID)
	}

	res, err := s.repo.List(ctx, ListFilter{UserID: &userID, QueryOptions: opts})
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to list user reviews")
		return nil, fmt.Errorf("service: failed to list user reviews: %w", err)
	}
	return res, nil
}

// UpdateReview edits a review on behalf of its author or an administrator.
// The product's mean rating is not recomputed.
func (s *service) UpdateReview(ctx context.Context, id uuid.UUID, actor Actor, in UpdateInput) (*Review, error) {
	if in.Rating != nil {
		if err := validateRating(*in.Rating); err != nil {
			return nil, err
		}
	}

	rv, err := s.changeableReview(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if in.Rating != nil {
		rv.Rating = *in.Rating
	}
	if in.Content != nil {
		rv.Content = normalizeContent(in.Content)
	}
	rv.UpdatedAt = s.now()
	if rv.UpdatedAt.Before(rv.CreatedAt) {
		rv.UpdatedAt = rv.CreatedAt
	}

	if err := s.repo.Update(ctx, rv); err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("review_id", id).Msg("service: failed to update review in repository")
		return nil, fmt.Errorf("service: failed to update review: %w", err)
	}

	log.Info().Stringer("review_id", id).Msg("service: review updated")
	return rv, nil
}

// DeleteReview removes a review on behalf of its author or an administrator.
// The product's mean rating is not recomputed.
func (s *service) DeleteReview(ctx context.Context, id uuid.UUID, actor Actor) error {
	if _, err := s.changeableReview(ctx, id, actor); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return err
		}
		log.Error().Err(err).Stringer("review_id", id).Msg("service: failed to delete review in repository")
		return fmt.Errorf("service: failed to delete review: %w", err)
	}

	log.Info().Stringer("review_id", id).Msg("service: review deleted")
	return nil
}

func (s *service) changeableReview(ctx context.Context, id uuid.UUID, actor Actor) (*Review, error) {
	rv, err := s.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canChange(rv) {
		log.Warn().Stringer("review_id", id).Stringer("user_id", actor.UserID).Msg("service: review change by non-author rejected")
		return nil, fmt.Errorf("%w: review %s", ErrNotOwner, id)
	}
	return rv, nil
}
