package review_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuankeMiao/Marmotshop-backend/internal/catalog"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db/dbtest"
	"github.com/yuankeMiao/Marmotshop-backend/internal/inventory"
	"github.com/yuankeMiao/Marmotshop-backend/internal/order"
	"github.com/yuankeMiao/Marmotshop-backend/internal/review"
	"github.com/yuankeMiao/Marmotshop-backend/internal/user"
	"golang.org/x/sync/errgroup"
)

type postgresReviewStack struct {
	pg       *db.Postgres
	products catalog.Repository
	orders   order.Service
	reviews  review.Service
}

func newPostgresReviewStack(t *testing.T) *postgresReviewStack {
	pg := dbtest.Open(t)

	tx := db.NewTxManager(pg.Pool, dbtest.TxConfig())
	products := catalog.NewRepository(pg.Pool)
	users := user.NewRepository(pg.Pool)
	orderRepo := order.NewRepository(pg.Pool, pg.SQL)

	return &postgresReviewStack{
		pg:       pg,
		products: products,
		orders:   order.NewService(tx, orderRepo, products, inventory.NewLedger(products), users),
		reviews:  review.NewService(tx, review.NewRepository(pg.Pool, pg.SQL), products, orderRepo, users),
	}
}

func (s *postgresReviewStack) buyer(t *testing.T, productID uuid.UUID) uuid.UUID {
	t.Helper()
	userID := dbtest.SeedUser(t, s.pg)
	_, err := s.orders.PlaceOrder(context.Background(), order.PlaceOrderInput{
		UserID:          userID,
		ShippingAddress: "1 Main St",
		Lines:           []order.LineRequest{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)
	return userID
}

func (s *postgresReviewStack) rating(t *testing.T, productID uuid.UUID) decimal.NullDecimal {
	t.Helper()
	p, err := s.products.GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Rating
}

func TestPostgres_SubmitReview_RunningMean(t *testing.T) {
	s := newPostgresReviewStack(t)
	ctx := context.Background()
	productID := dbtest.SeedProduct(t, s.pg, "20.00", 0, 10)

	var history []string
	for _, score := range []int{5, 3, 4} {
		userID := s.buyer(t, productID)
		_, err := s.reviews.SubmitReview(ctx, review.SubmitInput{UserID: userID, ProductID: productID, Rating: score})
		require.NoError(t, err)

		r := s.rating(t, productID)
		require.True(t, r.Valid)
		history = append(history, r.Decimal.StringFixed(2))
	}

	assert.Equal(t, []string{"5.00", "4.00", "4.00"}, history)

	res, err := s.reviews.ListByProduct(ctx, productID, review.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)

	res, err = s.reviews.ListReviews(ctx, review.QueryOptions{SortBy: review.SortByRating, SortDesc: true})
	require.NoError(t, err)
	var ratings []int
	for _, rv := range res.Data {
		ratings = append(ratings, rv.Rating)
	}
	assert.Equal(t, []int{5, 4, 3}, ratings)
}

func TestPostgres_SubmitReview_RequiresPurchase(t *testing.T) {
	s := newPostgresReviewStack(t)
	ctx := context.Background()
	productID := dbtest.SeedProduct(t, s.pg, "20.00", 0, 10)
	stranger := dbtest.SeedUser(t, s.pg)

	_, err := s.reviews.SubmitReview(ctx, review.SubmitInput{UserID: stranger, ProductID: productID, Rating: 1})
	require.ErrorIs(t, err, review.ErrNotPurchased)

	assert.False(t, s.rating(t, productID).Valid)
	res, err := s.reviews.ListByUser(ctx, stranger, review.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
}

func TestPostgres_SubmitReview_ConcurrentReviewsAreAllCounted(t *testing.T) {
	s := newPostgresReviewStack(t)
	ctx := context.Background()
	productID := dbtest.SeedProduct(t, s.pg, "20.00", 0, 10)

	buyers := make([]uuid.UUID, 4)
	for i := range buyers {
		buyers[i] = s.buyer(t, productID)
	}

	scores := []int{5, 1, 5, 1}
	g, gctx := errgroup.WithContext(ctx)
	for i, buyer := range buyers {
		i, buyer := i, buyer
		g.Go(func() error {
			_, err := s.reviews.SubmitReview(gctx, review.SubmitInput{UserID: buyer, ProductID: productID, Rating: scores[i]})
			return err
		})
	}
	require.NoError(t, g.Wait())

	r := s.rating(t, productID)
	require.True(t, r.Valid)
	// Every arrival order of these scores folds to 3.00.
	assert.Equal(t, "3.00", r.Decimal.StringFixed(2))

	res, err := s.reviews.ListByProduct(ctx, productID, review.QueryOptions{Rating: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
}

func ptr[T any](v T) *T {
	return &v
}
