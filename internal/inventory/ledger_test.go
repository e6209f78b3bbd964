package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yuankeMiao/Marmotshop-backend/internal/apperr"
	"github.com/yuankeMiao/Marmotshop-backend/internal/catalog"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db"
	"github.com/yuankeMiao/Marmotshop-backend/internal/inventory"
)

type MockStockStore struct {
	mock.Mock
}

func (m *MockStockStore) ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) (int, error) {
	args := m.Called(ctx, productID, quantity)
	return args.Int(0), args.Error(1)
}

// fakeTx only marks the context as transactional.
type fakeTx struct {
	pgx.Tx
}

func txContext() context.Context {
	return db.ContextWithTx(context.Background(), fakeTx{})
}

func TestLedger_Reserve(t *testing.T) {
	productID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name      string
		quantity  int
		storeErr  error
		callStore bool
		wantKind  error
	}{
		{name: "success", quantity: 2, callStore: true},
		{name: "zero_quantity", quantity: 0, wantKind: apperr.ErrInvalidInput},
		{name: "negative_quantity", quantity: -3, wantKind: apperr.ErrInvalidInput},
		{name: "insufficient_stock", quantity: 6, storeErr: catalog.ErrInsufficientStock, callStore: true, wantKind: apperr.ErrInsufficientStock},
		{name: "product_missing", quantity: 1, storeErr: catalog.ErrProductNotFound, callStore: true, wantKind: apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStockStore)
			if tt.callStore {
				store.On("ReserveStock", mock.Anything, productID, tt.quantity).Return(3, tt.storeErr).Once()
			}

			err := inventory.NewLedger(store).Reserve(txContext(), productID, tt.quantity)

			if tt.wantKind != nil {
				require.ErrorIs(t, err, tt.wantKind)
			} else {
				require.NoError(t, err)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestLedger_Reserve_RequiresTransaction(t *testing.T) {
	store := new(MockStockStore)

	err := inventory.NewLedger(store).Reserve(context.Background(), uuid.Must(uuid.NewV4()), 1)

	require.True(t, errors.Is(err, inventory.ErrNoTransaction))
	store.AssertNotCalled(t, "ReserveStock", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, apperr.ErrInternal, apperr.Kind(err))
}
