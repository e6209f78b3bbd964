// Package inventory owns per-product available stock.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yuankeMiao/Marmotshop-backend/internal/apperr"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db"
)

var (
	ErrInvalidQuantity = apperr.New(apperr.ErrInvalidInput, "inventory", "reservation quantity must be at least 1")
	ErrNoTransaction   = errors.New("inventory: reservation requires an open transaction")
)

// StockStore performs the guarded decrement. It must never let stock go negative.
type StockStore interface {
	ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) (int, error)
}

type Ledger struct {
	store StockStore
}

func NewLedger(store StockStore) *Ledger {
	return &Ledger{store: store}
}

// Reserve stages a stock decrement inside the caller's transaction. The write
// becomes visible only when that transaction commits.
func (l *Ledger) Reserve(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: product %s, quantity %d", ErrInvalidQuantity, productID, quantity)
	}
	if _, ok := db.TxFromContext(ctx); !ok {
		return ErrNoTransaction
	}

	remaining, err := l.store.ReserveStock(ctx, productID, quantity)
	if err != nil {
		return err
	}

	log.Debug().Stringer("product_id", productID).Int("quantity", quantity).Int("remaining", remaining).Msg("inventory: stock reserved")
	return nil
}
