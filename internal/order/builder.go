package order

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Builder collects line snapshots for one order. Lines keep insertion order.
type Builder struct {
	userID  uuid.UUID
	address string
	lines   []Line
	index   map[uuid.UUID]struct{}
}

func NewBuilder(userID uuid.UUID, shippingAddress string) *Builder {
	return &Builder{
		userID:  userID,
		address: shippingAddress,
		index:   make(map[uuid.UUID]struct{}),
	}
}

func (b *Builder) Add(line Line) error {
	if _, ok := b.index[line.ProductID]; ok {
		return fmt.Errorf("%w: product %s", ErrDuplicateLine, line.ProductID)
	}
	b.index[line.ProductID] = struct{}{}
	b.lines = append(b.lines, line)
	return nil
}

// Build returns a PENDING order stamped with now. It does not persist anything.
func (b *Builder) Build(id uuid.UUID, now time.Time) (*Order, error) {
	if len(b.lines) == 0 {
		return nil, ErrEmptyOrder
	}

	total := decimal.Zero
	lines := make([]Line, len(b.lines))
	for i, l := range b.lines {
		l.OrderID = id
		l.Position = i
		lines[i] = l
		total = total.Add(l.LineTotal)
	}

	return &Order{
		ID:              id,
		UserID:          b.userID,
		Status:          StatusPending,
		ShippingAddress: b.address,
		TotalAmount:     total,
		Lines:           lines,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
