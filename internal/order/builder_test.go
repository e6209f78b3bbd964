package order_test

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuankeMiao/Marmotshop-backend/internal/order"
)

func TestBuilder_Build(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	b := order.NewBuilder(userID, "1 Main St")
	first := order.Line{ProductID: uuid.Must(uuid.NewV4()), Title: "A", UnitPrice: dec("90.00"), Quantity: 2, LineTotal: dec("180.00")}
	second := order.Line{ProductID: uuid.Must(uuid.NewV4()), Title: "B", UnitPrice: dec("5.55"), Quantity: 1, LineTotal: dec("5.55")}
	require.NoError(t, b.Add(first))
	require.NoError(t, b.Add(second))

	o, err := b.Build(orderID, now)
	require.NoError(t, err)

	assert.Equal(t, orderID, o.ID)
	assert.Equal(t, userID, o.UserID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, now, o.CreatedAt)
	assert.Equal(t, o.CreatedAt, o.UpdatedAt)
	assert.Equal(t, "185.55", o.TotalAmount.StringFixed(2))

	require.Len(t, o.Lines, 2)
	assert.Equal(t, "A", o.Lines[0].Title)
	assert.Equal(t, 0, o.Lines[0].Position)
	assert.Equal(t, "B", o.Lines[1].Title)
	assert.Equal(t, 1, o.Lines[1].Position)
	for _, l := range o.Lines {
		assert.Equal(t, orderID, l.OrderID)
	}
}

func TestBuilder_RejectsDuplicateProduct(t *testing.T) {
	b := order.NewBuilder(uuid.Must(uuid.NewV4()), "1 Main St")
	line := order.Line{ProductID: uuid.Must(uuid.NewV4()), Quantity: 1}

	require.NoError(t, b.Add(line))
	require.ErrorIs(t, b.Add(line), order.ErrDuplicateLine)

	o, err := b.Build(uuid.Must(uuid.NewV4()), time.Now())
	require.NoError(t, err)
	assert.Len(t, o.Lines, 1)
}

func TestBuilder_EmptyOrder(t *testing.T) {
	b := order.NewBuilder(uuid.Must(uuid.NewV4()), "1 Main St")

	_, err := b.Build(uuid.Must(uuid.NewV4()), time.Now())
	require.ErrorIs(t, err, order.ErrEmptyOrder)
}
