package order_test

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuankeMiao/Marmotshop-backend/internal/apperr"
	"github.com/yuankeMiao/Marmotshop-backend/internal/order"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from order.Status
		to   order.Status
		want bool
	}{
		{order.StatusPending, order.StatusProcessing, true},
		{order.StatusPending, order.StatusCancelled, true},
		{order.StatusPending, order.StatusCompleted, false},
		{order.StatusProcessing, order.StatusCompleted, true},
		{order.StatusProcessing, order.StatusCancelled, true},
		{order.StatusProcessing, order.StatusPending, false},
		{order.StatusCompleted, order.StatusCancelled, false},
		{order.StatusCancelled, order.StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"_to_"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, order.StatusCompleted.IsTerminal())
	assert.True(t, order.StatusCancelled.IsTerminal())
	assert.False(t, order.StatusPending.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	s, err := order.ParseStatus(" processing ")
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, s)

	_, err = order.ParseStatus("SHIPPED")
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestPlaceOrderInput_Validate(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	p1 := uuid.Must(uuid.NewV4())
	p2 := uuid.Must(uuid.NewV4())

	tests := []struct {
		name    string
		in      order.PlaceOrderInput
		wantErr error
	}{
		{
			name: "valid",
			in: order.PlaceOrderInput{UserID: userID, ShippingAddress: "1 Main St", Lines: []order.LineRequest{
				{ProductID: p1, Quantity: 1}, {ProductID: p2, Quantity: 3},
			}},
		},
		{
			name:    "blank_address",
			in:      order.PlaceOrderInput{UserID: userID, ShippingAddress: "   ", Lines: []order.LineRequest{{ProductID: p1, Quantity: 1}}},
			wantErr: order.ErrEmptyAddress,
		},
		{
			name:    "no_lines",
			in:      order.PlaceOrderInput{UserID: userID, ShippingAddress: "1 Main St"},
			wantErr: order.ErrEmptyOrder,
		},
		{
			name:    "zero_quantity",
			in:      order.PlaceOrderInput{UserID: userID, ShippingAddress: "1 Main St", Lines: []order.LineRequest{{ProductID: p1, Quantity: 0}}},
			wantErr: order.ErrInvalidQuantity,
		},
		{
			name:    "missing_product_id",
			in:      order.PlaceOrderInput{UserID: userID, ShippingAddress: "1 Main St", Lines: []order.LineRequest{{Quantity: 1}}},
			wantErr: order.ErrMissingProductID,
		},
		{
			name: "duplicate_product",
			in: order.PlaceOrderInput{UserID: userID, ShippingAddress: "1 Main St", Lines: []order.LineRequest{
				{ProductID: p1, Quantity: 1}, {ProductID: p1, Quantity: 2},
			}},
			wantErr: order.ErrDuplicateLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlaceOrderInput_Validate_Kinds(t *testing.T) {
	p1 := uuid.Must(uuid.NewV4())
	in := order.PlaceOrderInput{UserID: uuid.Must(uuid.NewV4()), ShippingAddress: "x", Lines: []order.LineRequest{
		{ProductID: p1, Quantity: 1}, {ProductID: p1, Quantity: 1},
	}}

	assert.Equal(t, apperr.ErrConflict, apperr.Kind(in.Validate()))

	in.Lines = nil
	assert.Equal(t, apperr.ErrInvalidInput, apperr.Kind(in.Validate()))
}
