package order

import "github.com/yuankeMiao/Marmotshop-backend/internal/apperr"

var (
	ErrOrderNotFound = apperr.New(apperr.ErrNotFound, "order", "order not found")

	ErrEmptyAddress     = apperr.Invalid("order", "shippingAddress", "shipping address is required")
	ErrEmptyOrder       = apperr.Invalid("order", "products", "at least one product is required to create an order")
	ErrMissingProductID = apperr.Invalid("order", "productId", "product id is required")
	ErrInvalidQuantity  = apperr.Invalid("order", "quantity", "product quantity should be at least 1")
	ErrInvalidDiscount  = apperr.Invalid("order", "discountPercentage", "product discount must be between 0 and 100")
	ErrUnknownStatus    = apperr.Invalid("order", "status", "unknown order status")

	ErrInvalidStatusTransition = apperr.Invalid("order", "status", "invalid order status transition")

	ErrDuplicateLine  = apperr.New(apperr.ErrConflict, "order", "product appears more than once in order")
	ErrStatusConflict = apperr.New(apperr.ErrConflict, "order", "order status was changed concurrently")
)
