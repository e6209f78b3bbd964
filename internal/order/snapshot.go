package order

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yuankeMiao/Marmotshop-backend/internal/catalog"
)

var hundred = decimal.NewFromInt(100)

// UnitPrice applies a whole-percent discount and rounds half-to-even to cents.
func UnitPrice(price decimal.Decimal, discountPercentage int) decimal.Decimal {
	discount := price.Mul(decimal.NewFromInt(int64(discountPercentage))).Div(hundred)
	return price.Sub(discount).RoundBank(2)
}

// Snapshot freezes the product's current title, thumbnail and price into an
// order line. Later catalog edits never reach the line.
func Snapshot(p *catalog.Product, quantity int) (Line, error) {
	if quantity < 1 {
		return Line{}, fmt.Errorf("%w: product %s, quantity %d", ErrInvalidQuantity, p.ID, quantity)
	}
	if p.DiscountPercentage < 0 || p.DiscountPercentage > 100 {
		return Line{}, fmt.Errorf("%w: product %s has %d%%", ErrInvalidDiscount, p.ID, p.DiscountPercentage)
	}

	unit := UnitPrice(p.Price, p.DiscountPercentage)

	return Line{
		ProductID: p.ID,
		Title:     p.Title,
		Thumbnail: p.Thumbnail,
		UnitPrice: unit,
		Quantity:  quantity,
		LineTotal: unit.Mul(decimal.NewFromInt(int64(quantity))).RoundBank(2),
	}, nil
}
