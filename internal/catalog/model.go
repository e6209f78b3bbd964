package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Product is the live catalog row. The order path only reads it and decrements Stock.
type Product struct {
	ID                 uuid.UUID           `json:"id" db:"id"`
	Title              string              `json:"title" db:"title"`
	Description        string              `json:"description" db:"description"`
	Price              decimal.Decimal     `json:"price" db:"price"`
	DiscountPercentage int                 `json:"discountPercentage" db:"discount_percentage"`
	Thumbnail          string              `json:"thumbnail" db:"thumbnail"`
	Stock              int                 `json:"stock" db:"stock"`
	Rating             decimal.NullDecimal `json:"rating" db:"rating"`
	CreatedAt          time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time           `json:"updatedAt" db:"updated_at"`
}
