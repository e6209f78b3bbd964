package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/yuankeMiao/Marmotshop-backend/internal/apperr"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) String() string {
	return string(s)
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ParseStatus accepts any casing of a known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := allowedTransitions[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

func (s Status) CanTransitionTo(next Status) bool {
	return allowedTransitions[s][next]
}

func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Line is a snapshot of a product taken when the order was placed. It is
// never re-read from the catalog.
type Line struct {
	OrderID   uuid.UUID       `json:"-" db:"order_id"`
	ProductID uuid.UUID       `json:"productId" db:"product_id"`
	Position  int             `json:"-" db:"position"`
	Title     string          `json:"title" db:"title"`
	Thumbnail string          `json:"thumbnail" db:"thumbnail"`
	UnitPrice decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity  int             `json:"quantity" db:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal" db:"line_total"`
}

type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"userId" db:"user_id"`
	Status          Status          `json:"status" db:"status"`
	ShippingAddress string          `json:"shippingAddress" db:"shipping_address"`
	TotalAmount     decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Lines           []Line          `json:"lines" db:"-"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

type LineRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

type PlaceOrderInput struct {
	UserID          uuid.UUID
	ShippingAddress string
	Lines           []LineRequest
}

// Validate rejects a request before any storage is touched.
func (in PlaceOrderInput) Validate() error {
	if in.UserID == uuid.Nil {
		return apperr.Invalid("order", "userId", "user id is required")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return ErrEmptyAddress
	}
	if len(in.Lines) == 0 {
		return ErrEmptyOrder
	}

	seen := make(map[uuid.UUID]int, len(in.Lines))
	for i, l := range in.Lines {
		if l.ProductID == uuid.Nil {
			return fmt.Errorf("%w: line %d", ErrMissingProductID, i+1)
		}
		if l.Quantity < 1 {
			return fmt.Errorf("%w: line %d (product %s) has quantity %d", ErrInvalidQuantity, i+1, l.ProductID, l.Quantity)
		}
		if first, ok := seen[l.ProductID]; ok {
			return fmt.Errorf("%w: product %s on lines %d and %d", ErrDuplicateLine, l.ProductID, first, i+1)
		}
		seen[l.ProductID] = i + 1
	}

	return nil
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type QueryOptions struct {
	Offset int
	Limit  int
	Status *Status
	// SortDesc orders by creation time, newest first.
	SortDesc bool
}

func (o QueryOptions) normalize() (QueryOptions, error) {
	if o.Offset < 0 {
		return o, apperr.Invalid("order", "offset", "offset cannot be negative")
	}
	if o.Limit < 0 {
		return o, apperr.Invalid("order", "limit", "limit cannot be negative")
	}
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	return o, nil
}

type QueryResult struct {
	Data       []Order `json:"data"`
	TotalCount int     `json:"totalCount"`
}
