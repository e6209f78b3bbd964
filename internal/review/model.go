package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/yuankeMiao/Marmotshop-backend/internal/apperr"
)

const (
	MinRating = 1
	MaxRating = 5

	DefaultLimit = 20
	MaxLimit     = 100
)

var (
	ErrReviewNotFound   = apperr.New(apperr.ErrNotFound, "review", "review not found")
	ErrRatingOutOfRange = apperr.Invalid("review", "rating", fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	ErrNotPurchased     = apperr.Invalid("review", "productId", "you can only review products you have purchased")
	ErrNotOwner         = apperr.New(apperr.ErrForbidden, "review", "only the author or an administrator can change this review")
)

// Actor is the user changing a review.
type Actor struct {
	UserID uuid.UUID
	Admin  bool
}

func (a Actor) canChange(rv *Review) bool {
	return a.Admin || rv.UserID == a.UserID
}

type Review struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"userId" db:"user_id"`
	ProductID uuid.UUID `json:"productId" db:"product_id"`
	Rating    int       `json:"rating" db:"rating"`
	Content   *string   `json:"content,omitempty" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type SubmitInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Rating    int
	Content   *string
}

func (in SubmitInput) Validate() error {
	if in.UserID == uuid.Nil {
		return apperr.Invalid("review", "userId", "user id is required")
	}
	if in.ProductID == uuid.Nil {
		return apperr.Invalid("review", "productId", "product id is required")
	}
	return validateRating(in.Rating)
}

// UpdateInput patches a review. Nil fields are left unchanged.
type UpdateInput struct {
	Rating  *int
	Content *string
}

func validateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("%w: got %d", ErrRatingOutOfRange, rating)
	}
	return nil
}

// normalizeContent turns blank text into no content.
func normalizeContent(content *string) *string {
	if content == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*content)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByRating    SortField = "rating"
)

func ParseSortField(raw string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", SortByCreatedAt:
		return SortByCreatedAt, nil
	case SortByRating:
		return f, nil
	default:
		return "", apperr.Invalid("review", "sort_by", fmt.Sprintf("sort_by must be %s or %s", SortByCreatedAt, SortByRating))
	}
}

type QueryOptions struct {
	Offset     int
	Limit      int
	Rating     *int
	HasContent *bool
	SortBy     SortField
	SortDesc   bool
}

func (o QueryOptions) normalize() (QueryOptions, error) {
	if o.Offset < 0 {
		return o, apperr.Invalid("review", "offset", "offset cannot be negative")
	}
	if o.Limit < 0 {
		return o, apperr.Invalid("review", "limit", "limit cannot be negative")
	}
	if o.Rating != nil {
		if err := validateRating(*o.Rating); err != nil {
			return o, err
		}
	}
	sortBy, err := ParseSortField(string(o.SortBy))
	if err != nil {
		return o, err
	}
	o.SortBy = sortBy
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	return o, nil
}

type QueryResult struct {
	Data       []Review `json:"data"`
	TotalCount int      `json:"totalCount"`
}
