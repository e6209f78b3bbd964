package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yuankeMiao/Marmotshop-backend/internal/apperr"
	"github.com/yuankeMiao/Marmotshop-backend/internal/catalog"
	"github.com/yuankeMiao/Marmotshop-backend/internal/metrics"
	"github.com/yuankeMiao/Marmotshop-backend/internal/user"
)

type Service interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, opts QueryOptions) (*QueryResult, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, opts QueryOptions) (*QueryResult, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

type StockReserver interface {
	Reserve(ctx context.Context, productID uuid.UUID, quantity int) error
}

type UserChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type service struct {
	tx        Transactor
	orderRepo Repository
	products  ProductReader
	stock     StockReserver
	users     UserChecker
	metrics   *metrics.Transactions
	now       func() time.Time
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithMetrics(m *metrics.Transactions) Option {
	return func(s *service) { s.metrics = m }
}

func NewService(tx Transactor, orderRepo Repository, products ProductReader, stock StockReserver, users UserChecker, opts ...Option) Service {
	s := &service{
		tx:        tx,
		orderRepo: orderRepo,
		products:  products,
		stock:     stock,
		users:     users,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder snapshots every requested product, reserves stock and persists
// the order in a single transaction. Any failure leaves stock untouched.
func (s *service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (placed *Order, err error) {
	defer func() { s.metrics.OrderPlaced(err) }()

	if err := in.Validate(); err != nil {
		log.Warn().Err(err).Stringer("user_id", in.UserID).Msg("service: rejected order request")
		return nil, err
	}

	exists, err := s.users.Exists(ctx, in.UserID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", in.UserID).Msg("service: failed to check order owner")
		return nil, fmt.Errorf("service: failed to check user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", user.ErrNotFound, in.UserID)
	}

	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order ID: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		builder := NewBuilder(in.UserID, in.ShippingAddress)
		for _, req := range in.Lines {
			product, err := s.products.GetByID(ctx, req.ProductID)
			if err != nil {
				return err
			}
			line, err := Snapshot(product, req.Quantity)
			if err != nil {
				return err
			}
			if err := builder.Add(line); err != nil {
				return err
			}
		}

		// A fixed lock order keeps two overlapping orders from deadlocking.
		reservations := slices.Clone(in.Lines)
		slices.SortFunc(reservations, func(a, b LineRequest) int {
			return slices.Compare(a.ProductID.Bytes(), b.ProductID.Bytes())
		})
		for _, req := range reservations {
			if err := s.stock.Reserve(ctx, req.ProductID, req.Quantity); err != nil {
				return err
			}
		}

		o, err := builder.Build(orderID, s.now())
		if err != nil {
			return err
		}
		if err := s.orderRepo.Create(ctx, o); err != nil {
			return err
		}

		placed = o
		return nil
	})
	if err != nil {
		if apperr.Kind(err) == apperr.ErrInternal {
			log.Error().Err(err).Stringer("user_id", in.UserID).Msg("service: failed to place order")
			return nil, fmt.Errorf("service: failed to place order: %w", err)
		}
		log.Warn().Err(err).Stringer("user_id", in.UserID).Msg("service: order rejected")
		return nil, err
	}

	log.Info().Stringer("order_id", placed.ID).Stringer("user_id", placed.UserID).Int("lines", len(placed.Lines)).Str("total", placed.TotalAmount.StringFixed(2)).Msg("service: order placed")
	return placed, nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	res, err := s.orderRepo.List(ctx, ListFilter{QueryOptions: opts})
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders in repository")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return res, nil
}

func (s *service) ListOrdersByUser(ctx context.Context, userID uuid.UUID, opts QueryOptions) (*QueryResult, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check user: %w", err)
	}
	if !exists {
		log.Warn().Stringer("user_id", userID).Msg("service: orders requested for unknown user")
		return nil, fmt.Errorf("%w: %s", user.ErrNotFound, userID)
	}

	res, err := s.orderRepo.List(ctx, ListFilter{UserID: &userID, QueryOptions: opts})
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return res, nil
}

// UpdateOrderStatus follows allowedTransitions. Asking for the current status
// is a no-op.
func (s *service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Order, error) {
	if _, ok := allowedTransitions[newStatus]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, newStatus)
	}

	current, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status == newStatus {
		log.Info().Stringer("order_id", id).Stringer("status", newStatus).Msg("service: order status is already the same, no update needed")
		return current, nil
	}

	if current.Status.IsTerminal() {
		log.Warn().Stringer("order_id", id).Stringer("current_status", current.Status).Msg("service: status change on closed order rejected")
		return nil, fmt.Errorf("%w: order %s is already %s", ErrInvalidStatusTransition, id, current.Status)
	}

	if !current.Status.CanTransitionTo(newStatus) {
		log.Warn().
			Stringer("order_id", id).
			Stringer("current_status", current.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, current.Status, newStatus)
	}

	at := s.now()
	if at.Before(current.UpdatedAt) {
		at = current.UpdatedAt
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, current.Status, newStatus, at); err != nil {
		if apperr.Kind(err) != apperr.ErrInternal {
			log.Warn().Err(err).Stringer("order_id", id).Stringer("new_status", newStatus).Msg("service: status update rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Stringer("new_status", newStatus).Msg("service: failed to update order status in repository")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", id).Stringer("old_status", current.Status).Stringer("new_status", newStatus).Msg("service: order status updated successfully")

	current.Status = newStatus
	current.UpdatedAt = at
	return current, nil
}

// DeleteOrder removes the order and its lines. Reserved stock is not returned.
func (s *service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found for delete")
			return err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to delete order in repository")
		return fmt.Errorf("service: failed to delete order: %w", err)
	}

	log.Info().Stringer("order_id", id).Msg("service: order deleted")
	return nil
}
