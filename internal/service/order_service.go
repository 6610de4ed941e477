package service

import (
	"context"

	"github.com/dmwangi/medsupply/internal/domain/cart"
	"github.com/dmwangi/medsupply/internal/domain/catalog"
	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/order"
	"github.com/dmwangi/medsupply/internal/domain/user"
	"github.com/dmwangi/medsupply/internal/infrastructure/email"
	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderService handles order creation and lifecycle. Creation snapshots
// prices, reserves stock, and clears the cart in one database transaction.
type OrderService struct {
	orderRepo   order.Repository
	cartRepo    cart.Repository
	catalogRepo catalog.Repository
	userRepo    user.Repository
	txManager   TransactionManager
	emails      email.Sender
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

func NewOrderService(
	orderRepo order.Repository,
	cartRepo cart.Repository,
	catalogRepo catalog.Repository,
	userRepo user.Repository,
	txManager TransactionManager,
	emails email.Sender,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		catalogRepo: catalogRepo,
		userRepo:    userRepo,
		txManager:   txManager,
		emails:      emails,
		logger:      logger,
		metrics:     metrics,
	}
}

// CreateFromCart turns the user's cart into a pending order. Stock is
// decremented atomically per line, so two orders racing for the last unit
// cannot both succeed.
func (s *OrderService) CreateFromCart(ctx context.Context, userID uuid.UUID) (*order.Order, error) {
	var o *order.Order

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		items, err := s.cartRepo.GetItems(txCtx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domainErrors.ErrCartEmpty
		}

		lines := make([]*order.Item, 0, len(items))
		for _, it := range items {
			p, err := s.catalogRepo.GetProduct(txCtx, it.ProductID)
			if err != nil {
				return err
			}
			if !p.IsActive {
				return domainErrors.ErrProductInactive
			}
			if err := s.catalogRepo.AdjustStock(txCtx, p.ID, -it.Quantity); err != nil {
				return err
			}
			lines = append(lines, &order.Item{
				ID:         uuid.New(),
				ProductID:  p.ID,
				Name:       p.Name,
				PriceCents: p.PriceCents,
				Quantity:   it.Quantity,
			})
		}

		o, err = order.New(userID, lines)
		if err != nil {
			return err
		}
		if err := s.orderRepo.Create(txCtx, o); err != nil {
			return err
		}
		return s.cartRepo.Clear(txCtx, userID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrdersTotal.WithLabelValues(string(o.Status)).Inc()
	s.logger.Info().
		Str("order_id", o.ID.String()).
		Str("order_number", o.OrderNumber).
		Int64("total_cents", o.TotalCents).
		Msg("Order created")

	s.sendConfirmation(ctx, o)
	return o, nil
}

// Get returns the order with an ownership check. Admins may read any order.
func (s *OrderService) Get(ctx context.Context, userID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*order.Order, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, domainErrors.ErrForbidden
	}
	return o, nil
}

// List returns the user's orders, newest first.
func (s *OrderService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*order.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orderRepo.List(ctx, order.ListFilter{UserID: &userID, Limit: limit, Offset: offset})
}

// Cancel cancels an unpaid order and restocks its lines.
func (s *OrderService) Cancel(ctx context.Context, userID uuid.UUID, orderID uuid.UUID) (*order.Order, error) {
	var o *order.Order

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		o, err = s.orderRepo.GetByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return domainErrors.ErrForbidden
		}
		if !o.CanCancel() {
			return domainErrors.ErrOrderNotCancelable
		}

		for _, it := range o.Items {
			if err := s.catalogRepo.AdjustStock(txCtx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		if err := o.TransitionTo(order.StatusCancelled); err != nil {
			return err
		}
		return s.orderRepo.UpdateStatus(txCtx, o.ID, order.StatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrdersTotal.WithLabelValues(string(order.StatusCancelled)).Inc()
	s.logger.Info().Str("order_id", o.ID.String()).Msg("Order cancelled")
	return o, nil
}

// UpdateStatus applies an admin fulfilment status change.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next order.OrderStatus) (*order.Order, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.TransitionTo(next); err != nil {
		return nil, err
	}
	if err := s.orderRepo.UpdateStatus(ctx, o.ID, next); err != nil {
		return nil, err
	}

	s.metrics.OrdersTotal.WithLabelValues(string(next)).Inc()
	return o, nil
}

func (s *OrderService) sendConfirmation(ctx context.Context, o *order.Order) {
	u, err := s.userRepo.GetByID(ctx, o.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", o.ID.String()).Msg("Skipping confirmation email")
		return
	}
	if err := s.emails.SendOrderConfirmation(ctx, u.Email, u.FullName(), o.OrderNumber, o.TotalCents); err != nil {
		s.logger.Warn().Err(err).Str("order_id", o.ID.String()).Msg("Confirmation email failed")
	}
}
