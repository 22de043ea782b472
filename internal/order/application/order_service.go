package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// OrderRepository is the event-sourced repository of orders.
type OrderRepository = eventsourcing.Repository[*domain.Order]

func NewOrderRepository(store eventsourcing.Store, publisher eventsourcing.Publisher) *OrderRepository {
	return eventsourcing.NewRepository(domain.AggregateType, domain.NewOrder, store, publisher)
}

// Policy holds the marketplace rules applied when funds are reserved.
type Policy struct {
	RefundPeriod   time.Duration
	CommissionRate decimal.Decimal
}

// OrderService exposes every order command to the infra layer and the reactors.
type OrderService interface {
	ReserveFunds(ctx context.Context, dto ReserveFundsDTO) (*OrderDTO, error)
	AssignFundReservation(ctx context.Context, cmd domain.AssignFundReservation) error
	EnterTrackingNumber(ctx context.Context, orderID uuid.UUID, trackingNumber string) error
	AssignTrackingInfo(ctx context.Context, orderID uuid.UUID, trackingNumber, externalTrackerID string, enteredAt time.Time) error
	UpdateTrackingStatus(ctx context.Context, orderID uuid.UUID, cmd domain.UpdateTrackingStatus) error
	FinishRefund(ctx context.Context, orderID uuid.UUID, refundID string) error
	CompleteOrder(ctx context.Context, orderID uuid.UUID, payoutTransferID, commissionTransferID string) error
	IngestTrackingUpdates(ctx context.Context, updates []TrackingUpdate) IngestResult
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
}

type orderService struct {
	repo      *OrderRepository
	scheduler deadline.Scheduler
	payments  PaymentGateway
	policy    Policy
	clock     clock.Clock
}

func NewOrderService(repo *OrderRepository, scheduler deadline.Scheduler, payments PaymentGateway, policy Policy, clk clock.Clock) OrderService {
	return &orderService{
		repo:      repo,
		scheduler: scheduler,
		payments:  payments,
		policy:    policy,
		clock:     clk,
	}
}

// ReserveFundsDTO is the buyer's checkout input.
type ReserveFundsDTO struct {
	OrderID               uuid.UUID       `json:"orderId"`
	BuyerID               string          `json:"buyerId"`
	PaymentMethodID       string          `json:"paymentMethodId"`
	NetAmount             decimal.Decimal `json:"netAmount"`
	SellerID              string          `json:"sellerId"`
	SellerPayoutAccountID string          `json:"sellerPayoutAccountId"`
}

func (s *orderService) ReserveFunds(ctx context.Context, dto ReserveFundsDTO) (*OrderDTO, error) {
	if dto.OrderID == uuid.Nil {
		dto.OrderID = uuid.New()
	}
	if !domain.ValidAmount(dto.NetAmount) {
		return nil, domain.ErrInvalidAmount
	}
	if dto.SellerID == "" || dto.SellerPayoutAccountID == "" {
		return nil, domain.ErrInvalidReservation
	}

	paymentRef, err := s.payments.ReserveFunds(ctx, ReserveFundsRequest{
		OrderID:         dto.OrderID,
		BuyerID:         dto.BuyerID,
		PaymentMethodID: dto.PaymentMethodID,
		Amount:          dto.NetAmount,
	})
	if err != nil {
		log.Error("Failed to reserve funds", zap.String("orderID", dto.OrderID.String()), zap.Error(err))
		return nil, fmt.Errorf("reserve funds: %w", err)
	}

	err = s.AssignFundReservation(ctx, domain.AssignFundReservation{
		OrderID:               dto.OrderID,
		PaymentReferenceID:    paymentRef,
		PaymentMethodID:       dto.PaymentMethodID,
		NetAmount:             dto.NetAmount,
		ReservedAt:            s.clock.Now(),
		SellerID:              dto.SellerID,
		SellerPayoutAccountID: dto.SellerPayoutAccountID,
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, dto.OrderID)
}

func (s *orderService) AssignFundReservation(ctx context.Context, cmd domain.AssignFundReservation) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	fireAt := cmd.ShippingDeadlineAt(s.policy.RefundPeriod)
	handle, err := s.scheduler.Schedule(ctx, fireAt, domain.ShippingDeadline, domain.ShippingDeadlinePayload{
		OrderID:            cmd.OrderID,
		PaymentReferenceID: cmd.PaymentReferenceID,
		DueAt:              fireAt,
	})
	if err != nil {
		return fmt.Errorf("assign fund reservation: schedule shipping deadline: %w", err)
	}

	_, err = s.repo.Execute(ctx, cmd.OrderID, func(o *domain.Order) ([]eventsourcing.Event, error) {
		return o.AssignFundReservation(cmd, string(handle), s.policy.CommissionRate)
	})
	if err != nil {
		s.cancel(ctx, cmd.OrderID, handle)
		return fmt.Errorf("assign fund reservation: %w", err)
	}

	log.Info("Funds reserved",
		zap.String("orderID", cmd.OrderID.String()),
		zap.String("netAmount", cmd.NetAmount.String()),
		zap.Time("shippingDeadline", fireAt),
	)
	return nil
}

func (s *orderService) EnterTrackingNumber(ctx context.Context, orderID uuid.UUID, trackingNumber string) error {
	var handle string
	_, err := s.repo.Execute(ctx, orderID, func(o *domain.Order) ([]eventsourcing.Event, error) {
		events, err := o.EnterTrackingNumber(trackingNumber, s.clock.Now())
		if err == nil {
			handle = o.Reservation.RefundDeadlineHandle
		}
		return events, err
	})
	if err != nil {
		return fmt.Errorf("enter tracking number: %w", err)
	}

	log.Info("Tracking number entered", zap.String("orderID", orderID.String()), zap.String("trackingNumber", trackingNumber))
	// if the deadline is already in flight the aggregate ignores it
	if handle != "" {
		s.cancel(ctx, orderID, deadline.Handle(handle))
	}
	return nil
}

func (s *orderService) AssignTrackingInfo(ctx context.Context, orderID uuid.UUID, trackingNumber, externalTrackerID string, enteredAt time.Time) error {
	_, err := s.repo.Execute(ctx, orderID, func(o *domain.Order) ([]eventsourcing.Event, error) {
		return o.AssignTrackingInfo(trackingNumber, externalTrackerID, enteredAt)
	})
	if err != nil {
		return fmt.Errorf("assign tracking info: %w", err)
	}
	return nil
}

func (s *orderService) UpdateTrackingStatus(ctx context.Context, orderID uuid.UUID, cmd domain.UpdateTrackingStatus) error {
	committed, err := s.repo.Execute(ctx, orderID, func(o *domain.Order) ([]eventsourcing.Event, error) {
		return o.UpdateTrackingStatus(cmd, s.clock.Now())
	})
	if err != nil {
		return fmt.Errorf("update tracking status: %w", err)
	}
	if len(committed) == 0 {
		log.Debug("Duplicate tracking event ignored", zap.String("orderID", orderID.String()), zap.String("eventID", cmd.EventID))
	}
	return nil
}

func (s *orderService) FinishRefund(ctx context.Context, orderID uuid.UUID, refundID string) error {
	_, err := s.repo.Execute(ctx, orderID, func(o *domain.Order) ([]eventsourcing.Event, error) {
		return o.FinishRefund(refundID, s.clock.Now())
	})
	if err != nil {
		return fmt.Errorf("finish refund: %w", err)
	}
	log.Info("Order cancelled after refund", zap.String("orderID", orderID.String()), zap.String("refundID", refundID))
	return nil
}

func (s *orderService) CompleteOrder(ctx context.Context, orderID uuid.UUID, payoutTransferID, commissionTransferID string) error {
	_, err := s.repo.Execute(ctx, orderID, func(o *domain.Order) ([]eventsourcing.Event, error) {
		return o.CompleteOrder(payoutTransferID, commissionTransferID, s.clock.Now())
	})
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	log.Info("Order completed", zap.String("orderID", orderID.String()))
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	o, _, err := s.repo.Load(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !o.Exists() {
		return nil, domain.ErrOrderNotFound
	}
	return toOrderDTO(o), nil
}

func (s *orderService) cancel(ctx context.Context, orderID uuid.UUID, handle deadline.Handle) {
	if err := s.scheduler.Cancel(ctx, domain.ShippingDeadline, handle); err != nil {
		log.Warn("Failed to cancel shipping deadline",
			zap.String("orderID", orderID.String()),
			zap.String("handle", string(handle)),
			zap.Error(err),
		)
	}
}

// ShippingDeadlineHandler refunds the buyer when the seller has not shipped in time.
type ShippingDeadlineHandler struct {
	repo  *OrderRepository
	clock clock.Clock
}

func NewShippingDeadlineHandler(repo *OrderRepository, clk clock.Clock) *ShippingDeadlineHandler {
	return &ShippingDeadlineHandler{repo: repo, clock: clk}
}

func (h *ShippingDeadlineHandler) Handle(ctx context.Context, p domain.ShippingDeadlinePayload) error {
	var status domain.Status
	committed, err := h.repo.Execute(ctx, p.OrderID, func(o *domain.Order) ([]eventsourcing.Event, error) {
		status = o.Status
		return o.ShippingDeadlineElapsed(h.clock.Now())
	})
	if errors.Is(err, domain.ErrOrderNotFound) {
		if deadline.Orphaned(p.DueAt, h.clock.Now()) {
			log.Warn("Shipping deadline for unknown order, dropping",
				zap.String("orderID", p.OrderID.String()),
				zap.Time("dueAt", p.DueAt),
			)
			return nil
		}
		return fmt.Errorf("shipping deadline: %w", err)
	}
	if err != nil {
		return fmt.Errorf("shipping deadline: %w", err)
	}
	if len(committed) == 0 {
		log.Warn("Shipping deadline fired after order moved on, ignoring",
			zap.String("orderID", p.OrderID.String()),
			zap.String("status", string(status)),
		)
		return nil
	}
	log.Info("Shipping deadline missed, refund scheduled", zap.String("orderID", p.OrderID.String()))
	return nil
}

// RegisterDeadlines routes the shipping deadline to its handler.
func RegisterDeadlines(d *deadline.Dispatcher, repo *OrderRepository, clk clock.Clock) {
	h := NewShippingDeadlineHandler(repo, clk)
	d.Register(domain.ShippingDeadline, deadline.Typed(h.Handle))
}
