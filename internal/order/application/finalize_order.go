package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/cristianortiz/marketplace/internal/shared/saga"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Settlement runs the transfer commands the finalize-order saga asks for.
type Settlement interface {
	DeductCommission(ctx context.Context, cmd domain.DeductCommission) error
	TransferPayment(ctx context.Context, cmd domain.TransferPayment) error
}

type finalizeStep = saga.Step[domain.FinalizeOrderState, domain.FinalizeEffect]

// FinalizeOrderManager hosts the finalize-order saga: it starts on delivery,
// waits for both transfers and then completes the order.
type FinalizeOrderManager struct {
	coordinator *saga.Coordinator[domain.FinalizeOrderState, domain.FinalizeEffect]
	settlement  Settlement
	orders      OrderService
}

func NewFinalizeOrderManager(store saga.Store, settlement Settlement, orders OrderService) *FinalizeOrderManager {
	return &FinalizeOrderManager{
		coordinator: saga.NewCoordinator[domain.FinalizeOrderState, domain.FinalizeEffect](domain.FinalizeOrderSaga, store),
		settlement:  settlement,
		orders:      orders,
	}
}

func (m *FinalizeOrderManager) EventTypes() []string {
	return []string{
		domain.OrderDelivered{}.EventType(),
		domain.CommissionDeducted{}.EventType(),
		domain.PaymentTransferred{}.EventType(),
		domain.SettlementFailed{}.EventType(),
	}
}

func (m *FinalizeOrderManager) Handle(ctx context.Context, env eventsourcing.Envelope) error {
	var step finalizeStep
	switch ev := env.Event.(type) {
	case domain.OrderDelivered:
		step = func(s domain.FinalizeOrderState, exists bool) (domain.FinalizeOrderState, []domain.FinalizeEffect, saga.Lifecycle, error) {
			if exists {
				return s, nil, saga.Ignore, nil
			}
			next, effects := domain.StartFinalizeOrder(ev)
			return next, effects, saga.Continue, nil
		}
	case domain.CommissionDeducted:
		step = joinStep(func(s domain.FinalizeOrderState) (domain.FinalizeOrderState, []domain.FinalizeEffect, bool) {
			return s.OnCommissionDeducted(ev.TransferID)
		})
	case domain.PaymentTransferred:
		step = joinStep(func(s domain.FinalizeOrderState) (domain.FinalizeOrderState, []domain.FinalizeEffect, bool) {
			return s.OnPaymentTransferred(ev.TransferID)
		})
	case domain.SettlementFailed:
		log.Error("Order settlement failed, saga waits for manual intervention",
			zap.String("orderID", ev.OrderID.String()),
			zap.String("kind", string(ev.Kind)),
			zap.String("reason", ev.Reason),
		)
		return nil
	default:
		return nil
	}

	orderID := env.AggregateID.String()
	// CompleteOrder runs before the instance is dropped, a failure keeps it for redelivery
	effects, err := m.coordinator.Handle(ctx, orderID, step, m.dispatch)
	if err != nil {
		return fmt.Errorf("finalize order saga %s: %w", orderID, err)
	}
	return m.dispatch(ctx, effects)
}

func joinStep(on func(domain.FinalizeOrderState) (domain.FinalizeOrderState, []domain.FinalizeEffect, bool)) finalizeStep {
	return func(s domain.FinalizeOrderState, exists bool) (domain.FinalizeOrderState, []domain.FinalizeEffect, saga.Lifecycle, error) {
		if !exists {
			return s, nil, saga.Ignore, nil
		}
		next, effects, done := on(s)
		if done {
			return next, effects, saga.End, nil
		}
		return next, effects, saga.Continue, nil
	}
}

// dispatch runs the transfers concurrently; completion goes straight to the order.
func (m *FinalizeOrderManager) dispatch(ctx context.Context, effects []domain.FinalizeEffect) error {
	var g errgroup.Group
	for _, effect := range effects {
		switch cmd := effect.(type) {
		case domain.DeductCommission:
			g.Go(func() error { return m.settlement.DeductCommission(ctx, cmd) })
		case domain.TransferPayment:
			g.Go(func() error { return m.settlement.TransferPayment(ctx, cmd) })
		case domain.CompleteOrder:
			g.Go(func() error {
				return m.orders.CompleteOrder(ctx, cmd.OrderID, cmd.PayoutTransferID, cmd.CommissionTransferID)
			})
		}
	}
	return g.Wait()
}
