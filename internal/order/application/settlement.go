package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NoTransferID stands for a leg with nothing to move, e.g. a zero commission.
const NoTransferID = "none"

// SettlementHandler runs the two payout legs of a delivered order and reports
// each outcome as an event correlated by order id.
type SettlementHandler struct {
	payments          PaymentGateway
	publisher         eventsourcing.Publisher
	platformAccountID string
	clock             clock.Clock
}

func NewSettlementHandler(payments PaymentGateway, publisher eventsourcing.Publisher, platformAccountID string, clk clock.Clock) *SettlementHandler {
	return &SettlementHandler{
		payments:          payments,
		publisher:         publisher,
		platformAccountID: platformAccountID,
		clock:             clk,
	}
}

func (h *SettlementHandler) DeductCommission(ctx context.Context, cmd domain.DeductCommission) error {
	transferID, err := h.transfer(ctx, cmd.OrderID, domain.SettlementCommission, h.platformAccountID, cmd.Amount)
	if err != nil {
		return err
	}
	h.publish(ctx, cmd.OrderID, domain.CommissionDeducted{OrderID: cmd.OrderID, TransferID: transferID})
	return nil
}

func (h *SettlementHandler) TransferPayment(ctx context.Context, cmd domain.TransferPayment) error {
	transferID, err := h.transfer(ctx, cmd.OrderID, domain.SettlementPayout, cmd.DestinationAccountID, cmd.Amount)
	if err != nil {
		return err
	}
	h.publish(ctx, cmd.OrderID, domain.PaymentTransferred{OrderID: cmd.OrderID, TransferID: transferID})
	return nil
}

func (h *SettlementHandler) transfer(ctx context.Context, orderID uuid.UUID, kind domain.SettlementKind, destination string, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return NoTransferID, nil
	}
	transferID, err := h.payments.Transfer(ctx, TransferRequest{
		OrderID:              orderID,
		Kind:                 kind,
		DestinationAccountID: destination,
		Amount:               amount,
	})
	if err != nil {
		log.Error("Settlement transfer failed",
			zap.String("orderID", orderID.String()),
			zap.String("kind", string(kind)),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		h.publish(ctx, orderID, domain.SettlementFailed{OrderID: orderID, Kind: kind, Reason: err.Error()})
		return "", fmt.Errorf("%s transfer for order %s: %w", kind, orderID, err)
	}
	log.Info("Settlement transfer done",
		zap.String("orderID", orderID.String()),
		zap.String("kind", string(kind)),
		zap.String("transferID", transferID),
	)
	return transferID, nil
}

func (h *SettlementHandler) publish(ctx context.Context, orderID uuid.UUID, e eventsourcing.Event) {
	h.publisher.Publish(ctx, eventsourcing.Envelope{
		AggregateType: domain.SettlementAggregateType,
		AggregateID:   orderID,
		Event:         e,
		RecordedAt:    h.clock.Now(),
	})
}
