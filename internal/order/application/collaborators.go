package application

import (
	"context"

	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentGateway is the payment provider. Every call carries an idempotency key
// derived from the order id, so retries are safe.
type PaymentGateway interface {
	ReserveFunds(ctx context.Context, req ReserveFundsRequest) (paymentReferenceID string, err error)
	Refund(ctx context.Context, req RefundRequest) (refundID string, err error)
	Transfer(ctx context.Context, req TransferRequest) (transferID string, err error)
}

type ReserveFundsRequest struct {
	OrderID         uuid.UUID
	BuyerID         string
	PaymentMethodID string
	Amount          decimal.Decimal
}

type RefundRequest struct {
	OrderID            uuid.UUID
	PaymentReferenceID string
	Amount             decimal.Decimal
}

type TransferRequest struct {
	OrderID              uuid.UUID
	Kind                 domain.SettlementKind
	DestinationAccountID string
	Amount               decimal.Decimal
}

// TrackerGateway registers a shipment with the tracking provider.
// shipmentReference comes back on every webhook for the shipment.
type TrackerGateway interface {
	CreateTracker(ctx context.Context, trackingNumber, shipmentReference string) (trackerID string, err error)
}
