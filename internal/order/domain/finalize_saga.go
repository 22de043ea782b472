package domain

import (
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// FinalizeOrderSaga names the finalize-order saga in the saga store.
const FinalizeOrderSaga = "FinalizeOrder"

// FinalizeOrderState joins the two settlement legs of a delivered order.
type FinalizeOrderState struct {
	OrderID               uuid.UUID       `json:"orderId"`
	SellerPayoutAccountID string          `json:"sellerPayoutAccountId"`
	Payout                decimal.Decimal `json:"payout"`
	Commission            decimal.Decimal `json:"commission"`
	CommissionTransferID  string          `json:"commissionTransferId,omitempty"`
	PaymentTransferID     string          `json:"paymentTransferId,omitempty"`
}

// FinalizeEffect is a command the saga asks to have dispatched.
type FinalizeEffect interface {
	finalizeEffect()
}

// DeductCommission moves the commission to the platform account.
type DeductCommission struct {
	OrderID uuid.UUID
	Amount  decimal.Decimal
}

// TransferPayment moves the payout to the seller.
type TransferPayment struct {
	OrderID              uuid.UUID
	DestinationAccountID string
	Amount               decimal.Decimal
}

type CompleteOrder struct {
	OrderID              uuid.UUID
	PayoutTransferID     string
	CommissionTransferID string
}

func (DeductCommission) finalizeEffect() {}
func (TransferPayment) finalizeEffect()  {}
func (CompleteOrder) finalizeEffect()    {}

// StartFinalizeOrder opens the saga for a delivered order and asks for both transfers.
func StartFinalizeOrder(ev OrderDelivered) (FinalizeOrderState, []FinalizeEffect) {
	s := FinalizeOrderState{
		OrderID:               ev.OrderID,
		SellerPayoutAccountID: ev.SellerPayoutAccountID,
		Payout:                ev.Payout,
		Commission:            ev.Commission,
	}
	return s, []FinalizeEffect{
		DeductCommission{OrderID: ev.OrderID, Amount: ev.Commission},
		TransferPayment{OrderID: ev.OrderID, DestinationAccountID: ev.SellerPayoutAccountID, Amount: ev.Payout},
	}
}

// OnCommissionDeducted records the commission transfer. done is true once both
// legs are known, with CompleteOrder as the only effect.
func (s FinalizeOrderState) OnCommissionDeducted(transferID string) (next FinalizeOrderState, effects []FinalizeEffect, done bool) {
	s.CommissionTransferID = merge(s.OrderID, "commissionTransferId", s.CommissionTransferID, transferID)
	return s.join()
}

// OnPaymentTransferred is the payout counterpart of OnCommissionDeducted.
func (s FinalizeOrderState) OnPaymentTransferred(transferID string) (next FinalizeOrderState, effects []FinalizeEffect, done bool) {
	s.PaymentTransferID = merge(s.OrderID, "paymentTransferId", s.PaymentTransferID, transferID)
	return s.join()
}

func (s FinalizeOrderState) join() (FinalizeOrderState, []FinalizeEffect, bool) {
	if s.CommissionTransferID == "" || s.PaymentTransferID == "" {
		return s, nil, false
	}
	return s, []FinalizeEffect{CompleteOrder{
		OrderID:              s.OrderID,
		PayoutTransferID:     s.PaymentTransferID,
		CommissionTransferID: s.CommissionTransferID,
	}}, true
}

// merge keeps the first transfer id seen for a leg.
func merge(orderID uuid.UUID, field, current, incoming string) string {
	if current == "" {
		return incoming
	}
	if current != incoming {
		log.Warn("Conflicting transfer id for settled leg, keeping the first",
			zap.String("orderID", orderID.String()),
			zap.String("field", field),
			zap.String("kept", current),
			zap.String("ignored", incoming),
		)
	}
	return current
}
