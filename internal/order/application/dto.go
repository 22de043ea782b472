package application

import (
	"time"

	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderDTO struct {
	OrderID               uuid.UUID       `json:"orderId"`
	Status                string          `json:"status"`
	NetAmount             decimal.Decimal `json:"netAmount"`
	CommissionRate        decimal.Decimal `json:"commissionRate"`
	PaymentReferenceID    string          `json:"paymentReferenceId"`
	SellerID              string          `json:"sellerId"`
	SellerPayoutAccountID string          `json:"sellerPayoutAccountId"`
	ReservedAt            time.Time       `json:"reservedAt"`
	TrackingNumber        string          `json:"trackingNumber,omitempty"`
	Tracking              *TrackingDTO    `json:"tracking,omitempty"`
	RefundID              string          `json:"refundId,omitempty"`
	Completion            *CompletionDTO  `json:"completion,omitempty"`
}

type TrackingDTO struct {
	ExternalTrackerID    string    `json:"externalTrackerId"`
	LastMilestone        string    `json:"lastMilestone"`
	LastEventDescription string    `json:"lastEventDescription,omitempty"`
	LastEventTime        time.Time `json:"lastEventTime"`
}

type CompletionDTO struct {
	CompletedAt          time.Time `json:"completedAt"`
	PayoutTransferID     string    `json:"payoutTransferId"`
	CommissionTransferID string    `json:"commissionTransferId"`
}

func toOrderDTO(o *domain.Order) *OrderDTO {
	dto := &OrderDTO{
		OrderID:        o.ID,
		Status:         string(o.Status),
		CommissionRate: o.CommissionRate,
		TrackingNumber: o.TrackingNumber,
		RefundID:       o.RefundID,
	}
	if r := o.Reservation; r != nil {
		dto.NetAmount = r.NetAmount
		dto.PaymentReferenceID = r.PaymentReferenceID
		dto.SellerID = r.SellerID
		dto.SellerPayoutAccountID = r.SellerPayoutAccountID
		dto.ReservedAt = r.ReservedAt
	}
	if t := o.Tracking; t != nil {
		dto.Tracking = &TrackingDTO{
			ExternalTrackerID:    t.ExternalTrackerID,
			LastMilestone:        string(t.LastMilestone),
			LastEventDescription: t.LastEventDescription,
			LastEventTime:        t.LastEventTime,
		}
	}
	if c := o.Completion; c != nil {
		dto.Completion = &CompletionDTO{
			CompletedAt:          c.CompletedAt,
			PayoutTransferID:     c.PayoutTransferID,
			CommissionTransferID: c.CommissionTransferID,
		}
	}
	return dto
}
