package stripe

import (
	"context"
	"fmt"

	"github.com/cristianortiz/marketplace/internal/order/application"
	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Gateway implements application.PaymentGateway on top of Stripe Connect.
// Buyer charges land on the platform account, payouts go out as transfers.
type Gateway struct {
	api      *client.API
	currency string
}

func NewGateway(api *client.API, currency string) *Gateway {
	return &Gateway{api: api, currency: currency}
}

// NewClient builds a Stripe API client for apiKey. backends may be nil.
func NewClient(apiKey string, backends *stripe.Backends) *client.API {
	return client.New(apiKey, backends)
}

func (g *Gateway) ReserveFunds(ctx context.Context, req application.ReserveFundsRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Currency:      stripe.String(g.currency),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
		TransferGroup: stripe.String(req.OrderID.String()),
	}
	params.Context = ctx
	params.SetIdempotencyKey("pay_" + req.OrderID.String())
	params.AddMetadata("orderId", req.OrderID.String())
	params.AddMetadata("buyerId", req.BuyerID)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create payment intent: %w", err)
	}
	log.Info("Payment intent created",
		zap.String("orderID", req.OrderID.String()),
		zap.String("paymentIntentID", pi.ID),
		zap.String("status", string(pi.Status)),
	)
	return pi.ID, nil
}

func (g *Gateway) Refund(ctx context.Context, req application.RefundRequest) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentReferenceID),
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund_" + req.OrderID.String())
	params.AddMetadata("orderId", req.OrderID.String())

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: refund %s: %w", req.PaymentReferenceID, err)
	}
	log.Info("Refund created", zap.String("orderID", req.OrderID.String()), zap.String("refundID", r.ID))
	return r.ID, nil
}

func (g *Gateway) Transfer(ctx context.Context, req application.TransferRequest) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Currency:      stripe.String(g.currency),
		Destination:   stripe.String(req.DestinationAccountID),
		TransferGroup: stripe.String(req.OrderID.String()),
	}
	params.Context = ctx
	params.SetIdempotencyKey(transferKey(req))
	params.AddMetadata("orderId", req.OrderID.String())
	params.AddMetadata("kind", string(req.Kind))

	tr, err := g.api.Transfers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: transfer to %s: %w", req.DestinationAccountID, err)
	}
	return tr.ID, nil
}

func transferKey(req application.TransferRequest) string {
	switch req.Kind {
	case domain.SettlementCommission:
		return "commission_" + req.OrderID.String()
	default:
		return "payout_" + req.OrderID.String()
	}
}

// toMinorUnits converts a two-decimal amount to cents.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
