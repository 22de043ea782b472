package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cristianortiz/marketplace/internal/order/application"
	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/cristianortiz/marketplace/internal/shared/httpserver"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-123"

// stubService records calls; unset funcs behave as not implemented.
type stubService struct {
	application.OrderService

	reserved []application.ReserveFundsDTO
	tracking map[uuid.UUID]string
	ingested []application.TrackingUpdate
	orders   map[uuid.UUID]*application.OrderDTO
	trackErr error
}

func newStub() *stubService {
	return &stubService{
		tracking: map[uuid.UUID]string{},
		orders:   map[uuid.UUID]*application.OrderDTO{},
	}
}

func (s *stubService) ReserveFunds(_ context.Context, dto application.ReserveFundsDTO) (*application.OrderDTO, error) {
	if !dto.NetAmount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if dto.OrderID == uuid.Nil {
		dto.OrderID = uuid.New()
	}
	s.reserved = append(s.reserved, dto)
	return &application.OrderDTO{OrderID: dto.OrderID, Status: string(domain.StatusFundsReserved), NetAmount: dto.NetAmount}, nil
}

func (s *stubService) GetOrder(_ context.Context, id uuid.UUID) (*application.OrderDTO, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *stubService) EnterTrackingNumber(_ context.Context, id uuid.UUID, trackingNumber string) error {
	if s.trackErr != nil {
		return s.trackErr
	}
	if trackingNumber == "" {
		return domain.ErrMissingTrackingNumber
	}
	s.tracking[id] = trackingNumber
	return nil
}

func (s *stubService) IngestTrackingUpdates(_ context.Context, updates []application.TrackingUpdate) application.IngestResult {
	s.ingested = append(s.ingested, updates...)
	return application.IngestResult{Applied: len(updates)}
}

func newApp(svc application.OrderService) *fiber.App {
	server := httpserver.NewServer(StatusFor)
	NewHandler(svc, secret).RegisterRoutes(server.App())
	return server.App()
}

func do(t *testing.T, app *fiber.App, method, path, auth, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestReserveFunds(t *testing.T) {
	svc := newStub()
	app := newApp(svc)
	orderID := uuid.New()

	body := fmt.Sprintf(`{"orderId":%q,"buyerId":"buyer-1","paymentMethodId":"pm_1","netAmount":"250.50","sellerId":"seller-1","sellerPayoutAccountId":"acct_1"}`, orderID)
	status, raw := do(t, app, fiber.MethodPost, "/api/v1/orders/reserve-funds", "", body)

	require.Equal(t, fiber.StatusCreated, status, string(raw))
	var dto application.OrderDTO
	require.NoError(t, json.Unmarshal(raw, &dto))
	assert.Equal(t, orderID, dto.OrderID)
	require.Len(t, svc.reserved, 1)
	assert.True(t, decimal.RequireFromString("250.50").Equal(svc.reserved[0].NetAmount))
	assert.Equal(t, "acct_1", svc.reserved[0].SellerPayoutAccountID)
}

func TestReserveFunds_Errors(t *testing.T) {
	app := newApp(newStub())

	status, _ := do(t, app, fiber.MethodPost, "/api/v1/orders/reserve-funds", "", `{"netAmount":"0"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, fiber.MethodPost, "/api/v1/orders/reserve-funds", "", `{not json`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetOrder(t *testing.T) {
	svc := newStub()
	id := uuid.New()
	svc.orders[id] = &application.OrderDTO{OrderID: id, Status: string(domain.StatusDelivered)}
	app := newApp(svc)

	status, raw := do(t, app, fiber.MethodGet, "/api/v1/orders/"+id.String(), "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), `"status":"DELIVERED"`)

	status, _ = do(t, app, fiber.MethodGet, "/api/v1/orders/"+uuid.NewString(), "", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, fiber.MethodGet, "/api/v1/orders/not-a-uuid", "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestEnterTrackingNumber(t *testing.T) {
	svc := newStub()
	app := newApp(svc)
	id := uuid.New()

	status, _ := do(t, app, fiber.MethodPost, "/api/v1/orders/"+id.String()+"/tracking-number", "", `{"trackingNumber":"RR123"}`)
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, "RR123", svc.tracking[id])

	status, _ = do(t, app, fiber.MethodPost, "/api/v1/orders/"+id.String()+"/tracking-number", "", `{"trackingNumber":""}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	svc.trackErr = &domain.InvalidOrderStateError{OrderID: id, Expected: domain.StatusFundsReserved, Actual: domain.StatusCancelled}
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/orders/"+id.String()+"/tracking-number", "", `{"trackingNumber":"RR123"}`)
	assert.Equal(t, fiber.StatusConflict, status)
}

func TestShip24Webhook(t *testing.T) {
	orderA, orderB := uuid.New(), uuid.New()
	payload := fmt.Sprintf(`{
	  "trackings": [
	    {
	      "tracker": {"trackerId": "tracker-1", "trackingNumber": "TRACK001", "shipmentReference": %q},
	      "events": [
	        {"eventId": "event-001", "status": "Delivered to the addressee", "occurrenceDatetime": "2025-03-04T17:12:57Z", "statusCode": "DE", "statusMilestone": "delivered"}
	      ]
	    },
	    {
	      "tracker": {"trackerId": "tracker-2", "trackingNumber": "TRACK002", "shipmentReference": %q},
	      "events": [
	        {"eventId": "event-002", "status": "In transit", "occurrenceDatetime": "2025-03-04T18:30:00Z", "statusMilestone": "in_transit"},
	        {"eventId": "event-003", "status": "Out for delivery", "occurrenceDatetime": "2025-03-05T08:00:00Z", "statusMilestone": "out_for_delivery"}
	      ]
	    }
	  ]
	}`, orderA, orderB)

	t.Run("authorized batch is ingested in order", func(t *testing.T) {
		svc := newStub()
		status, raw := do(t, newApp(svc), fiber.MethodPost, "/api/v1/webhooks/orders/ship24", "Bearer "+secret, payload)

		require.Equal(t, fiber.StatusOK, status, string(raw))
		require.Len(t, svc.ingested, 3)
		first := svc.ingested[0]
		assert.Equal(t, orderA.String(), first.ShipmentReference)
		assert.Equal(t, "event-001", first.EventID)
		assert.Equal(t, "delivered", first.Milestone)
		assert.Equal(t, "Delivered to the addressee", first.Description)
		assert.True(t, first.OccurredAt.Equal(time.Date(2025, 3, 4, 17, 12, 57, 0, time.UTC)))
		assert.Equal(t, "event-003", svc.ingested[2].EventID)

		var res application.IngestResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.Equal(t, 3, res.Applied)
	})

	for name, auth := range map[string]string{
		"missing header": "",
		"wrong secret":   "Bearer nope",
		"no bearer":      secret,
	} {
		t.Run(name, func(t *testing.T) {
			svc := newStub()
			status, _ := do(t, newApp(svc), fiber.MethodPost, "/api/v1/webhooks/orders/ship24", auth, payload)
			assert.Equal(t, fiber.StatusUnauthorized, status)
			assert.Empty(t, svc.ingested)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		status, _ := do(t, newApp(newStub()), fiber.MethodPost, "/api/v1/webhooks/orders/ship24", "Bearer "+secret, `{"trackings":`)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})
}

func TestWebhook_EmptySecretRejectsEverything(t *testing.T) {
	svc := newStub()
	server := httpserver.NewServer(StatusFor)
	NewHandler(svc, "").RegisterRoutes(server.App())

	status, _ := do(t, server.App(), fiber.MethodPost, "/api/v1/webhooks/orders/ship24", "Bearer ", `{"trackings":[]}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
