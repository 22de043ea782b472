package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cristianortiz/marketplace/internal/auction/application"
	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/cristianortiz/marketplace/internal/shared/httpserver"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

func newApp() *fiber.App {
	clk := clock.NewFixed(now)
	repo := application.NewAuctionRepository(eventsourcing.NewMemoryStore(), nil)
	scheduler := deadline.NewMemoryScheduler(deadline.NewDispatcher(), clk)
	server := httpserver.NewServer(StatusFor)
	NewHandler(application.NewAuctionService(repo, scheduler, clk)).RegisterRoutes(server.App())
	return server.App()
}

func do(t *testing.T, app *fiber.App, method, path, user, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func createAuction(t *testing.T, app *fiber.App) uuid.UUID {
	t.Helper()
	body := fmt.Sprintf(`{"title":"Vintage camera","startingPrice":"100","auctionEndTime":%q}`,
		now.Add(7*24*time.Hour).Format(time.RFC3339))
	status, raw := do(t, app, fiber.MethodPost, "/api/auctions", "seller-1", body)
	require.Equal(t, fiber.StatusCreated, status, string(raw))

	var state application.AuctionStateDTO
	require.NoError(t, json.Unmarshal(raw, &state))
	return state.AuctionItemID
}

func TestCreateAuction(t *testing.T) {
	app := newApp()
	id := createAuction(t, app)

	status, raw := do(t, app, fiber.MethodGet, "/api/auctions/"+id.String(), "", "")
	require.Equal(t, fiber.StatusOK, status)
	var state application.AuctionStateDTO
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, "seller-1", state.SellerID)
	assert.Equal(t, "ACTIVE", state.Status)
}

func TestCreateAuction_Validation(t *testing.T) {
	app := newApp()
	future := now.Add(time.Hour).Format(time.RFC3339)
	past := now.Add(-time.Hour).Format(time.RFC3339)

	status, _ := do(t, app, fiber.MethodPost, "/api/auctions", "seller-1", fmt.Sprintf(`{"startingPrice":"0","auctionEndTime":%q}`, future))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, fiber.MethodPost, "/api/auctions", "seller-1", fmt.Sprintf(`{"startingPrice":"10","auctionEndTime":%q}`, past))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, fiber.MethodPost, "/api/auctions", "", fmt.Sprintf(`{"startingPrice":"10","auctionEndTime":%q}`, future))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestPlaceBid(t *testing.T) {
	app := newApp()
	id := createAuction(t, app)
	path := "/api/auctions/" + id.String() + "/bids"

	status, raw := do(t, app, fiber.MethodPost, path, "alice", `{"amount":"150"}`)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	var res application.BidResultDTO
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.True(t, res.Accepted)

	status, raw = do(t, app, fiber.MethodPost, path, "bob", `{"amount":"50"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.False(t, res.Accepted)
	assert.Equal(t, "BID_TOO_LOW", res.Reason)
	assert.True(t, res.HighestBidAmount.Equal(decimal.NewFromInt(150)))
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	app := newApp()
	status, _ := do(t, app, fiber.MethodPost, "/api/auctions/"+uuid.NewString()+"/bids", "alice", `{"amount":"150"}`)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, fiber.MethodPost, "/api/auctions/not-a-uuid/bids", "alice", `{"amount":"150"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCloseAuction(t *testing.T) {
	app := newApp()
	id := createAuction(t, app)

	status, _ := do(t, app, fiber.MethodPost, "/api/auctions/"+id.String()+"/close", "seller-1", "")
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = do(t, app, fiber.MethodPost, "/api/auctions/"+id.String()+"/close", "seller-1", "")
	assert.Equal(t, fiber.StatusNoContent, status)

	_, raw := do(t, app, fiber.MethodPost, "/api/auctions/"+id.String()+"/bids", "alice", `{"amount":"500"}`)
	var res application.BidResultDTO
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, "AUCTION_CLOSED", res.Reason)
}
