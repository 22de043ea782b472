package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cristianortiz/marketplace/internal/auction/application"
	"github.com/cristianortiz/marketplace/internal/auction/domain"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/cristianortiz/marketplace/internal/shared/websocket"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AuctionWSHandler handles the ws inbound msgs wich are specific for auction module
type AuctionWSHandler struct {
	auctionService application.AuctionService
	hub            *websocket.Hub
}

func NewAuctionWSHandler(auctionService application.AuctionService, hub *websocket.Hub) *AuctionWSHandler {
	return &AuctionWSHandler{
		auctionService: auctionService,
		hub:            hub,
	}
}

// RegisterRoutes mounts the live auction endpoint on app.
func (h *AuctionWSHandler) RegisterRoutes(ctx context.Context, app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			c.Locals("userID", c.Get("X-User-ID", c.Query("userId")))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/auctions/:id", fiberws.New(func(conn *fiberws.Conn) {
		h.serve(ctx, conn)
	}))
}

func (h *AuctionWSHandler) serve(ctx context.Context, conn *fiberws.Conn) {
	auctionItemID, err := uuid.Parse(conn.Params("id"))
	if err != nil {
		_ = conn.WriteJSON(errorMessage("invalid auction id"))
		_ = conn.Close()
		return
	}
	state, err := h.auctionService.GetAuctionState(ctx, auctionItemID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		_ = conn.Close()
		return
	}

	userID, _ := conn.Locals("userID").(string)
	client := h.hub.NewClient(conn, uuid.NewString(), auctionItemID.String(), userID)
	h.send(client, ServerInitialStateMessage{BaseMessage: BaseMessage{Type: MessageTypeServerInitialState}, Payload: state})
	h.hub.RegisterClient(client)

	go client.WritePump(ctx)
	// fiber closes the connection once this handler returns
	client.ReadPump(ctx)
}

// ListenForMessages starts a go routine that listen the Hub inbound channel for messages and proccess every one of them
func (h *AuctionWSHandler) ListenForMessages(ctx context.Context) {
	log.Info("AuctionWSHandler started listening for inbound messages from hub")
	for {
		select {
		case <-ctx.Done():
			log.Info("AuctionWSHandler stopped listening for inbound messages from hub")
			return
		case msg := <-h.hub.InboundMessages:
			go h.processMessage(ctx, msg.Client, msg.Data)
		}
	}
}

// processMessage dispatch the message by this type
func (h *AuctionWSHandler) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		h.send(client, errorMessage("invalid message format"))
		return
	}
	switch baseMsg.Type {
	case MessageTypeClientBid:
		h.handleClientBidMessage(ctx, client, data)
	default:
		h.send(client, errorMessage("unknown message type"))
	}
}

func (h *AuctionWSHandler) handleClientBidMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var bidMsg ClientBidMessage
	if err := json.Unmarshal(data, &bidMsg); err != nil {
		h.send(client, errorMessage("invalid bid message format"))
		return
	}
	if bidMsg.Payload.AuctionItemID.String() != client.Topic {
		h.send(client, errorMessage("auction ID mismatch"))
		return
	}
	if client.UserID == "" {
		h.send(client, errorMessage("anonymous connections cannot bid"))
		return
	}

	result, err := h.auctionService.PlaceBid(ctx, application.PlaceBidDTO{
		AuctionItemID: bidMsg.Payload.AuctionItemID,
		BidID:         bidMsg.Payload.BidID,
		BidderID:      client.UserID,
		Amount:        bidMsg.Payload.Amount,
	})
	if err != nil {
		msg := "failed to place bid"
		if errors.Is(err, domain.ErrAuctionNotFound) {
			msg = domain.ErrAuctionNotFound.Error()
		}
		log.Error("Websocket bid failed", zap.String("clientID", client.ID), zap.Error(err))
		h.send(client, errorMessage(msg))
		return
	}
	// watchers get the new highest bid from the projector
	h.send(client, ServerBidResultMessage{BaseMessage: BaseMessage{Type: MessageTypeServerBidResult}, Payload: *result})
}

func (h *AuctionWSHandler) send(client *websocket.Client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal websocket message", zap.Error(err))
		return
	}
	client.Reply(data)
}

func errorMessage(text string) ServerErrorMessage {
	m := ServerErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeServerError}}
	m.Payload.Error = text
	return m
}
