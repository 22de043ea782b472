package websocket

import (
	"time"

	"github.com/cristianortiz/marketplace/internal/auction/application"
	"github.com/cristianortiz/marketplace/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MessageType defines ws type message
type MessageType string

const (
	MessageTypeClientBid           MessageType = "client_bid"            // client msg to make a bid
	MessageTypeServerBidResult     MessageType = "server_bid_result"     // answer to the bidder only
	MessageTypeServerAuctionUpdate MessageType = "server_auction_update" // new highest bid, to everyone watching
	MessageTypeServerAuctionClosed MessageType = "server_auction_closed" // auction is over
	MessageTypeServerInitialState  MessageType = "server_initial_state"  // state sent right after connecting
	MessageTypeServerError         MessageType = "server_error"
)

// BaseMessage is base struct for all the WS messages, includes a Type field for identify the message type
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// ClientBidMessage is DTO for a bid message sent by the client. The bidder is the connection's user.
type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		AuctionItemID uuid.UUID       `json:"auctionItemId"`
		BidID         uuid.UUID       `json:"bidId,omitempty"`
		Amount        decimal.Decimal `json:"amount"`
	} `json:"payload"`
}

type ServerBidResultMessage struct {
	BaseMessage
	Payload application.BidResultDTO `json:"payload"`
}

type ServerAuctionUpdateMessage struct {
	BaseMessage
	Payload struct {
		AuctionItemID    uuid.UUID       `json:"auctionItemId"`
		BidID            uuid.UUID       `json:"bidId"`
		HighestBidderID  string          `json:"highestBidderId"`
		HighestBidAmount decimal.Decimal `json:"highestBidAmount"`
	} `json:"payload"`
}

type ServerAuctionClosedMessage struct {
	BaseMessage
	Payload struct {
		AuctionItemID uuid.UUID    `json:"auctionItemId"`
		WinningBids   []domain.Bid `json:"winningBids"`
		ClosedAt      time.Time    `json:"closedAt"`
	} `json:"payload"`
}

type ServerInitialStateMessage struct {
	BaseMessage
	Payload *application.AuctionStateDTO `json:"payload"`
}

type ServerErrorMessage struct {
	BaseMessage
	Payload struct {
		Error string `json:"error"`
	} `json:"payload"`
}
