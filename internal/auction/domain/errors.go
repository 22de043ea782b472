package domain

import "errors"

var (
	ErrInvalidStartingPrice = errors.New("starting price must be greater than zero")
	ErrInvalidEndTime       = errors.New("auction end time must be in the future")
	ErrAuctionNotFound      = errors.New("auction item not found")
	ErrAuctionAlreadyExists = errors.New("auction item already exists")
	ErrMissingSeller        = errors.New("seller id is required")
	ErrMissingBidder        = errors.New("bidder id is required")
)
