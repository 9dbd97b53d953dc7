package helpers

// Request/Response DTOs
type CreateAuctionRequest struct {
	CreditID          string  `json:"credit_id" binding:"required"`
	Quantity          int     `json:"quantity" binding:"required,gt=0"`
	StartPrice        float64 `json:"start_price" binding:"required,gt=0"`
	FloorPrice        float64 `json:"floor_price" binding:"gte=0"`
	PriceDecrement    float64 `json:"price_decrement" binding:"required,gt=0"`
	DecrementInterval int     `json:"decrement_interval" binding:"required,gt=0"` // minutes
	StartTime         string  `json:"start_time" binding:"required"`              // RFC3339
	EndTime           string  `json:"end_time" binding:"required"`                // RFC3339
}

type PlaceBidRequest struct {
	BidPrice float64 `json:"bid_price" binding:"required,gt=0"`
	Quantity int     `json:"quantity" binding:"required,gt=0"`
}

type CancelAuctionRequest struct {
	Reason string `json:"reason"`
}

type BidResponse struct {
	BidID        string  `json:"bid_id"`
	AuctionID    string  `json:"auction_id"`
	UserID       string  `json:"user_id"`
	CompanyID    string  `json:"company_id,omitempty"`
	BidPrice     float64 `json:"bid_price"`
	Quantity     int     `json:"quantity"`
	Status       string  `json:"status"`
	Reason       string  `json:"reason,omitempty"`
	CurrentPrice float64 `json:"current_price"`
	Remaining    int     `json:"remaining"`
	CreatedAt    string  `json:"created_at"`
}
