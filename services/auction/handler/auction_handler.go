package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"credit-auction/internal/auctionerrors"
	bidding "credit-auction/internal/biddingService"
	"credit-auction/internal/cache"
	model "credit-auction/internal/models"
	"credit-auction/internal/ws"
	"credit-auction/services/auction/helpers"
	"credit-auction/utils"
)

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, p bidding.CreateAuctionParams) (model.Auction, error)
	StartAuction(ctx context.Context, auctionID string) (model.Snapshot, error)
	SubmitBid(ctx context.Context, auctionID, userID, companyID string, bidPrice float64, quantity int) (bidding.BidResult, error)
	GetSnapshot(auctionID string) (model.Snapshot, error)
	ListAuctions() []model.Snapshot
	GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	CancelAuction(ctx context.Context, auctionID, reason string) (model.Snapshot, error)
}

type SettlementInterface interface {
	Settle(ctx context.Context, auctionID string) (model.Snapshot, error)
}

// AuctionHandler exposes the auction core over HTTP. The snapshot cache and
// the websocket hub are optional collaborators; both may be nil.
type AuctionHandler struct {
	service    AuctionServiceInterface
	settlement SettlementInterface
	cache      *cache.Client
	hub        *ws.Hub
}

func NewAuctionHandler(service AuctionServiceInterface, settlement SettlementInterface, snapshots *cache.Client, hub *ws.Hub) *AuctionHandler {
	return &AuctionHandler{
		service:    service,
		settlement: settlement,
		cache:      snapshots,
		hub:        hub,
	}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", fmt.Errorf("start_time: %w", err))
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", fmt.Errorf("end_time: %w", err))
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), bidding.CreateAuctionParams{
		CreditID:          req.CreditID,
		Quantity:          req.Quantity,
		StartPrice:        req.StartPrice,
		FloorPrice:        req.FloorPrice,
		PriceDecrement:    req.PriceDecrement,
		DecrementInterval: time.Duration(req.DecrementInterval) * time.Minute,
		StartTime:         startTime,
		EndTime:           endTime,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateAuctionHandler: failed to create auction", map[string]any{
			"credit_id": req.CreditID,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"credit_id":  auction.CreditID,
	})
}

// ListAuctionsHandler handles GET /auctions
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	auctions := h.service.ListAuctions()
	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}

// GetAuctionHandler handles GET /auctions/:auction_id. Reads go through the
// snapshot cache when one is configured; the core stays the source of truth.
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	load := func() (model.Snapshot, error) { return h.service.GetSnapshot(auctionID) }

	var snap model.Snapshot
	var err error
	if h.cache != nil {
		snap, err = h.cache.Snapshot(c.Request.Context(), auctionID, load)
	} else {
		snap, err = load()
	}
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snap, "auction retrieved successfully")
}

// StartAuctionHandler handles POST /auctions/:auction_id/start
func (h *AuctionHandler) StartAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	snap, err := h.service.StartAuction(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("StartAuctionHandler: failed to start auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snap, "auction started successfully")
	helpers.LogSuccess("StartAuctionHandler", "auction started successfully", map[string]any{"auction_id": auctionID})
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids. Rejected and
// outbid bids still return the bid record plus the current price and
// remaining quantity so the client can immediately retry.
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	userID := c.GetHeader("X-User-Id")
	companyID := c.GetHeader("X-Company-Id")
	if userID == "" {
		utils.JSONError(c, http.StatusBadRequest, auctionerrors.ErrInvalidBid, "missing bidder identity")
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	result, err := h.service.SubmitBid(c.Request.Context(), auctionID, userID, companyID, req.BidPrice, req.Quantity)
	if err != nil && result.Bid.BidID == "" {
		// No terminal bid record exists (unknown auction, bad input, store failure).
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("PlaceBidHandler: failed to submit bid", map[string]any{
			"auction_id": auctionID,
			"user_id":    userID,
			"error":      err.Error(),
		})
		return
	}

	resp := helpers.BidResponse{
		BidID:        result.Bid.BidID,
		AuctionID:    result.Bid.AuctionID,
		UserID:       result.Bid.UserID,
		CompanyID:    result.Bid.CompanyID,
		BidPrice:     result.Bid.BidPrice,
		Quantity:     result.Bid.Quantity,
		Status:       string(result.Bid.Status),
		Reason:       result.Bid.Reason,
		CurrentPrice: result.CurrentPrice,
		Remaining:    result.Remaining,
		CreatedAt:    result.Bid.CreatedAt.UTC().Format(time.RFC3339),
	}

	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONResponse(c, status, resp, message)
		utils.Info("PlaceBidHandler: bid not accepted", map[string]any{
			"auction_id": auctionID,
			"bid_id":     result.Bid.BidID,
			"status":     result.Bid.Status,
			"reason":     result.Bid.Reason,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid accepted successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid accepted successfully", map[string]any{
		"auction_id": auctionID,
		"bid_id":     result.Bid.BidID,
		"user_id":    userID,
		"quantity":   req.Quantity,
	})
}

// GetBidsHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) GetBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil && !errors.Is(err, auctionerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
}

// SettleAuctionHandler handles POST /auctions/:auction_id/settle
func (h *AuctionHandler) SettleAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	snap, err := h.settlement.Settle(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("SettleAuctionHandler: failed to settle auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snap, "auction settled successfully")
	helpers.LogSuccess("SettleAuctionHandler", "auction settled successfully", map[string]any{
		"auction_id":  auctionID,
		"final_price": snap.FinalPrice,
		"winner_id":   snap.WinnerID,
	})
}

// CancelAuctionHandler handles POST /auctions/:auction_id/cancel
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.CancelAuctionRequest
	_ = c.ShouldBindJSON(&req) // reason is optional

	snap, err := h.service.CancelAuction(c.Request.Context(), auctionID, req.Reason)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CancelAuctionHandler: failed to cancel auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snap, "auction cancelled successfully")
	helpers.LogSuccess("CancelAuctionHandler", "auction cancelled successfully", map[string]any{"auction_id": auctionID})
}

// FeedHandler handles GET /auctions/:auction_id/feed, upgrading to a
// websocket that streams snapshots as the auction's state changes.
func (h *AuctionHandler) FeedHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	if h.hub == nil {
		utils.JSONError(c, http.StatusNotImplemented, fmt.Errorf("price feed disabled"), "price feed disabled")
		return
	}

	snap, err := h.service.GetSnapshot(auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, snap); err != nil {
		utils.Warn("FeedHandler: websocket upgrade failed", map[string]any{"auction_id": auctionID, "error": err.Error()})
	}
}
