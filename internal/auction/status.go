package auction

import "credit-auction/internal/models"

// validNext encodes the monotonic lifecycle:
// pending -> active -> {ended, cancelled}; ended -> settled;
// pending -> cancelled. settled and cancelled are terminal.
var validNext = map[models.AuctionStatus]map[models.AuctionStatus]bool{
	models.AuctionPending:   {models.AuctionActive: true, models.AuctionCancelled: true},
	models.AuctionActive:    {models.AuctionEnded: true, models.AuctionCancelled: true},
	models.AuctionEnded:     {models.AuctionSettled: true},
	models.AuctionSettled:   {},
	models.AuctionCancelled: {},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to models.AuctionStatus) bool {
	return validNext[from][to]
}
