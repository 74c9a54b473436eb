// Package marketplace tracks listing and bid lifecycles and leaves settlement
// context for the token transfers that follow a sale or an accepted bid.
package marketplace

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/events"
	"github.com/goran-ethernal/NFTIndexor/internal/identity"
	"github.com/goran-ethernal/NFTIndexor/internal/ledger"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
)

const componentName = "marketplace"

// Tracker applies marketplace events. Only creation events author listings
// and bids; every other transition on an unknown id is skipped.
type Tracker struct {
	st  store.Store
	log *logger.Logger
}

// New creates a tracker writing to st.
func New(st store.Store, log *logger.Logger) *Tracker {
	return &Tracker{st: st, log: log}
}

// HandleListingCreated stores a new active listing.
func (t *Tracker) HandleListingCreated(ev *events.ListingCreated) error {
	instance, err := t.instanceRef(ev.TokenAddress, ev.TokenID)
	if err != nil {
		return err
	}

	listing := &entity.Listing{
		ID:           identity.ListingID(ev.ListingID),
		Instance:     instance,
		Seller:       ev.Seller,
		TokenAddress: ev.TokenAddress,
		TokenID:      ev.TokenID,
		Amount:       ev.Amount,
		Price:        ev.Price,
		Currency:     ev.Currency,
		Status:       entity.ListingActive,
		CreatedAt:    ev.Timestamp,
	}

	return t.saveListing(listing, entity.ListingActionCreated, ev.Meta)
}

// HandleListingCancelled marks an existing listing cancelled. Unknown listings are ignored.
func (t *Tracker) HandleListingCancelled(ev *events.ListingCancelled) error {
	listing, err := t.listing(ev.ListingID)
	if err != nil || listing == nil {
		return err
	}

	listing.Status = entity.ListingCancelled

	return t.saveListing(listing, entity.ListingActionCancelled, ev.Meta)
}

// HandleListingSold marks the listing sold and tells the transfer of the
// same transaction that it settles this listing.
func (t *Tracker) HandleListingSold(scope *ledger.Scope, ev *events.ListingSold) error {
	listing, err := t.listing(ev.ListingID)
	if err != nil || listing == nil {
		return err
	}

	listing.Status = entity.ListingSold

	if err := t.saveListing(listing, entity.ListingActionSold, ev.Meta); err != nil {
		return err
	}

	return scope.PutListing(ev.TokenAddress, ev.TokenID, listing.ID, ev.Timestamp)
}

// HandleBidPlaced opens a bid or re-opens the bid with the same tuple,
// replacing its amount, timeout and creation time.
func (t *Tracker) HandleBidPlaced(ev *events.BidPlaced) error {
	bidID := identity.BidID(ev.Bidder, ev.TokenAddress, ev.TokenID, ev.TokenAmount, ev.Currency)

	loaded, err := store.LoadOrCreate(t.st, entity.TableBids, bidID, func() *entity.Bid {
		return &entity.Bid{ID: bidID}
	})
	if err != nil {
		return err
	}

	instance, err := t.instanceRef(ev.TokenAddress, ev.TokenID)
	if err != nil {
		return err
	}

	bid := loaded.Entity
	if instance != nil {
		bid.Instance = instance
	}
	bid.Bidder = ev.Bidder
	bid.TokenAddress = ev.TokenAddress
	bid.TokenID = ev.TokenID
	bid.TokenAmount = ev.TokenAmount
	bid.Amount = ev.Amount
	bid.Currency = ev.Currency
	bid.Timeout = new(big.Int).Add(new(big.Int).SetUint64(ev.Timestamp), ev.Duration)
	bid.Status = entity.BidActive
	bid.CreatedAt = ev.Timestamp

	if !loaded.Fresh {
		t.log.Debugw("bid re-placed", "bid", bidID)
	}

	return t.saveBid(bid, entity.BidActionPlaced, ev.Meta)
}

// HandleBidOutbid marks the previous bidder's bid outbid.
func (t *Tracker) HandleBidOutbid(ev *events.BidOutbid) error {
	bid, err := t.bid(identity.BidID(ev.PreviousBidder, ev.TokenAddress, ev.TokenID, ev.TokenAmount, ev.Currency))
	if err != nil || bid == nil {
		return err
	}

	bid.Status = entity.BidOutbid

	return t.saveBid(bid, entity.BidActionOutbid, ev.Meta)
}

// HandleBidCancelled marks the bidder's bid cancelled. Unknown bids are ignored.
func (t *Tracker) HandleBidCancelled(ev *events.BidCancelled) error {
	bid, err := t.bid(identity.BidID(ev.Bidder, ev.TokenAddress, ev.TokenID, ev.TokenAmount, ev.Currency))
	if err != nil || bid == nil {
		return err
	}

	bid.Status = entity.BidCancelled

	return t.saveBid(bid, entity.BidActionCancelled, ev.Meta)
}

// HandleBidAccepted marks the bid accepted and tells the transfer of the
// same transaction that it settles this bid.
func (t *Tracker) HandleBidAccepted(scope *ledger.Scope, ev *events.BidAccepted) error {
	bid, err := t.bid(identity.BidID(ev.Bidder, ev.TokenAddress, ev.TokenID, ev.TokenAmount, ev.Currency))
	if err != nil || bid == nil {
		return err
	}

	bid.Status = entity.BidAccepted

	if err := t.saveBid(bid, entity.BidActionAccepted, ev.Meta); err != nil {
		return err
	}

	return scope.PutBid(ev.TokenAddress, ev.TokenID, bid.ID, ev.Timestamp)
}

// instanceRef returns the instance id when the token is already known.
func (t *Tracker) instanceRef(token common.Address, tokenID *big.Int) (*string, error) {
	id := identity.InstanceID(token, tokenID)

	known, err := store.Exists[entity.TokenInstance](t.st, entity.TableTokenInstances, id)
	if err != nil || !known {
		return nil, err
	}

	return &id, nil
}

func (t *Tracker) listing(listingID *big.Int) (*entity.Listing, error) {
	id := identity.ListingID(listingID)

	listing, err := store.Get[entity.Listing](t.st, entity.TableListings, id)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		metrics.SkippedReferenceInc(componentName, entity.TableListings)
		t.log.Debugw("listing not found", "listing", id)
	}

	return listing, nil
}

func (t *Tracker) bid(id string) (*entity.Bid, error) {
	bid, err := store.Get[entity.Bid](t.st, entity.TableBids, id)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		metrics.SkippedReferenceInc(componentName, entity.TableBids)
		t.log.Debugw("bid not found", "bid", id)
	}

	return bid, nil
}

// saveListing writes the listing and a history row snapshotting it.
func (t *Tracker) saveListing(listing *entity.Listing, action entity.ListingAction, meta events.Meta) error {
	if err := t.st.Save(entity.TableListings, listing); err != nil {
		return fmt.Errorf("failed to save listing %s: %w", listing.ID, err)
	}

	history := &entity.ListingHistory{
		ID:              identity.EventID(meta.TxHash, meta.LogIndex),
		Listing:         listing.ID,
		Instance:        listing.Instance,
		Action:          action,
		Seller:          listing.Seller,
		TokenAddress:    listing.TokenAddress,
		TokenID:         listing.TokenID,
		Amount:          listing.Amount,
		Price:           listing.Price,
		Currency:        listing.Currency,
		Timestamp:       meta.Timestamp,
		TransactionHash: meta.TxHash,
		BlockNumber:     meta.BlockNumber,
	}

	if err := t.st.Save(entity.TableListingHistory, history); err != nil {
		return fmt.Errorf("failed to save listing history %s: %w", history.ID, err)
	}

	t.log.Debugw("listing updated",
		"listing", listing.ID,
		"action", action,
		"status", listing.Status,
	)

	return nil
}

// saveBid writes the bid and a history row snapshotting it.
func (t *Tracker) saveBid(bid *entity.Bid, action entity.BidAction, meta events.Meta) error {
	if err := t.st.Save(entity.TableBids, bid); err != nil {
		return fmt.Errorf("failed to save bid %s: %w", bid.ID, err)
	}

	history := &entity.BidHistory{
		ID:              identity.EventID(meta.TxHash, meta.LogIndex),
		Bid:             bid.ID,
		Instance:        bid.Instance,
		Action:          action,
		Bidder:          bid.Bidder,
		TokenAddress:    bid.TokenAddress,
		TokenID:         bid.TokenID,
		TokenAmount:     bid.TokenAmount,
		Amount:          bid.Amount,
		Currency:        bid.Currency,
		Timeout:         bid.Timeout,
		Timestamp:       meta.Timestamp,
		TransactionHash: meta.TxHash,
		BlockNumber:     meta.BlockNumber,
	}

	if err := t.st.Save(entity.TableBidHistory, history); err != nil {
		return fmt.Errorf("failed to save bid history %s: %w", history.ID, err)
	}

	t.log.Debugw("bid updated",
		"bid", bid.ID,
		"action", action,
		"status", bid.Status,
	)

	return nil
}
