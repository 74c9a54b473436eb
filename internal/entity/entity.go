// Package entity holds the persisted NFT and marketplace entity graph.
//
// Identifiers are strings derived by the identity package. Addresses and
// hashes are stored as lowercase 0x hex, uint256 values as decimal text and
// timestamps as unix seconds.
package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Table names.
const (
	TableFactories          = "factories"
	TableCollections        = "collections"
	TableTokenInstances     = "token_instances"
	TableTokenBalances      = "token_balances"
	TableTransfers          = "transfers"
	TableListings           = "listings"
	TableBids               = "bids"
	TableListingHistory     = "listing_history"
	TableBidHistory         = "bid_history"
	TableContractOwnerships = "contract_ownerships"
	TablePendingTransfers   = "pending_transfers"
	TableEventReceipts      = "event_receipts"
)

// TokenStandard is the token standard of a factory and its collections.
type TokenStandard string

const (
	ERC721  TokenStandard = "ERC721"
	ERC1155 TokenStandard = "ERC1155"
	ERC6909 TokenStandard = "ERC6909"
)

// TransferType classifies a Transfer row.
type TransferType string

const (
	TransferMint            TransferType = "MINT"
	TransferBurn            TransferType = "BURN"
	TransferDirect          TransferType = "DIRECT"
	TransferMarketplaceSale TransferType = "MARKETPLACE_SALE"
	TransferBidAcceptance   TransferType = "BID_ACCEPTANCE"
)

// ListingStatus is the lifecycle state of a Listing. ACTIVE is the only
// state a listing can leave.
type ListingStatus string

const (
	ListingActive    ListingStatus = "ACTIVE"
	ListingCancelled ListingStatus = "CANCELLED"
	ListingSold      ListingStatus = "SOLD"
)

// BidStatus is the lifecycle state of a Bid. A re-placed bid returns to ACTIVE.
type BidStatus string

const (
	BidActive    BidStatus = "ACTIVE"
	BidOutbid    BidStatus = "OUTBID"
	BidCancelled BidStatus = "CANCELLED"
	BidAccepted  BidStatus = "ACCEPTED"
)

// ListingAction is recorded on every ListingHistory row.
type ListingAction string

const (
	ListingActionCreated   ListingAction = "CREATED"
	ListingActionCancelled ListingAction = "CANCELLED"
	ListingActionSold      ListingAction = "SOLD"
)

// BidAction is recorded on every BidHistory row.
type BidAction string

const (
	BidActionPlaced    BidAction = "PLACED"
	BidActionOutbid    BidAction = "OUTBID"
	BidActionCancelled BidAction = "CANCELLED"
	BidActionAccepted  BidAction = "ACCEPTED"
)

// Factory is a contract that deploys collections of one token standard.
type Factory struct {
	ID        string        `meddler:"id" json:"id"`
	Type      TokenStandard `meddler:"type" json:"type"`
	NFTCount  uint64        `meddler:"nft_count" json:"nft_count"`
	CreatedAt uint64        `meddler:"created_at" json:"created_at"`
}

// Collection is a token contract deployed by a factory.
type Collection struct {
	ID                string         `meddler:"id" json:"id"`
	Factory           string         `meddler:"factory" json:"factory"`
	Creator           common.Address `meddler:"creator,address" json:"creator"`
	Name              string         `meddler:"name" json:"name"`
	Symbol            string         `meddler:"symbol" json:"symbol"`
	TokenAddress      common.Address `meddler:"token_address,address" json:"token_address"`
	TokenType         TokenStandard  `meddler:"token_type" json:"token_type"`
	ContractCreatedAt uint64         `meddler:"contract_created_at" json:"contract_created_at"`
}

// TokenInstance is a single token id within a collection.
type TokenInstance struct {
	ID          string   `meddler:"id" json:"id"`
	Collection  string   `meddler:"collection" json:"collection"`
	TokenID     *big.Int `meddler:"token_id,bigint" json:"token_id"`
	TotalSupply *big.Int `meddler:"total_supply,bigint" json:"total_supply"`
	MintedAt    uint64   `meddler:"minted_at" json:"minted_at"`
}

// TokenBalance is the amount of an instance held by one owner. It is never
// created for the zero address.
type TokenBalance struct {
	ID            string         `meddler:"id" json:"id"`
	Instance      string         `meddler:"instance" json:"instance"`
	Owner         common.Address `meddler:"owner,address" json:"owner"`
	Amount        *big.Int       `meddler:"amount,bigint" json:"amount"`
	CreatedAt     uint64         `meddler:"created_at" json:"created_at"`
	LastUpdatedAt uint64         `meddler:"last_updated_at" json:"last_updated_at"`
}

// Transfer is an append-only audit row for one token movement.
type Transfer struct {
	ID              string         `meddler:"id" json:"id"`
	Instance        string         `meddler:"instance" json:"instance"`
	From            common.Address `meddler:"from_address,address" json:"from"`
	To              common.Address `meddler:"to_address,address" json:"to"`
	Amount          *big.Int       `meddler:"amount,bigint" json:"amount"`
	Timestamp       uint64         `meddler:"timestamp" json:"timestamp"`
	TransactionHash common.Hash    `meddler:"transaction_hash,hash" json:"transaction_hash"`
	BlockNumber     uint64         `meddler:"block_number" json:"block_number"`
	TransferType    TransferType   `meddler:"transfer_type" json:"transfer_type"`
	RelatedListing  *string        `meddler:"related_listing" json:"related_listing,omitempty"`
	RelatedBid      *string        `meddler:"related_bid" json:"related_bid,omitempty"`
}

// Listing is a fixed price sale offer on a marketplace.
type Listing struct {
	ID           string         `meddler:"id" json:"id"`
	Instance     *string        `meddler:"instance" json:"instance,omitempty"`
	Seller       common.Address `meddler:"seller,address" json:"seller"`
	TokenAddress common.Address `meddler:"token_address,address" json:"token_address"`
	TokenID      *big.Int       `meddler:"token_id,bigint" json:"token_id"`
	Amount       *big.Int       `meddler:"amount,bigint" json:"amount"`
	Price        *big.Int       `meddler:"price,bigint" json:"price"`
	Currency     common.Address `meddler:"currency,address" json:"currency"`
	Status       ListingStatus  `meddler:"status" json:"status"`
	CreatedAt    uint64         `meddler:"created_at" json:"created_at"`
}

// Bid is an offer to buy tokenAmount units of a token.
type Bid struct {
	ID           string         `meddler:"id" json:"id"`
	Instance     *string        `meddler:"instance" json:"instance,omitempty"`
	Bidder       common.Address `meddler:"bidder,address" json:"bidder"`
	TokenAddress common.Address `meddler:"token_address,address" json:"token_address"`
	TokenID      *big.Int       `meddler:"token_id,bigint" json:"token_id"`
	TokenAmount  *big.Int       `meddler:"token_amount,bigint" json:"token_amount"`
	Amount       *big.Int       `meddler:"amount,bigint" json:"amount"`
	Currency     common.Address `meddler:"currency,address" json:"currency"`
	Timeout      *big.Int       `meddler:"timeout,bigint" json:"timeout"`
	Status       BidStatus      `meddler:"status" json:"status"`
	CreatedAt    uint64         `meddler:"created_at" json:"created_at"`
}

// ListingHistory snapshots a listing at every transition.
type ListingHistory struct {
	ID              string         `meddler:"id" json:"id"`
	Listing         string         `meddler:"listing" json:"listing"`
	Instance        *string        `meddler:"instance" json:"instance,omitempty"`
	Action          ListingAction  `meddler:"action" json:"action"`
	Seller          common.Address `meddler:"seller,address" json:"seller"`
	TokenAddress    common.Address `meddler:"token_address,address" json:"token_address"`
	TokenID         *big.Int       `meddler:"token_id,bigint" json:"token_id"`
	Amount          *big.Int       `meddler:"amount,bigint" json:"amount"`
	Price           *big.Int       `meddler:"price,bigint" json:"price"`
	Currency        common.Address `meddler:"currency,address" json:"currency"`
	Timestamp       uint64         `meddler:"timestamp" json:"timestamp"`
	TransactionHash common.Hash    `meddler:"transaction_hash,hash" json:"transaction_hash"`
	BlockNumber     uint64         `meddler:"block_number" json:"block_number"`
}

// BidHistory snapshots a bid at every transition.
type BidHistory struct {
	ID              string         `meddler:"id" json:"id"`
	Bid             string         `meddler:"bid" json:"bid"`
	Instance        *string        `meddler:"instance" json:"instance,omitempty"`
	Action          BidAction      `meddler:"action" json:"action"`
	Bidder          common.Address `meddler:"bidder,address" json:"bidder"`
	TokenAddress    common.Address `meddler:"token_address,address" json:"token_address"`
	TokenID         *big.Int       `meddler:"token_id,bigint" json:"token_id"`
	TokenAmount     *big.Int       `meddler:"token_amount,bigint" json:"token_amount"`
	Amount          *big.Int       `meddler:"amount,bigint" json:"amount"`
	Currency        common.Address `meddler:"currency,address" json:"currency"`
	Timeout         *big.Int       `meddler:"timeout,bigint" json:"timeout"`
	Timestamp       uint64         `meddler:"timestamp" json:"timestamp"`
	TransactionHash common.Hash    `meddler:"transaction_hash,hash" json:"transaction_hash"`
	BlockNumber     uint64         `meddler:"block_number" json:"block_number"`
}

// ContractOwnership is the latest ownership transfer of a collection contract.
type ContractOwnership struct {
	ID              string         `meddler:"id" json:"id"`
	Contract        string         `meddler:"contract" json:"contract"`
	PreviousOwner   common.Address `meddler:"previous_owner,address" json:"previous_owner"`
	Owner           common.Address `meddler:"owner,address" json:"owner"`
	TransferredAt   uint64         `meddler:"transferred_at" json:"transferred_at"`
	TransactionHash common.Hash    `meddler:"transaction_hash,hash" json:"transaction_hash"`
}

// PendingTransfer is a breadcrumb left by a marketplace settlement for the
// token transfer emitted later in the same transaction. Exactly one of
// ListingID and BidID is set.
type PendingTransfer struct {
	ID              string         `meddler:"id" json:"id"`
	TransactionHash common.Hash    `meddler:"transaction_hash,hash" json:"transaction_hash"`
	TokenAddress    common.Address `meddler:"token_address,address" json:"token_address"`
	TokenID         *big.Int       `meddler:"token_id,bigint" json:"token_id"`
	TransferType    TransferType   `meddler:"transfer_type" json:"transfer_type"`
	ListingID       *string        `meddler:"listing_id" json:"listing_id,omitempty"`
	BidID           *string        `meddler:"bid_id" json:"bid_id,omitempty"`
	CreatedAt       uint64         `meddler:"created_at" json:"created_at"`
}

// EventReceipt marks a log as applied.
type EventReceipt struct {
	ID          string `meddler:"id" json:"id"`
	BlockNumber uint64 `meddler:"block_number" json:"block_number"`
	ProcessedAt uint64 `meddler:"processed_at" json:"processed_at"`
}
