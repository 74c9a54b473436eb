// Package events decodes NFT factory, token and marketplace logs into typed
// events.
package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
)

// Event names.
const (
	NameNFT721Created        = "NFT721Created"
	NameNFT1155Created       = "NFT1155Created"
	NameNFT6909Created       = "NFT6909Created"
	NameERC721Transfer       = "ERC721Transfer"
	NameTransferSingle       = "TransferSingle"
	NameTransferBatch        = "TransferBatch"
	NameERC6909Transfer      = "ERC6909Transfer"
	NameOperatorSet          = "OperatorSet"
	NameOwnershipTransferred = "OwnershipTransferred"
	NameListingCreated       = "ListingCreated"
	NameListingCancelled     = "ListingCancelled"
	NameListingSold          = "ListingSold"
	NameBidPlaced            = "BidPlaced"
	NameBidOutbid            = "BidOutbid"
	NameBidCancelled         = "BidCancelled"
	NameBidAccepted          = "BidAccepted"
)

// Event topics.
var (
	TopicNFT721Created        = FactoryABI.Events["NFT721Created"].ID
	TopicNFT1155Created       = FactoryABI.Events["NFT1155Created"].ID
	TopicNFT6909Created       = FactoryABI.Events["NFT6909Created"].ID
	TopicERC721Transfer       = ERC721ABI.Events["Transfer"].ID
	TopicTransferSingle       = ERC1155ABI.Events["TransferSingle"].ID
	TopicTransferBatch        = ERC1155ABI.Events["TransferBatch"].ID
	TopicERC6909Transfer      = ERC6909ABI.Events["Transfer"].ID
	TopicOperatorSet          = ERC6909ABI.Events["OperatorSet"].ID
	TopicOwnershipTransferred = OwnableABI.Events["OwnershipTransferred"].ID
	TopicListingCreated       = MarketplaceABI.Events["ListingCreated"].ID
	TopicListingCancelled     = MarketplaceABI.Events["ListingCancelled"].ID
	TopicListingSold          = MarketplaceABI.Events["ListingSold"].ID
	TopicBidPlaced            = MarketplaceABI.Events["BidPlaced"].ID
	TopicBidOutbid            = MarketplaceABI.Events["BidOutbid"].ID
	TopicBidCancelled         = MarketplaceABI.Events["BidCancelled"].ID
	TopicBidAccepted          = MarketplaceABI.Events["BidAccepted"].ID
)

// FactoryTopic returns the creation topic a factory of standard emits.
func FactoryTopic(standard entity.TokenStandard) (common.Hash, bool) {
	switch standard {
	case entity.ERC721:
		return TopicNFT721Created, true
	case entity.ERC1155:
		return TopicNFT1155Created, true
	case entity.ERC6909:
		return TopicNFT6909Created, true
	default:
		return common.Hash{}, false
	}
}

// CollectionTopics returns the topics watched on a collection of standard.
func CollectionTopics(standard entity.TokenStandard) []common.Hash {
	switch standard {
	case entity.ERC721:
		return []common.Hash{TopicERC721Transfer, TopicOwnershipTransferred}
	case entity.ERC1155:
		return []common.Hash{TopicTransferSingle, TopicTransferBatch, TopicOwnershipTransferred}
	case entity.ERC6909:
		return []common.Hash{TopicERC6909Transfer, TopicOperatorSet, TopicOwnershipTransferred}
	default:
		return nil
	}
}

// MarketplaceTopics returns the topics watched on a marketplace.
func MarketplaceTopics() []common.Hash {
	return []common.Hash{
		TopicListingCreated,
		TopicListingCancelled,
		TopicListingSold,
		TopicBidPlaced,
		TopicBidOutbid,
		TopicBidCancelled,
		TopicBidAccepted,
	}
}

// Meta locates the log an event was decoded from.
type Meta struct {
	Address     common.Address
	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint
	LogIndex    uint
	Timestamp   uint64
}

// EventMeta returns m. Embedding Meta makes a struct satisfy half of Event.
func (m Meta) EventMeta() Meta {
	return m
}

// Event is a decoded log.
type Event interface {
	EventName() string
	EventMeta() Meta
}

// CollectionCreated is emitted by a factory when it deploys a collection.
type CollectionCreated struct {
	Meta
	Standard   entity.TokenStandard
	NFTAddress common.Address
	Owner      common.Address
	Name       string
	Symbol     string
}

func (e *CollectionCreated) EventName() string {
	switch e.Standard {
	case entity.ERC1155:
		return NameNFT1155Created
	case entity.ERC6909:
		return NameNFT6909Created
	default:
		return NameNFT721Created
	}
}

// ERC721Transfer moves a unique token.
type ERC721Transfer struct {
	Meta
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

func (*ERC721Transfer) EventName() string { return NameERC721Transfer }

// TransferSingle moves value units of one ERC1155 id.
type TransferSingle struct {
	Meta
	Operator common.Address
	From     common.Address
	To       common.Address
	ID       *big.Int
	Value    *big.Int
}

func (*TransferSingle) EventName() string { return NameTransferSingle }

// TransferBatch moves several ERC1155 ids. IDs and Values are paired by index.
type TransferBatch struct {
	Meta
	Operator common.Address
	From     common.Address
	To       common.Address
	IDs      []*big.Int
	Values   []*big.Int
}

func (*TransferBatch) EventName() string { return NameTransferBatch }

// ERC6909Transfer moves amount units of one ERC6909 id.
type ERC6909Transfer struct {
	Meta
	Caller   common.Address
	Sender   common.Address
	Receiver common.Address
	ID       *big.Int
	Amount   *big.Int
}

func (*ERC6909Transfer) EventName() string { return NameERC6909Transfer }

// OperatorSet grants or revokes an ERC6909 operator.
type OperatorSet struct {
	Meta
	Owner    common.Address
	Spender  common.Address
	Approved bool
}

func (*OperatorSet) EventName() string { return NameOperatorSet }

// OwnershipTransferred changes the owner of a collection contract.
type OwnershipTransferred struct {
	Meta
	PreviousOwner common.Address
	NewOwner      common.Address
}

func (*OwnershipTransferred) EventName() string { return NameOwnershipTransferred }

type ListingCreated struct {
	Meta
	ListingID    *big.Int
	Seller       common.Address
	TokenAddress common.Address
	TokenID      *big.Int
	Amount       *big.Int
	Price        *big.Int
	Currency     common.Address
}

func (*ListingCreated) EventName() string { return NameListingCreated }

type ListingCancelled struct {
	Meta
	ListingID *big.Int
}

func (*ListingCancelled) EventName() string { return NameListingCancelled }

type ListingSold struct {
	Meta
	ListingID    *big.Int
	TokenAddress common.Address
	TokenID      *big.Int
}

func (*ListingSold) EventName() string { return NameListingSold }

// BidPlaced opens or re-opens a bid. Duration is in seconds.
type BidPlaced struct {
	Meta
	Bidder       common.Address
	TokenAddress common.Address
	TokenID      *big.Int
	TokenAmount  *big.Int
	Amount       *big.Int
	Currency     common.Address
	Duration     *big.Int
}

func (*BidPlaced) EventName() string { return NameBidPlaced }

type BidOutbid struct {
	Meta
	PreviousBidder common.Address
	TokenAddress   common.Address
	TokenID        *big.Int
	TokenAmount    *big.Int
	PreviousAmount *big.Int
	Currency       common.Address
}

func (*BidOutbid) EventName() string { return NameBidOutbid }

type BidCancelled struct {
	Meta
	Bidder       common.Address
	TokenAddress common.Address
	TokenID      *big.Int
	TokenAmount  *big.Int
	Amount       *big.Int
	Currency     common.Address
}

func (*BidCancelled) EventName() string { return NameBidCancelled }

type BidAccepted struct {
	Meta
	Bidder       common.Address
	TokenAddress common.Address
	TokenID      *big.Int
	TokenAmount  *big.Int
	Currency     common.Address
}

func (*BidAccepted) EventName() string { return NameBidAccepted }
