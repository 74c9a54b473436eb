package events

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
)

var (
	// ErrDecode is returned when a log matches a known topic but its payload
	// does not match the event layout.
	ErrDecode = errors.New("failed to decode event")
	// ErrUnknownEvent is returned for logs whose topic is not handled.
	ErrUnknownEvent = errors.New("unknown event")
)

type builder func(Meta, *fields) Event

type decoder struct {
	event abi.Event
	build builder
}

var decoders = map[common.Hash]decoder{
	TopicNFT721Created:        {FactoryABI.Events["NFT721Created"], collectionCreated(entity.ERC721)},
	TopicNFT1155Created:       {FactoryABI.Events["NFT1155Created"], collectionCreated(entity.ERC1155)},
	TopicNFT6909Created:       {FactoryABI.Events["NFT6909Created"], collectionCreated(entity.ERC6909)},
	TopicERC721Transfer:       {ERC721ABI.Events["Transfer"], erc721Transfer},
	TopicTransferSingle:       {ERC1155ABI.Events["TransferSingle"], transferSingle},
	TopicTransferBatch:        {ERC1155ABI.Events["TransferBatch"], transferBatch},
	TopicERC6909Transfer:      {ERC6909ABI.Events["Transfer"], erc6909Transfer},
	TopicOperatorSet:          {ERC6909ABI.Events["OperatorSet"], operatorSet},
	TopicOwnershipTransferred: {OwnableABI.Events["OwnershipTransferred"], ownershipTransferred},
	TopicListingCreated:       {MarketplaceABI.Events["ListingCreated"], listingCreated},
	TopicListingCancelled:     {MarketplaceABI.Events["ListingCancelled"], listingCancelled},
	TopicListingSold:          {MarketplaceABI.Events["ListingSold"], listingSold},
	TopicBidPlaced:            {MarketplaceABI.Events["BidPlaced"], bidPlaced},
	TopicBidOutbid:            {MarketplaceABI.Events["BidOutbid"], bidOutbid},
	TopicBidCancelled:         {MarketplaceABI.Events["BidCancelled"], bidCancelled},
	TopicBidAccepted:          {MarketplaceABI.Events["BidAccepted"], bidAccepted},
}

// Decode turns log into a typed event stamped with the block timestamp.
func Decode(log types.Log, timestamp uint64) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("%w: log %s-%d has no topics", ErrUnknownEvent, log.TxHash.Hex(), log.Index)
	}

	dec, ok := decoders[log.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("%w: topic %s", ErrUnknownEvent, log.Topics[0].Hex())
	}

	var indexed abi.Arguments
	for _, input := range dec.event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}

	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("%w: %s expects %d topics, got %d",
			ErrDecode, dec.event.Name, len(indexed)+1, len(log.Topics))
	}

	values := make(map[string]any, len(dec.event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%w: %s topics: %w", ErrDecode, dec.event.Name, err)
	}
	if err := dec.event.Inputs.UnpackIntoMap(values, log.Data); err != nil {
		return nil, fmt.Errorf("%w: %s data: %w", ErrDecode, dec.event.Name, err)
	}

	meta := Meta{
		Address:     log.Address,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		LogIndex:    log.Index,
		Timestamp:   timestamp,
	}

	f := &fields{event: dec.event.Name, values: values}
	ev := dec.build(meta, f)
	if f.err != nil {
		return nil, f.err
	}

	return ev, nil
}

// fields reads typed values out of an unpacked event and keeps the first
// type mismatch.
type fields struct {
	event  string
	values map[string]any
	err    error
}

func (f *fields) fail(name, want string) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: %s.%s is %T, want %s", ErrDecode, f.event, name, f.values[name], want)
	}
}

func (f *fields) address(name string) common.Address {
	v, ok := f.values[name].(common.Address)
	if !ok {
		f.fail(name, "address")
	}

	return v
}

func (f *fields) bigInt(name string) *big.Int {
	v, ok := f.values[name].(*big.Int)
	if !ok || v == nil {
		f.fail(name, "uint256")
		return new(big.Int)
	}

	return v
}

func (f *fields) bigInts(name string) []*big.Int {
	v, ok := f.values[name].([]*big.Int)
	if !ok {
		f.fail(name, "uint256[]")
	}

	return v
}

func (f *fields) str(name string) string {
	v, ok := f.values[name].(string)
	if !ok {
		f.fail(name, "string")
	}

	return v
}

func (f *fields) boolean(name string) bool {
	v, ok := f.values[name].(bool)
	if !ok {
		f.fail(name, "bool")
	}

	return v
}

func collectionCreated(standard entity.TokenStandard) builder {
	return func(m Meta, f *fields) Event {
		return &CollectionCreated{
			Meta:       m,
			Standard:   standard,
			NFTAddress: f.address("nftAddress"),
			Owner:      f.address("owner"),
			Name:       f.str("name"),
			Symbol:     f.str("symbol"),
		}
	}
}

func erc721Transfer(m Meta, f *fields) Event {
	return &ERC721Transfer{
		Meta:    m,
		From:    f.address("from"),
		To:      f.address("to"),
		TokenID: f.bigInt("tokenId"),
	}
}

func transferSingle(m Meta, f *fields) Event {
	return &TransferSingle{
		Meta:     m,
		Operator: f.address("operator"),
		From:     f.address("from"),
		To:       f.address("to"),
		ID:       f.bigInt("id"),
		Value:    f.bigInt("value"),
	}
}

func transferBatch(m Meta, f *fields) Event {
	ev := &TransferBatch{
		Meta:     m,
		Operator: f.address("operator"),
		From:     f.address("from"),
		To:       f.address("to"),
		IDs:      f.bigInts("ids"),
		Values:   f.bigInts("values"),
	}

	if f.err == nil && len(ev.IDs) != len(ev.Values) {
		f.err = fmt.Errorf("%w: TransferBatch has %d ids and %d values", ErrDecode, len(ev.IDs), len(ev.Values))
	}

	return ev
}

func erc6909Transfer(m Meta, f *fields) Event {
	return &ERC6909Transfer{
		Meta:     m,
		Caller:   f.address("caller"),
		Sender:   f.address("sender"),
		Receiver: f.address("receiver"),
		ID:       f.bigInt("id"),
		Amount:   f.bigInt("amount"),
	}
}

func operatorSet(m Meta, f *fields) Event {
	return &OperatorSet{
		Meta:     m,
		Owner:    f.address("owner"),
		Spender:  f.address("spender"),
		Approved: f.boolean("approved"),
	}
}

func ownershipTransferred(m Meta, f *fields) Event {
	return &OwnershipTransferred{
		Meta:          m,
		PreviousOwner: f.address("previousOwner"),
		NewOwner:      f.address("newOwner"),
	}
}

func listingCreated(m Meta, f *fields) Event {
	return &ListingCreated{
		Meta:         m,
		ListingID:    f.bigInt("listingId"),
		Seller:       f.address("seller"),
		TokenAddress: f.address("tokenAddress"),
		TokenID:      f.bigInt("tokenId"),
		Amount:       f.bigInt("amount"),
		Price:        f.bigInt("price"),
		Currency:     f.address("currency"),
	}
}

func listingCancelled(m Meta, f *fields) Event {
	return &ListingCancelled{Meta: m, ListingID: f.bigInt("listingId")}
}

func listingSold(m Meta, f *fields) Event {
	return &ListingSold{
		Meta:         m,
		ListingID:    f.bigInt("listingId"),
		TokenAddress: f.address("tokenAddress"),
		TokenID:      f.bigInt("tokenId"),
	}
}

func bidPlaced(m Meta, f *fields) Event {
	return &BidPlaced{
		Meta:         m,
		Bidder:       f.address("bidder"),
		TokenAddress: f.address("tokenAddress"),
		TokenID:      f.bigInt("tokenId"),
		TokenAmount:  f.bigInt("tokenAmount"),
		Amount:       f.bigInt("amount"),
		Currency:     f.address("currency"),
		Duration:     f.bigInt("duration"),
	}
}

func bidOutbid(m Meta, f *fields) Event {
	return &BidOutbid{
		Meta:           m,
		PreviousBidder: f.address("previousBidder"),
		TokenAddress:   f.address("tokenAddress"),
		TokenID:        f.bigInt("tokenId"),
		TokenAmount:    f.bigInt("tokenAmount"),
		PreviousAmount: f.bigInt("previousAmount"),
		Currency:       f.address("currency"),
	}
}

func bidCancelled(m Meta, f *fields) Event {
	return &BidCancelled{
		Meta:         m,
		Bidder:       f.address("bidder"),
		TokenAddress: f.address("tokenAddress"),
		TokenID:      f.bigInt("tokenId"),
		TokenAmount:  f.bigInt("tokenAmount"),
		Amount:       f.bigInt("amount"),
		Currency:     f.address("currency"),
	}
}

func bidAccepted(m Meta, f *fields) Event {
	return &BidAccepted{
		Meta:         m,
		Bidder:       f.address("bidder"),
		TokenAddress: f.address("tokenAddress"),
		TokenID:      f.bigInt("tokenId"),
		TokenAmount:  f.bigInt("tokenAmount"),
		Currency:     f.address("currency"),
	}
}
