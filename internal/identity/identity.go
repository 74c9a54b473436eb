// Package identity derives the string keys of entities from event payloads.
//
// Addresses and hashes render as lowercase 0x hex and integers as base 10,
// joined by "-". The functions are pure; equal inputs always give equal keys.
package identity

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const sep = "-"

// Address renders an address as an entity key.
func Address(addr common.Address) string {
	return hexutil.Encode(addr[:])
}

// Hash renders a hash as an entity key.
func Hash(h common.Hash) string {
	return h.Hex()
}

// Int renders an integer as an entity key. Nil renders as "0".
func Int(v *big.Int) string {
	if v == nil {
		return "0"
	}

	return v.String()
}

// InstanceID keys a TokenInstance.
func InstanceID(collection common.Address, tokenID *big.Int) string {
	return join(Address(collection), Int(tokenID))
}

// BalanceID keys a TokenBalance by its instance key and owner.
func BalanceID(instanceID string, owner common.Address) string {
	return join(instanceID, Address(owner))
}

// EventID keys append-only rows produced by a single log.
func EventID(txHash common.Hash, logIndex uint) string {
	return join(Hash(txHash), strconv.FormatUint(uint64(logIndex), 10))
}

// PendingTransferID keys a settlement breadcrumb.
func PendingTransferID(txHash common.Hash, token common.Address, tokenID *big.Int) string {
	return join(Hash(txHash), Address(token), Int(tokenID))
}

// ListingID keys a Listing by its on-chain listing id.
func ListingID(listingID *big.Int) string {
	return Int(listingID)
}

// BidID keys a Bid. Bids carry no on-chain id, so the key is derived from the
// bid tuple. The marketplace must keep at most one active bid per
// (bidder, token, tokenId, tokenAmount, currency); placing a bid again with
// the same tuple overwrites the earlier one.
func BidID(
	bidder common.Address,
	token common.Address,
	tokenID *big.Int,
	tokenAmount *big.Int,
	currency common.Address,
) string {
	return join(Address(bidder), Address(token), Int(tokenID), Int(tokenAmount), Address(currency))
}

func join(parts ...string) string {
	return strings.Join(parts, sep)
}
