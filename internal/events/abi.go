package events

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const factoryABIJSON = `[
  {"type":"event","name":"NFT721Created","anonymous":false,"inputs":[
    {"name":"nftAddress","type":"address","indexed":true},
    {"name":"owner","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"symbol","type":"string","indexed":false}]},
  {"type":"event","name":"NFT1155Created","anonymous":false,"inputs":[
    {"name":"nftAddress","type":"address","indexed":true},
    {"name":"owner","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"symbol","type":"string","indexed":false}]},
  {"type":"event","name":"NFT6909Created","anonymous":false,"inputs":[
    {"name":"nftAddress","type":"address","indexed":true},
    {"name":"owner","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"symbol","type":"string","indexed":false}]}
]`

const erc721ABIJSON = `[
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":true}]}
]`

const erc1155ABIJSON = `[
  {"type":"event","name":"TransferSingle","anonymous":false,"inputs":[
    {"name":"operator","type":"address","indexed":true},
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"id","type":"uint256","indexed":false},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"TransferBatch","anonymous":false,"inputs":[
    {"name":"operator","type":"address","indexed":true},
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"ids","type":"uint256[]","indexed":false},
    {"name":"values","type":"uint256[]","indexed":false}]}
]`

const erc6909ABIJSON = `[
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"caller","type":"address","indexed":false},
    {"name":"sender","type":"address","indexed":true},
    {"name":"receiver","type":"address","indexed":true},
    {"name":"id","type":"uint256","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"OperatorSet","anonymous":false,"inputs":[
    {"name":"owner","type":"address","indexed":true},
    {"name":"spender","type":"address","indexed":true},
    {"name":"approved","type":"bool","indexed":false}]}
]`

const ownableABIJSON = `[
  {"type":"event","name":"OwnershipTransferred","anonymous":false,"inputs":[
    {"name":"previousOwner","type":"address","indexed":true},
    {"name":"newOwner","type":"address","indexed":true}]}
]`

const marketplaceABIJSON = `[
  {"type":"event","name":"ListingCreated","anonymous":false,"inputs":[
    {"name":"listingId","type":"uint256","indexed":true},
    {"name":"seller","type":"address","indexed":true},
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"price","type":"uint256","indexed":false},
    {"name":"currency","type":"address","indexed":false}]},
  {"type":"event","name":"ListingCancelled","anonymous":false,"inputs":[
    {"name":"listingId","type":"uint256","indexed":true}]},
  {"type":"event","name":"ListingSold","anonymous":false,"inputs":[
    {"name":"listingId","type":"uint256","indexed":true},
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":false}]},
  {"type":"event","name":"BidPlaced","anonymous":false,"inputs":[
    {"name":"bidder","type":"address","indexed":true},
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"tokenAmount","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"currency","type":"address","indexed":false},
    {"name":"duration","type":"uint256","indexed":false}]},
  {"type":"event","name":"BidOutbid","anonymous":false,"inputs":[
    {"name":"previousBidder","type":"address","indexed":true},
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"tokenAmount","type":"uint256","indexed":false},
    {"name":"previousAmount","type":"uint256","indexed":false},
    {"name":"currency","type":"address","indexed":false}]},
  {"type":"event","name":"BidCancelled","anonymous":false,"inputs":[
    {"name":"bidder","type":"address","indexed":true},
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"tokenAmount","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"currency","type":"address","indexed":false}]},
  {"type":"event","name":"BidAccepted","anonymous":false,"inputs":[
    {"name":"bidder","type":"address","indexed":true},
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"tokenAmount","type":"uint256","indexed":false},
    {"name":"currency","type":"address","indexed":false}]}
]`

var (
	FactoryABI     = mustParseABI("factory", factoryABIJSON)
	ERC721ABI      = mustParseABI("erc721", erc721ABIJSON)
	ERC1155ABI     = mustParseABI("erc1155", erc1155ABIJSON)
	ERC6909ABI     = mustParseABI("erc6909", erc6909ABIJSON)
	OwnableABI     = mustParseABI("ownable", ownableABIJSON)
	MarketplaceABI = mustParseABI("marketplace", marketplaceABIJSON)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid %s ABI: %v", name, err))
	}

	return parsed
}
