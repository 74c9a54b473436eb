package entity

import (
	"reflect"
	"strings"
)

// Kind describes an entity type exposed by the read API.
type Kind struct {
	Name           string       // API name (e.g. "listings")
	Table          string       // backing table
	Type           reflect.Type // pointer type for scanning
	AddressColumns []string     // columns matched by the address filter
	BlockColumn    string       // column used for block range filters, empty if none
	TimeColumn     string       // unix timestamp column used for activity buckets, empty if none
}

// Kinds lists every queryable entity type.
var Kinds = []Kind{
	{Name: "factories", Table: TableFactories, Type: reflect.TypeOf(&Factory{})},
	{
		Name:           "collections",
		Table:          TableCollections,
		Type:           reflect.TypeOf(&Collection{}),
		AddressColumns: []string{"creator", "token_address"},
	},
	{Name: "instances", Table: TableTokenInstances, Type: reflect.TypeOf(&TokenInstance{})},
	{
		Name:           "balances",
		Table:          TableTokenBalances,
		Type:           reflect.TypeOf(&TokenBalance{}),
		AddressColumns: []string{"owner"},
	},
	{
		Name:           "transfers",
		Table:          TableTransfers,
		Type:           reflect.TypeOf(&Transfer{}),
		AddressColumns: []string{"from_address", "to_address"},
		BlockColumn:    "block_number",
		TimeColumn:     "timestamp",
	},
	{
		Name:           "listings",
		Table:          TableListings,
		Type:           reflect.TypeOf(&Listing{}),
		AddressColumns: []string{"seller", "token_address"},
	},
	{
		Name:           "bids",
		Table:          TableBids,
		Type:           reflect.TypeOf(&Bid{}),
		AddressColumns: []string{"bidder", "token_address"},
	},
	{
		Name:           "listing-history",
		Table:          TableListingHistory,
		Type:           reflect.TypeOf(&ListingHistory{}),
		AddressColumns: []string{"seller", "token_address"},
		BlockColumn:    "block_number",
		TimeColumn:     "timestamp",
	},
	{
		Name:           "bid-history",
		Table:          TableBidHistory,
		Type:           reflect.TypeOf(&BidHistory{}),
		AddressColumns: []string{"bidder", "token_address"},
		BlockColumn:    "block_number",
		TimeColumn:     "timestamp",
	},
	{
		Name:           "ownerships",
		Table:          TableContractOwnerships,
		Type:           reflect.TypeOf(&ContractOwnership{}),
		AddressColumns: []string{"previous_owner", "owner"},
	},
}

// KindByName looks up a kind case-insensitively.
func KindByName(name string) (Kind, bool) {
	for _, k := range Kinds {
		if strings.EqualFold(k.Name, name) {
			return k, true
		}
	}

	return Kind{}, false
}

// KindNames returns the API names in declaration order.
func KindNames() []string {
	names := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		names = append(names, k.Name)
	}

	return names
}
