package indexer

import (
	"context"
	"errors"
)

const (
	defaultPageLimit = 100
	MaxPageLimit     = 1000
)

var (
	// ErrUnknownEntityType is returned for entity types an indexer does not expose.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrInvalidQuery is returned for filters the entity type does not support.
	ErrInvalidQuery = errors.New("invalid query")
)

// Queryable is implemented by indexers that expose their entities to the
// read API.
type Queryable interface {
	// GetEntityTypes returns the entity type names accepted by the queries.
	GetEntityTypes() []string

	// GetEntity returns one entity by id, or nil when it does not exist.
	GetEntity(ctx context.Context, entityType, id string) (any, error)

	// QueryEntities returns a page of entities (a typed slice) and the total
	// number of matches.
	QueryEntities(ctx context.Context, params QueryParams) (any, int, error)

	// QueryTimeseries buckets the timestamped entities of params.EntityType
	// by period.
	QueryTimeseries(ctx context.Context, params TimeseriesParams) ([]TimeseriesDataPoint, error)

	// GetStats returns entity counts and the indexed block range.
	GetStats(ctx context.Context) (*StatsResponse, error)
}

// QueryParams represents the filters of an entity listing.
type QueryParams struct {
	// EntityType selects the table (e.g. "listings", "transfers")
	EntityType string

	// Pagination
	Limit  int
	Offset int

	// Block range filtering, only for entity types carrying a block number
	FromBlock *uint64
	ToBlock   *uint64

	// Address matches any address column of the entity type
	Address string

	// Sorting
	SortBy    string
	SortOrder string // "asc" or "desc"
}

func NewDefaultQueryParams() *QueryParams {
	return &QueryParams{
		Limit:     defaultPageLimit,
		Offset:    0,
		SortOrder: "desc",
	}
}

// StatsResponse represents indexer statistics.
// @Description Entity counts and processed block range of an indexer
type StatsResponse struct {
	TotalEntities int64            `json:"total_entities" example:"150000" description:"Total number of stored entities"`
	EntityCounts  map[string]int64 `json:"entity_counts" description:"Entity count per entity type"`
	EarliestBlock uint64           `json:"earliest_block" example:"19000000" description:"Earliest block with an event"`
	LatestBlock   uint64           `json:"latest_block" example:"19500000" description:"Latest block with an event"`
}

// TimeseriesParams represents parameters for activity time-series queries.
type TimeseriesParams struct {
	// EntityType must carry a timestamp (transfers, listing-history, bid-history)
	EntityType string

	// Interval for aggregation: "hour", "day", "week"
	Interval string

	// Block range filtering
	FromBlock *uint64
	ToBlock   *uint64
}

// TimeseriesDataPoint represents a single point in timeseries data.
// @Description Number of entities recorded in one period
type TimeseriesDataPoint struct {
	Period   string `json:"period" example:"2024-01-15" description:"Time period (UTC)"`
	Count    int64  `json:"count" example:"1250" description:"Number of entities in this period"`
	MinBlock uint64 `json:"min_block" example:"19500000" description:"Minimum block number in period"`
	MaxBlock uint64 `json:"max_block" example:"19510000" description:"Maximum block number in period"`
}
