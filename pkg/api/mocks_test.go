package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/pkg/downloader"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
	"github.com/stretchr/testify/mock"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) GetByName(name string) indexer.Indexer {
	idx, _ := m.Called(name).Get(0).(indexer.Indexer)
	return idx
}

func (m *mockRegistry) ListAll() []indexer.Indexer {
	idxs, _ := m.Called().Get(0).([]indexer.Indexer)
	return idxs
}

// plainIndexer does not expose its entities.
type plainIndexer struct {
	name string
}

func (p *plainIndexer) GetName() string    { return p.name }
func (p *plainIndexer) GetType() string    { return "plain" }
func (p *plainIndexer) StartBlock() uint64 { return 0 }
func (p *plainIndexer) Close() error       { return nil }
func (p *plainIndexer) EventsToIndex() map[common.Address]map[common.Hash]struct{} {
	return nil
}

func (p *plainIndexer) HandleLogs(context.Context, indexer.LogBatch) error { return nil }

type mockQueryable struct {
	plainIndexer
	mock.Mock
}

func newMockQueryable(name string) *mockQueryable {
	return &mockQueryable{plainIndexer: plainIndexer{name: name}}
}

func (m *mockQueryable) GetType() string { return "nft-marketplace" }

func (m *mockQueryable) GetEntityTypes() []string {
	return []string{"listings", "transfers"}
}

func (m *mockQueryable) GetEntity(ctx context.Context, entityType, id string) (any, error) {
	args := m.Called(ctx, entityType, id)
	return args.Get(0), args.Error(1)
}

func (m *mockQueryable) QueryEntities(ctx context.Context, params indexer.QueryParams) (any, int, error) {
	args := m.Called(ctx, params)
	return args.Get(0), args.Int(1), args.Error(2)
}

func (m *mockQueryable) QueryTimeseries(
	ctx context.Context, params indexer.TimeseriesParams,
) ([]indexer.TimeseriesDataPoint, error) {
	args := m.Called(ctx, params)
	points, _ := args.Get(0).([]indexer.TimeseriesDataPoint)
	return points, args.Error(1)
}

func (m *mockQueryable) GetStats(ctx context.Context) (*indexer.StatsResponse, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*indexer.StatsResponse)
	return stats, args.Error(1)
}

type mockSync struct {
	mock.Mock
}

func (m *mockSync) GetState() (*downloader.SyncState, error) {
	args := m.Called()
	state, _ := args.Get(0).(*downloader.SyncState)
	return state, args.Error(1)
}
