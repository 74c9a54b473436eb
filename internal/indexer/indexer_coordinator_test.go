package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockIndexer struct {
	mock.Mock
	name   string
	start  uint64
	events map[common.Address]map[common.Hash]struct{}
}

func newMockIndexer(name string, start uint64, events map[common.Address]map[common.Hash]struct{}) *mockIndexer {
	return &mockIndexer{name: name, start: start, events: events}
}

func (m *mockIndexer) GetName() string    { return m.name }
func (m *mockIndexer) GetType() string    { return "mock" }
func (m *mockIndexer) StartBlock() uint64 { return m.start }
func (m *mockIndexer) Close() error       { return m.Called().Error(0) }
func (m *mockIndexer) EventsToIndex() map[common.Address]map[common.Hash]struct{} {
	return m.events
}

func (m *mockIndexer) HandleLogs(ctx context.Context, batch indexer.LogBatch) error {
	return m.Called(ctx, batch).Error(0)
}

// watchingIndexer restores one watcher on bind and records Start.
type watchingIndexer struct {
	*mockIndexer
	watched common.Address
	started bool
}

func (w *watchingIndexer) Start(context.Context) error {
	w.started = true
	return nil
}

func (w *watchingIndexer) BindWatchers(_ context.Context, registry indexer.WatcherRegistry) error {
	return registry.RegisterWatcher(w, w.watched, []common.Hash{topicB})
}

var (
	addrA  = common.HexToAddress("0xaaaa")
	addrB  = common.HexToAddress("0xbbbb")
	topicA = common.HexToHash("0x0a")
	topicB = common.HexToHash("0x0b")
)

func testLog(addr common.Address, topic common.Hash, block uint64, index uint) types.Log {
	return types.Log{Address: addr, Topics: []common.Hash{topic}, BlockNumber: block, Index: index}
}

func only(addr common.Address, topics ...common.Hash) map[common.Address]map[common.Hash]struct{} {
	set := make(map[common.Hash]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}

	return map[common.Address]map[common.Hash]struct{}{addr: set}
}

func batchLogs(args mock.Arguments) []types.Log {
	return args.Get(1).(indexer.LogBatch).Logs //nolint:forcetypeassert
}

func TestIndexerCoordinator_RegisterIndexer(t *testing.T) {
	t.Parallel()

	coord := NewIndexerCoordinator(logger.NewNopLogger())

	require.NoError(t, coord.RegisterIndexer(newMockIndexer("a", 100, only(addrA, topicA))))
	require.NoError(t, coord.RegisterIndexer(newMockIndexer("b", 50, only(addrB))))
	require.ErrorContains(t, coord.RegisterIndexer(newMockIndexer("a", 1, nil)), "already registered")

	require.Equal(t, uint64(50), coord.StartBlock())
	require.NotNil(t, coord.GetByName("b"))
	require.Nil(t, coord.GetByName("c"))
	require.Len(t, coord.ListAll(), 2)
}

func TestIndexerCoordinator_Filter(t *testing.T) {
	t.Parallel()

	coord := NewIndexerCoordinator(logger.NewNopLogger())
	require.NoError(t, coord.RegisterIndexer(newMockIndexer("a", 0, only(addrA, topicA))))

	addresses, topics := coord.Filter()
	require.Equal(t, []common.Address{addrA}, addresses)
	require.Equal(t, [][]common.Hash{{topicA}}, topics)

	idx := coord.GetByName("a")

	require.NoError(t, coord.RegisterWatcher(idx, addrB, []common.Hash{topicB}))

	addresses, topics = coord.Filter()
	require.Equal(t, []common.Address{addrA, addrB}, addresses)
	require.Equal(t, [][]common.Hash{{topicA, topicB}}, topics)

	// re-registering the same route leaves the filter untouched
	require.NoError(t, coord.RegisterWatcher(idx, addrB, []common.Hash{topicB}))
	addresses, topics = coord.Filter()
	require.Equal(t, []common.Address{addrA, addrB}, addresses)
	require.Equal(t, [][]common.Hash{{topicA, topicB}}, topics)

	// an all-topics route drops the topic filter
	require.NoError(t, coord.RegisterWatcher(idx, addrB, nil))
	_, topics = coord.Filter()
	require.Nil(t, topics)
}

func TestIndexerCoordinator_RegisterWatcherUnknownIndexer(t *testing.T) {
	t.Parallel()

	coord := NewIndexerCoordinator(logger.NewNopLogger())
	err := coord.RegisterWatcher(newMockIndexer("ghost", 0, nil), addrA, nil)
	require.ErrorContains(t, err, "not registered")
}

func TestIndexerCoordinator_Start(t *testing.T) {
	t.Parallel()

	coord := NewIndexerCoordinator(logger.NewNopLogger())
	w := &watchingIndexer{mockIndexer: newMockIndexer("w", 0, only(addrA, topicA)), watched: addrB}
	require.NoError(t, coord.RegisterIndexer(w))
	require.NoError(t, coord.Start(context.Background()))
	require.True(t, w.started)

	addresses, _ := coord.Filter()
	require.Contains(t, addresses, addrB)
}

func TestIndexerCoordinator_HandleLogsRoutes(t *testing.T) {
	t.Parallel()

	coord := NewIndexerCoordinator(logger.NewNopLogger())
	a := newMockIndexer("a", 0, only(addrA, topicA))
	b := newMockIndexer("b", 10, only(addrB))
	require.NoError(t, coord.RegisterIndexer(a))
	require.NoError(t, coord.RegisterIndexer(b))

	logs := []types.Log{
		testLog(addrA, topicA, 5, 0),
		testLog(addrB, topicB, 5, 1),  // before b's start block
		testLog(addrA, topicB, 11, 0), // topic not routed
		testLog(addrB, topicA, 11, 1),
		testLog(addrA, topicA, 12, 0),
	}

	var gotA, gotB []types.Log
	a.On("HandleLogs", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) { gotA = batchLogs(args) })
	b.On("HandleLogs", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) { gotB = batchLogs(args) })

	err := coord.HandleLogs(context.Background(), indexer.LogBatch{Logs: logs, FromBlock: 5, ToBlock: 12})
	require.NoError(t, err)

	require.Equal(t, []types.Log{logs[0], logs[4]}, gotA)
	require.Equal(t, []types.Log{logs[3]}, gotB)
}

func TestIndexerCoordinator_HandleLogsSkipsIdleIndexers(t *testing.T) {
	t.Parallel()

	coord := NewIndexerCoordinator(logger.NewNopLogger())
	a := newMockIndexer("a", 0, only(addrA, topicA))
	require.NoError(t, coord.RegisterIndexer(a))

	err := coord.HandleLogs(context.Background(), indexer.LogBatch{Logs: []types.Log{testLog(addrB, topicA, 1, 0)}})
	require.NoError(t, err)
	a.AssertNotCalled(t, "HandleLogs", mock.Anything, mock.Anything)
}

func TestIndexerCoordinator_HandleLogsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	tests := []struct {
		name      string
		errA      error
		errB      error
		wantErr   error
		wantBlock uint64
	}{
		{name: "failure wins", errA: boom, errB: &indexer.WatchersChangedError{Block: 3}, wantErr: boom},
		{
			name:      "earliest watcher change",
			errA:      &indexer.WatchersChangedError{Block: 9, LogIndex: 1},
			errB:      &indexer.WatchersChangedError{Block: 4, LogIndex: 7},
			wantBlock: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			coord := NewIndexerCoordinator(logger.NewNopLogger())
			a := newMockIndexer("a", 0, only(addrA))
			b := newMockIndexer("b", 0, only(addrB))
			require.NoError(t, coord.RegisterIndexer(a))
			require.NoError(t, coord.RegisterIndexer(b))

			a.On("HandleLogs", mock.Anything, mock.Anything).Return(tt.errA)
			b.On("HandleLogs", mock.Anything, mock.Anything).Return(tt.errB)

			err := coord.HandleLogs(context.Background(), indexer.LogBatch{
				Logs: []types.Log{testLog(addrA, topicA, 1, 0), testLog(addrB, topicA, 1, 1)},
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			var wc *indexer.WatchersChangedError
			require.ErrorAs(t, err, &wc)
			require.Equal(t, tt.wantBlock, wc.Block)
		})
	}
}

func TestIndexerCoordinator_Close(t *testing.T) {
	t.Parallel()

	coord := NewIndexerCoordinator(logger.NewNopLogger())
	a := newMockIndexer("a", 0, nil)
	b := newMockIndexer("b", 0, nil)
	require.NoError(t, coord.RegisterIndexer(a))
	require.NoError(t, coord.RegisterIndexer(b))

	a.On("Close").Return(nil)
	b.On("Close").Return(errors.New("locked"))

	require.ErrorContains(t, coord.Close(), "indexer b: locked")
	a.AssertExpectations(t)
}
