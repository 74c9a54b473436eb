package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/pkg/config"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
	"github.com/russross/meddler"
)

const secondsPerHour = 3600

// BaseIndexer provides the config accessors and the read queries shared by
// indexers whose entities live in one SQLite database. Embed it and pass the
// entity kinds the indexer exposes.
type BaseIndexer struct {
	log   *logger.Logger
	cfg   config.IndexerConfig
	kinds []entity.Kind

	DB *sql.DB
}

func NewBaseIndexer(db *sql.DB, log *logger.Logger, cfg config.IndexerConfig, kinds []entity.Kind) *BaseIndexer {
	return &BaseIndexer{
		DB:    db,
		log:   log,
		cfg:   cfg,
		kinds: kinds,
	}
}

func (b *BaseIndexer) kind(name string) (entity.Kind, error) {
	for _, k := range b.kinds {
		if strings.EqualFold(k.Name, name) {
			return k, nil
		}
	}

	return entity.Kind{}, fmt.Errorf("%w: %q (valid types: %s)",
		indexer.ErrUnknownEntityType, name, strings.Join(b.GetEntityTypes(), ", "))
}

// GetEntityTypes returns the exposed entity type names in declaration order.
func (b *BaseIndexer) GetEntityTypes() []string {
	names := make([]string, 0, len(b.kinds))
	for _, k := range b.kinds {
		names = append(names, k.Name)
	}

	return names
}

// GetEntity loads one entity by id. It returns nil when the id is unknown.
func (b *BaseIndexer) GetEntity(ctx context.Context, entityType, id string) (any, error) {
	k, err := b.kind(entityType)
	if err != nil {
		return nil, err
	}

	dst := reflect.New(k.Type.Elem()).Interface()

	//nolint:gosec // table name comes from the kind list, not user input
	row, err := b.DB.QueryContext(ctx, "SELECT * FROM "+k.Table+" WHERE id = ?", strings.ToLower(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", k.Name, err)
	}
	defer row.Close()

	if err := meddler.ScanRow(row, dst); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan %s: %w", k.Name, err)
	}

	return dst, nil
}

// QueryEntities retrieves a page of entities and the total match count.
func (b *BaseIndexer) QueryEntities(ctx context.Context, qp indexer.QueryParams) (any, int, error) {
	k, err := b.kind(qp.EntityType)
	if err != nil {
		return nil, 0, err
	}

	where, args, err := filters(k, qp.FromBlock, qp.ToBlock)
	if err != nil {
		return nil, 0, err
	}

	if qp.Address != "" {
		if len(k.AddressColumns) == 0 {
			return nil, 0, fmt.Errorf("%w: %s cannot be filtered by address", indexer.ErrInvalidQuery, k.Name)
		}

		addrConditions := make([]string, len(k.AddressColumns))
		for i, col := range k.AddressColumns {
			addrConditions[i] = col + " = ?"
			args = append(args, strings.ToLower(qp.Address))
		}
		where = append(where, "("+strings.Join(addrConditions, " OR ")+")")
	}

	//nolint:gosec // table name comes from the kind list, not user input
	query := " FROM " + k.Table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := b.DB.QueryRowContext(ctx, "SELECT COUNT(*)"+query, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}

	sortBy, err := sortColumn(k, qp.SortBy)
	if err != nil {
		return nil, 0, err
	}

	sortOrder := "DESC"
	if strings.EqualFold(qp.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	query = fmt.Sprintf("SELECT *%s ORDER BY %s %s, id %s LIMIT ? OFFSET ?", query, sortBy, sortOrder, sortOrder)
	args = append(args, qp.Limit, qp.Offset)

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s: %w", k.Name, err)
	}
	defer rows.Close()

	slicePtr := reflect.New(reflect.SliceOf(k.Type))
	if err := meddler.ScanAll(rows, slicePtr.Interface()); err != nil {
		return nil, 0, fmt.Errorf("failed to scan %s: %w", k.Name, err)
	}

	return slicePtr.Elem().Interface(), total, nil
}

// QueryTimeseries counts timestamped entities per period. Rows are bucketed
// per hour in SQL and merged into the requested interval here.
func (b *BaseIndexer) QueryTimeseries(
	ctx context.Context,
	tp indexer.TimeseriesParams,
) ([]indexer.TimeseriesDataPoint, error) {
	k, err := b.kind(tp.EntityType)
	if err != nil {
		return nil, err
	}
	if k.TimeColumn == "" {
		return nil, fmt.Errorf("%w: %s has no timestamp", indexer.ErrInvalidQuery, k.Name)
	}

	where, args, err := filters(k, tp.FromBlock, tp.ToBlock)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // table and column names come from the kind list, not user input
	query := fmt.Sprintf("SELECT %s / %d AS bucket, COUNT(*), MIN(%s), MAX(%s) FROM %s",
		k.TimeColumn, secondsPerHour, k.BlockColumn, k.BlockColumn, k.Table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " GROUP BY bucket ORDER BY bucket"

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s timeseries: %w", k.Name, err)
	}
	defer rows.Close()

	points := make([]indexer.TimeseriesDataPoint, 0)
	for rows.Next() {
		var (
			bucket             uint64
			count              int64
			minBlock, maxBlock uint64
		)
		if err := rows.Scan(&bucket, &count, &minBlock, &maxBlock); err != nil {
			return nil, err
		}

		period := FormatPeriodForTimestamp(bucket*secondsPerHour, tp.Interval)

		// buckets are ordered, so a period only ever extends the last point
		if n := len(points); n > 0 && points[n-1].Period == period {
			last := &points[n-1]
			last.Count += count
			last.MinBlock = min(last.MinBlock, minBlock)
			last.MaxBlock = max(last.MaxBlock, maxBlock)
			continue
		}

		points = append(points, indexer.TimeseriesDataPoint{
			Period:   period,
			Count:    count,
			MinBlock: minBlock,
			MaxBlock: maxBlock,
		})
	}

	return points, rows.Err()
}

// GetStats returns entity counts and the block range of block-stamped kinds.
func (b *BaseIndexer) GetStats(ctx context.Context) (*indexer.StatsResponse, error) {
	stats := &indexer.StatsResponse{EntityCounts: make(map[string]int64, len(b.kinds))}

	for _, k := range b.kinds {
		var count int64
		//nolint:gosec // table name comes from the kind list, not user input
		if err := b.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+k.Table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to get %s count: %w", k.Name, err)
		}
		stats.EntityCounts[k.Name] = count
		stats.TotalEntities += count

		if k.BlockColumn == "" || count == 0 {
			continue
		}

		var earliest, latest uint64
		//nolint:gosec // table and column names come from the kind list, not user input
		query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", k.BlockColumn, k.BlockColumn, k.Table)
		if err := b.DB.QueryRowContext(ctx, query).Scan(&earliest, &latest); err != nil {
			return nil, fmt.Errorf("failed to get %s block range: %w", k.Name, err)
		}

		if stats.EarliestBlock == 0 || earliest < stats.EarliestBlock {
			stats.EarliestBlock = earliest
		}
		stats.LatestBlock = max(stats.LatestBlock, latest)
	}

	return stats, nil
}

// GetType returns the type identifier of the indexer.
func (b *BaseIndexer) GetType() string {
	return b.cfg.Type
}

// GetName returns the configured name of the indexer instance.
func (b *BaseIndexer) GetName() string {
	return b.cfg.Name
}

// StartBlock returns the block number from which this indexer should start.
func (b *BaseIndexer) StartBlock() uint64 {
	return b.cfg.StartBlock
}

// filters builds the block range conditions of a query on k.
func filters(k entity.Kind, fromBlock, toBlock *uint64) ([]string, []any, error) {
	if fromBlock == nil && toBlock == nil {
		return nil, nil, nil
	}
	if k.BlockColumn == "" {
		return nil, nil, fmt.Errorf("%w: %s cannot be filtered by block", indexer.ErrInvalidQuery, k.Name)
	}

	var (
		where []string
		args  []any
	)
	if fromBlock != nil {
		where = append(where, k.BlockColumn+" >= ?")
		args = append(args, *fromBlock)
	}
	if toBlock != nil {
		where = append(where, k.BlockColumn+" <= ?")
		args = append(args, *toBlock)
	}

	return where, args, nil
}

// sortColumn whitelists the sort column. Kinds sort by block by default and
// by id when they carry no block.
func sortColumn(k entity.Kind, requested string) (string, error) {
	allowed := map[string]bool{"id": true}
	if k.BlockColumn != "" {
		allowed[k.BlockColumn] = true
	}
	if k.TimeColumn != "" {
		allowed[k.TimeColumn] = true
	}

	if requested == "" {
		if k.BlockColumn != "" {
			return k.BlockColumn, nil
		}
		return "id", nil
	}

	if !allowed[requested] {
		return "", fmt.Errorf("%w: %s cannot be sorted by %q", indexer.ErrInvalidQuery, k.Name, requested)
	}

	return requested, nil
}

// FormatPeriodForTimestamp formats a unix timestamp as the UTC period of
// interval it falls in. Weeks are ISO weeks.
func FormatPeriodForTimestamp(timestamp uint64, interval string) string {
	t := time.Unix(int64(timestamp), 0).UTC() //nolint:gosec
	switch interval {
	case "hour":
		return t.Format("2006-01-02 15:00:00")
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return t.Format("2006-01-02")
	}
}
