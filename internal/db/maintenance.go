package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/pkg/config"
)

// Maintenance serializes WAL checkpoints and VACUUM against regular work on
// one database. Regular work holds the shared side of the lock, maintenance
// the exclusive side.
type Maintenance interface {
	Start(ctx context.Context) error
	Stop() error
	// AcquireOperationLock blocks while maintenance runs and returns the
	// matching unlock function.
	AcquireOperationLock() func()
	GetMetrics() MaintenanceMetrics
	RunMaintenance(ctx context.Context) error
}

// MaintenanceMetrics reports the last maintenance outcome.
type MaintenanceMetrics struct {
	LastMaintenanceTime  time.Time
	MaintenanceCount     uint64
	LastMaintenanceError error
}

// NoOpMaintenance is used when maintenance is not configured.
type NoOpMaintenance struct{}

func (*NoOpMaintenance) Start(context.Context) error          { return nil }
func (*NoOpMaintenance) Stop() error                          { return nil }
func (*NoOpMaintenance) RunMaintenance(context.Context) error { return nil }
func (*NoOpMaintenance) AcquireOperationLock() func()         { return func() {} }
func (*NoOpMaintenance) GetMetrics() MaintenanceMetrics       { return MaintenanceMetrics{} }

// MaintenanceCoordinator runs periodic maintenance on a single database.
type MaintenanceCoordinator struct {
	name   string
	db     *sql.DB
	dbPath string
	cfg    config.MaintenanceConfig
	log    *logger.Logger

	opLock sync.RWMutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   MaintenanceMetrics
}

// NewMaintenanceCoordinator returns a no-op implementation when cfg is nil.
// name labels the metrics of this database.
func NewMaintenanceCoordinator(
	name string,
	dbPath string,
	db *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
) Maintenance {
	if cfg == nil {
		return &NoOpMaintenance{}
	}

	return &MaintenanceCoordinator{
		name:   name,
		db:     db,
		dbPath: dbPath,
		cfg:    *cfg,
		log:    log,
	}
}

// Start launches the background worker when maintenance is enabled.
func (m *MaintenanceCoordinator) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.log.Infow("background maintenance disabled", "db", m.name)
		return nil
	}

	ctx, m.cancel = context.WithCancel(ctx)

	if m.cfg.VacuumOnStartup {
		if err := m.RunMaintenance(ctx); err != nil {
			m.log.Warnw("startup maintenance failed", "db", m.name, "error", err)
		}
	}

	m.wg.Add(1)
	go m.worker(ctx)

	m.log.Infow("background maintenance started",
		"db", m.name,
		"interval", m.cfg.CheckInterval.Duration,
		"checkpoint_mode", m.cfg.WALCheckpointMode,
	)

	return nil
}

// Stop cancels the worker and waits for it.
func (m *MaintenanceCoordinator) Stop() error {
	if m.cancel == nil {
		return nil
	}

	m.cancel()
	m.wg.Wait()
	m.log.Infow("background maintenance stopped", "db", m.name)

	return nil
}

func (m *MaintenanceCoordinator) worker(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CheckInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunMaintenance(ctx); err != nil {
				m.log.Warnw("periodic maintenance failed", "db", m.name, "error", err)
			}
		}
	}
}

// RunMaintenance checkpoints the WAL and vacuums while holding the exclusive lock.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	start := time.Now()
	maintenanceRuns.WithLabelValues(m.name).Inc()

	m.opLock.Lock()
	defer m.opLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	before, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnw("failed to read database size", "db", m.name, "error", err)
	}

	var runErr error
	if err := m.walCheckpoint(); err != nil {
		runErr = fmt.Errorf("WAL checkpoint failed: %w", err)
	}
	if err := m.vacuum(); err != nil && runErr == nil {
		runErr = fmt.Errorf("VACUUM failed: %w", err)
	}

	after, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnw("failed to read database size", "db", m.name, "error", err)
	}

	m.statsMu.Lock()
	m.stats.LastMaintenanceTime = time.Now().UTC()
	m.stats.MaintenanceCount++
	m.stats.LastMaintenanceError = runErr
	m.statsMu.Unlock()

	maintenanceDuration.WithLabelValues(m.name).Observe(time.Since(start).Seconds())
	maintenanceLastRun.WithLabelValues(m.name).SetToCurrentTime()
	dbSize.WithLabelValues(m.name).Set(float64(after))

	if runErr != nil {
		maintenanceOutcomes.WithLabelValues(m.name, "error").Inc()
		return runErr
	}

	maintenanceOutcomes.WithLabelValues(m.name, "success").Inc()
	if before > after {
		maintenanceSpaceReclaimed.WithLabelValues(m.name).Set(float64(before - after))
	}

	m.log.Infow("maintenance completed",
		"db", m.name,
		"duration", time.Since(start),
		"size_before", before,
		"size_after", after,
	)

	return nil
}

func (m *MaintenanceCoordinator) walCheckpoint() error {
	var mode string
	if err := m.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}

	if !strings.EqualFold(mode, "wal") {
		return nil
	}

	var busy, logFrames, checkpointed int
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.cfg.WALCheckpointMode)
	if err := m.db.QueryRow(query).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("failed to execute WAL checkpoint: %w", err)
	}

	walCheckpoints.WithLabelValues(m.name, strings.ToLower(m.cfg.WALCheckpointMode)).Inc()

	if busy > 0 {
		m.log.Warnw("WAL checkpoint left busy pages", "db", m.name, "busy", busy)
	}

	return nil
}

func (m *MaintenanceCoordinator) vacuum() error {
	if _, err := m.db.Exec("VACUUM"); err != nil {
		if strings.Contains(err.Error(), "database is locked") {
			return fmt.Errorf("cannot vacuum: database is locked (retry later)")
		}
		return err
	}

	vacuumRuns.WithLabelValues(m.name).Inc()

	return nil
}

func (m *MaintenanceCoordinator) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

func (m *MaintenanceCoordinator) GetMetrics() MaintenanceMetrics {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	return m.stats
}
