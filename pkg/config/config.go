package config

import (
	"fmt"
	"slices"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/common"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/types"
)

// Config is the root configuration of NFTIndexor.
type Config struct {
	// Downloader configures log fetching and checkpointing
	Downloader DownloaderConfig `yaml:"downloader" json:"downloader" toml:"downloader"`

	// Indexers lists the indexer instances to run
	Indexers []IndexerConfig `yaml:"indexers" json:"indexers" toml:"indexers"`

	// Logging configures log levels per component
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics configures the Prometheus endpoint
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`

	// API configures the read-only query API
	API *APIConfig `yaml:"api,omitempty" json:"api,omitempty" toml:"api,omitempty"`
}

// DownloaderConfig represents the configuration for the downloader.
type DownloaderConfig struct {
	// RPCURL is the JSON-RPC endpoint
	RPCURL string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url"`

	// ChunkSize is the block range per eth_getLogs call
	ChunkSize uint64 `yaml:"chunk_size" json:"chunk_size" toml:"chunk_size"`

	// Finality is one of "finalized", "safe" or "latest"
	Finality string `yaml:"finality" json:"finality" toml:"finality"`

	// FinalizedLag is subtracted from the head when Finality is "latest"
	FinalizedLag uint64 `yaml:"finalized_lag" json:"finalized_lag" toml:"finalized_lag"`

	// PollInterval is how long live mode waits before polling for new blocks
	PollInterval common.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// Retry enables exponential backoff on RPC calls
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`

	// RateLimit caps the request rate against the RPC endpoint
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty" toml:"rate_limit,omitempty"`

	// DB holds the checkpoint database
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	// Maintenance enables periodic WAL checkpoints and VACUUM on the checkpoint database
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`
}

// ApplyDefaults fills optional downloader fields.
func (d *DownloaderConfig) ApplyDefaults() {
	if d.ChunkSize == 0 {
		d.ChunkSize = 5000
	}
	if d.Finality == "" {
		d.Finality = "finalized"
	}
	if d.PollInterval.Duration == 0 {
		d.PollInterval = common.NewDuration(12 * time.Second) //nolint:mnd
	}
	if d.Retry != nil {
		d.Retry.ApplyDefaults()
	}
	if d.RateLimit != nil {
		d.RateLimit.ApplyDefaults()
	}
	if d.Maintenance != nil {
		d.Maintenance.ApplyDefaults()
	}

	d.DB.ApplyDefaults()
}

// Validate checks the downloader section.
func (d *DownloaderConfig) Validate() error {
	if d.RPCURL == "" {
		return fmt.Errorf("downloader.rpc_url is required")
	}

	if _, err := types.ParseBlockFinality(d.Finality); err != nil {
		return fmt.Errorf("downloader.finality: %w", err)
	}

	if d.ChunkSize == 0 {
		return fmt.Errorf("downloader.chunk_size must be positive")
	}

	if err := d.DB.Validate(); err != nil {
		return fmt.Errorf("downloader.db: %w", err)
	}

	if d.Retry != nil {
		if err := d.Retry.Validate(); err != nil {
			return fmt.Errorf("downloader.retry: %w", err)
		}
	}

	if d.RateLimit != nil {
		if err := d.RateLimit.Validate(); err != nil {
			return fmt.Errorf("downloader.rate_limit: %w", err)
		}
	}

	if d.Maintenance != nil {
		if err := d.Maintenance.Validate(); err != nil {
			return fmt.Errorf("downloader.maintenance: %w", err)
		}
	}

	return nil
}

// RetryConfig represents RPC retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts counts the initial request
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	InitialBackoff common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	MaxBackoff common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults fills optional retry fields.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// Validate checks the retry section.
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if r.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be at least 1")
	}
	if r.MaxBackoff.Duration < r.InitialBackoff.Duration {
		return fmt.Errorf("max_backoff must not be lower than initial_backoff")
	}

	return nil
}

// RateLimitConfig is a token bucket shared by every RPC call.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" toml:"requests_per_second"`

	// Burst defaults to one second worth of requests
	Burst int `yaml:"burst" json:"burst" toml:"burst"`
}

// ApplyDefaults fills optional rate limit fields.
func (r *RateLimitConfig) ApplyDefaults() {
	if r.Burst == 0 {
		r.Burst = max(int(r.RequestsPerSecond), 1)
	}
}

// Validate checks the rate limit section.
func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	if r.Burst < 1 {
		return fmt.Errorf("burst must be at least 1")
	}

	return nil
}

// DatabaseConfig represents an SQLite database.
type DatabaseConfig struct {
	// Path is the database file
	Path string `yaml:"path" json:"path" toml:"path"`

	// JournalMode is the SQLite journal mode, WAL by default
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous is one of FULL, NORMAL, OFF
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is in milliseconds
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize follows PRAGMA cache_size (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`

	EnableForeignKeys bool `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys"`
}

// ApplyDefaults fills optional database fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// Validate checks the database section.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("path is required")
	}

	if d.JournalMode != "" &&
		!slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if d.Synchronous != "" && !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("synchronous must be one of: FULL, NORMAL, OFF")
	}

	return nil
}

// MaintenanceConfig configures periodic database maintenance.
type MaintenanceConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often maintenance runs (e.g. "30m")
	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs maintenance once before the first interval
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	// WALCheckpointMode is one of PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// ApplyDefaults fills optional maintenance fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks the maintenance section.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" &&
		!slices.Contains([]string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}, m.WALCheckpointMode) {
		return fmt.Errorf("wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
	}

	return nil
}

// LoggingConfig configures logging with per-component levels.
type LoggingConfig struct {
	// DefaultLevel applies to components without an override
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development switches to the console encoder
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels overrides the level per component, e.g. reconciler: debug
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults fills optional logging fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks level names and component names.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, ok := logger.ValidLogLevels[common.ToLowerWithTrim(l.DefaultLevel)]; !ok {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, ok := common.AllComponents[common.ToLowerWithTrim(component)]; !ok {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, ok := logger.ValidLogLevels[common.ToLowerWithTrim(level)]; !ok {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the override for component or the default level.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}

	return common.ToLowerWithTrim(l.DefaultLevel)
}

func (l *LoggingConfig) GetDefaultLevel() string {
	return common.ToLowerWithTrim(l.DefaultLevel)
}

func (l *LoggingConfig) IsDevelopment() bool {
	return l.Development
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is "host:port" or ":port"
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults fills optional metrics fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks the metrics section.
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.ListenAddress == "" {
		return fmt.Errorf("listen_address is required when metrics are enabled")
	}
	if m.Path == "" || m.Path[0] != '/' {
		return fmt.Errorf("path must start with '/'")
	}

	return nil
}

// APIConfig configures the query API.
type APIConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	ReadTimeout  common.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`
	WriteTimeout common.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`
	IdleTimeout  common.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`

	CORS CORSConfig `yaml:"cors" json:"cors" toml:"cors"`
}

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`
}

// ApplyDefaults fills optional API fields.
func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8080"
	}
	if a.ReadTimeout.Duration == 0 {
		a.ReadTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.WriteTimeout.Duration == 0 {
		a.WriteTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.IdleTimeout.Duration == 0 {
		a.IdleTimeout = common.NewDuration(60 * time.Second) //nolint:mnd
	}
	if a.CORS.Enabled && len(a.CORS.AllowedOrigins) == 0 {
		a.CORS.AllowedOrigins = []string{"*"}
	}
}

// Validate checks the API section.
func (a *APIConfig) Validate() error {
	if a.Enabled && a.ListenAddress == "" {
		return fmt.Errorf("listen_address is required when the API is enabled")
	}

	return nil
}

// IndexerConfig represents a single indexer instance.
type IndexerConfig struct {
	// Name identifies the instance, unique across the config
	Name string `yaml:"name" json:"name" toml:"name"`

	// Type selects the registered indexer implementation
	Type string `yaml:"type" json:"type" toml:"type"`

	// StartBlock is the first block the indexer wants to see
	StartBlock uint64 `yaml:"start_block" json:"start_block" toml:"start_block"`

	// DB is the entity database of this indexer
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	// Maintenance enables periodic maintenance of the entity database
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`

	// NFT holds the contracts watched by the nft-marketplace indexer type
	NFT *NFTConfig `yaml:"nft,omitempty" json:"nft,omitempty" toml:"nft,omitempty"`
}

// ApplyDefaults fills optional indexer fields.
func (i *IndexerConfig) ApplyDefaults() {
	i.DB.ApplyDefaults()

	if i.Maintenance != nil {
		i.Maintenance.ApplyDefaults()
	}
}

// Validate checks one indexer entry.
func (i *IndexerConfig) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("name is required")
	}
	if i.Type == "" {
		return fmt.Errorf("type is required")
	}
	if err := i.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if i.Maintenance != nil {
		if err := i.Maintenance.Validate(); err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
	}
	if i.NFT != nil {
		if err := i.NFT.Validate(); err != nil {
			return fmt.Errorf("nft: %w", err)
		}
	}

	return nil
}

// NFTConfig lists the statically known contracts. Collections deployed by
// the factories are discovered at runtime.
type NFTConfig struct {
	ERC721Factories  []string `yaml:"erc721_factories" json:"erc721_factories" toml:"erc721_factories"`
	ERC1155Factories []string `yaml:"erc1155_factories" json:"erc1155_factories" toml:"erc1155_factories"`
	ERC6909Factories []string `yaml:"erc6909_factories" json:"erc6909_factories" toml:"erc6909_factories"`
	Marketplaces     []string `yaml:"marketplaces" json:"marketplaces" toml:"marketplaces"`
}

// Validate checks that at least one contract is configured and every
// address is well formed.
func (n *NFTConfig) Validate() error {
	groups := map[string][]string{
		"erc721_factories":  n.ERC721Factories,
		"erc1155_factories": n.ERC1155Factories,
		"erc6909_factories": n.ERC6909Factories,
		"marketplaces":      n.Marketplaces,
	}

	total := 0
	for name, addrs := range groups {
		for j, addr := range addrs {
			if !ethcommon.IsHexAddress(addr) {
				return fmt.Errorf("%s[%d]: invalid address %q", name, j, addr)
			}
		}
		total += len(addrs)
	}

	if total == 0 {
		return fmt.Errorf("at least one factory or marketplace address must be configured")
	}

	return nil
}

// ApplyDefaults fills optional fields across all sections.
func (c *Config) ApplyDefaults() {
	c.Downloader.ApplyDefaults()

	for i := range c.Indexers {
		c.Indexers[i].ApplyDefaults()
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.ApplyDefaults()

	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
	if c.API != nil {
		c.API.ApplyDefaults()
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Downloader.Validate(); err != nil {
		return err
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if c.API != nil {
		if err := c.API.Validate(); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	if len(c.Indexers) == 0 {
		return fmt.Errorf("at least one indexer must be configured")
	}

	names := make(map[string]struct{}, len(c.Indexers))
	for i := range c.Indexers {
		idx := &c.Indexers[i]
		if err := idx.Validate(); err != nil {
			return fmt.Errorf("indexer[%d] (%s): %w", i, idx.Name, err)
		}

		if _, dup := names[idx.Name]; dup {
			return fmt.Errorf("indexer[%d]: duplicate indexer name '%s'", i, idx.Name)
		}
		names[idx.Name] = struct{}{}
	}

	return nil
}
