package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goran-ethernal/NFTIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_Examples(t *testing.T) {
	tests := []struct {
		name string
		path string
		load func(string) (*config.Config, error)
	}{
		{name: "yaml", path: "../../config.example.yaml", load: LoadFromYAML},
		{name: "json", path: "../../config.example.json", load: LoadFromJSON},
		{name: "toml", path: "../../config.example.toml", load: LoadFromTOML},
		{name: "auto yaml", path: "../../config.example.yaml", load: LoadFromFile},
		{name: "auto json", path: "../../config.example.json", load: LoadFromFile},
		{name: "auto toml", path: "../../config.example.toml", load: LoadFromFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.load(tt.path)
			require.NoError(t, err)
			requireExampleConfig(t, cfg)
		})
	}
}

func requireExampleConfig(t *testing.T, cfg *config.Config) {
	t.Helper()

	require.Equal(t, "https://ethereum-rpc.publicnode.com", cfg.Downloader.RPCURL)
	require.Equal(t, uint64(2000), cfg.Downloader.ChunkSize)
	require.Equal(t, "finalized", cfg.Downloader.Finality)
	require.Equal(t, 12*time.Second, cfg.Downloader.PollInterval.Duration)
	require.NotNil(t, cfg.Downloader.Retry)
	require.Equal(t, 30*time.Second, cfg.Downloader.Retry.MaxBackoff.Duration)
	require.NotNil(t, cfg.Downloader.RateLimit)
	require.InDelta(t, 25.0, cfg.Downloader.RateLimit.RequestsPerSecond, 0)
	require.Equal(t, 50, cfg.Downloader.RateLimit.Burst)
	require.Equal(t, "WAL", cfg.Downloader.DB.JournalMode)

	require.Len(t, cfg.Indexers, 1)
	idx := cfg.Indexers[0]
	require.Equal(t, "nft", idx.Name)
	require.Equal(t, "nft-marketplace", idx.Type)
	require.Equal(t, uint64(19000000), idx.StartBlock)
	require.NotNil(t, idx.Maintenance)
	require.Equal(t, time.Hour, idx.Maintenance.CheckInterval.Duration)
	require.Equal(t, "TRUNCATE", idx.Maintenance.WALCheckpointMode)
	require.NotNil(t, idx.NFT)
	require.Len(t, idx.NFT.ERC721Factories, 1)
	require.Len(t, idx.NFT.ERC1155Factories, 1)
	require.Len(t, idx.NFT.ERC6909Factories, 1)
	require.Len(t, idx.NFT.Marketplaces, 1)

	require.NotNil(t, cfg.Logging)
	require.Equal(t, "debug", cfg.Logging.GetComponentLevel("reconciler"))
	require.Equal(t, "info", cfg.Logging.GetComponentLevel("downloader"))

	require.NotNil(t, cfg.Metrics)
	require.True(t, cfg.Metrics.Enabled)

	require.NotNil(t, cfg.API)
	require.Equal(t, ":8080", cfg.API.ListenAddress)
	require.Equal(t, []string{"*"}, cfg.API.CORS.AllowedOrigins)
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	_, err := LoadFromFile("config.ini")
	require.ErrorContains(t, err, "unsupported config file format")
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing rpc url",
			content: `
downloader:
  db: {path: d.sqlite}
indexers:
  - {name: nft, type: nft-marketplace, db: {path: n.sqlite}}
`,
			wantErr: "downloader.rpc_url is required",
		},
		{
			name: "bad finality",
			content: `
downloader:
  rpc_url: http://localhost:8545
  finality: eventually
  db: {path: d.sqlite}
indexers:
  - {name: nft, type: nft-marketplace, db: {path: n.sqlite}}
`,
			wantErr: "downloader.finality",
		},
		{
			name: "zero rate limit",
			content: `
downloader:
  rpc_url: http://localhost:8545
  rate_limit: {requests_per_second: 0}
  db: {path: d.sqlite}
indexers:
  - {name: nft, type: nft-marketplace, db: {path: n.sqlite}}
`,
			wantErr: "requests_per_second must be positive",
		},
		{
			name: "no indexers",
			content: `
downloader:
  rpc_url: http://localhost:8545
  db: {path: d.sqlite}
`,
			wantErr: "at least one indexer",
		},
		{
			name: "duplicate indexer names",
			content: `
downloader:
  rpc_url: http://localhost:8545
  db: {path: d.sqlite}
indexers:
  - {name: nft, type: nft-marketplace, db: {path: a.sqlite}}
  - {name: nft, type: nft-marketplace, db: {path: b.sqlite}}
`,
			wantErr: "duplicate indexer name",
		},
		{
			name: "malformed factory address",
			content: `
downloader:
  rpc_url: http://localhost:8545
  db: {path: d.sqlite}
indexers:
  - name: nft
    type: nft-marketplace
    db: {path: n.sqlite}
    nft:
      erc721_factories: ["0x1234"]
`,
			wantErr: "invalid address",
		},
		{
			name: "unknown logging component",
			content: `
downloader:
  rpc_url: http://localhost:8545
  db: {path: d.sqlite}
indexers:
  - {name: nft, type: nft-marketplace, db: {path: n.sqlite}}
logging:
  component_levels:
    reorg-detector: debug
`,
			wantErr: "unknown component",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadFromFile(path)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("NFTINDEXOR_TEST_RPC", "http://node.internal:8545")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
downloader:
  rpc_url: ${NFTINDEXOR_TEST_RPC}
  db: {path: d.sqlite}
indexers:
  - {name: nft, type: nft-marketplace, db: {path: n.sqlite}}
`), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "http://node.internal:8545", cfg.Downloader.RPCURL)
}

func TestLoadFromFile_ComponentLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
downloader:
  rpc_url: http://localhost:8545
  db: {path: d.sqlite}
indexers:
  - {name: nft, type: nft-marketplace, db: {path: n.sqlite}}
logging:
  component_levels:
    metrics: debug
    api: warn
`), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.GetComponentLevel("metrics"))
	require.Equal(t, "warn", cfg.Logging.GetComponentLevel("api"))
}

func TestLoadFromFile_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"downloader": `), 0o600))

	_, err := LoadFromFile(path)
	require.ErrorContains(t, err, "failed to parse JSON config")
}
