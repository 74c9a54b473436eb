package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goran-ethernal/NFTIndexor/internal/common"
	"github.com/goran-ethernal/NFTIndexor/internal/config"
	"github.com/goran-ethernal/NFTIndexor/internal/db"
	"github.com/goran-ethernal/NFTIndexor/internal/downloader"
	iindexer "github.com/goran-ethernal/NFTIndexor/internal/indexer"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	_ "github.com/goran-ethernal/NFTIndexor/internal/nftindexer" // registers the nft-marketplace type
	"github.com/goran-ethernal/NFTIndexor/internal/rpc"
	"github.com/goran-ethernal/NFTIndexor/pkg/api"
	pkgconfig "github.com/goran-ethernal/NFTIndexor/pkg/config"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║            NFTIndexor v%s              ║
║   NFT and Marketplace Event Indexer       ║
╚═══════════════════════════════════════════╝
`
)

var (
	configPath string
	resetBlock uint64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "NFTIndexor - NFT collection and marketplace indexer",
	Long: `NFTIndexor follows NFT factories, the collections they deploy and
marketplace contracts, and keeps an entity database of collections, tokens,
balances, transfers, listings and bids that is served over a read-only API.`,
	Version: version,
	RunE:    runIndexer,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available indexer types",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Available indexer types:")
		for _, t := range indexer.ListRegistered() {
			fmt.Fprintf(out, "  - %s\n", t)
		}
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		schema := jsonschema.Reflect(&pkgconfig.Config{})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(schema)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move the download checkpoint back so blocks are fetched again",
	Long: `Moves the checkpoint back to --block in backfill mode. Events that were
already applied are skipped on the way forward, so entities are not
double counted.`,
	RunE: runReset,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	resetCmd.Flags().Uint64Var(&resetBlock, "block", 0, "block to resume from")

	rootCmd.AddCommand(listCmd, schemaCmd, resetCmd)
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), banner, version)

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewComponentLoggerFromConfig(common.ComponentCoordinator, cfg.Logging)
	logger.SetDefaultLogger(log)
	componentLog := func(component string) *logger.Logger {
		return logger.NewComponentLoggerFromConfig(component, cfg.Logging)
	}

	ethClient, err := rpc.NewClient(ctx, cfg.Downloader, componentLog(common.ComponentDownloader))
	if err != nil {
		return fmt.Errorf("failed to create RPC client: %w", err)
	}
	log.Infow("connected to node", "rpc_url", cfg.Downloader.RPCURL)

	database, err := db.NewSQLiteDBFromConfig(cfg.Downloader.DB)
	if err != nil {
		ethClient.Close()
		return fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	maintenance := db.NewMaintenanceCoordinator(
		common.ComponentDownloader,
		cfg.Downloader.DB.Path,
		database,
		cfg.Downloader.Maintenance,
		componentLog(common.ComponentMaintenance),
	)

	syncManager, err := downloader.NewSyncManager(database, componentLog(common.ComponentSyncManager), maintenance)
	if err != nil {
		ethClient.Close()
		database.Close()
		return fmt.Errorf("failed to create sync manager: %w", err)
	}

	coordinator := iindexer.NewIndexerCoordinator(componentLog(common.ComponentCoordinator))

	dl, err := downloader.New(cfg.Downloader, ethClient, syncManager, coordinator, componentLog(common.ComponentDownloader))
	if err != nil {
		ethClient.Close()
		syncManager.Close()
		return fmt.Errorf("failed to create downloader: %w", err)
	}
	defer dl.Close()

	defer func() {
		if err := coordinator.Close(); err != nil {
			log.Warnw("failed to close indexers", "error", err)
		}
	}()

	for _, idxCfg := range cfg.Indexers {
		idx, err := indexer.Create(idxCfg, componentLog(common.ComponentNFTIndexer))
		if err != nil {
			return err
		}
		if err := coordinator.RegisterIndexer(idx); err != nil {
			idx.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := coordinator.Start(gctx); err != nil {
		return err
	}
	if err := maintenance.Start(gctx); err != nil {
		return fmt.Errorf("failed to start checkpoint maintenance: %w", err)
	}
	defer maintenance.Stop()

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics, componentLog(common.ComponentMetrics))
		if err := metricsServer.Start(gctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			return metricsServer.Stop(context.Background())
		})
	}

	if cfg.API != nil && cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, coordinator, syncManager, componentLog(common.ComponentAPI))
		g.Go(func() error {
			return apiServer.Start(gctx)
		})
	}

	g.Go(func() error {
		log.Infow("starting NFTIndexor", "indexers", len(cfg.Indexers))
		return dl.Download(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("indexer stopped: %w", err)
	}

	log.Info("NFTIndexor stopped")

	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.NewSQLiteDBFromConfig(cfg.Downloader.DB)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	syncManager, err := downloader.NewSyncManager(
		database, logger.NewComponentLoggerFromConfig(common.ComponentSyncManager, cfg.Logging), nil,
	)
	if err != nil {
		database.Close()
		return err
	}
	defer syncManager.Close()

	if err := syncManager.Reset(resetBlock); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "checkpoint moved to block %d\n", resetBlock)

	return nil
}
