package common

const (
	ComponentDownloader  = "downloader"
	ComponentLogFetcher  = "log-fetcher"
	ComponentSyncManager = "sync-manager"
	ComponentCoordinator = "coordinator"
	ComponentNFTIndexer  = "nft-indexer"
	ComponentRegistrar   = "registrar"
	ComponentReconciler  = "reconciler"
	ComponentMarketplace = "marketplace"
	ComponentLedger      = "ledger"
	ComponentStore       = "store"
	ComponentMaintenance = "maintenance"
	ComponentAPI         = "api"
	ComponentMetrics     = "metrics"
)

// AllComponents is the set of component names accepted in
// logging.component_levels.
var AllComponents = map[string]struct{}{
	ComponentDownloader:  {},
	ComponentLogFetcher:  {},
	ComponentSyncManager: {},
	ComponentCoordinator: {},
	ComponentNFTIndexer:  {},
	ComponentRegistrar:   {},
	ComponentReconciler:  {},
	ComponentMarketplace: {},
	ComponentLedger:      {},
	ComponentStore:       {},
	ComponentMaintenance: {},
	ComponentAPI:         {},
	ComponentMetrics:     {},
}
