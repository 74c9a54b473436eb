// Package registrar records collections deployed by the configured factories
// and starts watching them.
package registrar

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/events"
	"github.com/goran-ethernal/NFTIndexor/internal/identity"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
)

// Watchers routes future logs of a contract to the handlers of its standard.
type Watchers interface {
	WatchCollection(address common.Address, standard entity.TokenStandard) error
}

// Registrar handles collection created events of every factory standard.
type Registrar struct {
	st       store.Store
	watchers Watchers
	log      *logger.Logger
}

// New creates a registrar.
func New(st store.Store, watchers Watchers, log *logger.Logger) *Registrar {
	return &Registrar{st: st, watchers: watchers, log: log}
}

// HandleCollectionCreated bumps the factory counter, watches the new
// collection and stores it. The watcher is registered before the collection
// row is written.
func (r *Registrar) HandleCollectionCreated(ev *events.CollectionCreated) error {
	factoryID := identity.Address(ev.Address)

	loaded, err := store.LoadOrCreate(r.st, entity.TableFactories, factoryID, func() *entity.Factory {
		return &entity.Factory{
			ID:        factoryID,
			Type:      ev.Standard,
			CreatedAt: ev.Timestamp,
		}
	})
	if err != nil {
		return err
	}

	factory := loaded.Entity
	factory.NFTCount++

	if err := r.st.Save(entity.TableFactories, factory); err != nil {
		return fmt.Errorf("failed to save factory %s: %w", factoryID, err)
	}

	if err := r.watchers.WatchCollection(ev.NFTAddress, ev.Standard); err != nil {
		return fmt.Errorf("failed to watch collection %s: %w", ev.NFTAddress.Hex(), err)
	}
	metrics.WatcherRegisteredInc(string(ev.Standard))

	collection := &entity.Collection{
		ID:                identity.Address(ev.NFTAddress),
		Factory:           factoryID,
		Creator:           ev.Owner,
		Name:              ev.Name,
		Symbol:            ev.Symbol,
		TokenAddress:      ev.NFTAddress,
		TokenType:         ev.Standard,
		ContractCreatedAt: ev.Timestamp,
	}

	if err := r.st.Save(entity.TableCollections, collection); err != nil {
		return fmt.Errorf("failed to save collection %s: %w", collection.ID, err)
	}

	r.log.Infow("collection registered",
		"collection", collection.ID,
		"factory", factoryID,
		"standard", ev.Standard,
		"name", ev.Name,
		"nft_count", factory.NFTCount,
	)

	return nil
}
