// Package store is the entity persistence façade used by the event handlers.
package store

import (
	"errors"
	"fmt"
)

// ErrInvalidEntity is returned when an entity cannot be mapped to a row.
var ErrInvalidEntity = errors.New("invalid entity")

// Store loads and saves entities keyed by table and string id. Writes are
// visible to later loads on the same Store immediately.
type Store interface {
	// Load fills dst with the row id of table. It reports false without
	// touching dst when the row does not exist.
	Load(table, id string, dst any) (bool, error)
	// Save upserts entity into table, keyed by its id field.
	Save(table string, entity any) error
	// Remove deletes the row id of table. Removing an absent row is a no-op.
	Remove(table, id string) error
}

// Loaded is the result of LoadOrCreate. Fresh is true when Entity was built
// by the initializer instead of being read from the store. Callers branch
// once on Fresh to decide between setting and adjusting fields.
type Loaded[T any] struct {
	Entity *T
	Fresh  bool
}

// Get returns the row id of table, or nil when it does not exist.
func Get[T any](s Store, table, id string) (*T, error) {
	dst := new(T)

	found, err := s.Load(table, id, dst)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", table, id, err)
	}
	if !found {
		return nil, nil
	}

	return dst, nil
}

// LoadOrCreate returns the stored row id of table or, when absent, the value
// built by init. The fresh value is not saved.
func LoadOrCreate[T any](s Store, table, id string, init func() *T) (Loaded[T], error) {
	existing, err := Get[T](s, table, id)
	if err != nil {
		return Loaded[T]{}, err
	}
	if existing != nil {
		return Loaded[T]{Entity: existing}, nil
	}

	return Loaded[T]{Entity: init(), Fresh: true}, nil
}

// Exists reports whether the row id of table exists.
func Exists[T any](s Store, table, id string) (bool, error) {
	found, err := s.Load(table, id, new(T))
	if err != nil {
		return false, fmt.Errorf("failed to load %s %s: %w", table, id, err)
	}

	return found, nil
}
