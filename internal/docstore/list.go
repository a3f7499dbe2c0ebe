package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// VersionedList is the unit of transfer between a store and a repository:
// the decoded items of a list document and the version they were read at.
type VersionedList[T any] struct {
	Items   []T
	Version Version
}

// Load reads a list document and decodes it. A missing document yields an
// empty list tagged NoVersion.
func Load[T any](ctx context.Context, s Store, collection, key string) (VersionedList[T], error) {
	doc, err := s.Get(ctx, collection, key)
	if err != nil {
		return VersionedList[T]{}, fmt.Errorf("docstore: load %s/%s: %w", collection, key, err)
	}

	items := []T{}
	if len(doc.Data) > 0 {
		if err := json.Unmarshal(doc.Data, &items); err != nil {
			return VersionedList[T]{}, fmt.Errorf("docstore: decode %s/%s: %w", collection, key, err)
		}
		if items == nil {
			items = []T{}
		}
	}

	return VersionedList[T]{Items: items, Version: doc.Version}, nil
}

// Save encodes items and writes them conditioned on expected, or
// unconditionally when expected is NoVersion. The returned error wraps
// ErrVersionConflict when another writer got there first.
func Save[T any](ctx context.Context, s Store, collection, key string, items []T, expected Version) (Version, error) {
	data, err := encode(collection, key, items)
	if err != nil {
		return NoVersion, err
	}

	v, err := s.Put(ctx, collection, key, data, expected)
	if err != nil {
		return NoVersion, fmt.Errorf("docstore: save %s/%s: %w", collection, key, err)
	}
	return v, nil
}

// SaveIfUnchanged writes items only if the document is still at read, the
// version they were loaded at. A list loaded from a missing document may
// only create it: if a concurrent writer created it first the call
// conflicts instead of overwriting.
func SaveIfUnchanged[T any](ctx context.Context, s Store, collection, key string, items []T, read Version) (Version, error) {
	if read != NoVersion {
		return Save(ctx, s, collection, key, items, read)
	}

	data, err := encode(collection, key, items)
	if err != nil {
		return NoVersion, err
	}

	v, err := s.Create(ctx, collection, key, data)
	if err != nil {
		return NoVersion, fmt.Errorf("docstore: create %s/%s: %w", collection, key, err)
	}
	return v, nil
}

func encode[T any](collection, key string, items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode %s/%s: %w", collection, key, err)
	}
	return data, nil
}
