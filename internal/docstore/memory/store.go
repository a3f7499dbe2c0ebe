// Package memory provides an in-process docstore.Store. It backs local
// development runs and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jcmexdev/order-desk/internal/docstore"
)

type address struct {
	collection string
	key        string
}

// Store keeps documents in a map. The mutex only makes each Get/Put atomic;
// it never spans a read-modify-write cycle.
type Store struct {
	mu   sync.RWMutex
	docs map[address]docstore.Document
	now  func() time.Time
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		docs: make(map[address]docstore.Document),
		now:  time.Now,
	}
}

func (s *Store) Get(ctx context.Context, collection, key string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[address{collection, key}]
	if !ok {
		return docstore.Document{}, nil
	}

	// Hand out a copy so callers cannot mutate stored bytes.
	data := make([]byte, len(doc.Data))
	copy(data, doc.Data)
	doc.Data = data
	return doc, nil
}

func (s *Store) Put(ctx context.Context, collection, key string, data []byte, expected docstore.Version) (docstore.Version, error) {
	if err := ctx.Err(); err != nil {
		return docstore.NoVersion, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	addr := address{collection, key}
	if expected != docstore.NoVersion && s.docs[addr].Version != expected {
		return docstore.NoVersion, docstore.ErrVersionConflict
	}

	return s.write(addr, data), nil
}

func (s *Store) Create(ctx context.Context, collection, key string, data []byte) (docstore.Version, error) {
	if err := ctx.Err(); err != nil {
		return docstore.NoVersion, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	addr := address{collection, key}
	if _, ok := s.docs[addr]; ok {
		return docstore.NoVersion, docstore.ErrVersionConflict
	}
	return s.write(addr, data), nil
}

// write stores a copy of data under a new version. Callers hold mu.
func (s *Store) write(addr address, data []byte) docstore.Version {
	stored := make([]byte, len(data))
	copy(stored, data)

	v := docstore.NewVersion()
	s.docs[addr] = docstore.Document{
		Data:      stored,
		Version:   v,
		UpdatedAt: s.now().UTC(),
	}
	return v
}
