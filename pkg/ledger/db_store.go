package ledger

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const readCacheSize = 4096

// DBStore is a goleveldb-backed Store with an LRU read cache in front of
// it. Commits go through a leveldb batch, so a write set lands on disk
// all-or-nothing.
type DBStore struct {
	db    *leveldb.DB
	cache *lru.Cache
}

func OpenDBStore(path string) (*DBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db at %s: %w", path, err)
	}

	cache, err := lru.New(readCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DBStore{
		db:    db,
		cache: cache,
	}, nil
}

func (s *DBStore) Get(key []byte) ([]byte, bool, error) {
	if cached, ok := s.cache.Get(string(key)); ok {
		return cached.([]byte), true, nil
	}

	value, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.cache.Add(string(key), value)
	return value, true, nil
}

func (s *DBStore) Commit(writes map[string][]byte) error {
	batch := new(leveldb.Batch)
	for key, value := range writes {
		batch.Put([]byte(key), value)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return err
	}
	// Refresh the cache only after the batch is durable.
	for key, value := range writes {
		s.cache.Add(key, value)
	}
	return nil
}

func (s *DBStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *DBStore) Compact() error {
	return s.db.CompactRange(util.Range{})
}

func (s *DBStore) Close() error {
	s.cache.Purge()
	return s.db.Close()
}
