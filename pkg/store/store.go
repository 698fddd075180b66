// Package store persists a social graph in BadgerDB.
//
// The snapshot codecs in pkg/snapshot are the portable exchange format;
// Store is the durable working copy. People and directed edges live under
// single-byte key prefixes and are encoded as JSON, so the on-disk layout
// stays debuggable with badger's own tooling.
//
// Key Structure:
//   - People: 0x01 + personID -> JSON(PersonRecord)
//   - Edges:  0x02 + sourceID + 0x00 + targetID -> JSON(edgeValue)
//
// Example:
//
//	st, err := store.Open("./data/socgraph")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	g, err := st.LoadGraph()
//	// ... mutate g ...
//	err = st.SaveGraph(g)
//
// Thread Safety:
//
//	Safe for concurrent use. Badger transactions provide isolation;
//	SaveGraph replaces the whole keyspace atomically from the caller's
//	point of view.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/nickadesina/soc-cli/pkg/graph"
)

// Single-byte key prefixes keep scans cheap and the keyspaces disjoint.
const (
	prefixPerson = byte(0x01)
	prefixEdge   = byte(0x02)
)

const keySeparator = byte(0x00)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is a badger-backed repository for people and edges.
type Store struct {
	db     *badger.DB
	closed atomic.Bool
}

// Options configures a Store.
type Options struct {
	// DataDir is the directory for badger's data files. Required unless
	// InMemory is set.
	DataDir string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool
}

// Open opens (or creates) a store at dataDir with default options.
func Open(dataDir string) (*Store, error) {
	return OpenWithOptions(Options{DataDir: dataDir})
}

// OpenInMemory opens a store that never touches disk.
func OpenInMemory() (*Store, error) {
	return OpenWithOptions(Options{InMemory: true})
}

// OpenWithOptions opens a store with custom configuration.
func OpenWithOptions(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	// Social graphs are small next to badger's defaults. Shrink the
	// buffers so the store behaves in containers.
	badgerOpts = badgerOpts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database. Safe to call twice, and safe
// against concurrent readers: only the first call reaches badger.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// edgeValue is the stored form of one directed edge.
type edgeValue struct {
	Weight   int            `json:"weight"`
	Contexts map[string]int `json:"contexts,omitempty"`
}

func personKey(id string) []byte {
	return append([]byte{prefixPerson}, []byte(id)...)
}

func edgeKey(source, target string) []byte {
	key := make([]byte, 0, 2+len(source)+len(target))
	key = append(key, prefixEdge)
	key = append(key, []byte(source)...)
	key = append(key, keySeparator)
	key = append(key, []byte(target)...)
	return key
}

// splitEdgeKey recovers (source, target) from an edge key.
func splitEdgeKey(key []byte) (string, string, bool) {
	if len(key) < 2 || key[0] != prefixEdge {
		return "", "", false
	}
	rest := key[1:]
	i := bytes.IndexByte(rest, keySeparator)
	if i < 0 {
		return "", "", false
	}
	return string(rest[:i]), string(rest[i+1:]), true
}

// PutPerson writes one person record.
func (s *Store) PutPerson(record *graph.PersonRecord) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode person %q: %w", record.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(personKey(record.ID), data)
	})
}

// GetPerson reads one person record. Returns graph.ErrNotFound when the
// id is absent.
func (s *Store) GetPerson(id string) (*graph.PersonRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var record graph.PersonRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(personKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("person %q: %w", id, graph.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeletePerson removes a person and every directed edge touching them.
func (s *Store) DeletePerson(id string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(personKey(id)); err != nil {
			return err
		}
		// Outgoing edges share a key prefix; incoming edges need a scan.
		stale := func() [][]byte {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			var keys [][]byte
			prefix := []byte{prefixEdge}
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				key := it.Item().KeyCopy(nil)
				source, target, ok := splitEdgeKey(key)
				if !ok {
					continue
				}
				if source == id || target == id {
					keys = append(keys, key)
				}
			}
			return keys
		}()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutEdge writes one directed edge with its contexts.
func (s *Store) PutEdge(source, target string, weight int, contexts map[string]int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(edgeValue{Weight: weight, Contexts: contexts})
	if err != nil {
		return fmt.Errorf("encode edge %s->%s: %w", source, target, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(edgeKey(source, target), data)
	})
}

// DeleteEdge removes one directed edge. Deleting a missing edge is a no-op.
func (s *Store) DeleteEdge(source, target string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(edgeKey(source, target))
	})
}

// LoadGraph hydrates a full in-memory graph from the store.
//
// Edges referring to people that are no longer stored are skipped rather
// than failing the whole load; a crash between a person delete and its
// edge sweep can leave such strays behind.
func (s *Store) LoadGraph() (*graph.Graph, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	g := graph.New()
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		peoplePrefix := []byte{prefixPerson}
		for it.Seek(peoplePrefix); it.ValidForPrefix(peoplePrefix); it.Next() {
			var record graph.PersonRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			if err := g.AddPerson(&record, false); err != nil {
				return err
			}
		}

		edgePrefix := []byte{prefixEdge}
		for it.Seek(edgePrefix); it.ValidForPrefix(edgePrefix); it.Next() {
			source, target, ok := splitEdgeKey(it.Item().Key())
			if !ok {
				continue
			}
			var value edgeValue
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &value)
			}); err != nil {
				return err
			}
			if !g.HasPerson(source) || !g.HasPerson(target) {
				continue
			}
			if err := g.AddConnection(source, target, value.Weight, value.Contexts, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// SaveGraph replaces the stored keyspace with the contents of g.
func (s *Store) SaveGraph(g *graph.Graph) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, person := range g.People() {
		data, err := json.Marshal(person)
		if err != nil {
			return fmt.Errorf("encode person %q: %w", person.ID, err)
		}
		if err := wb.Set(personKey(person.ID), data); err != nil {
			return err
		}
	}
	for _, edge := range g.Edges() {
		data, err := json.Marshal(edgeValue{Weight: edge.Weight, Contexts: edge.Contexts})
		if err != nil {
			return fmt.Errorf("encode edge %s->%s: %w", edge.Source, edge.Target, err)
		}
		if err := wb.Set(edgeKey(edge.Source, edge.Target), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}
