// Package memory implements an in-memory store.Database, for tests and
// the demo CLI. It replaces the teacher's llrb.LLRB-backed
// kv/storage.MemStorage with a github.com/google/btree ordered map (the
// rest of the retrieval pack leans on btree over llrb for new code), but
// keeps the same shape: a single mutex-guarded ordered tree of small
// comparable items, with a ReplaceOrInsert/Get-only access pattern.
package memory

import (
	"sync"

	"github.com/google/btree"

	"github.com/Sciss/caustic/interp"
	"github.com/Sciss/caustic/literal"
	"github.com/Sciss/caustic/store"
)

// entry is the btree.Item stored for each key: a revision plus the key it
// belongs to, so Less can order the tree and Get can recover the value.
type entry struct {
	key     string
	version uint64
	value   literal.Literal
}

func (e entry) Less(than btree.Item) bool {
	return e.key < than.(entry).key
}

// Database is a btree-backed store.Database. The zero value is not
// usable; construct with New.
type Database struct {
	mu   sync.Mutex
	tree *btree.BTree
}

// New returns an empty in-memory Database.
func New() *Database {
	return &Database{tree: btree.New(32)}
}

func (d *Database) get(key string) entry {
	item := d.tree.Get(entry{key: key})
	if item == nil {
		return entry{key: key, version: 0, value: literal.Nothing}
	}
	return item.(entry)
}

// Get implements store.Database: every requested key gets an entry, with
// version 0 / literal.Nothing standing in for a key that was never
// written (spec.md §6).
func (d *Database) Get(keys []string) (map[string]interp.Revision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]interp.Revision, len(keys))
	for _, k := range keys {
		e := d.get(k)
		out[k] = interp.Revision{Version: e.version, Value: e.value}
	}
	return out, nil
}

// CPut implements store.Database's atomic conditional multi-put: it
// validates every depends[k] against the tree's current version while
// holding the lock, and only installs changes if all of them match
// (spec.md §4.4). The conflicting key, if any, is reported for cache
// invalidation.
func (d *Database) CPut(depends map[string]uint64, changes map[string]literal.Literal) (store.CommitStatus, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, wantVersion := range depends {
		if d.get(k).version != wantVersion {
			return store.Conflict, k, nil
		}
	}

	for k, v := range changes {
		cur := d.get(k)
		d.tree.ReplaceOrInsert(entry{key: k, version: cur.version + 1, value: v})
	}
	return store.Committed, "", nil
}

// Close releases no resources; it exists to satisfy store.Database.
func (d *Database) Close() error { return nil }

// Len reports the number of distinct keys ever written, for tests.
func (d *Database) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tree.Len()
}
