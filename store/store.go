// Package store implements the optimistic commit protocol spec.md §4.4
// describes: snapshot, interpret, conditional multi-put, retry on
// conflict. It plays the role the teacher's kv/transaction/commands.Command
// plus RunCommand play together — a storage-independent frontend that
// turns an expression tree into a sequence of reads and a single atomic
// write — generalized from one gRPC command per call to any
// expr.Transaction.
package store

import (
	"time"

	"github.com/jpillora/backoff"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/Sciss/caustic/errors"
	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/interp"
	"github.com/Sciss/caustic/literal"
)

// CommitStatus is the outcome of a CPut call.
type CommitStatus int

const (
	Committed CommitStatus = iota
	Conflict
)

func (s CommitStatus) String() string {
	if s == Committed {
		return "Committed"
	}
	return "Conflict"
}

// Database is the only backend contract the core runtime requires
// (spec.md §6). Get must return an entry for every requested key, using
// Revision{0, literal.Nothing} for keys never written. CPut must be
// atomic: it succeeds only if every depends[k] matches k's current
// version, in which case every changes[k] is installed under version+1.
type Database interface {
	Get(keys []string) (map[string]interp.Revision, error)
	CPut(depends map[string]uint64, changes map[string]literal.Literal) (CommitStatus, string, error)
	Close() error
}

// Cache is consulted on Get and written through on a committed CPut, per
// spec.md §6. Fetch returns only the keys it has cached; Update and
// Invalidate are best-effort and never return an error.
type Cache interface {
	Fetch(keys []string) map[string]interp.Revision
	Update(revisions map[string]interp.Revision)
	Invalidate(keys []string)
}

type dbFetcher struct {
	db    Database
	cache Cache
}

// Fetch satisfies interp.Fetcher, consulting the cache first and filling
// any gap with a single backend Get, per spec.md §6.
func (f *dbFetcher) Fetch(keys []string) (map[string]interp.Revision, error) {
	out := make(map[string]interp.Revision, len(keys))
	var miss []string
	if f.cache != nil {
		for k, rev := range f.cache.Fetch(keys) {
			out[k] = rev
		}
	}
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			miss = append(miss, k)
		}
	}
	if len(miss) == 0 {
		return out, nil
	}
	fetched, err := f.db.Get(miss)
	if err != nil {
		return nil, err
	}
	for k, rev := range fetched {
		out[k] = rev
	}
	if f.cache != nil {
		f.cache.Update(fetched)
	}
	return out, nil
}

// Execute runs the full protocol: allocate a fresh Context, interpret tx,
// attempt the conditional commit, and retry unboundedly on Conflict
// (spec.md §4.4, §7 — "commit conflicts are not errors"). A retryable
// backend failure (interp.Fetcher's Fetch wraps these as
// errors.KindBackendTransient) is NOT retried here; that is Schema's job.
func Execute(db Database, tx expr.Transaction) (literal.Literal, error) {
	return ExecuteWithCache(db, nil, tx)
}

// ExecuteWithCache is Execute with an explicit Cache layered in front of
// the Database, per spec.md §6.
func ExecuteWithCache(db Database, cache Cache, tx expr.Transaction) (literal.Literal, error) {
	fetcher := &dbFetcher{db: db, cache: cache}
	for {
		result, reads, writes, err := interp.Eval(tx, fetcher)
		if err != nil {
			return nil, err
		}

		depends := make(map[string]uint64, len(reads))
		for k, rev := range reads {
			depends[k] = rev.Version
		}

		status, conflictKey, err := db.CPut(depends, writes)
		if err != nil {
			return nil, err
		}
		switch status {
		case Committed:
			if cache != nil {
				committed := make(map[string]interp.Revision, len(writes))
				for k, v := range writes {
					committed[k] = interp.Revision{Version: depends[k] + 1, Value: v}
				}
				cache.Update(committed)
			}
			return result, nil
		case Conflict:
			if cache != nil {
				cache.Invalidate([]string{conflictKey})
			}
			log.Debug("caustic: commit conflict, retrying", zap.String("key", conflictKey))
			continue
		}
	}
}

// Schema wraps a Database call with a scheduled retry budget: a build
// function runs against the Database, and on a BackendTransient error the
// call retries after a delay drawn from backoffs, the same "optimistic
// lock failure, try again" shape as the teacher pack's
// nbs.NomsBlockStore.Commit retry loop. Retries exhausted surfaces the
// last error as errors.KindRetriesExhausted.
func Schema(backoffs *backoff.Backoff, build func(db Database) (literal.Literal, error)) func(db Database) (literal.Literal, error) {
	return func(db Database) (literal.Literal, error) {
		b := backoffs
		if b == nil {
			b = &backoff.Backoff{Min: 10 * time.Millisecond, Max: 2 * time.Second, Factor: 2}
		}
		b.Reset()
		var lastErr error
		for {
			result, err := build(db)
			if err == nil {
				return result, nil
			}
			if !errors.Is(err, errors.KindBackendTransient) {
				return nil, err
			}
			lastErr = err
			d := b.Duration()
			if b.Attempt() > float64(maxSchemaRetries) {
				return nil, errors.RetriesExhausted(lastErr)
			}
			log.Warn("caustic: transient backend error, retrying", zap.Error(err), zap.Duration("after", d))
			time.Sleep(d)
		}
	}
}

// maxSchemaRetries bounds the Schema retry budget, whether the caller
// passes a backoff schedule or relies on the default. jpillora/backoff itself has no built-in
// attempt cap, so Schema enforces one to satisfy spec.md §4.4's "a finite
// sequence of delays".
const maxSchemaRetries = 8
