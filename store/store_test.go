package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/interp"
	"github.com/Sciss/caustic/literal"
)

// fakeDB is a minimal in-process Database used to exercise Execute's
// retry/conflict behavior without depending on store/memory.
type fakeDB struct {
	mu       sync.Mutex
	versions map[string]uint64
	values   map[string]literal.Literal
	onCPut   func() // invoked between read and write of one CPut call, to inject races
}

func newFakeDB() *fakeDB {
	return &fakeDB{versions: map[string]uint64{}, values: map[string]literal.Literal{}}
}

func (d *fakeDB) Get(keys []string) (map[string]interp.Revision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]interp.Revision, len(keys))
	for _, k := range keys {
		v, ok := d.values[k]
		if !ok {
			out[k] = interp.Revision{Version: 0, Value: literal.Nothing}
			continue
		}
		out[k] = interp.Revision{Version: d.versions[k], Value: v}
	}
	return out, nil
}

func (d *fakeDB) CPut(depends map[string]uint64, changes map[string]literal.Literal) (CommitStatus, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.onCPut != nil {
		d.onCPut()
	}
	for k, v := range depends {
		if d.versions[k] != v {
			return Conflict, k, nil
		}
	}
	for k, v := range changes {
		d.versions[k]++
		d.values[k] = v
	}
	return Committed, "", nil
}

func (d *fakeDB) Close() error { return nil }

func TestExecuteReadYourWrites(t *testing.T) {
	db := newFakeDB()
	tree := expr.Cons(
		expr.Write(expr.Lit(literal.NewText("x")), expr.Lit(literal.NewReal(1))),
		expr.Read(expr.Lit(literal.NewText("x"))),
	)
	result, err := Execute(db, tree)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Real())
}

func TestExecuteRetriesOnConflict(t *testing.T) {
	db := newFakeDB()
	db.values["x"] = literal.NewReal(0)
	db.versions["x"] = 1

	attempts := 0
	db.onCPut = func() {
		attempts++
		if attempts == 1 {
			// simulate a concurrent writer sneaking in between this
			// transaction's read and its commit attempt.
			db.versions["x"]++
			db.values["x"] = literal.NewReal(99)
		}
	}

	tree := expr.Write(
		expr.Lit(literal.NewText("x")),
		expr.Add(expr.Read(expr.Lit(literal.NewText("x"))), expr.Lit(literal.NewReal(1))),
	)
	result, err := Execute(db, tree)
	require.NoError(t, err)
	// Second attempt observes the concurrent writer's value (99) and adds 1.
	assert.Equal(t, 100.0, result.Real())
	assert.Equal(t, 2, attempts)
}

func TestExecuteCounterHundredTimes(t *testing.T) {
	db := newFakeDB()
	key := expr.Lit(literal.NewText("value"))
	for i := 0; i < 100; i++ {
		tree := expr.Write(key, expr.Add(expr.Read(key), expr.Lit(literal.NewReal(1))))
		_, err := Execute(db, tree)
		require.NoError(t, err)
	}
	assert.Equal(t, 100.0, db.values["value"].Real())
}
