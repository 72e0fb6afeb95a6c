package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sciss/caustic/errors"
	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/literal"
)

// fakeFetcher simulates a backend's get(): it records every batch it
// receives so tests can assert on fetch-batching behavior (spec.md §4.3).
type fakeFetcher struct {
	revisions map[string]Revision
	batches   [][]string
	err       error
}

func newFakeFetcher(revs map[string]Revision) *fakeFetcher {
	return &fakeFetcher{revisions: revs}
}

func (f *fakeFetcher) Fetch(keys []string) (map[string]Revision, error) {
	f.batches = append(f.batches, append([]string(nil), keys...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]Revision, len(keys))
	for _, k := range keys {
		if rev, ok := f.revisions[k]; ok {
			out[k] = rev
		} else {
			out[k] = Revision{Version: 0, Value: literal.Nothing}
		}
	}
	return out, nil
}

func text(s string) expr.Transaction { return expr.Lit(literal.NewText(s)) }
func real(f float64) expr.Transaction { return expr.Lit(literal.NewReal(f)) }

func TestReadYourWrites(t *testing.T) {
	tree := expr.Cons(
		expr.Write(text("k"), real(1)),
		expr.Read(text("k")),
	)
	fetcher := newFakeFetcher(nil)
	result, reads, writes, err := Eval(tree, fetcher)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Real())
	assert.Contains(t, reads, "k")
	assert.Equal(t, 1.0, writes["k"].Real())
}

func TestReadMissingKeyYieldsNone(t *testing.T) {
	result, _, _, err := Eval(expr.Read(text("absent")), newFakeFetcher(nil))
	require.NoError(t, err)
	assert.Same(t, literal.Nothing, result)
}

func TestWriteRecordsReadVersion(t *testing.T) {
	fetcher := newFakeFetcher(map[string]Revision{
		"k": {Version: 7, Value: literal.NewReal(3)},
	})
	_, reads, writes, err := Eval(expr.Write(text("k"), real(9)), fetcher)
	require.NoError(t, err)
	require.Contains(t, reads, "k")
	assert.EqualValues(t, 7, reads["k"].Version)
	assert.Equal(t, 9.0, writes["k"].Real())
}

func TestRollbackEmptiesWriteSet(t *testing.T) {
	tree := expr.Cons(
		expr.Write(text("k"), real(1)),
		expr.Rollback(real(42)),
	)
	result, _, writes, err := Eval(tree, newFakeFetcher(nil))
	require.NoError(t, err)
	assert.Equal(t, 42.0, result.Real())
	assert.Empty(t, writes)
}

func TestRollbackSuppressesFurtherWrites(t *testing.T) {
	tree := expr.Cons(
		expr.Rollback(real(0)),
		expr.Write(text("k"), real(1)),
	)
	_, _, writes, err := Eval(tree, newFakeFetcher(nil))
	require.NoError(t, err)
	assert.Empty(t, writes, "writes issued after rollback must be silently dropped")
}

func TestPrefetchSafetyProducesSameResultAndWrites(t *testing.T) {
	revs := map[string]Revision{"a": {Version: 1, Value: literal.NewReal(5)}}

	withoutPrefetch := expr.Cons(expr.Write(text("a"), expr.Add(expr.Read(text("a")), real(1))), expr.Read(text("a")))
	withPrefetch := expr.Cons(
		expr.Prefetch(text("a")),
		expr.Cons(expr.Write(text("a"), expr.Add(expr.Read(text("a")), real(1))), expr.Read(text("a"))),
	)

	r1, _, w1, err := Eval(withoutPrefetch, newFakeFetcher(revs))
	require.NoError(t, err)
	r2, _, w2, err := Eval(withPrefetch, newFakeFetcher(revs))
	require.NoError(t, err)

	assert.Equal(t, r1.Real(), r2.Real())
	assert.Equal(t, w1["a"].Real(), w2["a"].Real())
}

func TestFetchBatchingCoalescesFrontier(t *testing.T) {
	fetcher := newFakeFetcher(map[string]Revision{
		"a": {Value: literal.NewReal(1)},
		"b": {Value: literal.NewReal(2)},
	})
	tree := expr.Prefetch(text("a,b"))
	tree = expr.Cons(tree, expr.Add(expr.Read(text("a")), expr.Read(text("b"))))
	result, _, _, err := Eval(tree, fetcher)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result.Real())
	require.Len(t, fetcher.batches, 1, "prefetch should batch both keys into one Fetch call")
	assert.ElementsMatch(t, []string{"a", "b"}, fetcher.batches[0])
}

func TestRepeatCounter(t *testing.T) {
	// store($i, 0); repeat($i < 5, store($i, $i+1)); load($i)
	iName := text("i")
	tree := expr.Cons(
		expr.Store(iName, real(0)),
		expr.Cons(
			expr.Repeat(
				expr.LessThan(expr.Load(iName), real(5)),
				expr.Store(iName, expr.Add(expr.Load(iName), real(1))),
			),
			expr.Load(iName),
		),
	)
	result, _, _, err := Eval(tree, newFakeFetcher(nil))
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.Real())
}

func TestBranchEvaluatesOnlyTakenArm(t *testing.T) {
	// The condition loads an unset local (none, coerced to 0), so it is not
	// a literal and the branch node reaches the interpreter unfolded.
	tree := expr.Branch(expr.LessThan(expr.Load(text("c")), real(0)), expr.Read(text("never")), real(9))
	result, reads, _, err := Eval(tree, newFakeFetcher(nil))
	require.NoError(t, err)
	assert.Equal(t, 9.0, result.Real())
	assert.NotContains(t, reads, "never")
}

func TestBackendErrorIsTransient(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	fetcher.err = assert.AnError
	_, _, _, err := Eval(expr.Read(text("k")), fetcher)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindBackendTransient))
}
