package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/literal"
	"github.com/Sciss/caustic/store"
	"github.com/Sciss/caustic/store/memory"
)

func buildCounter(c *Context) {
	x := c.Select("x")
	c.IfElse(expr.Negate(x.Exists()),
		func() { x.SetField("value", expr.Lit(literal.One)) },
		func() { x.SetField("value", expr.Add(x.Field("value"), expr.Lit(literal.One))) },
	)
}

// TestCounterScenario mirrors spec.md §8's concrete scenario: running the
// same "initialize-or-increment" program 100 times sequentially against
// an empty store leaves x/value at 100.
func TestCounterScenario(t *testing.T) {
	db := memory.New()
	for i := 0; i < 100; i++ {
		c := NewContext()
		buildCounter(c)
		tx, err := c.Finish()
		require.NoError(t, err)

		_, err = store.Execute(db, tx)
		require.NoError(t, err)
	}

	revs, err := db.Get([]string{"x/value"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, revs["x/value"].Value.Real())
}

func TestSelectRejectsReservedDelimiters(t *testing.T) {
	c := NewContext()
	c.Select("bad/key")
	_, err := c.Finish()
	require.Error(t, err)
}

func TestForLoopSumsToTen(t *testing.T) {
	db := memory.New()
	c := NewContext()
	sum := c.Select("sum")
	sum.SetField("value", expr.Lit(literal.Zero))
	c.For(expr.Lit(literal.One), expr.Lit(literal.NewReal(4)), true, func(i expr.Transaction) {
		sum.SetField("value", expr.Add(sum.Field("value"), i))
	})
	tx, err := c.Finish()
	require.NoError(t, err)

	_, err = store.Execute(db, tx)
	require.NoError(t, err)

	revs, err := db.Get([]string{"sum/value"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, revs["sum/value"].Value.Real()) // 1+2+3+4
}

func TestIndexPutAndForeach(t *testing.T) {
	db := memory.New()
	c := NewContext()
	obj := c.Select("list")
	idx := obj.Index("items")
	idx.Put("a", expr.Lit(literal.NewReal(1)))
	idx.Put("b", expr.Lit(literal.NewReal(2)))

	total := c.Select("total")
	total.SetField("value", expr.Lit(literal.Zero))
	c.Foreach(idx, func(addr expr.Transaction) {
		total.SetField("value", expr.Add(total.Field("value"), idx.GetExpr(addr)))
	})

	tx, err := c.Finish()
	require.NoError(t, err)
	_, err = store.Execute(db, tx)
	require.NoError(t, err)

	revs, err := db.Get([]string{"list/items/$addresses"})
	require.NoError(t, err)
	assert.Contains(t, revs["list/items/$addresses"].Value.Text(), "a")
	assert.Contains(t, revs["list/items/$addresses"].Value.Text(), "b")
}

func TestDeleteClearsObject(t *testing.T) {
	db := memory.New()
	c := NewContext()
	obj := c.Select("gone")
	obj.SetField("value", expr.Lit(literal.One))
	tx, err := c.Finish()
	require.NoError(t, err)
	_, err = store.Execute(db, tx)
	require.NoError(t, err)

	c2 := NewContext()
	obj2 := c2.Select("gone")
	c2.Delete(obj2)
	tx2, err := c2.Finish()
	require.NoError(t, err)
	_, err = store.Execute(db, tx2)
	require.NoError(t, err)

	revs, err := db.Get([]string{"gone", "gone/value", "gone/$fields"})
	require.NoError(t, err)
	assert.Same(t, literal.Empty, revs["gone"].Value)
	assert.Same(t, literal.Empty, revs["gone/value"].Value)
	assert.Same(t, literal.Empty, revs["gone/$fields"].Value)
}

func TestStitchBuildsJSONLikeString(t *testing.T) {
	db := memory.New()
	c := NewContext()
	obj := c.Select("doc")
	obj.SetField("name", expr.Lit(literal.NewText("caustic")))
	result := c.Stitch(obj)
	c.Return(result)

	tx, err := c.Finish()
	require.NoError(t, err)
	got, err := store.Execute(db, tx)
	require.NoError(t, err)
	assert.Contains(t, got.Text(), `"key":"doc"`)
	assert.Contains(t, got.Text(), "name")
	assert.Contains(t, got.Text(), "caustic")
}

// TestOverlappingFieldNamesAreBothRegistered guards against a regression
// where membership in $fields was checked with a substring match: since
// "id" is a substring of "valid", registering both fields used to leave
// "id" out of $fields even though K/id was written, making it
// unreachable through Delete/Stitch.
func TestOverlappingFieldNamesAreBothRegistered(t *testing.T) {
	db := memory.New()
	c := NewContext()
	obj := c.Select("rec")
	obj.SetField("valid", expr.Lit(literal.NewReal(1)))
	obj.SetField("id", expr.Lit(literal.NewReal(2)))

	tx, err := c.Finish()
	require.NoError(t, err)
	_, err = store.Execute(db, tx)
	require.NoError(t, err)

	revs, err := db.Get([]string{"rec/$fields"})
	require.NoError(t, err)
	fields := revs["rec/$fields"].Value.Text()
	assert.Contains(t, fields, "valid")
	assert.Contains(t, fields, "id")

	c2 := NewContext()
	obj2 := c2.Select("rec")
	c2.Delete(obj2)
	tx2, err := c2.Finish()
	require.NoError(t, err)
	_, err = store.Execute(db, tx2)
	require.NoError(t, err)

	revs, err = db.Get([]string{"rec/id", "rec/valid"})
	require.NoError(t, err)
	assert.Same(t, literal.Empty, revs["rec/id"].Value)
	assert.Same(t, literal.Empty, revs["rec/valid"].Value)
}

func TestRollbackDropsWrites(t *testing.T) {
	db := memory.New()
	c := NewContext()
	obj := c.Select("r")
	obj.SetField("value", expr.Lit(literal.One))
	c.Rollback(expr.Lit(literal.NewReal(42)))
	tx, err := c.Finish()
	require.NoError(t, err)

	result, err := store.Execute(db, tx)
	require.NoError(t, err)
	assert.Equal(t, 42.0, result.Real())

	revs, err := db.Get([]string{"r/value"})
	require.NoError(t, err)
	assert.Same(t, literal.Nothing, revs["r/value"].Value)
}
