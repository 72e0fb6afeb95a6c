package dsl

import (
	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/literal"
)

// Object is a handle bound to a key, following the canonical key layout
// of spec.md §6: K itself is an existence marker, K/$fields and
// K/$indices list the object's field and index names, K/<field> holds a
// field value, and K/<index>/$addresses lists an index's addresses.
type Object struct {
	ctx *Context
	Key expr.Transaction
}

// Exists reports whether the object's existence marker has ever been
// written (it reads as literal.Nothing when it hasn't).
func (o *Object) Exists() expr.Transaction {
	return expr.Negate(expr.EqualTx(expr.Read(o.Key), expr.Lit(literal.Nothing)))
}

// Field reads the named field's current value.
func (o *Object) Field(name string) expr.Transaction {
	return expr.Read(o.fieldKey(name))
}

// SetField writes val to the named field, registering the field name in
// $fields the first time it's seen so Delete/Stitch can discover it later,
// and sets the object's existence marker so Exists reports true afterward.
func (o *Object) SetField(name string, val expr.Transaction) {
	nameLit := expr.Lit(literal.NewText(name))
	o.ctx.ensureInList(o.fieldsKey(), nameLit)
	o.ctx.push(expr.Write(o.Key, expr.Lit(literal.True)))
	o.ctx.push(expr.Write(o.fieldKey(name), val))
}

// Index returns a handle to the named index, registering it in $indices
// the first time it's seen.
func (o *Object) Index(name string) *Index {
	o.ctx.ensureInList(o.indicesKey(), expr.Lit(literal.NewText(name)))
	return &Index{obj: o, name: name}
}

func (o *Object) fieldKey(name string) expr.Transaction {
	return expr.Add(o.Key, expr.Lit(literal.NewText("/"+name)))
}

func (o *Object) fieldKeyExpr(nameExpr expr.Transaction) expr.Transaction {
	return expr.Add(o.Key, expr.Add(expr.Lit(literal.NewText("/")), nameExpr))
}

func (o *Object) fieldsKey() expr.Transaction {
	return expr.Add(o.Key, expr.Lit(literal.NewText("/$fields")))
}

func (o *Object) indicesKey() expr.Transaction {
	return expr.Add(o.Key, expr.Lit(literal.NewText("/$indices")))
}

func (o *Object) addressesKeyExpr(indexNameExpr expr.Transaction) expr.Transaction {
	return expr.Add(o.Key, expr.Add(expr.Lit(literal.NewText("/")), expr.Add(indexNameExpr, expr.Lit(literal.NewText("/$addresses")))))
}

func (o *Object) indexItemKeyExpr(indexNameExpr, addrExpr expr.Transaction) expr.Transaction {
	return expr.Add(o.Key, expr.Add(expr.Lit(literal.NewText("/")), expr.Add(indexNameExpr, expr.Add(expr.Lit(literal.NewText("/")), addrExpr))))
}

// Index is a handle to one named index of an Object: an ordered list of
// addresses, each holding one indexed value (spec.md §6).
type Index struct {
	obj  *Object
	name string
}

func (ix *Index) addressesKey() expr.Transaction {
	return expr.Add(ix.obj.Key, expr.Lit(literal.NewText("/"+ix.name+"/$addresses")))
}

func (ix *Index) itemKeyExpr(addr expr.Transaction) expr.Transaction {
	return expr.Add(ix.obj.Key, expr.Add(expr.Lit(literal.NewText("/"+ix.name+"/")), addr))
}

// Put writes val at addr, registering addr in the index's $addresses list
// the first time it's seen.
func (ix *Index) Put(addr string, val expr.Transaction) {
	addrLit := expr.Lit(literal.NewText(addr))
	ix.obj.ctx.ensureInList(ix.addressesKey(), addrLit)
	ix.obj.ctx.push(expr.Write(ix.itemKeyExpr(addrLit), val))
}

// Get reads the value stored at addr.
func (ix *Index) Get(addr string) expr.Transaction {
	return expr.Read(ix.itemKeyExpr(expr.Lit(literal.NewText(addr))))
}

// GetExpr reads the value stored at a dynamically-computed address, e.g.
// the loop variable a Foreach body receives.
func (ix *Index) GetExpr(addr expr.Transaction) expr.Transaction {
	return expr.Read(ix.itemKeyExpr(addr))
}

// ensureInList appends item to the comma list at listKey unless it's
// already present. Membership is checked by walking the list one
// comma-delimited token at a time and comparing each token against item
// with equal, not with a substring match — expr.Contains would treat a
// registered name that happens to be a substring of item (or vice versa,
// e.g. "valid" already present, then "id") as already present and
// silently drop it from the list, making its data unreachable through
// Delete/Stitch/Foreach.
func (c *Context) ensureInList(listKey, item expr.Transaction) {
	found := expr.Lit(literal.NewText("$found"))
	c.push(expr.Store(found, expr.Lit(literal.False)))
	c.walkCommaList("$scan", expr.Read(listKey), func(elem expr.Transaction) {
		c.push(expr.Branch(
			expr.EqualTx(elem, item),
			expr.Store(found, expr.Lit(literal.True)),
			expr.Lit(literal.Nothing),
		))
	})
	c.push(expr.Branch(
		expr.Load(found),
		expr.Lit(literal.Nothing),
		expr.Write(listKey, c.listAppendExpr(listKey, item)),
	))
}

// listAppendExpr builds "existing,item" unless existing is empty, in
// which case the list becomes just item. Emptiness is checked via
// Length rather than comparing against literal.Empty directly, since an
// unset key reads back as literal.Nothing (kind none), not an empty
// text, and equal is strongly typed across kinds (spec.md §4.1) — but
// both coerce to a zero-length string.
func (c *Context) listAppendExpr(listKey, item expr.Transaction) expr.Transaction {
	existing := expr.Read(listKey)
	return expr.Branch(
		expr.EqualTx(expr.Length(existing), expr.Lit(literal.Zero)),
		item,
		expr.Add(existing, expr.Add(expr.Lit(literal.NewText(",")), item)),
	)
}
