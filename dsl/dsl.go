// Package dsl implements the embedded transaction-building surface
// spec.md §4.5 describes: an explicit Context that accumulates
// expr.Transaction nodes as its user calls imperative-looking combinators
// (If/Else, While, For, Foreach, Select, Delete, Stitch, Return,
// Rollback). Unlike the coroutine-style DSLs the design notes in spec.md
// §9 warn against, the Context here is an explicit value threaded by the
// caller — there is no package-level or goroutine-local ambient state —
// following the "explicit builder with push/capture/begin_scope" shape §9
// recommends, built in the style of the teacher's
// kv/transaction/commands.CommandBase: a small struct with default
// behavior that a caller composes by calling methods, not by subclassing.
//
// Combinators never return an error on every call — that would make the
// host-language control flow they're meant to mimic unreadable. Instead
// errors (a reserved character in a user key, a loop nested deeper than
// the four supported slots) accumulate on the Context and surface from
// Finish, the same deferred-error-check shape bufio.Scanner's Err() uses.
package dsl

import (
	"strings"

	"github.com/Sciss/caustic/errors"
	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/literal"
)

// loopLocals is the fixed, small set of indexed locals spec.md §4.5
// reserves for loop counters: $i, $j, $k, $l. A fifth level of nesting is
// not supported.
var loopLocals = []string{"$i", "$j", "$k", "$l"}

// Context accumulates the expression tree a transaction program builds.
// The zero value is not usable; construct with NewContext.
type Context struct {
	txn       expr.Transaction
	loopDepth int
	err       error
}

// NewContext returns an empty Context whose built-up transaction is
// initially the no-op literal none.
func NewContext() *Context {
	return &Context{txn: expr.Lit(literal.Nothing)}
}

// Finish returns the simplified transaction tree built so far, or the
// first error any combinator call accumulated.
func (c *Context) Finish() (expr.Transaction, error) {
	if c.err != nil {
		return nil, c.err
	}
	return expr.Simplify(c.txn), nil
}

func (c *Context) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// push sequences e after the current transaction for effect, making e's
// value the new tail (spec.md §4.5's implicit "current txn").
func (c *Context) push(e expr.Transaction) {
	c.txn = expr.Cons(c.txn, e)
}

// capture runs body against a scratch tail and returns what it built,
// restoring the outer tail afterward — the "capture(block) -> subtree"
// primitive spec.md §9 asks for, used by every structured combinator
// below to build a branch/loop body in isolation.
func (c *Context) capture(body func()) expr.Transaction {
	saved := c.txn
	c.txn = expr.Lit(literal.Nothing)
	body()
	result := c.txn
	c.txn = saved
	return result
}

func (c *Context) nextLoopLocal() string {
	if c.loopDepth >= len(loopLocals) {
		c.fail(errors.InvariantViolationf("dsl: loop nesting exceeds the supported depth of %d", len(loopLocals)))
		return loopLocals[len(loopLocals)-1]
	}
	name := loopLocals[c.loopDepth]
	c.loopDepth++
	return name
}

func (c *Context) popLoopLocal() {
	if c.loopDepth > 0 {
		c.loopDepth--
	}
}

func validateKey(key string) error {
	if key == "" {
		return errors.InvariantViolationf("dsl: key must not be empty")
	}
	if strings.ContainsAny(key, "/,") {
		return errors.InvariantViolationf("dsl: key %q contains a reserved delimiter", key)
	}
	return nil
}

// Select binds an Object handle to a literal key, validating it against
// the reserved delimiters (spec.md §6) immediately.
func (c *Context) Select(key string) *Object {
	if err := validateKey(key); err != nil {
		c.fail(err)
	}
	return &Object{ctx: c, Key: expr.Lit(literal.NewText(key))}
}

// SelectVar binds an Object handle to whatever key is currently stored in
// local variable localName — the "Select(var)" form of spec.md §4.5.
func (c *Context) SelectVar(localName string) *Object {
	return &Object{ctx: c, Key: expr.Load(expr.Lit(literal.NewText(localName)))}
}

// If captures then's body and emits a branch with an empty else arm.
func (c *Context) If(cond expr.Transaction, then func()) {
	c.IfElse(cond, then, nil)
}

// IfElse is If(c){...} Else {...}: both arms are captured independently
// before the branch node is emitted, so neither runs at build time.
func (c *Context) IfElse(cond expr.Transaction, then, els func()) {
	t := c.capture(then)
	f := expr.Transaction(expr.Lit(literal.Nothing))
	if els != nil {
		f = c.capture(els)
	}
	c.push(expr.Branch(cond, t, f))
}

// While captures body once and emits a repeat node; cond is re-evaluated
// by the interpreter on every iteration, not by the builder.
func (c *Context) While(cond expr.Transaction, body func()) {
	b := c.capture(body)
	c.push(expr.Repeat(cond, b))
}

// For walks a loop counter from lo to hi, inclusive or exclusive per the
// inclusive flag (spec.md §4.5), using one of the four reserved loop
// locals. body receives an expression that loads the current counter.
func (c *Context) For(lo, hi expr.Transaction, inclusive bool, body func(i expr.Transaction)) {
	local := c.nextLoopLocal()
	defer c.popLoopLocal()

	nameLit := expr.Lit(literal.NewText(local))
	c.push(expr.Store(nameLit, lo))

	var cond expr.Transaction
	if inclusive {
		cond = expr.Negate(expr.LessThan(hi, expr.Load(nameLit)))
	} else {
		cond = expr.LessThan(expr.Load(nameLit), hi)
	}

	b := c.capture(func() {
		body(expr.Load(nameLit))
		c.push(expr.Store(nameLit, expr.Add(expr.Load(nameLit), expr.Lit(literal.One))))
	})
	c.push(expr.Repeat(cond, b))
}

// Foreach walks every address currently in idx's $addresses list,
// pre-prefetching each address's indexed value before running body, per
// spec.md §4.5.
func (c *Context) Foreach(idx *Index, body func(address expr.Transaction)) {
	c.walkCommaList("$addresses", expr.Read(idx.addressesKey()), func(addr expr.Transaction) {
		c.push(expr.Prefetch(idx.itemKeyExpr(addr)))
		body(addr)
	})
}

// Return sets the transaction's tail to first, or to a literal-concatenated
// JSON array of first and rest when more than one value is returned
// (spec.md §4.5).
func (c *Context) Return(first expr.Transaction, rest ...expr.Transaction) {
	if len(rest) == 0 {
		c.txn = expr.Cons(c.txn, first)
		return
	}
	parts := append([]expr.Transaction{first}, rest...)
	result := expr.Transaction(expr.Lit(literal.NewText("[")))
	for i, p := range parts {
		if i > 0 {
			result = expr.Add(result, expr.Lit(literal.NewText(",")))
		}
		result = expr.Add(result, p)
	}
	result = expr.Add(result, expr.Lit(literal.NewText("]")))
	c.txn = expr.Cons(c.txn, result)
}

// Rollback emits a rollback node as the new tail, discarding this
// transaction's writes at commit time (spec.md §4.5).
func (c *Context) Rollback(value expr.Transaction) {
	c.push(expr.Rollback(value))
}

// walkCommaList is the shared loop shape behind Foreach, Delete, and
// Stitch: it stores listValue into the named scratch local, then repeats
// while any characters remain, peeling one comma-delimited item per
// iteration and handing it to onItem. scratch must be one of the fixed
// object-traversal locals ($fields, $indices, $addresses, and $scan for
// ensureInList) so nested walks (Delete's per-index address walk inside
// its index walk) use distinct storage.
func (c *Context) walkCommaList(scratch string, listValue expr.Transaction, onItem func(item expr.Transaction)) {
	itemLocalName := c.nextLoopLocal()
	defer c.popLoopLocal()

	remaining := expr.Lit(literal.NewText(scratch))
	c.push(expr.Store(remaining, listValue))

	cond := expr.LessThan(expr.Lit(literal.Zero), expr.Length(expr.Load(remaining)))
	item := expr.Lit(literal.NewText(itemLocalName))

	body := c.capture(func() {
		comma := expr.IndexOf(expr.Load(remaining), expr.Lit(literal.NewText(",")))
		hasComma := expr.Negate(expr.EqualTx(comma, expr.Lit(literal.NewReal(-1))))
		itemEnd := expr.Branch(hasComma, comma, expr.Length(expr.Load(remaining)))

		c.push(expr.Store(item, expr.Slice(expr.Load(remaining), expr.Lit(literal.Zero), itemEnd)))

		rest := expr.Branch(hasComma,
			expr.Slice(expr.Load(remaining), expr.Add(itemEnd, expr.Lit(literal.One)), expr.Length(expr.Load(remaining))),
			expr.Lit(literal.Empty))

		onItem(expr.Load(item))
		c.push(expr.Store(remaining, rest))
	})
	c.push(expr.Repeat(cond, body))
}

// Delete walks obj's fields and every index's addresses, writing empty
// everywhere, then clears the $fields/$indices markers and the existence
// key itself (spec.md §4.5).
func (c *Context) Delete(obj *Object) {
	c.walkCommaList("$fields", expr.Read(obj.fieldsKey()), func(field expr.Transaction) {
		c.push(expr.Write(obj.fieldKeyExpr(field), expr.Lit(literal.Empty)))
	})
	c.walkCommaList("$indices", expr.Read(obj.indicesKey()), func(indexName expr.Transaction) {
		addresses := obj.addressesKeyExpr(indexName)
		c.walkCommaList("$addresses", expr.Read(addresses), func(addr expr.Transaction) {
			c.push(expr.Write(obj.indexItemKeyExpr(indexName, addr), expr.Lit(literal.Empty)))
		})
	})
	c.push(expr.Write(obj.fieldsKey(), expr.Lit(literal.Empty)))
	c.push(expr.Write(obj.indicesKey(), expr.Lit(literal.Empty)))
	c.push(expr.Write(obj.Key, expr.Lit(literal.Empty)))
}

// Stitch builds a string-concatenation expression that renders obj as a
// JSON-shaped object: {"key":"...",field:val,index:[...]}. It is a
// best-effort rendering in the spirit of spec.md §4.5's example, not a
// strict JSON encoder (values are not quote-escaped); the point is that
// the string is built entirely by the emitted expression, with no host
// read of the object's current fields.
func (c *Context) Stitch(obj *Object) expr.Transaction {
	jsonLocal := expr.Lit(literal.NewText("$json"))
	c.push(expr.Store(jsonLocal, expr.Add(expr.Add(expr.Lit(literal.NewText(`{"key":"`)), obj.Key), expr.Lit(literal.NewText(`"`)))))

	c.walkCommaList("$fields", expr.Read(obj.fieldsKey()), func(field expr.Transaction) {
		addition := expr.Add(expr.Add(expr.Add(expr.Lit(literal.NewText(",")), field), expr.Lit(literal.NewText(":"))), expr.Read(obj.fieldKeyExpr(field)))
		c.push(expr.Store(jsonLocal, expr.Add(expr.Load(jsonLocal), addition)))
	})

	c.walkCommaList("$indices", expr.Read(obj.indicesKey()), func(indexName expr.Transaction) {
		c.push(expr.Store(jsonLocal, expr.Add(expr.Load(jsonLocal), expr.Add(expr.Add(expr.Lit(literal.NewText(",")), indexName), expr.Lit(literal.NewText(":["))))))
		addresses := obj.addressesKeyExpr(indexName)
		c.walkCommaList("$addresses", expr.Read(addresses), func(addr expr.Transaction) {
			value := expr.Read(obj.indexItemKeyExpr(indexName, addr))
			c.push(expr.Store(jsonLocal, expr.Add(expr.Load(jsonLocal), expr.Add(expr.Lit(literal.NewText(",")), value))))
		})
		c.push(expr.Store(jsonLocal, expr.Add(expr.Load(jsonLocal), expr.Lit(literal.NewText("]")))))
	})

	c.push(expr.Store(jsonLocal, expr.Add(expr.Load(jsonLocal), expr.Lit(literal.NewText("}")))))
	return expr.Load(jsonLocal)
}
