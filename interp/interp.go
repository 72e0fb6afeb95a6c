// Package interp implements the transaction interpreter: it walks an
// expr.Transaction tree post-order (with lazy branch/repeat evaluation),
// maintaining the locals/reads/writes/fetch-frontier state spec.md §3-4.3
// describes, batching backend fetches through a Fetcher. This plays the
// role the teacher's kv/transaction/mvcc.MvccTxn plays for a single
// gRPC command: an abstraction over low-level storage that turns
// key/version bookkeeping into a self-contained buffer, applied atomically
// by the caller once interpretation finishes.
package interp

import (
	"sort"
	"strings"

	"github.com/Sciss/caustic/errors"
	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/literal"
)

// Revision is a (version, value) pair read from or destined for the store,
// per spec.md §3.
type Revision struct {
	Version uint64
	Value   literal.Literal
}

// Fetcher performs the batched backend read a fetch-frontier flush issues.
// Implementations must return an entry for every requested key, using
// Revision{0, literal.Nothing} for keys that have never been written
// (spec.md §6).
type Fetcher interface {
	Fetch(keys []string) (map[string]Revision, error)
}

// Context is the per-run interpreter state: spec.md §3's "Snapshot /
// Context". A fresh Context is allocated for every interpretation attempt,
// including retries, so no state survives a Conflict.
type Context struct {
	fetcher Fetcher

	locals map[string]literal.Literal
	reads  map[string]Revision
	writes map[string]literal.Literal

	frontier    map[string]struct{}
	frontierSeq []string

	rolledBack bool
}

func newContext(fetcher Fetcher) *Context {
	return &Context{
		fetcher:  fetcher,
		locals:   make(map[string]literal.Literal),
		reads:    make(map[string]Revision),
		writes:   make(map[string]literal.Literal),
		frontier: make(map[string]struct{}),
	}
}

// Eval interprets tx against fetcher and returns the result literal
// together with the read-set and write-set the transaction accumulated.
// On a *Error of kind BackendTransient/BackendFatal from the fetcher, the
// caller should treat this attempt as failed without inspecting reads or
// writes.
func Eval(tx expr.Transaction, fetcher Fetcher) (literal.Literal, map[string]Revision, map[string]literal.Literal, error) {
	ctx := newContext(fetcher)
	result, err := ctx.eval(tx)
	if err != nil {
		return nil, nil, nil, err
	}
	return result, ctx.reads, ctx.writes, nil
}

func (c *Context) eval(t expr.Transaction) (literal.Literal, error) {
	if lit, ok := expr.AsConst(t); ok {
		return lit, nil
	}
	e, ok := t.(*expr.Expression)
	if !ok {
		return nil, errors.InvariantViolationf("interp: transaction node of unknown type %T", t)
	}

	switch e.Op {
	case expr.OpBranch:
		return c.evalBranch(e)
	case expr.OpRepeat:
		return c.evalRepeat(e)
	case expr.OpCons:
		return c.evalCons(e)
	case expr.OpRead:
		return c.evalRead(e)
	case expr.OpWrite:
		return c.evalWrite(e)
	case expr.OpLoad:
		return c.evalLoad(e)
	case expr.OpStore:
		return c.evalStore(e)
	case expr.OpPrefetch:
		return c.evalPrefetch(e)
	case expr.OpRollback:
		return c.evalRollback(e)
	}

	// Every remaining Op is pure: evaluate operands post-order, then
	// delegate to the same total evaluator the simplifier uses.
	args := make([]literal.Literal, len(e.Args))
	for i, a := range e.Args {
		v, err := c.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return expr.EvalPure(e.Op, args), nil
}

func (c *Context) evalBranch(e *expr.Expression) (literal.Literal, error) {
	cond, err := c.eval(e.Args[0])
	if err != nil {
		return nil, err
	}
	if cond.Flag() {
		return c.eval(e.Args[1])
	}
	return c.eval(e.Args[2])
}

// evalRepeat loops: evaluate the condition, flush the frontier accumulated
// so far (so a prefetch placed before the loop amortizes across
// iterations, per spec.md §4.3), then evaluate the body when the
// condition holds.
func (c *Context) evalRepeat(e *expr.Expression) (literal.Literal, error) {
	cond, body := e.Args[0], e.Args[1]
	for {
		cv, err := c.eval(cond)
		if err != nil {
			return nil, err
		}
		if !cv.Flag() {
			return literal.Nothing, nil
		}
		if err := c.flush(); err != nil {
			return nil, err
		}
		if _, err := c.eval(body); err != nil {
			return nil, err
		}
	}
}

func (c *Context) evalCons(e *expr.Expression) (literal.Literal, error) {
	if _, err := c.eval(e.Args[0]); err != nil {
		return nil, err
	}
	return c.eval(e.Args[1])
}

func (c *Context) evalRead(e *expr.Expression) (literal.Literal, error) {
	key, err := c.keyOf(e.Args[0])
	if err != nil {
		return nil, err
	}
	if v, ok := c.writes[key]; ok {
		return v, nil
	}
	if rev, ok := c.reads[key]; ok {
		return rev.Value, nil
	}
	c.addFrontier(key)
	if err := c.flush(); err != nil {
		return nil, err
	}
	return c.reads[key].Value, nil
}

func (c *Context) evalWrite(e *expr.Expression) (literal.Literal, error) {
	key, err := c.keyOf(e.Args[0])
	if err != nil {
		return nil, err
	}
	val, err := c.eval(e.Args[1])
	if err != nil {
		return nil, err
	}
	if err := c.ensureRead(key); err != nil {
		return nil, err
	}
	if !c.rolledBack {
		c.writes[key] = val
	}
	return val, nil
}

func (c *Context) evalLoad(e *expr.Expression) (literal.Literal, error) {
	name, err := c.keyOf(e.Args[0])
	if err != nil {
		return nil, err
	}
	if v, ok := c.locals[name]; ok {
		return v, nil
	}
	return literal.Nothing, nil
}

func (c *Context) evalStore(e *expr.Expression) (literal.Literal, error) {
	name, err := c.keyOf(e.Args[0])
	if err != nil {
		return nil, err
	}
	val, err := c.eval(e.Args[1])
	if err != nil {
		return nil, err
	}
	c.locals[name] = val
	return val, nil
}

// evalPrefetch splits its text argument on the array delimiter, adds every
// not-yet-read key to the frontier, and flushes once (spec.md §4.3).
func (c *Context) evalPrefetch(e *expr.Expression) (literal.Literal, error) {
	ksLit, err := c.eval(e.Args[0])
	if err != nil {
		return nil, err
	}
	for _, key := range strings.Split(ksLit.Text(), ",") {
		if key == "" {
			continue
		}
		if _, ok := c.reads[key]; ok {
			continue
		}
		c.addFrontier(key)
	}
	if err := c.flush(); err != nil {
		return nil, err
	}
	return literal.Nothing, nil
}

// evalRollback clears the write set and marks the context read-only:
// further write() calls are silently dropped (spec.md §4.3 point 8).
func (c *Context) evalRollback(e *expr.Expression) (literal.Literal, error) {
	val, err := c.eval(e.Args[0])
	if err != nil {
		return nil, err
	}
	for k := range c.writes {
		delete(c.writes, k)
	}
	c.rolledBack = true
	return val, nil
}

func (c *Context) keyOf(t expr.Transaction) (string, error) {
	lit, err := c.eval(t)
	if err != nil {
		return "", err
	}
	return lit.Text(), nil
}

// ensureRead guarantees reads[key] is populated (invariant (i), spec.md
// §3) before a write is recorded, so the eventual cput includes the
// observed version of every written key.
func (c *Context) ensureRead(key string) error {
	if _, ok := c.reads[key]; ok {
		return nil
	}
	if _, ok := c.writes[key]; ok {
		return nil
	}
	c.addFrontier(key)
	return c.flush()
}

func (c *Context) addFrontier(key string) {
	if _, ok := c.frontier[key]; ok {
		return
	}
	c.frontier[key] = struct{}{}
	c.frontierSeq = append(c.frontierSeq, key)
}

// flush issues one batched Fetch for every key accumulated in the
// frontier. Keys are sorted before the call so a Fetcher (and any test
// asserting on batch contents) sees a deterministic order.
func (c *Context) flush() error {
	if len(c.frontierSeq) == 0 {
		return nil
	}
	keys := append([]string(nil), c.frontierSeq...)
	sort.Strings(keys)

	revs, err := c.fetcher.Fetch(keys)
	if err != nil {
		return errors.WrapTransient(err)
	}
	for _, k := range keys {
		rev, ok := revs[k]
		if !ok {
			rev = Revision{Version: 0, Value: literal.Nothing}
		}
		c.reads[k] = rev
		delete(c.frontier, k)
	}
	c.frontierSeq = c.frontierSeq[:0]
	return nil
}
