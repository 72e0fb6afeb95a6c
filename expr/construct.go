// Package expr implements the algebraic transaction representation: the
// closed operator set, the Transaction/Expression tree, and the
// constant-folding simplifier that every smart constructor applies at
// construction time, per spec.md §4.2.
package expr

import (
	"fmt"

	"github.com/Sciss/caustic/literal"
)

// node builds an Expression with the given operator and operands,
// constant-folding to a Const leaf when every operand is already a Const
// and the operator is pure. This is the generic smart constructor that the
// per-operator helpers below delegate to; it is the simplifier.
func node(op Op, args ...Transaction) Transaction {
	lits := make([]literal.Literal, len(args))
	allConst := true
	for i, a := range args {
		l, ok := AsConst(a)
		if !ok {
			allConst = false
			break
		}
		lits[i] = l
	}
	if allConst {
		return Lit(EvalPure(op, lits))
	}
	return &Expression{Op: op, Args: args}
}

// Arithmetic.

func Add(a, b Transaction) Transaction { return node(OpAdd, a, b) }
func Sub(a, b Transaction) Transaction { return node(OpSub, a, b) }
func Mul(a, b Transaction) Transaction { return node(OpMul, a, b) }
func Div(a, b Transaction) Transaction { return node(OpDiv, a, b) }
func Mod(a, b Transaction) Transaction { return node(OpMod, a, b) }
func Pow(a, b Transaction) Transaction { return node(OpPow, a, b) }
func Log(a Transaction) Transaction    { return node(OpLog, a) }
func Sin(a Transaction) Transaction    { return node(OpSin, a) }
func Cos(a Transaction) Transaction    { return node(OpCos, a) }
func Floor(a Transaction) Transaction  { return node(OpFloor, a) }

// String.

func Length(s Transaction) Transaction             { return node(OpLength, s) }
func Slice(s, lo, hi Transaction) Transaction       { return node(OpSlice, s, lo, hi) }
func Matches(s, regex Transaction) Transaction      { return node(OpMatches, s, regex) }
func Contains(s, sub Transaction) Transaction       { return node(OpContains, s, sub) }
func IndexOf(s, sub Transaction) Transaction        { return node(OpIndexOf, s, sub) }

// Logical.

func EqualTx(a, b Transaction) Transaction  { return node(OpEqual, a, b) }
func LessThan(a, b Transaction) Transaction { return node(OpLess, a, b) }

// Negate folds negate(negate(x)) no further than the generic literal-fold
// above: the optional double-negation rule in spec.md §4.2 is deliberately
// not implemented, since negate(negate(x)) normalizes x to a flag and is
// only semantics-preserving when x is already known to be flag-typed,
// which a node constructor can't know in general.
func Negate(a Transaction) Transaction { return node(OpNegate, a) }

// Both and Either short-circuit on a literal first operand per spec.md
// §4.2, dropping the second operand (and any effects within it) entirely
// rather than waiting for it to also be literal.
func Both(a, b Transaction) Transaction {
	if l, ok := AsConst(a); ok && !l.Flag() {
		return Lit(literal.False)
	}
	return node(OpBoth, a, b)
}

func Either(a, b Transaction) Transaction {
	if l, ok := AsConst(a); ok && l.Flag() {
		return Lit(literal.True)
	}
	return node(OpEither, a, b)
}

// I/O. None of these fold at construction time: their result depends on
// runtime store state the constructor cannot see.
func Read(key Transaction) Transaction           { return &Expression{Op: OpRead, Args: []Transaction{key}} }
func Write(key, val Transaction) Transaction      { return &Expression{Op: OpWrite, Args: []Transaction{key, val}} }
func Load(name Transaction) Transaction           { return &Expression{Op: OpLoad, Args: []Transaction{name}} }
func Store(name, val Transaction) Transaction     { return &Expression{Op: OpStore, Args: []Transaction{name, val}} }
func Prefetch(keys Transaction) Transaction       { return &Expression{Op: OpPrefetch, Args: []Transaction{keys}} }
func Rollback(val Transaction) Transaction        { return &Expression{Op: OpRollback, Args: []Transaction{val}} }

// Control.

// Cons sequences a for effect then yields b, except that a pure literal a
// has no observable effect and is dropped entirely (spec.md §4.2).
func Cons(a, b Transaction) Transaction {
	if _, ok := AsConst(a); ok {
		return b
	}
	return &Expression{Op: OpCons, Args: []Transaction{a, b}}
}

// Branch collapses to its taken arm when the condition is a literal
// (spec.md §4.2).
func Branch(c, t, f Transaction) Transaction {
	if l, ok := AsConst(c); ok {
		if l.Flag() {
			return t
		}
		return f
	}
	return &Expression{Op: OpBranch, Args: []Transaction{c, t, f}}
}

// Repeat collapses a literal-false condition to none. A literal-true
// condition is deliberately not unrolled: the loop is divergent and must
// be represented as a node, per spec.md §4.2.
func Repeat(c, body Transaction) Transaction {
	if l, ok := AsConst(c); ok && !l.Flag() {
		return Lit(literal.Nothing)
	}
	return &Expression{Op: OpRepeat, Args: []Transaction{c, body}}
}

// Simplify re-applies the smart constructors to an existing tree, bottom
// up. It is idempotent (spec.md §8 property 3) because the constructors
// are pure functions of their already-simplified children.
func Simplify(t Transaction) Transaction {
	e, ok := t.(*Expression)
	if !ok {
		return t
	}
	args := make([]Transaction, len(e.Args))
	for i, a := range e.Args {
		args[i] = Simplify(a)
	}
	return rebuild(e.Op, args)
}

// Build dispatches to op's smart constructor after checking args has the
// operator's fixed arity, so a parser (package idl) can build a tree node
// by node without duplicating the per-operator construction rules, and so
// the parsed tree comes out already simplified (spec.md §4.6).
func Build(op Op, args []Transaction) (Transaction, error) {
	if len(args) != op.Arity() {
		return nil, &ArityError{Op: op, Want: op.Arity(), Got: len(args)}
	}
	return rebuild(op, args), nil
}

// ArityError reports that a parsed node's operand count didn't match its
// operator's fixed arity.
type ArityError struct {
	Op   Op
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("expr: %s wants %d operands, got %d", e.Op, e.Want, e.Got)
}

// rebuild dispatches to the operator-specific smart constructor so that
// Simplify observes exactly the same folding rules as fresh construction.
func rebuild(op Op, args []Transaction) Transaction {
	switch op {
	case OpAdd:
		return Add(args[0], args[1])
	case OpSub:
		return Sub(args[0], args[1])
	case OpMul:
		return Mul(args[0], args[1])
	case OpDiv:
		return Div(args[0], args[1])
	case OpMod:
		return Mod(args[0], args[1])
	case OpPow:
		return Pow(args[0], args[1])
	case OpLog:
		return Log(args[0])
	case OpSin:
		return Sin(args[0])
	case OpCos:
		return Cos(args[0])
	case OpFloor:
		return Floor(args[0])
	case OpLength:
		return Length(args[0])
	case OpSlice:
		return Slice(args[0], args[1], args[2])
	case OpMatches:
		return Matches(args[0], args[1])
	case OpContains:
		return Contains(args[0], args[1])
	case OpIndexOf:
		return IndexOf(args[0], args[1])
	case OpBoth:
		return Both(args[0], args[1])
	case OpEither:
		return Either(args[0], args[1])
	case OpNegate:
		return Negate(args[0])
	case OpEqual:
		return EqualTx(args[0], args[1])
	case OpLess:
		return LessThan(args[0], args[1])
	case OpRead:
		return Read(args[0])
	case OpWrite:
		return Write(args[0], args[1])
	case OpLoad:
		return Load(args[0])
	case OpStore:
		return Store(args[0], args[1])
	case OpPrefetch:
		return Prefetch(args[0])
	case OpRollback:
		return Rollback(args[0])
	case OpCons:
		return Cons(args[0], args[1])
	case OpBranch:
		return Branch(args[0], args[1], args[2])
	case OpRepeat:
		return Repeat(args[0], args[1])
	}
	panic("expr: rebuild called with unknown op " + op.String())
}
