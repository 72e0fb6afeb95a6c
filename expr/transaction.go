package expr

import "github.com/Sciss/caustic/literal"

// Transaction is an immutable expression tree: either a Const leaf wrapping
// a literal.Literal, or an Expression node with 1-3 Transaction operands
// (spec.md §3). The set of implementations is closed to these two types.
type Transaction interface {
	transaction()
}

// Const is a literal leaf of the tree.
type Const struct {
	Literal literal.Literal
}

func (Const) transaction() {}

// Lit wraps l as a Transaction leaf, interning it first so that repeated
// construction of the same canonical constant shares identity (spec.md §3
// invariant (iv)).
func Lit(l literal.Literal) Transaction {
	return Const{Literal: literal.Intern(l)}
}

// Expression is an internal node: an operator applied to its operands.
type Expression struct {
	Op   Op
	Args []Transaction
}

func (*Expression) transaction() {}

// AsConst reports whether t is a literal leaf, returning its value.
func AsConst(t Transaction) (literal.Literal, bool) {
	c, ok := t.(Const)
	if !ok {
		return nil, false
	}
	return c.Literal, true
}

// Equal reports whether a and b are structurally equal trees: same literal
// value, or same operator applied to pairwise-equal operands in the same
// order (spec.md §8 property 2's "structurally-equal tree on repeated
// construction").
func Equal(a, b Transaction) bool {
	switch av := a.(type) {
	case Const:
		bv, ok := b.(Const)
		return ok && literal.Equal(av.Literal, bv.Literal)
	case *Expression:
		bv, ok := b.(*Expression)
		if !ok || av.Op != bv.Op || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !Equal(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}
