// Package literal implements the total value model that every caustic
// transaction evaluates to: a closed union of none, flag, real, and text
// values with total coercion rules between them.
//
// Each variant is a pointer to a small struct rather than a bare value, so
// that the canonical constants (literal.True, literal.Zero, literal.Empty,
// ...) can be interned: every Literal returned by Intern (which expr.Lit
// applies to each leaf) that happens to equal one of them is that exact
// pointer, not merely an equal value. The New* constructors themselves
// always allocate a fresh value. This mirrors the "small node cache for canonical literals" design
// note in spec.md §9.
package literal

import (
	"math"
	"strconv"
)

// Literal is a total value. Every caustic expression evaluates to exactly
// one Literal. The set of implementations is closed: *None, *Flag, *Real,
// and *Text are the only variants.
type Literal interface {
	// kind identifies the variant for structural equality and dispatch.
	// It is unexported because the variant set is closed outside this
	// package.
	kind() kind

	// Flag coerces the literal to a boolean per spec §4.1.
	Flag() bool
	// Real coerces the literal to an IEEE-754 double per spec §4.1.
	Real() float64
	// Text renders the literal's canonical string form per spec §4.1.
	Text() string
}

type kind int

const (
	kindNone kind = iota
	kindFlag
	kindReal
	kindText
)

// None is the absent value.
type None struct{}

func NewNone() *None { return &None{} }

func (*None) kind() kind    { return kindNone }
func (*None) Flag() bool    { return false }
func (*None) Real() float64 { return 0 }
func (*None) Text() string  { return "" }

// Flag is a boolean literal.
type Flag struct{ v bool }

func NewFlag(b bool) *Flag { return &Flag{v: b} }

func (f *Flag) kind() kind { return kindFlag }
func (f *Flag) Flag() bool { return f.v }

// Real coerces a flag to a real by the rule specified in spec.md §4.1:
// true maps to 1.0/0.0 (positive infinity), false to 0. This looks
// unusual, and is implemented literally per the spec's own instruction
// (§9) to trust the written rule over intuition.
func (f *Flag) Real() float64 {
	if f.v {
		return math.Inf(1)
	}
	return 0
}

func (f *Flag) Text() string {
	if f.v {
		return "true"
	}
	return "false"
}

// Real is a double-precision literal.
type Real struct{ v float64 }

func NewReal(f float64) *Real { return &Real{v: f} }

func (r *Real) kind() kind    { return kindReal }
func (r *Real) Flag() bool    { return r.v != 0 }
func (r *Real) Real() float64 { return r.v }

// Text renders doubles with one decimal point when integer-valued, e.g.
// "0.0", "1.0", "15.0", per spec §4.1.
func (r *Real) Text() string {
	f := r.v
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Text is a Unicode string literal.
type Text struct{ v string }

func NewText(s string) *Text { return &Text{v: s} }

func (t *Text) kind() kind { return kindText }
func (t *Text) Flag() bool { return t.v != "" }

// Real parses the text as a double; unparseable text coerces to NaN, per
// spec §4.1.
func (t *Text) Real() float64 {
	f, err := strconv.ParseFloat(t.v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func (t *Text) Text() string { return t.v }

// Canonical, interned constants. Every construction of one of these exact
// values must share identity with these variables (spec.md §3 invariant
// (iv), §8 property 1), so every smart constructor in package expr calls
// Intern before returning a literal.
var (
	True    Literal = NewFlag(true)
	False   Literal = NewFlag(false)
	Zero    Literal = NewReal(0)
	One     Literal = NewReal(1)
	Empty   Literal = NewText("")
	Nothing Literal = NewNone()
)

// Intern returns the canonical representative for l if l's value matches
// one of the interned constants, else l itself.
func Intern(l Literal) Literal {
	switch v := l.(type) {
	case *None:
		return Nothing
	case *Flag:
		if v.v {
			return True
		}
		return False
	case *Real:
		switch v.v {
		case 0:
			return Zero
		case 1:
			return One
		}
	case *Text:
		if v.v == "" {
			return Empty
		}
	}
	return l
}

// Equal implements the strongly-typed equality of spec §4.1: none equals
// only none; flags compare as flags; reals compare as reals (after
// coercion); text compares as text; any other cross-kind pairing
// (including text vs real) is false.
func Equal(a, b Literal) bool {
	switch av := a.(type) {
	case *None:
		_, ok := b.(*None)
		return ok
	case *Flag:
		bv, ok := b.(*Flag)
		return ok && av.v == bv.v
	case *Real:
		bv, ok := b.(*Real)
		return ok && av.v == bv.v
	case *Text:
		bv, ok := b.(*Text)
		return ok && av.v == bv.v
	}
	return false
}

// Less orders reals numerically, text lexicographically, flags by
// false<true, per spec §4.1. Cross-kind comparisons coerce both operands to
// real, mirroring the coercion rule used by the arithmetic operators.
func Less(a, b Literal) bool {
	af, aok := a.(*Flag)
	bf, bok := b.(*Flag)
	if aok && bok {
		return !af.v && bf.v
	}
	at, aok := a.(*Text)
	bt, bok := b.(*Text)
	if aok && bok {
		return at.v < bt.v
	}
	return a.Real() < b.Real()
}
