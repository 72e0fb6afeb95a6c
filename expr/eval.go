package expr

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Sciss/caustic/literal"
)

// EvalPure computes the result of applying a pure operator (every Op
// except the I/O ops read/write/load/store/prefetch/rollback and the
// control ops cons/branch/repeat) to already-evaluated literal operands.
// It is total: division by zero, NaN propagation, and regex failures all
// produce the appropriate IEEE or sentinel literal rather than an error
// (spec.md §7). Both the simplifier (construct.go, folding literal
// operands at construction time) and the interpreter (evaluating a pure
// node once its operands have been reduced to literals at run time) call
// this same function, so construction-time folding and run-time
// evaluation can never disagree.
func EvalPure(op Op, args []literal.Literal) literal.Literal {
	switch op {
	case OpAdd:
		a, b := args[0], args[1]
		if _, ok := a.(*literal.Text); ok {
			return literal.NewText(a.Text() + b.Text())
		}
		if _, ok := b.(*literal.Text); ok {
			return literal.NewText(a.Text() + b.Text())
		}
		return literal.NewReal(a.Real() + b.Real())
	case OpSub:
		return literal.NewReal(args[0].Real() - args[1].Real())
	case OpMul:
		return literal.NewReal(args[0].Real() * args[1].Real())
	case OpDiv:
		return literal.NewReal(args[0].Real() / args[1].Real())
	case OpMod:
		return literal.NewReal(math.Mod(args[0].Real(), args[1].Real()))
	case OpPow:
		return literal.NewReal(math.Pow(args[0].Real(), args[1].Real()))
	case OpLog:
		return literal.NewReal(math.Log(args[0].Real()))
	case OpSin:
		return literal.NewReal(math.Sin(args[0].Real()))
	case OpCos:
		return literal.NewReal(math.Cos(args[0].Real()))
	case OpFloor:
		return literal.NewReal(math.Floor(args[0].Real()))

	case OpLength:
		return literal.NewReal(float64(utf8.RuneCountInString(args[0].Text())))
	case OpSlice:
		return literal.NewText(sliceText(args[0].Text(), args[1].Real(), args[2].Real()))
	case OpMatches:
		re, err := regexp.Compile(args[1].Text())
		if err != nil {
			return literal.False
		}
		return literal.NewFlag(re.MatchString(args[0].Text()))
	case OpContains:
		return literal.NewFlag(strings.Contains(args[0].Text(), args[1].Text()))
	case OpIndexOf:
		return literal.NewReal(indexOf(args[0].Text(), args[1].Text()))

	case OpBoth:
		return literal.NewFlag(args[0].Flag() && args[1].Flag())
	case OpEither:
		return literal.NewFlag(args[0].Flag() || args[1].Flag())
	case OpNegate:
		return literal.NewFlag(!args[0].Flag())
	case OpEqual:
		return literal.NewFlag(literal.Equal(args[0], args[1]))
	case OpLess:
		return literal.NewFlag(literal.Less(args[0], args[1]))
	}
	panic("expr: EvalPure called with non-pure op " + op.String())
}

// sliceText extracts the rune range [lo, hi) of s, clamping out-of-range
// bounds rather than failing (the language is total per spec.md §7).
func sliceText(s string, lo, hi float64) string {
	runes := []rune(s)
	n := len(runes)
	l := clampIndex(lo, n)
	h := clampIndex(hi, n)
	if h < l {
		return ""
	}
	return string(runes[l:h])
}

func clampIndex(f float64, n int) int {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > float64(n) {
		return n
	}
	return int(f)
}

// indexOf returns the rune offset of the first occurrence of sub in s, or
// -1 if absent.
func indexOf(s, sub string) float64 {
	byteIdx := strings.Index(s, sub)
	if byteIdx < 0 {
		return -1
	}
	return float64(utf8.RuneCountInString(s[:byteIdx]))
}
