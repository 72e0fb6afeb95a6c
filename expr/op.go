package expr

// Op is the closed set of expression operators caustic transactions can be
// built from. It is a closed tagged union (an int enum with exhaustive
// switches throughout this package) rather than an open class hierarchy,
// per the "Dynamic dispatch over operators" note in spec.md §9.
type Op int

const (
	// I/O.
	OpRead Op = iota
	OpWrite
	OpLoad
	OpStore
	OpPrefetch
	OpRollback

	// Control.
	OpCons
	OpBranch
	OpRepeat

	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpLog
	OpSin
	OpCos
	OpFloor

	// String.
	OpLength
	OpSlice
	OpMatches
	OpContains
	OpIndexOf

	// Logical.
	OpBoth
	OpEither
	OpNegate
	OpEqual
	OpLess
)

// arity is the fixed operand count for each Op, matching the 1-3 operand
// shape spec.md §3 specifies for Expression nodes.
var arity = map[Op]int{
	OpRead:     1,
	OpWrite:    2,
	OpLoad:     1,
	OpStore:    2,
	OpPrefetch: 1,
	OpRollback: 1,

	OpCons:   2,
	OpBranch: 3,
	OpRepeat: 2,

	OpAdd:   2,
	OpSub:   2,
	OpMul:   2,
	OpDiv:   2,
	OpMod:   2,
	OpPow:   2,
	OpLog:   1,
	OpSin:   1,
	OpCos:   1,
	OpFloor: 1,

	OpLength:   1,
	OpSlice:    3,
	OpMatches:  2,
	OpContains: 2,
	OpIndexOf:  2,

	OpBoth:   2,
	OpEither: 2,
	OpNegate: 1,
	OpEqual:  2,
	OpLess:   2,
}

var names = map[Op]string{
	OpRead: "read", OpWrite: "write", OpLoad: "load", OpStore: "store",
	OpPrefetch: "prefetch", OpRollback: "rollback",
	OpCons: "cons", OpBranch: "branch", OpRepeat: "repeat",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpPow: "pow", OpLog: "log", OpSin: "sin", OpCos: "cos", OpFloor: "floor",
	OpLength: "length", OpSlice: "slice", OpMatches: "matches",
	OpContains: "contains", OpIndexOf: "indexOf",
	OpBoth: "both", OpEither: "either", OpNegate: "negate", OpEqual: "equal",
	OpLess: "less",
}

// String renders the operator's canonical IDL name.
func (op Op) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "unknown"
}

// Arity returns the fixed operand count for op, or 0 if op is unknown.
func (op Op) Arity() int {
	return arity[op]
}

var byName map[string]Op

func init() {
	byName = make(map[string]Op, len(names))
	for op, name := range names {
		byName[name] = op
	}
}

// ParseOp looks up the Op whose canonical IDL name is name. It reports
// false for any name outside the closed operator set, the case a wire
// parser (package idl) must reject with a structured error rather than
// panic on (spec.md §4.6).
func ParseOp(name string) (Op, bool) {
	op, ok := byName[name]
	return op, ok
}
