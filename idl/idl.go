// Package idl implements the wire bridge between an expr.Transaction and
// its cross-language serialized form, per spec.md §4.6/§6. caustic itself
// has no protobuf toolchain available in this environment, so the wire
// format is a JSON discriminated union (one object per operator, plus the
// four literal kinds) rather than a generated-stub protobuf message —
// the same "one case per operator, unknown discriminants fail" contract
// the spec asks for, parsed with the total, never-panicking discipline of
// the teacher's mvcc.ParseWrite/Write.ToBytes pair.
package idl

import (
	"encoding/json"

	"github.com/Sciss/caustic/errors"
	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/literal"
)

// node is the wire shape of one Transaction: either a literal leaf (Lit
// set, Op empty) or an operator node (Op set, Args holding its operands).
type node struct {
	Lit  *wireLiteral `json:"lit,omitempty"`
	Op   string       `json:"op,omitempty"`
	Args []node       `json:"args,omitempty"`
}

// wireLiteral is the wire shape of a literal.Literal: Kind selects which
// of the value fields is meaningful.
type wireLiteral struct {
	Kind string   `json:"kind"`
	Flag *bool    `json:"flag,omitempty"`
	Real *float64 `json:"real,omitempty"`
	Text *string  `json:"text,omitempty"`
}

// Parse decodes a JSON-encoded expression tree. Parsing is total in the
// sense spec.md §4.6 requires: any malformed document or unknown operator
// or literal-kind discriminant fails with a *errors.Error of kind
// ParseError rather than panicking. The returned tree is already
// simplified, because every node is assembled through expr.Build/expr.Lit,
// the same smart constructors fresh construction uses.
func Parse(data []byte) (expr.Transaction, error) {
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, errors.ParseErrorf("idl: invalid JSON: %v", err)
	}
	return parseNode(n)
}

func parseNode(n node) (expr.Transaction, error) {
	if n.Lit != nil {
		return parseLiteral(n.Lit)
	}
	if n.Op == "" {
		return nil, errors.ParseErrorf("idl: node has neither \"lit\" nor \"op\"")
	}
	op, ok := expr.ParseOp(n.Op)
	if !ok {
		return nil, errors.ParseErrorf("idl: unknown operator %q", n.Op)
	}
	args := make([]expr.Transaction, len(n.Args))
	for i, a := range n.Args {
		arg, err := parseNode(a)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	tx, err := expr.Build(op, args)
	if err != nil {
		return nil, errors.ParseErrorf("idl: %v", err)
	}
	return tx, nil
}

func parseLiteral(l *wireLiteral) (expr.Transaction, error) {
	switch l.Kind {
	case "none":
		return expr.Lit(literal.Nothing), nil
	case "flag":
		if l.Flag == nil {
			return nil, errors.ParseErrorf("idl: flag literal missing \"flag\" field")
		}
		return expr.Lit(literal.NewFlag(*l.Flag)), nil
	case "real":
		if l.Real == nil {
			return nil, errors.ParseErrorf("idl: real literal missing \"real\" field")
		}
		return expr.Lit(literal.NewReal(*l.Real)), nil
	case "text":
		if l.Text == nil {
			return nil, errors.ParseErrorf("idl: text literal missing \"text\" field")
		}
		return expr.Lit(literal.NewText(*l.Text)), nil
	}
	return nil, errors.ParseErrorf("idl: unknown literal kind %q", l.Kind)
}

// Serialize encodes t as the JSON discriminated union Parse reads back.
func Serialize(t expr.Transaction) ([]byte, error) {
	n, err := serializeNode(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

func serializeNode(t expr.Transaction) (node, error) {
	if lit, ok := expr.AsConst(t); ok {
		wl, err := serializeLiteral(lit)
		if err != nil {
			return node{}, err
		}
		return node{Lit: wl}, nil
	}
	e, ok := t.(*expr.Expression)
	if !ok {
		return node{}, errors.ParseErrorf("idl: cannot serialize transaction of type %T", t)
	}
	args := make([]node, len(e.Args))
	for i, a := range e.Args {
		an, err := serializeNode(a)
		if err != nil {
			return node{}, err
		}
		args[i] = an
	}
	return node{Op: e.Op.String(), Args: args}, nil
}

func serializeLiteral(l literal.Literal) (*wireLiteral, error) {
	switch v := l.(type) {
	case *literal.None:
		return &wireLiteral{Kind: "none"}, nil
	case *literal.Flag:
		b := v.Flag()
		return &wireLiteral{Kind: "flag", Flag: &b}, nil
	case *literal.Real:
		r := v.Real()
		return &wireLiteral{Kind: "real", Real: &r}, nil
	case *literal.Text:
		s := v.Text()
		return &wireLiteral{Kind: "text", Text: &s}, nil
	}
	return nil, errors.ParseErrorf("idl: cannot serialize literal of type %T", l)
}
