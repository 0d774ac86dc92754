// Package formula is the evaluator the core consumes as an external
// collaborator: it parses a formula string into an object that renders a
// canonical expression, enumerates referenced positions, and evaluates
// numerically against a caller-supplied lookup. It knows nothing about
// sheets or cells, only expressions and positions, so it has no dependency
// on the gridcalc package; gridcalc's cell.go adapts between the two at the
// boundary.
package formula

import "fmt"

// Position identifies a referenced cell by zero-based row and column.
type Position struct {
	Row int
	Col int
}

// ErrKind enumerates the evaluation failure categories Evaluate can raise.
type ErrKind uint8

const (
	ErrRef ErrKind = iota
	ErrValue
	ErrArithmetic
	ErrDiv0
	ErrName
	ErrNum
	ErrNA
)

// EvalError is raised by Evaluate for arithmetic, reference, or value
// failures. It is never a syntax error; those are reported by Parse.
type EvalError struct {
	Kind ErrKind
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("formula: evaluation error (kind %d)", e.Kind)
}

// SyntaxError is returned by Parse when the expression is malformed.
type SyntaxError struct {
	Expr string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula: %s: %q", e.Msg, e.Expr)
}

// Lookup resolves a referenced position to a numeric value during
// evaluation. The host decides what "value" means for a position (an
// absent cell, a text cell, a cached formula result); Lookup returns the
// numeric coercion or an *EvalError.
type Lookup func(Position) (float64, error)

// Evaluator is the parsed, executable form of a formula expression.
type Evaluator struct {
	root      node
	canonical string
	refs      []Position
}

// Parse compiles expr (the text after a leading '=') into an Evaluator.
// It fails with *SyntaxError on malformed input.
func Parse(expr string) (*Evaluator, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	root, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, &SyntaxError{Expr: expr, Msg: "unexpected trailing input"}
	}

	refSet := map[Position]struct{}{}
	var refs []Position
	collectRefs(root, refSet, &refs)
	sortPositions(refs)

	return &Evaluator{
		root:      root,
		canonical: root.String(),
		refs:      refs,
	}, nil
}

// CanonicalExpression renders a deterministic, parenthesization-minimized
// textual form of the parsed formula.
func (e *Evaluator) CanonicalExpression() string {
	return e.canonical
}

// ReferencedCells returns the deduplicated, row-major-sorted list of
// positions this formula references.
func (e *Evaluator) ReferencedCells() []Position {
	out := make([]Position, len(e.refs))
	copy(out, e.refs)
	return out
}

// Evaluate runs the formula against lookup, returning the numeric result
// or an *EvalError.
func (e *Evaluator) Evaluate(lookup Lookup) (float64, error) {
	return e.root.Eval(lookup)
}

// sortPositions sorts in place by row then column, ascending.
func sortPositions(p []Position) {
	for i := 1; i < len(p); i++ {
		j := i
		for j > 0 && less(p[j], p[j-1]) {
			p[j], p[j-1] = p[j-1], p[j]
			j--
		}
	}
}

func less(a, b Position) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}

func collectRefs(n node, seen map[Position]struct{}, out *[]Position) {
	switch t := n.(type) {
	case *refNode:
		if _, ok := seen[t.pos]; !ok {
			seen[t.pos] = struct{}{}
			*out = append(*out, t.pos)
		}
	case *rangeNode:
		for r := t.from.Row; r <= t.to.Row; r++ {
			for c := t.from.Col; c <= t.to.Col; c++ {
				pos := Position{Row: r, Col: c}
				if _, ok := seen[pos]; !ok {
					seen[pos] = struct{}{}
					*out = append(*out, pos)
				}
			}
		}
	case *binaryNode:
		collectRefs(t.left, seen, out)
		collectRefs(t.right, seen, out)
	case *unaryNode:
		collectRefs(t.operand, seen, out)
	case *callNode:
		for _, a := range t.args {
			collectRefs(a, seen, out)
		}
	}
}
