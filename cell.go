package gridcalc

import (
	"strconv"
	"strings"

	"github.com/relaygrid/gridcalc/formula"
)

// contentKind tags the variant a Cell currently holds.
type contentKind uint8

const (
	contentEmpty contentKind = iota
	contentText
	contentFormula
)

// cellResolver is the minimal surface Cell needs from its owning Sheet:
// looking up a cell at a position (creating it as Empty if absent), and
// validating a position.
type cellResolver interface {
	resolveOrCreate(pos Position) *Cell
	validate(pos Position) error
}

// Cell holds one of three content variants (empty, text, formula), its
// outgoing reference list, its graph edges, and a memoized value cache.
// Edges are non-owning: the Sheet owns every Cell.
type Cell struct {
	pos  Position
	kind contentKind

	text string // raw text for contentText; "" otherwise
	eval *formula.Evaluator

	referencedCells []Position
	downstream      map[*Cell]struct{}
	upstream        map[*Cell]struct{}

	cache    Value
	cacheSet bool

	sheet cellResolver
}

func newCell(pos Position, sheet cellResolver) *Cell {
	return &Cell{
		pos:        pos,
		kind:       contentEmpty,
		downstream: make(map[*Cell]struct{}),
		upstream:   make(map[*Cell]struct{}),
		sheet:      sheet,
	}
}

// hasUpstream reports whether any cell still references this one, the
// condition Sheet.ClearCell uses to decide between resetting to Empty and
// destroying the cell outright (original_source's IsChildren/parent_cells_).
func (c *Cell) hasUpstream() bool {
	return len(c.upstream) > 0
}

// Set installs new content for the cell from raw input text: empty clears
// the cell, a leading "=" parses and wires a formula, anything else is
// stored as literal text.
func (c *Cell) Set(text string) error {
	if text == "" {
		c.Clear()
		return nil
	}
	if text[0] == '=' && len(text) > 1 {
		return c.setFormula(text)
	}
	c.clearEdgesAndCache()
	c.kind = contentText
	c.text = text
	c.eval = nil
	c.referencedCells = nil
	return nil
}

// setFormula runs the transactional formula path: snapshot, parse,
// rewire tentative downstream edges, check for a cycle, then commit or
// restore the backup.
func (c *Cell) setFormula(text string) error {
	backupDownstream := c.downstream
	backupCache := c.cache
	backupCacheSet := c.cacheSet
	backupRefs := c.referencedCells

	expr := text[1:]
	ev, err := formula.Parse(expr)
	if err != nil {
		// Parse failure: nothing is installed. The cell remains exactly
		// as it was before this call.
		return &FormulaSyntaxError{Expr: expr, Err: err}
	}

	refs := ev.ReferencedCells()
	newRefs := make([]Position, len(refs))
	newDownstream := make(map[*Cell]struct{}, len(refs))
	for i, fp := range refs {
		pos := Position{Row: fp.Row, Col: fp.Col}
		newRefs[i] = pos
		child := c.sheet.resolveOrCreate(pos)
		newDownstream[child] = struct{}{}
	}

	// Install the tentative downstream set on this cell only; children's
	// upstream sets are untouched until commit.
	c.downstream = newDownstream

	children := make([]*Cell, 0, len(newDownstream))
	for child := range newDownstream {
		children = append(children, child)
	}

	if reachableFrom(children, c) {
		c.downstream = backupDownstream
		c.cache = backupCache
		c.cacheSet = backupCacheSet
		c.referencedCells = backupRefs
		return &CircularDependencyError{Pos: c.pos}
	}

	// Commit: rewire upstream edges, install content, cascade invalidation.
	for old := range backupDownstream {
		delete(old.upstream, c)
	}
	for child := range newDownstream {
		child.upstream[c] = struct{}{}
	}

	c.referencedCells = newRefs
	c.kind = contentFormula
	c.eval = ev
	c.text = ""
	invalidateUpstream(c)
	return nil
}

// clearEdgesAndCache drops this cell's outgoing edges (removing it from
// each former child's upstream set) and invalidates caches, without
// touching content. Shared by Clear and the text path of Set.
func (c *Cell) clearEdgesAndCache() {
	for child := range c.downstream {
		delete(child.upstream, c)
	}
	c.downstream = make(map[*Cell]struct{})
	invalidateUpstream(c)
}

// Clear resets the cell's content to Empty, drops its outgoing edges, and
// cascades invalidation. The Cell object itself remains in the sheet;
// Sheet.ClearCell decides whether to then destroy it.
func (c *Cell) Clear() {
	c.clearEdgesAndCache()
	c.kind = contentEmpty
	c.text = ""
	c.eval = nil
	c.referencedCells = nil
}

// GetValue returns the cell's value, evaluating and memoizing formula
// cells lazily.
func (c *Cell) GetValue() Value {
	switch c.kind {
	case contentEmpty:
		return TextValue("")
	case contentText:
		return TextValue(stripLeadingQuote(c.text))
	case contentFormula:
		if c.cacheSet {
			return c.cache
		}
		v := c.evaluateFormula()
		c.cache = v
		c.cacheSet = true
		return v
	default:
		return TextValue("")
	}
}

func (c *Cell) evaluateFormula() Value {
	lookup := func(fp formula.Position) (float64, error) {
		pos := Position{Row: fp.Row, Col: fp.Col}
		if err := c.sheet.validate(pos); err != nil {
			return 0, &formula.EvalError{Kind: formula.ErrRef}
		}
		target := c.sheet.resolveOrCreate(pos)
		return target.numericValue()
	}
	n, err := c.eval.Evaluate(lookup)
	if err != nil {
		return ErrorValueOf(evalErrKind(err))
	}
	return NumberValue(n)
}

// numericValue coerces this cell's current value to a float64 for use as
// an operand in another cell's formula, matching the original source's
// evaluating_func: empty cells are 0, text cells parse
// as a whole float (empty text is 0; partial/failed parse is #VALUE!),
// and numeric cells return directly. An existing formula error on this
// cell propagates as the same *formula.EvalError kind.
func (c *Cell) numericValue() (float64, error) {
	v := c.GetValue()
	switch v.Kind {
	case KindNumber:
		return v.Num, nil
	case KindText:
		if v.Text == "" {
			return 0, nil
		}
		n, err := strconv.ParseFloat(v.Text, 64)
		if err != nil {
			return 0, &formula.EvalError{Kind: formula.ErrValue}
		}
		return n, nil
	case KindError:
		return 0, &formula.EvalError{Kind: formula.ErrKind(v.Err.Kind)}
	default:
		return 0, nil
	}
}

// GetText returns the displayed text: raw input for text cells (leading
// quote preserved), the canonical "=expr" form for formula cells.
func (c *Cell) GetText() string {
	switch c.kind {
	case contentText:
		return c.text
	case contentFormula:
		return "=" + c.eval.CanonicalExpression()
	default:
		return ""
	}
}

// GetReferencedCells returns the cell's outgoing reference list verbatim.
func (c *Cell) GetReferencedCells() []Position {
	out := make([]Position, len(c.referencedCells))
	copy(out, c.referencedCells)
	return out
}

func stripLeadingQuote(s string) string {
	if strings.HasPrefix(s, "'") {
		return s[1:]
	}
	return s
}

func evalErrKind(err error) ErrorKind {
	if fe, ok := err.(*formula.EvalError); ok {
		return ErrorKind(fe.Kind)
	}
	return ErrorArithmetic
}
