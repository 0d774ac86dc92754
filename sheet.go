package gridcalc

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sheet is a sparse two-dimensional container addressing cells by
// (row, col). It owns every Cell; references between cells are
// non-owning back-edges maintained transactionally by Cell.Set/Clear.
//
// Storage is sparse-by-row: a resizable outer slice of rows, each row a
// resizable slice of optional (possibly nil) *Cell, following the
// original source's std::vector<std::vector<std::unique_ptr<Cell>>>.
type Sheet struct {
	rows [][]*Cell

	// ID identifies this sheet instance for logging/telemetry, the way
	// mcpxcel's workbook Handle carries a uuid-derived ID.
	ID string

	// Logger receives debug/warn events for SetCell/ClearCell. Defaults
	// to a no-op logger, matching telemetry.Hooks' default-logger field.
	Logger zerolog.Logger
}

// NewSheet creates an empty Sheet.
func NewSheet() *Sheet {
	return &Sheet{
		ID:     uuid.NewString(),
		Logger: zerolog.Nop(),
	}
}

func (s *Sheet) validate(pos Position) error {
	if !pos.IsValid() {
		return &InvalidPositionError{Pos: pos}
	}
	return nil
}

func (s *Sheet) ensureCapacity(pos Position) {
	if len(s.rows) <= pos.Row {
		grown := make([][]*Cell, pos.Row+1)
		copy(grown, s.rows)
		s.rows = grown
	}
	row := s.rows[pos.Row]
	if len(row) <= pos.Col {
		grown := make([]*Cell, pos.Col+1)
		copy(grown, row)
		s.rows[pos.Row] = grown
	}
}

func (s *Sheet) at(pos Position) *Cell {
	if pos.Row >= len(s.rows) {
		return nil
	}
	row := s.rows[pos.Row]
	if pos.Col >= len(row) {
		return nil
	}
	return row[pos.Col]
}

// resolveOrCreate returns the cell at pos, creating it as Empty if absent.
// Used by Cell.setFormula to materialize placeholder cells for references
// that don't exist yet, and SetCell for the target position itself.
func (s *Sheet) resolveOrCreate(pos Position) *Cell {
	s.ensureCapacity(pos)
	if c := s.rows[pos.Row][pos.Col]; c != nil {
		return c
	}
	c := newCell(pos, s)
	s.rows[pos.Row][pos.Col] = c
	return c
}

// SetCell sets the content of the cell at pos from raw text, creating the
// cell if absent. A rejected Set (FormulaSyntaxError, CircularDependency)
// leaves the sheet observationally unchanged except that any cell
// auto-created while resolving references stays in place as Empty,
// matching the original source's behavior.
func (s *Sheet) SetCell(pos Position, text string) error {
	if err := s.validate(pos); err != nil {
		return err
	}
	cell := s.resolveOrCreate(pos)
	if err := cell.Set(text); err != nil {
		s.Logger.Warn().Str("sheet", s.ID).Str("cell", pos.String()).Err(err).Msg("set cell rejected")
		return err
	}
	s.Logger.Debug().Str("sheet", s.ID).Str("cell", pos.String()).Msg("set cell")
	return nil
}

// GetCell returns the cell at pos, or nil if no cell exists there.
func (s *Sheet) GetCell(pos Position) (*Cell, error) {
	if err := s.validate(pos); err != nil {
		return nil, err
	}
	return s.at(pos), nil
}

// ClearCell resets the cell at pos. If the cell still has upstream
// references, it is reset to Empty in place (preserving in-edges);
// otherwise its outgoing edges are dropped and it is removed from the grid
// entirely.
func (s *Sheet) ClearCell(pos Position) error {
	if err := s.validate(pos); err != nil {
		return err
	}
	cell := s.at(pos)
	if cell == nil {
		return nil
	}
	if cell.hasUpstream() {
		cell.Clear()
	} else {
		cell.Clear()
		s.rows[pos.Row][pos.Col] = nil
	}
	s.Logger.Debug().Str("sheet", s.ID).Str("cell", pos.String()).Msg("clear cell")
	return nil
}

// GetPrintableSize returns the smallest bounding rectangle anchored at
// (0,0) covering every cell with non-empty displayed text. Computed on
// demand: write rates are low relative to print rates, and the scan is
// simple and obviously correct.
func (s *Sheet) GetPrintableSize() (rows, cols int) {
	for r, row := range s.rows {
		for c, cell := range row {
			if cell != nil && cell.GetText() != "" {
				if r+1 > rows {
					rows = r + 1
				}
				if c+1 > cols {
					cols = c + 1
				}
			}
		}
	}
	return rows, cols
}

// PrintValues writes the value grid to w: rows separated by '\n', columns
// by '\t'. Missing cells emit an empty field.
func (s *Sheet) PrintValues(w io.Writer) error {
	return s.print(w, func(c *Cell) string { return c.GetValue().String() })
}

// PrintTexts writes the displayed-text grid to w in the same layout.
func (s *Sheet) PrintTexts(w io.Writer) error {
	return s.print(w, func(c *Cell) string { return c.GetText() })
}

func (s *Sheet) print(w io.Writer, render func(*Cell) string) error {
	rows, cols := s.GetPrintableSize()
	var buf strings.Builder
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				buf.WriteByte('\t')
			}
			if cell := s.at(Position{Row: r, Col: c}); cell != nil {
				buf.WriteString(render(cell))
			}
		}
		buf.WriteByte('\n')
	}
	_, err := fmt.Fprint(w, buf.String())
	return err
}
