// Package sheets is the remote-table adapter: raw cell-range reads and
// writes against the backing spreadsheet, surfaced through the Client
// interface with a typed failure taxonomy.
package sheets

import (
	"context"
)

// Grid is the raw 2-D cell grid of the backing table. Row 0 is the
// header row; rows 1+ are member rows. Rows may be ragged.
type Grid [][]string

// Header returns the header row, or nil for an empty grid.
func (g Grid) Header() []string {
	if len(g) == 0 {
		return nil
	}
	return g[0]
}

// DataRows returns all rows below the header.
func (g Grid) DataRows() [][]string {
	if len(g) < 2 {
		return nil
	}
	return g[1:]
}

// Cell returns the cell at (row, col), or "" when the grid is ragged there.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	if col < 0 || col >= len(g[row]) {
		return ""
	}
	return g[row][col]
}

// CellWrite addresses a single cell update. Coordinates are 0-based
// grid positions (row 0 is the header row).
type CellWrite struct {
	Row    int
	Column int
	Value  string
}

// Client performs raw reads and writes against the backing table.
// WriteBatch MUST apply all writes in one remote call so that partial
// application is never observable by other readers of the table.
// Implementations return the sentinel errors from errors.go (wrapped)
// for the recognised failure classes.
type Client interface {
	ReadGrid(ctx context.Context) (Grid, error)
	ReadHeader(ctx context.Context) ([]string, error)
	WriteBatch(ctx context.Context, writes []CellWrite) error
}
