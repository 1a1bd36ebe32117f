package tabular

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// RawRow is one parsed line. A cell with Valid=false is null.
type RawRow []pgtype.Text

// RowFromStrings wraps parsed fields as non-null cells.
func RowFromStrings(fields []string) RawRow {
	row := make(RawRow, len(fields))
	for i, f := range fields {
		row[i] = pgtype.Text{String: f, Valid: true}
	}
	return row
}

// Reconcile truncates row to width or right-pads it with null cells. The
// result never aliases row.
func Reconcile(row RawRow, width int) RawRow {
	out := make(RawRow, width)
	copy(out, row)
	return out
}

// NormalizeCell trims surrounding whitespace. Null stays null.
func NormalizeCell(c pgtype.Text) pgtype.Text {
	if !c.Valid {
		return c
	}
	return pgtype.Text{String: strings.TrimSpace(c.String), Valid: true}
}
