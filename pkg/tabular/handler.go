package tabular

import "strings"

// ChunkResult is one element of a chunked load: either a Table of at most
// chunkSize rows, or a terminal Err. The producing channel is closed after
// the first Err or after the input is exhausted.
type ChunkResult struct {
	Table *Table
	Err   error
}

// ColumnResult is one element of a column-wise iteration: a single-column
// table, optionally truncated to a requested value count.
type ColumnResult struct {
	Table *Table
	Err   error
}

// RowResult is one element of a row-wise stream.
type RowResult struct {
	Row map[string]string
	Err error
}

// Handler is the capability surface every tabular format backend
// implements: header/skip-row control, eager and lazy loading, column and
// row streaming, an in-memory append buffer, and save/save-as, giving each
// format one concrete implementation behind a shared interface.
type Handler interface {
	// CanHandle reports whether this handler's format can open path, based
	// on its extension alone.
	CanHandle(path string) bool

	// Path returns the path this handler was opened against (or last saved
	// to), exactly as given; it is not made absolute.
	Path() string

	// SheetName returns the active sheet for workbook handlers, or "" for
	// formats without the concept of sheets.
	SheetName() string

	// SetSheetName selects the active sheet. A no-op for formats without
	// sheets.
	SetSheetName(name string)

	// Sheets lists every sheet name, in workbook order. Formats without
	// sheets return a single synthetic name.
	Sheets() ([]string, error)

	// GetHeaders returns the header row, honoring any configured skip-rows.
	GetHeaders() ([]string, error)

	// SetHeaderRowsToSkip skips the first n rows before the header.
	// Superseded by SetRowsToSkip when both are set.
	SetHeaderRowsToSkip(n int)

	// SetRowsToSkip skips exactly the given zero-based row indices,
	// irrespective of contiguity. Takes precedence over
	// SetHeaderRowsToSkip.
	SetRowsToSkip(rows []int)

	// Load reads the entire source eagerly.
	Load() (*Table, error)

	// IterLoad reads the source in chunks of at most chunkSize rows. The
	// returned channel yields one ChunkResult per chunk and is closed when
	// exhausted or after the first error. Non-restartable: call once per
	// handler lifetime.
	IterLoad(chunkSize int) (<-chan ChunkResult, error)

	// IterColumns yields one single-column table per source column,
	// optionally truncating each to valueCount values (0 = unlimited).
	IterColumns(valueCount, chunkSize int) (<-chan ColumnResult, error)

	// StreamRows yields one row mapping at a time.
	StreamRows() (<-chan RowResult, error)

	// AppendTable appends t's rows to the in-memory write buffer.
	AppendTable(t *Table) error

	// AppendRow appends a single row to the write buffer.
	AppendRow(row []string) error

	// Save flushes the write buffer to Path().
	Save() error

	// SaveAs flushes the write buffer to path, which becomes the new Path().
	SaveAs(path string) error

	// GetSchema returns a name→type-tag map without necessarily loading
	// every row.
	GetSchema() (map[string]string, error)

	// LoadMetadata returns format-specific metadata (sheet names, dialect,
	// encoding, ...).
	LoadMetadata() (map[string]any, error)

	// Equal reports identity by (path, sheet) — stricter than the source
	// system's path-only equality; see DESIGN.md for the rationale.
	Equal(other Handler) bool
}

// ParseSourceID splits an opaque source identifier of the form "path" or
// "path::sheet" on the rightmost "::" so that drive-letter separators (or
// any other "::" occurring earlier in a path) are preserved.
func ParseSourceID(id string) (path, sheet string) {
	idx := strings.LastIndex(id, "::")
	if idx < 0 {
		return id, ""
	}
	return id[:idx], id[idx+2:]
}

// FormatSourceID is the inverse of ParseSourceID.
func FormatSourceID(path, sheet string) string {
	if sheet == "" {
		return path
	}
	return path + "::" + sheet
}
