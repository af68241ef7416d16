package tabular

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tealeg/xlsx"

	"github.com/tabmod/tabmod/pkg/log"
)

// XLSXHandler is the workbook Handler. The active sheet defaults to the
// first listed sheet. Chunked iteration is emulated from an in-memory
// materialization since the underlying library has no streaming reader;
// writes always produce a single-sheet workbook.
type XLSXHandler struct {
	path      string
	sheetName string

	headerRowsToSkip int
	rowsToSkip       []int

	writeBuf *Table
	iterated bool
}

var _ Handler = (*XLSXHandler)(nil)

// NewXLSXHandler opens (without reading) path as a workbook source.
func NewXLSXHandler(path string) *XLSXHandler {
	return &XLSXHandler{path: path}
}

func (h *XLSXHandler) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".xlsx" || ext == ".xlsm"
}

func (h *XLSXHandler) Path() string      { return h.path }
func (h *XLSXHandler) SheetName() string { return h.sheetName }

func (h *XLSXHandler) SetSheetName(name string) { h.sheetName = name }

func (h *XLSXHandler) Sheets() ([]string, error) {
	wb, err := xlsx.OpenFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", h.path, err)
	}
	names := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		names[i] = s.Name
	}
	return names, nil
}

func (h *XLSXHandler) SetHeaderRowsToSkip(n int) { h.headerRowsToSkip = n }

func (h *XLSXHandler) SetRowsToSkip(rows []int) {
	cp := append([]int(nil), rows...)
	sort.Ints(cp)
	h.rowsToSkip = cp
}

func (h *XLSXHandler) skipSet() map[int]struct{} {
	set := make(map[int]struct{})
	if len(h.rowsToSkip) > 0 {
		for _, r := range h.rowsToSkip {
			set[r] = struct{}{}
		}
		return set
	}
	for i := 0; i < h.headerRowsToSkip; i++ {
		set[i] = struct{}{}
	}
	return set
}

// activeSheet opens the workbook and resolves the configured sheet name,
// falling back to the first sheet with a warning when the name is absent
// so sheet resolution is always deterministic.
func (h *XLSXHandler) activeSheet() (*xlsx.Sheet, error) {
	wb, err := xlsx.OpenFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", h.path, err)
	}
	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("tabular: %s: %w", h.path, ErrSheetNotFound)
	}
	if h.sheetName == "" {
		return wb.Sheets[0], nil
	}
	for _, s := range wb.Sheets {
		if s.Name == h.sheetName {
			return s, nil
		}
	}
	log.Warnf("tabular: sheet %q not found in %s, falling back to %q", h.sheetName, h.path, wb.Sheets[0].Name)
	return wb.Sheets[0], nil
}

func rowValues(r *xlsx.Row) []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.String()
	}
	return out
}

func (h *XLSXHandler) records() ([][]string, error) {
	sheet, err := h.activeSheet()
	if err != nil {
		return nil, err
	}
	skip := h.skipSet()
	out := make([][]string, 0, len(sheet.Rows))
	for i, row := range sheet.Rows {
		if _, skipped := skip[i]; skipped {
			continue
		}
		out = append(out, rowValues(row))
	}
	return out, nil
}

func (h *XLSXHandler) GetHeaders() ([]string, error) {
	records, err := h.records()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (h *XLSXHandler) Load() (*Table, error) {
	records, err := h.records()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return NewTable(nil), nil
	}
	t := NewTable(records[0])
	for _, row := range records[1:] {
		t.AppendRow(row)
	}
	return t, nil
}

func (h *XLSXHandler) IterLoad(chunkSize int) (<-chan ChunkResult, error) {
	if h.iterated {
		return nil, fmt.Errorf("tabular: %w", ErrNotLoaded)
	}
	h.iterated = true
	if chunkSize <= 0 {
		chunkSize = 1
	}
	records, err := h.records()
	if err != nil {
		return nil, err
	}

	out := make(chan ChunkResult)
	go func() {
		defer close(out)
		if len(records) == 0 {
			return
		}
		headers := records[0]
		var rows [][]string
		flush := func() {
			if len(rows) == 0 {
				return
			}
			t := NewTable(headers)
			t.Rows = rows
			out <- ChunkResult{Table: t}
			rows = nil
		}
		for _, row := range records[1:] {
			rows = append(rows, row)
			if len(rows) >= chunkSize {
				flush()
			}
		}
		flush()
	}()
	return out, nil
}

func (h *XLSXHandler) IterColumns(valueCount, chunkSize int) (<-chan ColumnResult, error) {
	t, err := h.Load()
	if err != nil {
		return nil, err
	}
	out := make(chan ColumnResult)
	go func() {
		defer close(out)
		for _, col := range t.Columns {
			values := t.Column(col)
			if valueCount > 0 && len(values) > valueCount {
				values = values[:valueCount]
			}
			ct := NewTable([]string{col})
			for _, v := range values {
				ct.AppendRow([]string{v})
			}
			out <- ColumnResult{Table: ct}
		}
	}()
	return out, nil
}

func (h *XLSXHandler) StreamRows() (<-chan RowResult, error) {
	chunks, err := h.IterLoad(1)
	if err != nil {
		return nil, err
	}
	out := make(chan RowResult)
	go func() {
		defer close(out)
		for c := range chunks {
			if c.Err != nil {
				out <- RowResult{Err: c.Err}
				return
			}
			for i := range c.Table.Rows {
				out <- RowResult{Row: c.Table.Row(i)}
			}
		}
	}()
	return out, nil
}

func (h *XLSXHandler) AppendTable(t *Table) error {
	if h.writeBuf == nil {
		h.writeBuf = NewTable(t.Columns)
	}
	h.writeBuf.AppendTable(t)
	return nil
}

func (h *XLSXHandler) AppendRow(row []string) error {
	if h.writeBuf == nil {
		return fmt.Errorf("tabular: append row: %w", ErrNotLoaded)
	}
	h.writeBuf.AppendRow(row)
	return nil
}

func (h *XLSXHandler) Save() error {
	return h.SaveAs(h.path)
}

func (h *XLSXHandler) SaveAs(path string) error {
	if h.writeBuf == nil {
		h.writeBuf = NewTable(nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("tabular: mkdir for %s: %w", path, err)
	}

	wb := xlsx.NewFile()
	sheetName := h.sheetName
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	sheet, err := wb.AddSheet(sheetName)
	if err != nil {
		return fmt.Errorf("tabular: add sheet to %s: %w", path, err)
	}

	header := sheet.AddRow()
	for _, c := range h.writeBuf.Columns {
		header.AddCell().Value = c
	}
	for _, row := range h.writeBuf.Rows {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().Value = v
		}
	}

	if err := wb.Save(path); err != nil {
		return fmt.Errorf("tabular: save %s: %w", path, err)
	}
	h.path = path
	h.sheetName = sheetName
	log.Debugf("tabular: wrote %d rows to %s", len(h.writeBuf.Rows), path)
	return nil
}

func (h *XLSXHandler) GetSchema() (map[string]string, error) {
	headers, err := h.GetHeaders()
	if err != nil {
		return nil, err
	}
	schema := make(map[string]string, len(headers))
	for _, name := range headers {
		schema[name] = "string"
	}
	return schema, nil
}

func (h *XLSXHandler) LoadMetadata() (map[string]any, error) {
	sheets, err := h.Sheets()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"path":   h.path,
		"sheet":  h.sheetName,
		"sheets": sheets,
	}, nil
}

func (h *XLSXHandler) Equal(other Handler) bool {
	o, ok := other.(*XLSXHandler)
	return ok && o.path == h.path && o.sheetName == h.sheetName
}
