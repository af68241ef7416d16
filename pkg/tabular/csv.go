package tabular

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/tabmod/tabmod/pkg/log"
)

// sniffSample is the number of bytes read from the front of a file to guess
// its delimited-text dialect.
const sniffSample = 4096

var candidateDelimiters = []rune{',', ';', '\t', '|'}

// CSVHandler is the delimited-text Handler. Dialect is sniffed from a
// leading sample unless Delimiter is set explicitly; rows-to-skip is
// forwarded to the reader as either a header count or an explicit index
// set, the latter taking precedence. Output is always written in canonical
// UTF-8 regardless of the input's detected encoding.
type CSVHandler struct {
	path      string
	Delimiter rune // 0 means "sniff"

	headerRowsToSkip int
	rowsToSkip       []int // explicit, takes precedence over headerRowsToSkip

	headers     []string
	headersRead bool

	writeBuf *Table
	iterated bool
}

var _ Handler = (*CSVHandler)(nil)

// NewCSVHandler opens (without reading) path as a delimited-text source.
func NewCSVHandler(path string) *CSVHandler {
	return &CSVHandler{path: path}
}

func (h *CSVHandler) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv" || ext == ".txt"
}

func (h *CSVHandler) Path() string          { return h.path }
func (h *CSVHandler) SheetName() string     { return "" }
func (h *CSVHandler) SetSheetName(string)   {}
func (h *CSVHandler) Sheets() ([]string, error) {
	return []string{""}, nil
}

func (h *CSVHandler) SetHeaderRowsToSkip(n int) {
	h.headerRowsToSkip = n
}

func (h *CSVHandler) SetRowsToSkip(rows []int) {
	cp := append([]int(nil), rows...)
	sort.Ints(cp)
	h.rowsToSkip = cp
}

// skipSet returns the effective skip-row index set, preferring the
// explicit list over the header-count when both are configured.
func (h *CSVHandler) skipSet() map[int]struct{} {
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

func (h *CSVHandler) openDecoded() (io.ReadCloser, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", h.path, err)
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return struct {
		io.Reader
		io.Closer
	}{transform.NewReader(f, decoder), f}, nil
}

func (h *CSVHandler) delimiter() (rune, error) {
	if h.Delimiter != 0 {
		return h.Delimiter, nil
	}
	f, err := h.openDecoded()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, sniffSample)
	n, _ := f.Read(buf)
	return sniffDelimiter(string(buf[:n])), nil
}

// sniffDelimiter picks the candidate delimiter with the highest count in
// the first line of sample, defaulting to comma.
func sniffDelimiter(sample string) rune {
	firstLine := sample
	if i := strings.IndexAny(sample, "\n\r"); i >= 0 {
		firstLine = sample[:i]
	}
	best, bestCount := ',', -1
	for _, d := range candidateDelimiters {
		count := strings.Count(firstLine, string(d))
		if count > bestCount {
			best, bestCount = d, count
		}
	}
	return best
}

// readRaw opens the file and returns every record, skip-filtered, in order.
func (h *CSVHandler) readRaw() ([][]string, error) {
	delim, err := h.delimiter()
	if err != nil {
		return nil, err
	}
	f, err := h.openDecoded()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	skip := h.skipSet()
	var out [][]string
	idx := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tabular: parse %s: %w", h.path, err)
		}
		if _, skipped := skip[idx]; !skipped {
			out = append(out, record)
		}
		idx++
	}
	return out, nil
}

func (h *CSVHandler) GetHeaders() ([]string, error) {
	if h.headersRead {
		return h.headers, nil
	}
	records, err := h.readRaw()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		h.headers, h.headersRead = nil, true
		return nil, nil
	}
	h.headers, h.headersRead = records[0], true
	return h.headers, nil
}

func (h *CSVHandler) Load() (*Table, error) {
	records, err := h.readRaw()
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

func (h *CSVHandler) IterLoad(chunkSize int) (<-chan ChunkResult, error) {
	if h.iterated {
		return nil, fmt.Errorf("tabular: %w", ErrNotLoaded)
	}
	h.iterated = true
	if chunkSize <= 0 {
		chunkSize = 1
	}

	delim, err := h.delimiter()
	if err != nil {
		return nil, err
	}
	f, err := h.openDecoded()
	if err != nil {
		return nil, err
	}

	out := make(chan ChunkResult)
	go func() {
		defer close(out)
		defer f.Close()

		r := csv.NewReader(bufio.NewReader(f))
		r.Comma = delim
		r.FieldsPerRecord = -1
		r.LazyQuotes = true

		skip := h.skipSet()
		var headers []string
		var rows [][]string
		idx := 0

		flush := func() {
			if headers == nil || len(rows) == 0 {
				return
			}
			t := NewTable(headers)
			t.Rows = rows
			out <- ChunkResult{Table: t}
			rows = nil
		}

		for {
			record, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				out <- ChunkResult{Err: fmt.Errorf("tabular: parse %s: %w", h.path, err)}
				return
			}
			if _, skipped := skip[idx]; skipped {
				idx++
				continue
			}
			idx++
			if headers == nil {
				headers = record
				continue
			}
			rows = append(rows, record)
			if len(rows) >= chunkSize {
				flush()
			}
		}
		flush()
	}()
	return out, nil
}

func (h *CSVHandler) IterColumns(valueCount, chunkSize int) (<-chan ColumnResult, error) {
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

func (h *CSVHandler) StreamRows() (<-chan RowResult, error) {
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

func (h *CSVHandler) AppendTable(t *Table) error {
	if h.writeBuf == nil {
		h.writeBuf = NewTable(t.Columns)
	}
	h.writeBuf.AppendTable(t)
	return nil
}

func (h *CSVHandler) AppendRow(row []string) error {
	if h.writeBuf == nil {
		return fmt.Errorf("tabular: append row: %w", ErrNotLoaded)
	}
	h.writeBuf.AppendRow(row)
	return nil
}

func (h *CSVHandler) Save() error {
	return h.SaveAs(h.path)
}

func (h *CSVHandler) SaveAs(path string) error {
	if h.writeBuf == nil {
		h.writeBuf = NewTable(nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("tabular: mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tabular: create %s: %w", path, err)
	}
	defer f.Close()

	delim := h.Delimiter
	if delim == 0 {
		delim = ','
	}
	w := csv.NewWriter(f)
	w.Comma = delim
	if err := w.Write(h.writeBuf.Columns); err != nil {
		return fmt.Errorf("tabular: write header to %s: %w", path, err)
	}
	for _, row := range h.writeBuf.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("tabular: write row to %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("tabular: flush %s: %w", path, err)
	}
	h.path = path
	log.Debugf("tabular: wrote %d rows to %s", len(h.writeBuf.Rows), path)
	return nil
}

func (h *CSVHandler) GetSchema() (map[string]string, error) {
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

func (h *CSVHandler) LoadMetadata() (map[string]any, error) {
	delim, err := h.delimiter()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"delimiter": string(delim),
		"encoding":  "utf-8",
		"path":      h.path,
	}, nil
}

func (h *CSVHandler) Equal(other Handler) bool {
	o, ok := other.(*CSVHandler)
	return ok && o.path == h.path
}
