package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVHandlerLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "in.csv", "a,b\n1,2\n4,5\n")

	h := NewCSVHandler(path)
	table, err := h.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Columns)
	assert.Equal(t, [][]string{{"1", "2"}, {"4", "5"}}, table.Rows)
}

func TestCSVHandlerSniffsSemicolon(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "in.csv", "a;b\n1;2\n")

	h := NewCSVHandler(path)
	table, err := h.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Columns)
}

func TestCSVHandlerRowsToSkipTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "in.csv", "junk\na,b\n1,2\n")

	h := NewCSVHandler(path)
	h.SetHeaderRowsToSkip(5) // should be ignored
	h.SetRowsToSkip([]int{0})

	headers, err := h.GetHeaders()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, headers)
}

func TestCSVHandlerIterLoadChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "in.csv", "a\n1\n2\n3\n4\n5\n")

	h := NewCSVHandler(path)
	chunks, err := h.IterLoad(2)
	require.NoError(t, err)

	var totalRows int
	for c := range chunks {
		require.NoError(t, c.Err)
		totalRows += c.Table.NumRows()
		assert.LessOrEqual(t, c.Table.NumRows(), 2)
	}
	assert.Equal(t, 5, totalRows)
}

func TestCSVHandlerSaveAsRoundTrips(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out", "result.csv")

	h := NewCSVHandler(out)
	require.NoError(t, h.AppendTable(&Table{
		Columns: []string{"a", "b"},
		Rows:    [][]string{{"1", "2"}},
	}))
	require.NoError(t, h.SaveAs(out))

	readBack := NewCSVHandler(out)
	table, err := readBack.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Columns)
	assert.Equal(t, [][]string{{"1", "2"}}, table.Rows)
}

func TestValidateRejectsDuplicateColumns(t *testing.T) {
	err := Validate(&Table{Columns: []string{"a", "a"}})
	assert.ErrorIs(t, err, ErrDuplicateColumnName)
}

func TestValidateRejectsEmptyColumnName(t *testing.T) {
	err := Validate(&Table{Columns: []string{"a", ""}})
	assert.ErrorIs(t, err, ErrEmptyColumnName)
}

func TestParseSourceIDSplitsOnRightmostSeparator(t *testing.T) {
	path, sheet := ParseSourceID(`C:\data\book.xlsx::Sheet2`)
	assert.Equal(t, `C:\data\book.xlsx`, path)
	assert.Equal(t, "Sheet2", sheet)
}

func TestParseSourceIDWithoutSheet(t *testing.T) {
	path, sheet := ParseSourceID("data.csv")
	assert.Equal(t, "data.csv", path)
	assert.Equal(t, "", sheet)
}

func TestFactoryCreatePicksCSVHandler(t *testing.T) {
	f := NewFactory()
	f.Register(&CSVHandler{}, func(path string) Handler { return NewCSVHandler(path) })

	h, err := f.Create("data.csv")
	require.NoError(t, err)
	assert.IsType(t, &CSVHandler{}, h)
}

func TestFactoryCreateNoHandler(t *testing.T) {
	f := NewFactory()
	_, err := f.Create("data.unknown")
	assert.ErrorIs(t, err, ErrNoHandler)
}
