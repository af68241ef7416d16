package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tabmod/tabmod/internal/mapping"
	"github.com/tabmod/tabmod/pkg/tabular"
)

func TestApplyMappingIdentity(t *testing.T) {
	table := &tabular.Table{
		Columns: []string{"a", "b"},
		Rows:    [][]string{{"1", "2"}, {"4", "5"}},
	}
	m := mapping.Mapping{
		{Sources: []string{"a"}, Separator: " "},
		{Sources: []string{"b"}, Separator: " "},
	}

	out := ApplyMapping(table, m)
	assert.Equal(t, []string{"a", "b"}, out.Columns)
	assert.Equal(t, [][]string{{"1", "2"}, {"4", "5"}}, out.Rows)
}

func TestApplyMappingCombineWithSeparator(t *testing.T) {
	table := &tabular.Table{
		Columns: []string{"A", "B", "C"},
		Rows: [][]string{
			{"x", "1", "u"},
			{"y", "2", "v"},
			{"", "3", "w"},
		},
	}
	m := mapping.Mapping{
		{Sources: []string{"A"}, Separator: "|"},
		{Sources: []string{"B", "C"}, Separator: "-"},
	}

	out := ApplyMapping(table, m)
	assert.Equal(t, []string{"A", "Combined_2"}, out.Columns)
	assert.Equal(t, [][]string{
		{"x", "1-u"},
		{"y", "2-v"},
		{"", "3-w"},
	}, out.Rows)
}

func TestApplyMappingMissingSourceYieldsEmptyStrings(t *testing.T) {
	table := &tabular.Table{
		Columns: []string{"A"},
		Rows:    [][]string{{"x"}, {"y"}},
	}
	m := mapping.Mapping{
		{Sources: []string{"A", "B"}, Separator: "-"},
	}

	out := ApplyMapping(table, m)
	assert.Equal(t, []string{"Combined_1"}, out.Columns)
	assert.Equal(t, [][]string{{"x-"}, {"y-"}}, out.Rows)
}

func TestApplyMappingEmptyMappingYieldsEmptyColumnsSameRowCount(t *testing.T) {
	table := &tabular.Table{
		Columns: []string{"A"},
		Rows:    [][]string{{"x"}, {"y"}, {"z"}},
	}

	out := ApplyMapping(table, mapping.Mapping{})
	assert.Empty(t, out.Columns)
	assert.Equal(t, 3, out.NumRows())
}
