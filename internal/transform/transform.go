// Package transform implements the single pure function at the heart of a
// processing run: turning one input chunk plus a mapping into one output
// chunk, with no I/O and no side effects.
package transform

import (
	"strings"

	"github.com/tabmod/tabmod/internal/mapping"
	"github.com/tabmod/tabmod/pkg/tabular"
)

// ApplyMapping builds one output column per slot by column-wise
// string-concatenation of the slot's referenced sources, joined by the
// slot's separator. Missing source columns and missing values within
// present columns both contribute empty strings. The output preserves the
// input row order; column order is the mapping order, named per
// mapping.Slot.OutputName. An empty mapping yields an empty-columns table
// over the same row count.
func ApplyMapping(t *tabular.Table, m mapping.Mapping) *tabular.Table {
	rowCount := t.NumRows()
	out := tabular.NewTable(m.OutputColumns())

	columns := make([][]string, len(m))
	for i, slot := range m {
		columns[i] = combineSlot(t, slot, rowCount)
	}

	for r := 0; r < rowCount; r++ {
		row := make([]string, len(m))
		for i := range m {
			row[i] = columns[i][r]
		}
		out.AppendRow(row)
	}
	return out
}

// combineSlot computes one slot's output series.
func combineSlot(t *tabular.Table, slot mapping.Slot, rowCount int) []string {
	sourceValues := make([][]string, len(slot.Sources))
	for i, src := range slot.Sources {
		if values := t.Column(src); values != nil {
			sourceValues[i] = values
		} else {
			sourceValues[i] = make([]string, rowCount)
		}
	}

	out := make([]string, rowCount)
	for r := 0; r < rowCount; r++ {
		parts := make([]string, len(slot.Sources))
		for i := range slot.Sources {
			if r < len(sourceValues[i]) {
				parts[i] = sourceValues[i][r]
			}
		}
		out[r] = strings.Join(parts, slot.Separator)
	}
	return out
}
