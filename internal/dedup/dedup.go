// Package dedup implements the two deduplication strategies a processing
// run may apply before transforming: drop (keep first occurrence per key)
// and concat (merge all occurrences per key into ordered unique value
// lists). Both are two-phase aggregate-then-map pipelines: chunks feed an
// aggregate, and the mapping is applied once against the materialized
// aggregate at the end, since concat dedup cannot resolve a key's full
// value set until every chunk containing that key has been seen.
package dedup

import (
	"strings"

	"github.com/tabmod/tabmod/internal/mapping"
	"github.com/tabmod/tabmod/pkg/tabular"
)

// DropAggregator keeps the first occurrence per key across any number of
// chunks, projected onto the key column plus every source referenced by
// the mapping.
type DropAggregator struct {
	key     string
	columns []string // key ∪ mapping sources, key first
	seen    map[string]struct{}
	order   []string
	rows    map[string][]string
}

// NewDropAggregator returns an aggregator for key, projecting rows onto
// key plus every source in m.
func NewDropAggregator(key string, m mapping.Mapping) *DropAggregator {
	cols := []string{key}
	seenCol := map[string]struct{}{key: {}}
	for src := range m.Sources() {
		if _, dup := seenCol[src]; !dup {
			cols = append(cols, src)
			seenCol[src] = struct{}{}
		}
	}
	return &DropAggregator{
		key:     key,
		columns: cols,
		seen:    make(map[string]struct{}),
		rows:    make(map[string][]string),
	}
}

// AddChunk drops rows with a null (missing or empty) key, then drops rows
// whose key has already been seen either in a prior chunk or earlier in
// this one, keeping the first occurrence per key within the chunk. ok is
// false if the chunk lacks the key column entirely — callers should fall
// back to the no-dedupe path for that chunk.
func (a *DropAggregator) AddChunk(t *tabular.Table) (ok bool) {
	keyIdx := t.ColumnIndex(a.key)
	if keyIdx < 0 {
		return false
	}
	colIdx := make([]int, len(a.columns))
	for i, c := range a.columns {
		colIdx[i] = t.ColumnIndex(c)
	}

	for _, row := range t.Rows {
		if keyIdx >= len(row) {
			continue
		}
		key := row[keyIdx]
		if key == "" {
			continue
		}
		if _, dup := a.seen[key]; dup {
			continue
		}
		a.seen[key] = struct{}{}
		a.order = append(a.order, key)

		projected := make([]string, len(a.columns))
		for i, idx := range colIdx {
			if idx >= 0 && idx < len(row) {
				projected[i] = row[idx]
			}
		}
		a.rows[key] = projected
	}
	return true
}

// Table materializes the aggregate as a table with one row per key, in
// first-seen order, ready for a single ApplyMapping pass.
func (a *DropAggregator) Table() *tabular.Table {
	out := tabular.NewTable(a.columns)
	for _, key := range a.order {
		out.AppendRow(a.rows[key])
	}
	return out
}

// ConcatAggregator merges all occurrences per key into ordered-unique,
// non-empty value lists per source column, joined by concatSep only at
// materialization time.
type ConcatAggregator struct {
	key       string
	concatSep string
	sources   []string // mapping sources other than key, in first-seen column order
	order     []string // keys, first-seen order
	seenKey   map[string]struct{}
	values    map[string]map[string][]string // key -> source -> ordered unique values
	seenValue map[string]map[string]map[string]struct{}
}

// NewConcatAggregator returns an aggregator for key with the given
// concatenation separator, tracking every source in m other than key.
func NewConcatAggregator(key, concatSep string, m mapping.Mapping) *ConcatAggregator {
	var sources []string
	seen := map[string]struct{}{key: {}}
	for _, slot := range m {
		for _, src := range slot.Sources {
			if _, dup := seen[src]; dup {
				continue
			}
			seen[src] = struct{}{}
			sources = append(sources, src)
		}
	}
	return &ConcatAggregator{
		key:       key,
		concatSep: concatSep,
		sources:   sources,
		seenKey:   make(map[string]struct{}),
		values:    make(map[string]map[string][]string),
		seenValue: make(map[string]map[string]map[string]struct{}),
	}
}

// AddChunk drops null-key rows, groups the remainder by key, and for each
// tracked source merges its non-empty values into the aggregate, preserving
// first-seen order and skipping duplicates. ok is false if the chunk lacks
// the key column.
func (a *ConcatAggregator) AddChunk(t *tabular.Table) (ok bool) {
	keyIdx := t.ColumnIndex(a.key)
	if keyIdx < 0 {
		return false
	}
	srcIdx := make(map[string]int, len(a.sources))
	for _, s := range a.sources {
		srcIdx[s] = t.ColumnIndex(s)
	}

	for _, row := range t.Rows {
		if keyIdx >= len(row) {
			continue
		}
		key := row[keyIdx]
		if key == "" {
			continue
		}
		if _, ok := a.seenKey[key]; !ok {
			a.seenKey[key] = struct{}{}
			a.order = append(a.order, key)
			a.values[key] = make(map[string][]string)
			a.seenValue[key] = make(map[string]map[string]struct{})
		}

		for _, src := range a.sources {
			idx, present := srcIdx[src]
			if !present || idx < 0 || idx >= len(row) {
				continue
			}
			v := row[idx]
			if v == "" {
				continue
			}
			if a.seenValue[key][src] == nil {
				a.seenValue[key][src] = make(map[string]struct{})
			}
			if _, dup := a.seenValue[key][src][v]; dup {
				continue
			}
			a.seenValue[key][src][v] = struct{}{}
			a.values[key][src] = append(a.values[key][src], v)
		}
	}
	return true
}

// Table materializes one row per key: the key column plus every tracked
// source joined by concatSep, ensuring every referenced source appears as
// a column even when no chunk contributed a value for it.
func (a *ConcatAggregator) Table() *tabular.Table {
	columns := append([]string{a.key}, a.sources...)
	out := tabular.NewTable(columns)
	for _, key := range a.order {
		row := make([]string, len(columns))
		row[0] = key
		for i, src := range a.sources {
			row[i+1] = strings.Join(a.values[key][src], a.concatSep)
		}
		out.AppendRow(row)
	}
	return out
}
