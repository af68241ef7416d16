// Package mapping defines the header-mapping document a processing run
// reads: an ordered list of output slots, skip-rows selection, strictness,
// and optional deduplication, plus the grammar for the human-writable
// skip-rows expression.
package mapping

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySources      = errors.New("slot has no sources")
	ErrDuplicateSource   = errors.New("duplicate source within slot")
	ErrNegativeRowIndex  = errors.New("negative row index")
	ErrMalformedRange    = errors.New("malformed range")
	ErrMalformedSkipItem = errors.New("malformed skip-rows item")
)

// Slot is one entry in a Mapping, producing one output column by
// string-concatenating its Sources with Separator.
type Slot struct {
	Sources   []string
	Separator string
}

// Validate enforces the slot invariants: non-empty Sources, no in-slot
// duplicates.
func (s Slot) Validate() error {
	if len(s.Sources) == 0 {
		return ErrEmptySources
	}
	seen := make(map[string]struct{}, len(s.Sources))
	for _, src := range s.Sources {
		if _, dup := seen[src]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateSource, src)
		}
		seen[src] = struct{}{}
	}
	return nil
}

// OutputName is the sole source name when the slot has one source,
// otherwise "Combined_{pos}" using the slot's 1-based position.
func (s Slot) OutputName(pos int) string {
	if len(s.Sources) == 1 {
		return s.Sources[0]
	}
	return fmt.Sprintf("Combined_%d", pos)
}

// Mapping is an ordered sequence of slots.
type Mapping []Slot

// Validate checks every slot.
func (m Mapping) Validate() error {
	for i, s := range m {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return nil
}

// OutputColumns returns the mapping's output column names in order.
func (m Mapping) OutputColumns() []string {
	out := make([]string, len(m))
	for i, s := range m {
		out[i] = s.OutputName(i + 1)
	}
	return out
}

// Sources returns the set of every source column referenced anywhere in
// the mapping.
func (m Mapping) Sources() map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range m {
		for _, src := range s.Sources {
			out[src] = struct{}{}
		}
	}
	return out
}

// IdentityMapping returns one single-source slot per header, in header
// order — the CLI's default mapping.
func IdentityMapping(headers []string) Mapping {
	m := make(Mapping, len(headers))
	for i, h := range headers {
		m[i] = Slot{Sources: []string{h}, Separator: " "}
	}
	return m
}

// Strictness governs how a run reacts to mapping sources absent from the
// probed header set.
type Strictness int

const (
	// StrictnessNone substitutes empty strings for missing sources and
	// warns.
	StrictnessNone Strictness = iota
	// StrictnessAll fails if any source referenced anywhere in the
	// mapping is missing.
	StrictnessAll
	// StrictnessPerSlot fails if any individual slot has at least one
	// missing source.
	StrictnessPerSlot
)

// MissingSources returns sources referenced by m that are absent from
// headers.
func MissingSources(m Mapping, headers []string) map[string]struct{} {
	have := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		have[h] = struct{}{}
	}
	missing := make(map[string]struct{})
	for src := range m.Sources() {
		if _, ok := have[src]; !ok {
			missing[src] = struct{}{}
		}
	}
	return missing
}

// MissingPerSlot returns the indices of slots that reference at least one
// source absent from headers.
func MissingPerSlot(m Mapping, headers []string) []int {
	have := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		have[h] = struct{}{}
	}
	var out []int
	for i, s := range m {
		for _, src := range s.Sources {
			if _, ok := have[src]; !ok {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// DedupeStrategy selects how duplicate-key rows are merged.
type DedupeStrategy string

const (
	DedupeDrop   DedupeStrategy = "drop"
	DedupeConcat DedupeStrategy = "concat"
)

// Dedupe is the optional deduplication configuration for a run.
type Dedupe struct {
	Enabled   bool
	Key       string
	Strategy  DedupeStrategy
	ConcatSep string
}

// Effective downgrades a disabled or unusable dedupe config: disabled if
// Enabled is false, Key is empty, or Key is absent from headers — the
// engine then proceeds without dedup instead of failing.
func (d Dedupe) Effective(headers []string) (Dedupe, bool) {
	if !d.Enabled || d.Key == "" {
		return Dedupe{}, false
	}
	for _, h := range headers {
		if h == d.Key {
			return d, true
		}
	}
	return Dedupe{}, false
}

// Context bundles a single run's inputs: the source identifier, mapping,
// skip-rows, and optional dedupe, distinct from the global controls that
// apply across runs.
type Context struct {
	Source   string
	Mapping  Mapping
	SkipRows []int
	Dedupe   *Dedupe
}
