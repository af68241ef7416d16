package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tabmod/tabmod/internal/mapping"
)

// rawSlot and rawContext mirror the JSON shape validated by
// processing-context.schema.json before being converted into the
// mapping package's richer types (parsed skip-rows, typed dedupe strategy).
type rawSlot struct {
	Sources   []string `json:"sources"`
	Separator string   `json:"separator"`
}

type rawDedupe struct {
	Enabled   bool   `json:"enabled"`
	Key       string `json:"key"`
	Strategy  string `json:"strategy"`
	ConcatSep string `json:"concat_sep"`
}

type rawContext struct {
	Source  string `json:"source"`
	Mapping struct {
		Slots []rawSlot `json:"slots"`
	} `json:"mapping"`
	SkipRows string     `json:"skip_rows"`
	Dedupe   *rawDedupe `json:"dedupe"`
}

// ParseContext validates raw against the processing-context schema and
// decodes it into a mapping.Context.
func ParseContext(raw []byte) (*mapping.Context, error) {
	if err := Validate(ProcessingContext, bytes.NewReader(raw)); err != nil {
		return nil, err
	}

	var rc rawContext
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("config: decode processing context: %w", err)
	}

	m := make(mapping.Mapping, len(rc.Mapping.Slots))
	for i, s := range rc.Mapping.Slots {
		m[i] = mapping.Slot{Sources: s.Sources, Separator: s.Separator}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("config: mapping: %w", err)
	}

	skipRows, err := mapping.ParseSkipRows(rc.SkipRows)
	if err != nil {
		return nil, fmt.Errorf("config: skip_rows: %w", err)
	}

	ctx := &mapping.Context{
		Source:   rc.Source,
		Mapping:  m,
		SkipRows: skipRows,
	}
	if rc.Dedupe != nil {
		ctx.Dedupe = &mapping.Dedupe{
			Enabled:   rc.Dedupe.Enabled,
			Key:       rc.Dedupe.Key,
			Strategy:  mapping.DedupeStrategy(rc.Dedupe.Strategy),
			ConcatSep: rc.Dedupe.ConcatSep,
		}
	}
	return ctx, nil
}
