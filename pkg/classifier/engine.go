package classifier

import (
	"strings"

	"github.com/xrash/smetrics"
)

// Classifier runs a Registry's detectors over a column's values and
// produces a ranked Result. It is the Go analogue of
// src/table_modifier/classifier/__init__.py's ColumnTypeClassifier.
type Classifier struct {
	registry *Registry
}

// New returns a Classifier backed by registry.
func New(registry *Registry) *Classifier {
	return &Classifier{registry: registry}
}

// Classify scores columnName/values against every applicable registered
// detector:
//  1. normalize columnName to lower case.
//  2. for every applicable detector, compute its raw score; skip zero
//     scores.
//  3. apply the name-bias: +0.1 for a keyword substring match, else
//     +0.05*similarity(name, type_name) using Jaro-Winkler as the
//     "standard subsequence-ratio metric".
//  4. re-normalize into [0, 1).
//  5. keep strictly positive scores as candidates.
//  6. add parent_score/5 to every candidate whose parent is also a
//     candidate (intentionally not re-normalized).
func (c *Classifier) Classify(columnName string, values []string) *Result {
	name := strings.ToLower(strings.TrimSpace(columnName))
	candidates := make(map[string]float64)

	for _, d := range c.registry.Detectors() {
		if !d.isApplicable(values) {
			continue
		}
		score := d.Detect(values)
		if score == 0 {
			continue
		}

		if hasKeywordMatch(name, d.Keywords) {
			score += 0.1
		} else {
			sim := smetrics.JaroWinkler(name, d.TypeName, 0.7, 4)
			if sim < 0 {
				sim = 0
			}
			score += sim * 0.05
		}

		score = normalize(score)
		if score > 0 {
			candidates[d.TypeName] = score
		}
	}

	// Bonuses are computed from the pre-bonus scores so the result does not
	// depend on map iteration order.
	base := make(map[string]float64, len(candidates))
	for typeName, score := range candidates {
		base[typeName] = score
	}
	for typeName, score := range base {
		d, ok := c.registry.Get(typeName)
		if !ok || d.ParentType == "" {
			continue
		}
		if parentScore, ok := base[d.ParentType]; ok {
			candidates[typeName] = score + parentScore/5
		}
	}

	return &Result{
		ColumnName: columnName,
		Candidates: candidates,
		Examples:   examples(values, 3),
		registry:   c.registry,
	}
}

func hasKeywordMatch(name string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func examples(values []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
