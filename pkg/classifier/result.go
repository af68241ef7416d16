package classifier

import "sort"

// Result is a per-column classification outcome: every detector that
// produced a strictly positive score after the name-bias and
// parent-specialization adjustments. Candidates is an unordered map;
// Ranked returns its names sorted by descending score.
type Result struct {
	ColumnName string
	Candidates map[string]float64
	Examples   []string

	registry *Registry
}

// Ranked returns candidate type names sorted by descending score, ties
// broken by registration order for determinism.
func (r *Result) Ranked() []string {
	names := make([]string, 0, len(r.Candidates))
	for name := range r.Candidates {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		si, sj := r.Candidates[names[i]], r.Candidates[names[j]]
		if si != sj {
			return si > sj
		}
		return r.registry.IndexOf(names[i]) < r.registry.IndexOf(names[j])
	})
	return names
}

// BestMatch returns the top-scoring candidate and its score, or ("", 0,
// false) if there are no candidates or the best score is below threshold.
// Ties are broken by greatest taxonomy depth, then by registration order.
func (r *Result) BestMatch(threshold float64) (string, float64, bool) {
	if len(r.Candidates) == 0 {
		return "", 0, false
	}
	top := 0.0
	for _, s := range r.Candidates {
		if s > top {
			top = s
		}
	}
	if top < threshold {
		return "", 0, false
	}

	var tied []string
	for name, s := range r.Candidates {
		if s == top {
			tied = append(tied, name)
		}
	}
	if len(tied) == 1 {
		return tied[0], top, true
	}

	sort.Slice(tied, func(i, j int) bool {
		di, dj := r.registry.Depth(tied[i]), r.registry.Depth(tied[j])
		if di != dj {
			return di > dj
		}
		return r.registry.IndexOf(tied[i]) < r.registry.IndexOf(tied[j])
	})
	return tied[0], top, true
}

// MostGeneric walks the best match's parent chain up to its root ancestor.
func (r *Result) MostGeneric() (string, bool) {
	best, _, ok := r.BestMatch(0.1)
	if !ok {
		return "", false
	}
	return r.registry.Root(best), true
}
