package mapping

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseSkipRows parses the human-writable skip-rows expression:
//
//	expr := item (',' item)*
//	item := int | int '-' int | int '..' int
//
// Empty items are ignored, whitespace around items and endpoints is
// permitted, range endpoint order is immaterial, and negative integers are
// rejected. The result is a sorted, de-duplicated list of row indices.
func ParseSkipRows(expr string) ([]int, error) {
	set := make(map[int]struct{})
	for _, item := range strings.Split(expr, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		lo, hi, err := parseItem(item)
		if err != nil {
			return nil, err
		}
		for i := lo; i <= hi; i++ {
			set[i] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

func parseItem(item string) (lo, hi int, err error) {
	if strings.Contains(item, "..") {
		parts := strings.SplitN(item, "..", 2)
		return parseRangeParts(item, parts)
	}
	if idx := strings.Index(item, "-"); idx > 0 {
		parts := []string{item[:idx], item[idx+1:]}
		return parseRangeParts(item, parts)
	}
	n, err := parseInt(item)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedSkipItem, item)
	}
	return n, n, nil
}

func parseRangeParts(item string, parts []string) (int, int, error) {
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedRange, item)
	}
	a, err1 := parseInt(parts[0])
	b, err2 := parseInt(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedRange, item)
	}
	if a > b {
		a, b = b, a
	}
	return a, b, nil
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrNegativeRowIndex
	}
	return n, nil
}

// RenderSkipRows renders a sorted, de-duplicated list of row indices back
// into the comma-separated expression grammar, collapsing consecutive runs
// into ranges.
func RenderSkipRows(rows []int) string {
	if len(rows) == 0 {
		return ""
	}
	sorted := append([]int(nil), rows...)
	sort.Ints(sorted)

	var items []string
	start := sorted[0]
	prev := sorted[0]
	flush := func(end int) {
		if start == end {
			items = append(items, strconv.Itoa(start))
		} else {
			items = append(items, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, n := range sorted[1:] {
		if n == prev {
			continue // de-dup
		}
		if n == prev+1 {
			prev = n
			continue
		}
		flush(prev)
		start, prev = n, n
	}
	flush(prev)
	return strings.Join(items, ",")
}

// IsContiguousZeroBasedPrefix reports whether rows is exactly {0,1,...,n-1}
// for some n ≥ 0, i.e. expressible as a header-row count that could be
// passed to SetHeaderRowsToSkip.
func IsContiguousZeroBasedPrefix(rows []int) bool {
	if len(rows) == 0 {
		return true
	}
	sorted := append([]int(nil), rows...)
	sort.Ints(sorted)
	for i, n := range sorted {
		if n != i {
			return false
		}
	}
	return true
}
