package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

// StringCheck scores 1.0 when every value is non-empty text, 0.25 when some
// but not all values look like text, 0 otherwise. Mirrors check/string.py's
// StringCheck.
func StringCheck(weight float64) Check {
	return newCheck("string_check", weight, func(values []string) float64 {
		if len(values) == 0 {
			return 0
		}
		anyText, allText := false, true
		for _, v := range values {
			if v == "" {
				allText = false
				continue
			}
			anyText = true
		}
		switch {
		case allText:
			return 1
		case anyText:
			return 0.25
		default:
			return 0
		}
	})
}

// PatternCheck is the fraction of values matching a compiled regexp.
func PatternCheck(name, pattern string, weight float64) Check {
	re := regexp.MustCompile(pattern)
	return newCheck(name, weight, func(values []string) float64 {
		return byPredicateCount(values, func(v string) bool { return re.MatchString(v) })
	})
}

// LengthCheck is the fraction of values whose rune length falls in
// [minLen, maxLen].
func LengthCheck(name string, minLen, maxLen int, weight float64) Check {
	return newCheck(name, weight, func(values []string) float64 {
		return byPredicateCount(values, func(v string) bool {
			n := len([]rune(v))
			return n >= minLen && n <= maxLen
		})
	})
}

// LengthVarianceCheck scores 1.0 when the variance of value lengths is at
// most maxVariance and 0 when it exceeds maxVariance (maxVariance < 0 means
// "no upper bound"); there is no lower bound. Mirrors check/special.py's
// LengthVarianceCheck.
func LengthVarianceCheck(name string, maxVariance, weight float64) Check {
	return newCheck(name, weight, func(values []string) float64 {
		if len(values) == 0 {
			return 0
		}
		lengths := make([]float64, 0, len(values))
		for _, v := range values {
			lengths = append(lengths, float64(len([]rune(v))))
		}
		variance := populationVariance(lengths)
		if maxVariance >= 0 && variance > maxVariance {
			return 0
		}
		if variance >= 0 {
			return 1
		}
		return 0.25
	})
}

// UniquenessCheck scores the fraction of distinct values against
// [minUniqueness, maxUniqueness]. maxUniqueness < 0 means "no upper bound".
func UniquenessCheck(name string, minUniqueness, maxUniqueness, weight float64) Check {
	return newCheck(name, weight, func(values []string) float64 {
		if len(values) == 0 {
			return 0
		}
		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			seen[v] = struct{}{}
		}
		ratio := float64(len(seen)) / float64(len(values))
		if maxUniqueness >= 0 && ratio > maxUniqueness {
			return 0
		}
		if ratio >= minUniqueness {
			return 1
		}
		return 0.25
	})
}

// VarianceCheck scores 1.0 when the variance of the numeric values parsed
// from values lies in [minVariance, maxVariance], 0 otherwise (non-numeric
// values are ignored; an all-non-numeric column scores 0).
func VarianceCheck(name string, minVariance, maxVariance, weight float64) Check {
	return newCheck(name, weight, func(values []string) float64 {
		nums := parseNumbers(values)
		if len(nums) == 0 {
			return 0
		}
		v := populationVariance(nums)
		if v >= minVariance && (maxVariance < 0 || v <= maxVariance) {
			return 1
		}
		return 0
	})
}

// NumericCheck is the fraction of values that parse as a number.
func NumericCheck(weight float64) Check {
	return newCheck("numeric_check", weight, func(values []string) float64 {
		return byPredicateCount(values, isNumeric)
	})
}

func isNumeric(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

func parseNumbers(values []string) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func populationVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return sq / float64(len(xs))
}
