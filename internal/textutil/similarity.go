package textutil

import "strings"

// Dice computes the Sørensen–Dice coefficient over character bigrams of
// the two strings, in [0,1].
func Dice(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == b {
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := make(map[string]int)
	for i := 0; i < len(a)-1; i++ {
		bigrams[a[i:i+2]]++
	}

	matches := 0
	for i := 0; i < len(b)-1; i++ {
		bg := b[i : i+2]
		if bigrams[bg] > 0 {
			bigrams[bg]--
			matches++
		}
	}
	return 2.0 * float64(matches) / float64(len(a)-1+len(b)-1)
}

// JaroWinkler computes the Jaro-Winkler similarity of two strings,
// in [0,1], with the standard 0.1 prefix scale over at most 4 characters.
func JaroWinkler(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	j := jaro(a, b)
	if j == 0 {
		return 0
	}

	prefix := 0
	for i := 0; i < len(a) && i < len(b) && i < 4; i++ {
		if a[i] != b[i] {
			break
		}
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	window := max(la, lb)/2 - 1
	if window < 0 {
		window = 0
	}

	matchA := make([]bool, la)
	matchB := make([]bool, lb)
	matches := 0

	for i := 0; i < la; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > lb {
			hi = lb
		}
		for j := lo; j < hi; j++ {
			if matchB[j] || a[i] != b[j] {
				continue
			}
			matchA[i] = true
			matchB[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !matchA[i] {
			continue
		}
		for !matchB[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions)/2)/m) / 3
}

// Combined averages the Dice and Jaro-Winkler coefficients. This is the
// fuzzy signal used by capture deduplication and the fallback matcher.
func Combined(a, b string) float64 {
	return (Dice(a, b) + JaroWinkler(a, b)) / 2
}

// TokenOverlap returns the fraction of tokens of the smaller set found in
// the larger one. Useful for quick label-vs-question comparisons.
func TokenOverlap(a, b string) float64 {
	ta := strings.Fields(Normalize(a))
	tb := strings.Fields(Normalize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(tb) < len(ta) {
		ta, tb = tb, ta
	}
	set := make(map[string]bool, len(tb))
	for _, t := range tb {
		set[t] = true
	}
	hit := 0
	for _, t := range ta {
		if set[t] {
			hit++
		}
	}
	return float64(hit) / float64(len(ta))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
