package match

// fuzzyContains reports whether any candidate token is similar enough to
// token under the normalized Levenshtein similarity threshold.
func fuzzyContains(candidates []string, token string, threshold float64) bool {
	if threshold <= 0 {
		threshold = 0.8
	}
	for _, c := range candidates {
		if similarity(c, token) >= threshold {
			return true
		}
	}
	return false
}

// similarity is 1 - d/maxLen where d is the Levenshtein edit distance.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0.0
	}
	d := levenshtein(a, b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1.0 - float64(d)/float64(maxLen)
}

// levenshtein computes the edit distance with a single-row DP table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cur := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			min := prev + cost
			if row[j]+1 < min {
				min = row[j] + 1
			}
			if row[j-1]+1 < min {
				min = row[j-1] + 1
			}
			row[j] = min
			prev = cur
		}
	}
	return row[len(rb)]
}
