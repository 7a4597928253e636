package process

import "strings"

// Tokenize lower-cases text and counts its content words. A word is a maximal run of ASCII
// letters and digits; every other character is a boundary. Stopwords and single-character
// words are dropped.
func Tokenize(text string, stop StopwordSet) map[string]int {
	counts := make(map[string]int)
	lower := strings.ToLower(text)

	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := lower[start:end]
		start = -1
		if len(word) <= 1 || stop.Contains(word) {
			return
		}
		counts[word]++
	}

	for i := 0; i < len(lower); i++ {
		if isWordByte(lower[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(lower))
	return counts
}

// CountWords sums the per-word counts of a tokenized page.
func CountWords(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
