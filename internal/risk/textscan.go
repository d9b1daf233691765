package risk

import (
	"strings"
	"unicode"
)

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// maxConsonantRun returns the longest run of consecutive consonant letters.
// Non-letter characters break the run.
func maxConsonantRun(s string) int {
	run, max := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) && !isVowel(unicode.ToLower(r)) {
			run++
			if run > max {
				max = run
			}
		} else {
			run = 0
		}
	}
	return max
}

// vowelConsonantRatio returns vowels/consonants over the letters of s.
// The second return is false when s has no consonants.
func vowelConsonantRatio(s string) (float64, bool) {
	vowels, consonants := 0, 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if isVowel(unicode.ToLower(r)) {
			vowels++
		} else {
			consonants++
		}
	}
	if consonants == 0 {
		return 0, false
	}
	return float64(vowels) / float64(consonants), true
}

// looksGibberish flags strings with long consonant runs or almost no vowels
func looksGibberish(s string, runLimit int, minRatio float64) bool {
	if maxConsonantRun(s) >= runLimit {
		return true
	}
	ratio, ok := vowelConsonantRatio(s)
	return ok && ratio < minRatio
}

func stripDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, s)
}

func stripNonLetters(s string) string {
	return strings.Map(func(r rune) rune {
		if !unicode.IsLetter(r) {
			return -1
		}
		return r
	}, s)
}

func isAlphanumeric(r byte) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// hasWordBoundaries reports whether s[start:end] is delimited by
// non-alphanumeric characters (or the string edges) on both sides
func hasWordBoundaries(s string, start, end int) bool {
	if start > 0 && isAlphanumeric(s[start-1]) {
		return false
	}
	if end < len(s) && isAlphanumeric(s[end]) {
		return false
	}
	return true
}

// occurrences returns the index of every occurrence of sub in s
func occurrences(s, sub string) []int {
	var idxs []int
	for from := 0; ; {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			break
		}
		idxs = append(idxs, from+i)
		from += i + 1
	}
	return idxs
}

// scanEmailProfanity returns the highest profanity weight matched anywhere in
// the lowercased address. Context-sensitive short tokens only count when
// delimited on both sides; everything else matches as a plain substring.
// The max is taken, not the sum, so one slur matched by several overlapping
// patterns is not double-counted.
func scanEmailProfanity(cfg Config, s string) int {
	max := 0
	for word, weight := range cfg.ProfanityWeights {
		if weight <= max {
			continue
		}
		for _, i := range occurrences(s, word) {
			if cfg.ContextSensitiveWords[word] && !hasWordBoundaries(s, i, i+len(word)) {
				continue
			}
			max = weight
			break
		}
	}
	return max
}

// scanNameProfanity returns the highest position-weighted profanity score for
// a lowercased display name. Matches at the start of the name weigh 1.5x,
// matches within the first three characters 1.2x. The curated exception rules
// from Config (exempt-at-start, only-at-start) are applied before weighting.
func scanNameProfanity(cfg Config, s string) int {
	curated := func(w string) bool {
		return cfg.ContextSensitiveWords[w] || cfg.NameExemptAtStart[w] || cfg.NameOnlyAtStart[w]
	}

	max := 0
	for word, weight := range cfg.ProfanityWeights {
		for _, i := range occurrences(s, word) {
			if curated(word) {
				if !hasWordBoundaries(s, i, i+len(word)) {
					continue
				}
				if cfg.NameExemptAtStart[word] && i == 0 {
					continue
				}
				if cfg.NameOnlyAtStart[word] && i != 0 {
					continue
				}
			}

			multiplier := 1.0
			switch {
			case i == 0:
				multiplier = 1.5
			case i < 3:
				multiplier = 1.2
			}

			if scored := int(float64(weight) * multiplier); scored > max {
				max = scored
			}
		}
	}
	return max
}
