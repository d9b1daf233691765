package risk

import (
	"fmt"
	"strings"
	"unicode"
)

// NameAnalyzer scores a guest display name for fraud risk. Pure function,
// safe for concurrent use.
type NameAnalyzer struct {
	cfg Config
}

// NewNameAnalyzer creates a name analyzer
func NewNameAnalyzer(cfg Config) *NameAnalyzer {
	return &NameAnalyzer{cfg: cfg}
}

// Analyze scores the given name. Structural features (part count, first/last
// presence, average part length) are recorded on every call regardless of
// whether any rule fires.
func (a *NameAnalyzer) Analyze(name string) *Result {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("Empty name", "name_valid")
	}

	r := newResult()
	r.Features["name_valid"] = true

	lower := strings.ToLower(name)
	tokens := strings.Fields(lower)

	if len(tokens) >= 2 && hasDuplicateTokens(tokens) {
		r.add(30, "Repeated name tokens")
		r.Features["repeated_tokens"] = true
	}

	stripped := strings.ReplaceAll(name, " ", "")
	if len(stripped) <= 2 {
		r.add(40, "Single letter or very short name")
	}
	r.Features["name_length"] = len(stripped)

	for _, testName := range a.cfg.TestNames {
		if strings.Contains(lower, testName) {
			r.add(80, fmt.Sprintf("Test name pattern: %s", testName))
			r.Features["test_name"] = testName
			break
		}
	}

	if score := scanNameProfanity(a.cfg, lower); score > 0 {
		if score > 100 {
			score = 100
		}
		r.add(score, profanityReason(score, "name"))
		r.Features["profanity_score"] = score
	}

	if hasEmojiOrExcessiveSpecials(name) {
		r.add(35, "Emoji or special characters in name")
		r.Features["special_chars"] = true
	}

	if len(name) > 3 && isAllCaps(name) {
		r.add(15, "Name in all capitals")
		r.Features["all_caps"] = true
	}

	if strings.ContainsFunc(name, unicode.IsDigit) {
		r.add(25, "Name contains digits")
		r.Features["has_digit"] = true
	}

	if looksGibberish(stripNonLetters(lower), 5, 0.15) {
		r.add(30, "Gibberish name")
		r.Features["gibberish"] = true
	}

	parts := strings.Fields(name)
	if len(parts) < 2 {
		r.add(10, "Single name only")
	}
	r.Features["name_parts"] = len(parts)
	r.Features["has_first_last"] = len(parts) >= 2
	r.Features["avg_part_length"] = avgPartLength(parts)

	return r.clamp()
}

func hasDuplicateTokens(tokens []string) bool {
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			return true
		}
		seen[t] = true
	}
	return false
}

// hasEmojiOrExcessiveSpecials flags emoji and names that lean on symbols.
// Hyphens and apostrophes are normal in names; anything else counts as a
// special character, with a tighter allowance on very short strings.
func hasEmojiOrExcessiveSpecials(name string) bool {
	specials := 0
	runeCount := 0
	for _, r := range name {
		runeCount++
		if (r >= 0x1F000 && r <= 0x1F9FF) || (r >= 0x2600 && r <= 0x27BF) {
			return true
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '\'' {
			continue
		}
		specials++
	}
	if specials > 2 {
		return true
	}
	return specials > 0 && runeCount < 5
}

func isAllCaps(name string) bool {
	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func avgPartLength(parts []string) float64 {
	if len(parts) == 0 {
		return 0
	}
	total := 0
	for _, p := range parts {
		total += len([]rune(p))
	}
	return float64(total) / float64(len(parts))
}
