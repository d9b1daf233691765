package security

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// Package security provides input sanitization helpers used at the API
// boundary before user-supplied text is stored or echoed back.

var (
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)union\s+select`),
		regexp.MustCompile(`(?i)insert\s+into`),
		regexp.MustCompile(`(?i)delete\s+from`),
		regexp.MustCompile(`(?i)drop\s+table`),
		regexp.MustCompile(`(?i)update\s+\S+\s+set`),
		regexp.MustCompile(`(?i)\bexec\s*\(`),
		regexp.MustCompile(`(?i)\bexecute\s*\(`),
		regexp.MustCompile(`(?i)script>`),
		regexp.MustCompile(`(?i)javascript:`),
	}

	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)<script[^>]*>?`),
		regexp.MustCompile(`(?i)</script>`),
		regexp.MustCompile(`(?is)<iframe[^>]*>.*?</iframe>`),
		regexp.MustCompile(`(?i)<iframe[^>]*>?`),
		regexp.MustCompile(`(?i)</iframe>`),
		regexp.MustCompile(`(?i)\bon\w+\s*=`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)<embed[^>]*>?`),
		regexp.MustCompile(`(?i)<object[^>]*>?`),
	}

	emailCharsRe    = regexp.MustCompile(`[^a-z0-9@._+\-]`)
	phoneCharsRe    = regexp.MustCompile(`[^0-9+]`)
	filenameSepRe   = regexp.MustCompile(`[/\\]`)
	filenameDotsRe  = regexp.MustCompile(`\.{2,}`)
	filenameCharsRe = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)
	htmlTagRe       = regexp.MustCompile(`<[^>]*>`)
	htmlTagNameRe   = regexp.MustCompile(`<\s*(/?)\s*([a-zA-Z0-9]+)[^>]*>`)
)

// allowedHTMLTags is the whitelist for StripNonAllowedHTMLTags. Basic
// formatting only, nothing that can carry attributes we care about.
var allowedHTMLTags = map[string]bool{
	"b":      true,
	"i":      true,
	"em":     true,
	"strong": true,
	"p":      true,
	"br":     true,
	"span":   true,
}

// SanitizeString trims surrounding whitespace and strips null bytes and
// control characters, preserving newlines and tabs.
func SanitizeString(s string) string {
	return removeControlCharacters(strings.TrimSpace(s))
}

// SanitizeHTML escapes HTML special characters so the string is safe to
// embed in markup.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeForSQL strips common SQL injection patterns. Parameterized
// queries are the real defense; this is a second layer for free-text
// fields that end up in logs and admin views.
func SanitizeForSQL(s string) string {
	return stripPatterns(s, sqlPatterns)
}

// SanitizeForXSS strips script/iframe/embed/object tags, inline event
// handlers and javascript: URIs.
func SanitizeForXSS(s string) string {
	return stripPatterns(s, xssPatterns)
}

// SanitizeEmail lowercases, trims and removes every character that is not
// valid in the addresses we accept.
func SanitizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return emailCharsRe.ReplaceAllString(s, "")
}

// SanitizePhone keeps digits and leading plus signs, dropping formatting.
func SanitizePhone(s string) string {
	return phoneCharsRe.ReplaceAllString(s, "")
}

// SanitizeAlphanumeric keeps only letters and digits (any script).
func SanitizeAlphanumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeFilename makes a string safe to use as a file name: path
// separators and dot sequences are removed, remaining unsafe characters
// become underscores, and the result is capped at 255 bytes.
func SanitizeFilename(s string) string {
	s = filenameSepRe.ReplaceAllString(s, "")
	s = filenameDotsRe.ReplaceAllString(s, "")
	s = filenameCharsRe.ReplaceAllString(s, "_")
	return TruncateString(s, 255)
}

// SanitizeURL returns the URL if it uses http or https and carries no
// javascript: payload, otherwise an empty string.
func SanitizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "javascript:") {
		return ""
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ""
	}
	return s
}

// StripHTMLTags removes all HTML tags, keeping their text content.
func StripHTMLTags(s string) string {
	return htmlTagRe.ReplaceAllString(s, "")
}

// StripNonAllowedHTMLTags removes tags outside a small formatting
// whitelist and strips attributes from the tags it keeps.
func StripNonAllowedHTMLTags(s string) string {
	return htmlTagNameRe.ReplaceAllStringFunc(s, func(tag string) string {
		m := htmlTagNameRe.FindStringSubmatch(tag)
		if m == nil {
			return ""
		}
		name := strings.ToLower(m[2])
		if !allowedHTMLTags[name] {
			return ""
		}
		return "<" + m[1] + name + ">"
	})
}

// TruncateString cuts the string to at most maxLength bytes.
func TruncateString(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength]
}

// NormalizeWhitespace collapses runs of whitespace into single spaces and
// trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ContainsSQLInjection reports whether the string carries a known SQL
// injection pattern.
func ContainsSQLInjection(s string) bool {
	for _, re := range sqlPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ContainsXSS reports whether the string carries a known XSS pattern.
func ContainsXSS(s string) bool {
	for _, re := range xssPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// SanitizeInput applies the full pipeline for untrusted free text:
// control characters, XSS and SQL patterns are stripped, whitespace is
// normalized and the result is truncated to maxLength.
func SanitizeInput(s string, maxLength int) string {
	s = SanitizeString(s)
	s = SanitizeForXSS(s)
	s = SanitizeForSQL(s)
	s = NormalizeWhitespace(s)
	return TruncateString(s, maxLength)
}

// UserInput bundles the contact fields we accept from clients.
type UserInput struct {
	Email       string
	Phone       string
	Name        string
	Description string
	URL         string
}

// Sanitize cleans every field in place.
func (u *UserInput) Sanitize() {
	u.Email = SanitizeEmail(u.Email)
	u.Phone = SanitizePhone(u.Phone)
	u.Name = SanitizeInput(u.Name, 255)
	u.Description = SanitizeInput(u.Description, 2000)
	u.URL = SanitizeURL(u.URL)
}

func removeControlCharacters(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stripPatterns(s string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		for re.MatchString(s) {
			s = re.ReplaceAllString(s, "")
		}
	}
	return s
}
