package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/tablevine/booking-risk/pkg/logger"
	"go.uber.org/zap"
)

// EmailAnalyzer scores an email address for fraud risk. It is a pure
// function over its input and lookup tables, except for the optional
// MX-record lookup, which is injectable and fails open.
type EmailAnalyzer struct {
	cfg      Config
	resolver MXResolver
}

// NewEmailAnalyzer creates an email analyzer. A nil resolver disables the
// MX-record check entirely.
func NewEmailAnalyzer(cfg Config, resolver MXResolver) *EmailAnalyzer {
	return &EmailAnalyzer{cfg: cfg, resolver: resolver}
}

// Analyze scores the given address. Every rule is evaluated and the raw sum
// is clamped to 100; the only short-circuit is an invalid address, which
// returns the maximum-risk sentinel.
func (a *EmailAnalyzer) Analyze(ctx context.Context, email string) *Result {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" || !emailFormatPattern.MatchString(email) {
		return invalid("Invalid email format", "email_valid")
	}

	r := newResult()
	r.Features["email_valid"] = true

	parts := strings.SplitN(email, "@", 2)
	local, domain := parts[0], parts[1]

	if a.cfg.DisposableDomains[domain] {
		r.add(40, "Disposable email domain")
		r.Features["disposable_domain"] = true
	}

	if strings.Contains(local, "+") {
		r.add(10, "Plus-addressing in email")
		r.Features["plus_addressing"] = true
	}

	if dots := strings.Count(local, "."); dots > 3 {
		r.add(15, "Excessive dots in email address")
		r.Features["dot_count"] = dots
	}

	if noReplyPattern.MatchString(local) {
		r.add(25, "No-reply address pattern")
		r.Features["no_reply"] = true
	}

	for _, pattern := range a.cfg.TestPatterns {
		if strings.Contains(local, pattern) {
			r.add(50, fmt.Sprintf("Test email pattern: %s", pattern))
			r.Features["test_pattern"] = pattern
			break
		}
	}

	if looksGibberish(stripDigits(local), 5, 0.2) {
		r.add(20, "Gibberish email address")
		r.Features["gibberish"] = true
	}

	if isNumericOnly(local) {
		r.add(15, "Numeric-only email address")
		r.Features["numeric_local"] = true
	}

	if weight := scanEmailProfanity(a.cfg, email); weight > 0 {
		if weight > 100 {
			weight = 100
		}
		r.add(weight, profanityReason(weight, "email address"))
		r.Features["profanity_weight"] = weight
	}

	r.Features["mx_valid"] = a.checkMX(ctx, domain, r)

	return r.clamp()
}

// checkMX verifies the domain can receive mail. Known-good domains skip the
// lookup; lookup failure is treated as valid so a slow or broken resolver
// never blocks a booking.
func (a *EmailAnalyzer) checkMX(ctx context.Context, domain string, r *Result) bool {
	if a.resolver == nil || a.cfg.KnownValidDomains[domain] {
		return true
	}

	records, err := a.resolver.LookupMX(ctx, domain)
	if err != nil {
		logger.WithContext(ctx).Debug("MX lookup failed, treating domain as valid",
			zap.String("domain", domain),
			zap.Error(err))
		return true
	}

	if len(records) == 0 {
		r.add(35, "Email domain has no MX records")
		return false
	}
	return true
}

func profanityReason(weight int, where string) string {
	switch {
	case weight >= 100:
		return "Extreme profanity in " + where
	case weight >= 60:
		return "Offensive term in " + where
	default:
		return "Inappropriate term in " + where
	}
}

func isNumericOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
