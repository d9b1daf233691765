package risk

import "strings"

// PhoneAnalyzer scores a raw phone number for fraud risk. Pure function,
// safe for concurrent use.
type PhoneAnalyzer struct {
	cfg Config
}

// NewPhoneAnalyzer creates a phone analyzer
func NewPhoneAnalyzer(cfg Config) *PhoneAnalyzer {
	return &PhoneAnalyzer{cfg: cfg}
}

// Analyze scores the given number. All rules after the validity check are
// additive, so one number can trigger several at once.
func (a *PhoneAnalyzer) Analyze(phone string) *Result {
	sanitized := sanitizePhone(phone)
	digits := strings.TrimPrefix(sanitized, "+")

	if sanitized == "" || len(digits) < 10 {
		return invalid("Invalid phone number", "phone_valid")
	}

	r := newResult()
	r.Features["phone_valid"] = true

	hasPlus := strings.HasPrefix(sanitized, "+")
	if !hasPlus && !strings.HasPrefix(digits, "1") {
		r.add(10, "Non-standard phone format")
		r.Features["e164"] = false
	}

	// National significant number: NANP numbers carry an 11-digit form with
	// a leading 1; everything else is scored as-is.
	nanp := len(digits) == 11 && digits[0] == '1'
	national := digits
	if nanp {
		national = digits[1:]
	}

	if hasRepeatingPattern(national) {
		r.add(40, "Repeating digit pattern")
		r.Features["repeating_pattern"] = true
	}

	if hasSequentialRun(national, 5) {
		r.add(30, "Sequential digits")
		r.Features["sequential_digits"] = true
	}

	if len(national) >= 10 && allSameDigit(national) {
		r.add(50, "All identical digits")
		r.Features["all_same_digit"] = true
	}

	if nanp && !validNANP(national) {
		r.add(25, "Invalid NANP number")
		r.Features["nanp_valid"] = false
	}

	if len(national) >= 10 && a.cfg.VoIPAreaCodes[national[:3]] {
		r.add(15, "VoIP area code")
		r.Features["voip_area_code"] = national[:3]
	}

	if a.cfg.TestPhoneNumbers[national] {
		r.add(60, "Known test number")
		r.Features["test_number"] = true
	}

	return r.clamp()
}

// sanitizePhone keeps digits and a leading plus sign only
func sanitizePhone(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hasRepeatingPattern reports whether the whole string is a short digit
// block (length 2-4) repeated end to end, e.g. 5656565656 or 1231231231 is
// not but 123123123123 is.
func hasRepeatingPattern(s string) bool {
	for plen := 2; plen <= 4; plen++ {
		if len(s) < plen*2 || len(s)%plen != 0 {
			continue
		}
		pattern := s[:plen]
		repeated := true
		for i := plen; i < len(s); i += plen {
			if s[i:i+plen] != pattern {
				repeated = false
				break
			}
		}
		if repeated {
			return true
		}
	}
	return false
}

// hasSequentialRun reports whether s contains a run of at least n digits
// each one step up or down from the previous
func hasSequentialRun(s string, n int) bool {
	if len(s) < n {
		return false
	}
	asc, desc := 1, 1
	for i := 1; i < len(s); i++ {
		switch s[i] - s[i-1] {
		case 1:
			asc++
			desc = 1
		case 255: // s[i] == s[i-1]-1
			desc++
			asc = 1
		default:
			asc, desc = 1, 1
		}
		if asc >= n || desc >= n {
			return true
		}
	}
	return false
}

func allSameDigit(s string) bool {
	if s == "" {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// validNANP checks area and exchange codes: neither may start with 0 or 1,
// and N11 service codes (211, 311, ...) are not assignable.
func validNANP(national string) bool {
	if len(national) != 10 {
		return false
	}
	area, exchange := national[:3], national[3:6]
	for _, code := range []string{area, exchange} {
		if code[0] == '0' || code[0] == '1' {
			return false
		}
		if code[1] == '1' && code[2] == '1' {
			return false
		}
	}
	return true
}
