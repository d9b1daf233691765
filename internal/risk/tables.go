package risk

import "regexp"

// Config carries the lookup tables and policy knobs for the analyzers.
// Everything is injected explicitly; there are no global config lookups.
type Config struct {
	// Email
	DisposableDomains map[string]bool
	TestPatterns      []string // checked in order, first match wins
	KnownValidDomains map[string]bool

	// Shared profanity table. Weights range 30-100; the single highest
	// matching weight is added, never the sum.
	ProfanityWeights map[string]int

	// Short tokens that appear inside legitimate words ("heller",
	// "classic", "blower"). In email scans they require non-alphanumeric
	// boundaries on both sides; in name scans they additionally follow
	// the position exception rules below.
	ContextSensitiveWords map[string]bool

	// Curated anti-false-positive exceptions for names. Tuned by hand
	// against real guest names; preserve as-is for scoring parity.
	//   - words in NameExemptAtStart are never flagged at position 0
	//     ("Dick Johnson" is a real person)
	//   - words in NameOnlyAtStart are flagged ONLY at position 0
	//     ("go to hell" mid-string is noise, "Hell" as a first name is not)
	NameExemptAtStart map[string]bool
	NameOnlyAtStart   map[string]bool

	// Name
	TestNames []string // checked in order, first match wins

	// Phone
	VoIPAreaCodes    map[string]bool
	TestPhoneNumbers map[string]bool

	// Datacenter / VPN origin ranges
	DatacenterCIDRs []string
}

// noReplyPattern matches automated-mailbox local parts
var noReplyPattern = regexp.MustCompile(`^(no-?reply|noreply|do-?not-?reply)`)

// emailFormatPattern is the baseline address shape check
var emailFormatPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// DefaultConfig returns the production lookup tables
func DefaultConfig() Config {
	return Config{
		DisposableDomains: map[string]bool{
			"mailinator.com":      true,
			"guerrillamail.com":   true,
			"10minutemail.com":    true,
			"tempmail.com":        true,
			"temp-mail.org":       true,
			"throwawaymail.com":   true,
			"yopmail.com":         true,
			"trashmail.com":       true,
			"getnada.com":         true,
			"maildrop.cc":         true,
			"fakeinbox.com":       true,
			"sharklasers.com":     true,
			"guerrillamail.info":  true,
			"dispostable.com":     true,
			"mintemail.com":       true,
			"mailnesia.com":       true,
			"tempinbox.com":       true,
			"spamgourmet.com":     true,
			"mytrashmail.com":     true,
			"mailcatch.com":       true,
		},
		TestPatterns: []string{
			"test", "demo", "fake", "bot", "asdf", "qwerty",
			"sample", "dummy", "example", "spam",
		},
		KnownValidDomains: map[string]bool{
			"gmail.com":      true,
			"yahoo.com":      true,
			"outlook.com":    true,
			"hotmail.com":    true,
			"icloud.com":     true,
			"aol.com":        true,
			"protonmail.com": true,
			"proton.me":      true,
			"live.com":       true,
			"msn.com":        true,
			"me.com":         true,
			"comcast.net":    true,
			"verizon.net":    true,
			"att.net":        true,
		},
		ProfanityWeights: map[string]int{
			"fuck":    100,
			"cunt":    100,
			"nigger":  100,
			"faggot":  100,
			"asshole": 90,
			"whore":   90,
			"slut":    90,
			"shit":    80,
			"bitch":   80,
			"cock":    70,
			"dick":    60,
			"wank":    60,
			"bastard": 60,
			"piss":    50,
			"ass":     50,
			"hell":    40,
			"blow":    40,
			"suck":    40,
			"crap":    30,
			"damn":    30,
		},
		ContextSensitiveWords: map[string]bool{
			"hell": true,
			"ass":  true,
			"blow": true,
			"cock": true,
		},
		NameExemptAtStart: map[string]bool{
			"dick": true,
		},
		NameOnlyAtStart: map[string]bool{
			"blow": true,
			"suck": true,
			"hell": true,
			"ass":  true,
		},
		TestNames: []string{
			"test test", "test user", "testing test",
			"john doe", "jane doe",
			"lorem ipsum",
			"asdf asdf", "asdf",
			"first last", "firstname lastname",
			"fake name", "no name",
		},
		VoIPAreaCodes: map[string]bool{
			"456": true,
			"500": true,
			"521": true,
			"522": true,
			"533": true,
			"544": true,
			"566": true,
			"577": true,
			"588": true,
			"700": true,
			"710": true,
			"900": true,
		},
		TestPhoneNumbers: map[string]bool{
			"5555555555": true,
			"1234567890": true,
			"0123456789": true,
			"1111111111": true,
			"0000000000": true,
			"9999999999": true,
			"9876543210": true,
			"5551234567": true,
		},
		DatacenterCIDRs: []string{
			// AWS
			"3.0.0.0/8",
			"13.32.0.0/12",
			"18.128.0.0/9",
			"52.0.0.0/10",
			"54.144.0.0/12",
			// GCP
			"34.64.0.0/10",
			"35.184.0.0/13",
			// Azure
			"20.33.0.0/16",
			"40.64.0.0/10",
			// DigitalOcean
			"104.131.0.0/16",
			"159.65.0.0/16",
			// OVH
			"51.38.0.0/16",
			// Hetzner
			"95.216.0.0/16",
			"135.181.0.0/16",
		},
	}
}
