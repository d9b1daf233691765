package risk

import (
	"fmt"
	"net/netip"
)

// CIDRMatcher answers membership of an IP address in a fixed set of ranges.
// Used to classify datacenter/VPN origins; immutable after construction and
// safe for concurrent use.
type CIDRMatcher struct {
	prefixes []netip.Prefix
}

// NewCIDRMatcher parses the given CIDR strings into a matcher
func NewCIDRMatcher(cidrs []string) (*CIDRMatcher, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return &CIDRMatcher{prefixes: prefixes}, nil
}

// Contains reports whether ip falls inside any configured range. Unparseable
// addresses are treated as outside every range.
func (m *CIDRMatcher) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range m.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
