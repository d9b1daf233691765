package risk

import (
	"context"
	"net"
	"time"
)

// MXResolver answers whether a domain can receive mail. Implementations must
// honor the context deadline; callers treat any error as "valid" (fail-open).
type MXResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// NetMXResolver resolves MX records with the standard resolver, bounded by a
// fixed timeout so a slow DNS server cannot stall booking submission.
type NetMXResolver struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// NewNetMXResolver creates a DNS-backed MX resolver
func NewNetMXResolver(timeout time.Duration) *NetMXResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NetMXResolver{resolver: net.DefaultResolver, timeout: timeout}
}

var _ MXResolver = (*NetMXResolver)(nil)

func (r *NetMXResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.resolver.LookupMX(ctx, domain)
}
