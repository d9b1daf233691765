package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCIDRMatcherRejectsInvalidRange(t *testing.T) {
	_, err := NewCIDRMatcher([]string{"10.0.0.0/8", "not-a-cidr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-cidr")
}

func TestCIDRMatcherContains(t *testing.T) {
	matcher, err := NewCIDRMatcher([]string{"10.0.0.0/8", "192.168.1.0/24", "2001:db8::/32"})
	require.NoError(t, err)

	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.1.2.3", true},
		{"192.168.1.200", true},
		{"192.168.2.1", false},
		{"8.8.8.8", false},
		{"2001:db8::1", true},
		{"2001:db9::1", false},
		{"::ffff:10.1.2.3", true}, // 4-in-6 mapped address unwraps to v4
		{"garbage", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, matcher.Contains(tt.ip), "ip %q", tt.ip)
	}
}

func TestCIDRMatcherDefaultRangesParse(t *testing.T) {
	matcher, err := NewCIDRMatcher(DefaultConfig().DatacenterCIDRs)
	require.NoError(t, err)
	assert.True(t, matcher.Contains("52.12.1.9"))
	assert.False(t, matcher.Contains("203.0.113.10"))
}
