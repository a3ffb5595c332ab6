package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultPolicyLabel is the label reported when no prefix matched.
const DefaultPolicyLabel = "default"

// Policy describes a token bucket: Burst tokens of capacity refilled at
// Limit tokens per Window.
type Policy struct {
	Limit  int
	Window time.Duration
	Burst  int
}

// DefaultPolicy returns the policy applied to paths without a specific one.
func DefaultPolicy() Policy {
	return Policy{Limit: 100, Window: time.Minute, Burst: 120}
}

// RefillRate returns the number of tokens added per second.
func (p Policy) RefillRate() float64 {
	return float64(p.Limit) / p.Window.Seconds()
}

// TTLSeconds returns how long an idle bucket is kept in the store.
func (p Policy) TTLSeconds() int64 {
	ttl := int64(math.Ceil(2 * p.Window.Seconds()))
	if ttl < 1 {
		ttl = 1
	}
	return ttl
}

// Validate reports whether the policy can be enforced.
func (p Policy) Validate() error {
	var errs []error
	if p.Limit <= 0 {
		errs = append(errs, fmt.Errorf("limit must be positive, got %d", p.Limit))
	}
	if p.Window <= 0 {
		errs = append(errs, fmt.Errorf("window must be positive, got %s", p.Window))
	}
	if p.Burst <= 0 {
		errs = append(errs, fmt.Errorf("burst must be positive, got %d", p.Burst))
	}
	return errors.Join(errs...)
}

// PolicyTable maps path prefixes to policies. It is immutable once built.
type PolicyTable struct {
	defaultPolicy Policy
	prefixes      []string
	policies      map[string]Policy
}

// NewPolicyTable builds a table from a default policy and prefix-specific
// policies.
func NewPolicyTable(defaultPolicy Policy, byPrefix map[string]Policy) (*PolicyTable, error) {
	if err := defaultPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default policy: %w", err)
	}

	t := &PolicyTable{
		defaultPolicy: defaultPolicy,
		prefixes:      make([]string, 0, len(byPrefix)),
		policies:      make(map[string]Policy, len(byPrefix)),
	}

	for prefix, p := range byPrefix {
		if prefix == "" {
			return nil, errors.New("policy prefix must not be empty")
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid policy for prefix %q: %w", prefix, err)
		}
		t.prefixes = append(t.prefixes, prefix)
		t.policies[prefix] = p
	}

	// Longest first, so the first match in Resolve is the most specific.
	sort.Slice(t.prefixes, func(i, j int) bool {
		if len(t.prefixes[i]) != len(t.prefixes[j]) {
			return len(t.prefixes[i]) > len(t.prefixes[j])
		}
		return t.prefixes[i] < t.prefixes[j]
	})

	return t, nil
}

// Resolve returns the policy of the longest prefix matching path, and that
// prefix. Without a match it returns the default policy and DefaultPolicyLabel.
func (t *PolicyTable) Resolve(path string) (Policy, string) {
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(path, prefix) {
			return t.policies[prefix], prefix
		}
	}
	return t.defaultPolicy, DefaultPolicyLabel
}

// Default returns the default policy.
func (t *PolicyTable) Default() Policy {
	return t.defaultPolicy
}
