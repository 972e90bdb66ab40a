package rules

import (
	"context"
	"fmt"

	"github.com/tabsync/oidcd/pkg/slogx"
)

// Rule is one composable validation step over an authorization-style
// request. Check returns the rule's result (nil when the rule has nothing
// to record), or an error: a protocol error (*oidcerr.Error) aborts the
// pass, a *DependencyError flags rule-list misassembly.
type Rule interface {
	// Key is the bag key this rule produces.
	Key() Key

	// DependsOn lists the keys this rule reads from the bag. Declared
	// dependencies are what VerifyOrder checks at assembly time.
	DependsOn() []Key

	Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error)
}

// Manager executes rule lists in order with shared data and optional
// pre-seeded results.
type Manager struct {
	data map[string]any
}

// NewManager returns a Manager with no shared data.
func NewManager() *Manager {
	return &Manager{data: make(map[string]any)}
}

// SetData registers data every Check call passes to the rules, such as the
// default scope and the scope delimiter.
func (m *Manager) SetData(key string, value any) {
	m.data[key] = value
}

type checkConfig struct {
	seed *ResultBag
	data map[string]any
}

// CheckOption configures a single Check call.
type CheckOption func(*checkConfig)

// Seed continues an earlier validation pass: the given bag's results are
// available to the rules and the same bag receives new results.
func Seed(bag *ResultBag) CheckOption {
	return func(c *checkConfig) { c.seed = bag }
}

// Data attaches call-scoped data, shadowing manager-level data.
func Data(key string, value any) CheckOption {
	return func(c *checkConfig) {
		if c.data == nil {
			c.data = make(map[string]any)
		}
		c.data[key] = value
	}
}

// Check runs the rules in order, fail-fast. The returned bag holds every
// result produced so far, including on error, so callers can still read
// redirect_uri and state for protocol error delivery.
func (m *Manager) Check(ctx context.Context, req *Request, list []Rule, opts ...CheckOption) (*ResultBag, error) {
	var cfg checkConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	bag := cfg.seed
	if bag == nil {
		bag = NewResultBag()
	}

	for k, v := range m.data {
		req.SetData(k, v)
	}
	for k, v := range cfg.data {
		req.SetData(k, v)
	}

	log := slogx.FromContext(ctx)

	for _, rule := range list {
		result, err := rule.Check(ctx, req, bag)
		if err != nil {
			log.Debug("request rule failed", "rule", string(rule.Key()), "err", err)
			return bag, err
		}
		if result != nil {
			bag.Add(*result)
		}
	}

	return bag, nil
}

// VerifyOrder checks that every rule's declared dependencies are satisfied
// by rules earlier in the list or by the provided externally-seeded keys.
// Call it once when a rule list is assembled at startup; a failure here is
// a programming error, not a per-request condition.
func VerifyOrder(list []Rule, seeded ...Key) error {
	available := make(map[Key]struct{}, len(list)+len(seeded))
	for _, k := range seeded {
		available[k] = struct{}{}
	}

	for i, rule := range list {
		for _, dep := range rule.DependsOn() {
			if _, ok := available[dep]; !ok {
				return fmt.Errorf("rules: rule %d (%q) depends on %q which no earlier rule produces: %w",
					i, rule.Key(), dep, &DependencyError{Key: dep})
			}
		}
		available[rule.Key()] = struct{}{}
	}

	return nil
}
