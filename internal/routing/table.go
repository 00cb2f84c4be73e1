package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Match is the result of a successful resolution.
type Match struct {
	Target string
	Params Params
}

// Table is an ordered, immutable list of compiled rules. Insertion order is
// priority order: the first rule whose method set and pattern both match wins,
// regardless of how specific later rules are. A Table is safe for concurrent use.
type Table struct {
	rules []compiledRule
}

// NewTable compiles rules in the given order. Any invalid rule fails the whole table.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		c, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		t.rules = append(t.rules, c)
	}
	return t, nil
}

// Resolve returns the target and captured params of the first rule matching
// method and path. ok is false when no rule matches, which callers should treat
// as "no route" rather than a fault.
func (t *Table) Resolve(method, path string) (Match, bool) {
	method = strings.ToUpper(method)
	for _, c := range t.rules {
		if !c.allows(method) {
			continue
		}
		params, ok := c.match(path)
		if !ok {
			continue
		}
		return Match{Target: c.rule.Target, Params: params}, true
	}
	return Match{}, false
}

// Allowed returns the sorted set of methods any rule accepts for path.
func (t *Table) Allowed(path string) []string {
	seen := make(map[string]struct{})
	for _, c := range t.rules {
		if _, ok := c.match(path); !ok {
			continue
		}
		for m := range c.methods {
			seen[m] = struct{}{}
		}
	}
	methods := make([]string, 0, len(seen))
	for m := range seen {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Rules returns a copy of the rules in priority order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, 0, len(t.rules))
	for _, c := range t.rules {
		r := c.rule
		r.Methods = append([]string(nil), c.rule.Methods...)
		out = append(out, r)
	}
	return out
}

// Targets returns the distinct targets in first-seen order.
func (t *Table) Targets() []string {
	seen := make(map[string]struct{}, len(t.rules))
	var targets []string
	for _, c := range t.rules {
		if _, ok := seen[c.rule.Target]; ok {
			continue
		}
		seen[c.rule.Target] = struct{}{}
		targets = append(targets, c.rule.Target)
	}
	return targets
}

type paramsKey struct{}

// WithParams stores the resolved params on ctx.
func WithParams(ctx context.Context, p Params) context.Context {
	return context.WithValue(ctx, paramsKey{}, p)
}

// ParamsFromContext returns the params stored by WithParams, or nil.
func ParamsFromContext(ctx context.Context) Params {
	p, _ := ctx.Value(paramsKey{}).(Params)
	return p
}

// Param returns a single captured value, or "" when absent.
func Param(ctx context.Context, name string) string {
	return ParamsFromContext(ctx)[name]
}
