// Package routing compiles declarative routing rules into an ordered matcher and
// resolves inbound method/path pairs to handler targets.
package routing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MatchAny is the pattern that matches every path.
const MatchAny = "*"

// defaultCapture is used when a capture segment omits its regex, e.g. "<id>".
const defaultCapture = `[^/]+`

var (
	// ErrNoMethods is returned when a rule declares an empty method set.
	ErrNoMethods = errors.New("rule has no methods")
	// ErrNoTarget is returned when a rule has no handler target.
	ErrNoTarget = errors.New("rule has no target")
	// ErrInvalidPattern is returned when a rule pattern cannot be compiled.
	ErrInvalidPattern = errors.New("invalid rule pattern")
)

var validCaptureName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Rule declares which methods and URL pattern map to a handler target.
type Rule struct {
	Methods []string `mapstructure:"methods" json:"methods"`
	Pattern string   `mapstructure:"url" json:"url"`
	Target  string   `mapstructure:"route" json:"route"`
}

// Params holds the values bound by a capture segment.
type Params map[string]string

// compiledRule is the immutable matcher built from a Rule.
type compiledRule struct {
	rule    Rule
	methods map[string]struct{}
	any     bool
	literal string
	re      *regexp.Regexp
	capture string
}

func compileRule(r Rule) (compiledRule, error) {
	if strings.TrimSpace(r.Target) == "" {
		return compiledRule{}, ErrNoTarget
	}
	if len(r.Methods) == 0 {
		return compiledRule{}, fmt.Errorf("%s: %w", r.Target, ErrNoMethods)
	}
	c := compiledRule{
		rule: Rule{
			Methods: make([]string, 0, len(r.Methods)),
			Pattern: r.Pattern,
			Target:  r.Target,
		},
		methods: make(map[string]struct{}, len(r.Methods)),
	}
	for _, m := range r.Methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" {
			return compiledRule{}, fmt.Errorf("%s: %w", r.Target, ErrNoMethods)
		}
		if _, dup := c.methods[m]; dup {
			continue
		}
		c.methods[m] = struct{}{}
		c.rule.Methods = append(c.rule.Methods, m)
	}

	if r.Pattern == MatchAny {
		c.any = true
		return c, nil
	}
	if r.Pattern == "" {
		return compiledRule{}, fmt.Errorf("%s: empty pattern: %w", r.Target, ErrInvalidPattern)
	}

	start := strings.IndexByte(r.Pattern, '<')
	if start < 0 {
		if strings.IndexByte(r.Pattern, '>') >= 0 {
			return compiledRule{}, fmt.Errorf("%s: unbalanced '>' in %q: %w", r.Target, r.Pattern, ErrInvalidPattern)
		}
		c.literal = r.Pattern
		return c, nil
	}

	name, expr, end, err := parseCapture(r.Pattern, start)
	if err != nil {
		return compiledRule{}, fmt.Errorf("%s: %w", r.Target, err)
	}
	suffix := r.Pattern[end+1:]
	if strings.ContainsAny(suffix, "<>") {
		return compiledRule{}, fmt.Errorf("%s: only one capture segment allowed in %q: %w",
			r.Target, r.Pattern, ErrInvalidPattern)
	}

	src := "^" + regexp.QuoteMeta(r.Pattern[:start]) +
		"(?P<" + name + ">" + expr + ")" +
		regexp.QuoteMeta(suffix) + "$"
	re, err := regexp.Compile(src)
	if err != nil {
		return compiledRule{}, fmt.Errorf("%s: compile %q: %v: %w", r.Target, r.Pattern, err, ErrInvalidPattern)
	}
	c.re = re
	c.capture = name
	return c, nil
}

// parseCapture reads "<name:regex>" starting at pattern[start] and returns the
// name, the regex and the index of the closing '>'. Parentheses and character
// classes in the regex are tracked so that a '>' inside them does not end the
// segment.
func parseCapture(pattern string, start int) (name, expr string, end int, err error) {
	depth := 0
	inClass := false
	end = -1
	for i := start + 1; i < len(pattern) && end < 0; i++ {
		switch c := pattern[i]; {
		case c == '\\':
			i++
		case inClass:
			switch {
			case c == '[' && strings.HasPrefix(pattern[i:], "[:"):
				// POSIX class such as [:alpha:].
				if j := strings.Index(pattern[i+2:], ":]"); j >= 0 {
					i += j + 3
				}
			case c == ']':
				inClass = false
			}
		case c == '[':
			inClass = true
			// A ']' right after '[' or '[^' is a literal member.
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				i++
			}
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				i++
			}
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == '>' && depth == 0:
			end = i
		}
	}
	if end < 0 {
		return "", "", 0, fmt.Errorf("unterminated capture in %q: %w", pattern, ErrInvalidPattern)
	}

	body := pattern[start+1 : end]
	name, expr, found := strings.Cut(body, ":")
	if !found || expr == "" {
		expr = defaultCapture
	}
	if !validCaptureName.MatchString(name) {
		return "", "", 0, fmt.Errorf("invalid capture name %q: %w", name, ErrInvalidPattern)
	}
	return name, expr, end, nil
}

func (c compiledRule) allows(method string) bool {
	_, ok := c.methods[method]
	return ok
}

// match reports whether path structurally matches the rule pattern.
func (c compiledRule) match(path string) (Params, bool) {
	switch {
	case c.any:
		return nil, true
	case c.re == nil:
		return nil, path == c.literal
	}
	sub := c.re.FindStringSubmatch(path)
	if sub == nil {
		return nil, false
	}
	return Params{c.capture: sub[c.re.SubexpIndex(c.capture)]}, true
}
