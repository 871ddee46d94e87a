package reroute

import (
	"net/http"
	"regexp"
	"slices"
	"strings"
)

// Methods lists the verbs a rule can be scoped to, in expansion order.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// Rule is a user-supplied rerouting rule.
//
// From is one of:
//   - string: a pattern applied to every method
//   - *regexp.Regexp: a compiled pattern applied to every method
//   - Endpoint or *Endpoint: a pattern scoped to a single method
//   - map[string]any with "method" and "url" keys, as decoded from TOML or JSON
//
// To is the replacement path. It may reference capture groups as $name,
// ${name}, $1 or ${1}.
type Rule struct {
	From any    `json:"from" toml:"from"`
	To   string `json:"to"   toml:"to"`
}

// Endpoint scopes a rule to one method. URL is a string pattern or a
// *regexp.Regexp.
type Endpoint struct {
	Method string `json:"method" toml:"method"`
	URL    any    `json:"url"    toml:"url"`
}

// CompiledRule is a normalized rule bound to exactly one method.
type CompiledRule struct {
	Method   string
	Pattern  *regexp.Regexp
	Template string
}

// Compile normalizes rules into a Table. It never fails: rules with an
// unknown method, a missing or invalid pattern, or an unsupported From type
// are skipped.
func Compile(rules []Rule) *Table {
	compiled := make([]CompiledRule, 0, len(rules)*len(Methods))

	for _, rule := range rules {
		compiled = append(compiled, compileRule(rule)...)
	}

	return &Table{rules: compiled}
}

func compileRule(rule Rule) []CompiledRule {
	switch from := rule.From.(type) {
	case string, *regexp.Regexp:
		pattern, ok := compilePattern(from)
		if !ok {
			return nil
		}

		out := make([]CompiledRule, 0, len(Methods))
		for _, method := range Methods {
			out = append(out, CompiledRule{Method: method, Pattern: pattern, Template: rule.To})
		}

		return out
	case Endpoint:
		return compileEndpoint(from.Method, from.URL, rule.To)
	case *Endpoint:
		if from == nil {
			return nil
		}

		return compileEndpoint(from.Method, from.URL, rule.To)
	case map[string]any:
		method, _ := from["method"].(string)

		return compileEndpoint(method, from["url"], rule.To)
	default:
		return nil
	}
}

func compileEndpoint(method string, url any, template string) []CompiledRule {
	if !isMethod(method) {
		return nil
	}

	pattern, ok := compilePattern(url)
	if !ok {
		return nil
	}

	return []CompiledRule{{Method: method, Pattern: pattern, Template: template}}
}

func compilePattern(v any) (*regexp.Regexp, bool) {
	switch p := v.(type) {
	case string:
		if p == "" {
			return nil, false
		}

		re, err := regexp.Compile(p)
		if err != nil {
			return nil, false
		}

		return re, true
	case *regexp.Regexp:
		return p, p != nil
	default:
		return nil, false
	}
}

func isMethod(method string) bool {
	return slices.Contains(Methods, method)
}

// normalizeMethod maps a request method onto a known verb, or "".
func normalizeMethod(method string) string {
	upper := strings.ToUpper(method)
	if isMethod(upper) {
		return upper
	}

	return ""
}
