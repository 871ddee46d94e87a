package reroute

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Table is an immutable, ordered list of compiled rules. A nil *Table routes
// nothing. It is safe for concurrent use.
type Table struct {
	rules []CompiledRule
}

// Len returns the number of compiled rules.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}

	return len(t.rules)
}

// Rules returns a copy of the compiled rules in match order.
func (t *Table) Rules() []CompiledRule {
	if t == nil {
		return nil
	}

	return slices.Clone(t.rules)
}

// Route returns the rewritten path for method and path, or path itself when
// no rule matches.
func (t *Table) Route(method, path string) string {
	routed, _ := t.Match(method, path)

	return routed
}

// Match is Route that also reports whether a rule was applied.
func (t *Table) Match(method, path string) (string, bool) {
	if t == nil || len(t.rules) == 0 {
		return path, false
	}

	method = normalizeMethod(method)
	if method == "" {
		return path, false
	}

	for _, rule := range t.rules {
		if rule.Method != method {
			continue
		}

		loc := rule.Pattern.FindStringSubmatchIndex(path)
		if loc == nil {
			continue
		}

		return expand(rule.Template, captures(rule.Pattern, path, loc)), true
	}

	return path, false
}

// captures maps group names and positional indexes to matched text.
// Named groups are keyed by name only; unnamed groups are numbered from 1
// in the order they appear. Groups that did not participate map to "".
func captures(re *regexp.Regexp, s string, loc []int) map[string]string {
	names := re.SubexpNames()
	if len(names) <= 1 {
		return nil
	}

	out := make(map[string]string, len(names)-1)

	for i := 1; i < len(names); i++ {
		if names[i] != "" {
			out[names[i]] = group(s, loc, i)
		}
	}

	pos := 0

	for i := 1; i < len(names); i++ {
		if names[i] != "" {
			continue
		}

		pos++

		key := strconv.Itoa(pos)
		if _, taken := out[key]; !taken {
			out[key] = group(s, loc, i)
		}
	}

	return out
}

func group(s string, loc []int, i int) string {
	start, end := loc[2*i], loc[2*i+1]
	if start < 0 {
		return ""
	}

	return s[start:end]
}

// expand substitutes $key and ${key} references in a single left-to-right
// pass. Substituted text is never rescanned. Unknown references are kept
// verbatim. For the bare form the longest matching key wins.
func expand(template string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(template, "$") {
		return template
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})

	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		if template[i] != '$' {
			b.WriteByte(template[i])
			i++

			continue
		}

		rest := template[i+1:]

		if strings.HasPrefix(rest, "{") {
			if end := strings.IndexByte(rest, '}'); end > 0 {
				if v, ok := values[rest[1:end]]; ok {
					b.WriteString(v)
					i += end + 2

					continue
				}
			}
		}

		if key := longestPrefix(rest, keys); key != "" {
			b.WriteString(values[key])
			i += 1 + len(key)

			continue
		}

		b.WriteByte('$')
		i++
	}

	return b.String()
}

func longestPrefix(s string, keys []string) string {
	for _, k := range keys {
		if strings.HasPrefix(s, k) {
			return k
		}
	}

	return ""
}
