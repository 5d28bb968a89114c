// Package routepattern parses route patterns of the form "/users/{id:[0-9]+}[/{slug}]" into a structure that can
// be matched against request paths and expanded back into urls.
package routepattern

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultRegex is used for placeholders that do not declare a regex of their own.
const DefaultRegex = `[^/]+`

var namePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// A Segment is either a literal piece of text or a named placeholder.
type Segment struct {
	Literal string
	Name    string
	Regex   string
}

// IsParam reports whether the segment is a placeholder.
func (s Segment) IsParam() bool { return s.Name != "" }

// Variant is one concrete expansion of a pattern. A pattern with n optional parts has n+1 variants.
type Variant []Segment

// Names returns the placeholder names of the variant in order of appearance.
func (v Variant) Names() (names []string) {
	for _, s := range v {
		if s.IsParam() {
			names = append(names, s.Name)
		}
	}

	return names
}

// Pattern is a parsed route pattern.
type Pattern struct {
	str      string
	variants []Variant // least specific first
}

// String returns the pattern as it was parsed.
func (p *Pattern) String() string { return p.str }

// Variants returns the expansions of the pattern, least specific first.
func (p *Pattern) Variants() []Variant { return p.variants }

// IsStatic reports whether the pattern matches exactly one literal string.
func (p *Pattern) IsStatic() bool {
	return len(p.variants) == 1 && len(p.variants[0].Names()) == 0
}

// LowerLiterals returns a copy of p with every literal segment lower-cased. Placeholder regexes and the original
// string are left alone, so escapes like `\D` keep their meaning.
func (p *Pattern) LowerLiterals() *Pattern {
	out := &Pattern{str: p.str, variants: make([]Variant, len(p.variants))}
	for i, v := range p.variants {
		nv := make(Variant, len(v))
		for j, seg := range v {
			seg.Literal = strings.ToLower(seg.Literal)
			nv[j] = seg
		}

		out.variants[i] = nv
	}

	return out
}

// Names returns the placeholder names of the most specific variant.
func (p *Pattern) Names() []string {
	return p.variants[len(p.variants)-1].Names()
}

// Parse parses s into a pattern. Optional parts are delimited by square brackets and may only appear at the end of
// the pattern, possibly nested: "/a[/{b}[/{c}]]".
func Parse(s string) (*Pattern, error) {
	if s == "" {
		return nil, errors.New("empty pattern")
	}

	chunks, err := splitOptionals(s)
	if err != nil {
		return nil, err
	}

	pat := &Pattern{str: s}
	seen := map[string]bool{}

	var current string
	for i, chunk := range chunks {
		if chunk == "" && i > 0 {
			return nil, errors.Errorf("empty optional part in %q", s)
		}

		current += chunk

		variant, err := parseSegments(current)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", s)
		}

		for _, name := range variant.Names()[len(seen):] {
			if seen[name] {
				return nil, errors.Errorf("placeholder %q used more than once in %q", name, s)
			}
			seen[name] = true
		}

		pat.variants = append(pat.variants, variant)
	}

	return pat, nil
}

// splitOptionals cuts the pattern at every top-level '[' and validates that all closing brackets trail the pattern.
func splitOptionals(s string) ([]string, error) {
	var (
		chunks  []string
		depth   int
		opening int
		closing int
		start   int
		trailer bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth < 0 {
				return nil, errors.Errorf("unbalanced '}' at offset %d in %q", i, s)
			}
		case depth > 0:
		case c == '[':
			if trailer {
				return nil, errors.Errorf("optional segments can only occur at the end of %q", s)
			}
			opening++
			chunks = append(chunks, s[start:i])
			start = i + 1
		case c == ']':
			if !trailer {
				chunks = append(chunks, s[start:i])
			}
			trailer = true
			closing++
		case trailer:
			return nil, errors.Errorf("optional segments can only occur at the end of %q", s)
		}
	}

	if depth != 0 {
		return nil, errors.Errorf("unbalanced '{' in %q", s)
	}

	if opening != closing {
		return nil, errors.Errorf("number of opening '[' and closing ']' does not match in %q", s)
	}

	if !trailer {
		chunks = append(chunks, s[start:])
	}

	return chunks, nil
}

// parseSegments splits a bracket-free pattern into literal and placeholder segments.
func parseSegments(s string) (Variant, error) {
	var segs Variant

	for len(s) > 0 {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			segs = append(segs, Segment{Literal: s})
			break
		}

		if open > 0 {
			segs = append(segs, Segment{Literal: s[:open]})
		}

		end := closingBrace(s, open)
		if end < 0 {
			return nil, errors.Errorf("unbalanced '{' in %q", s)
		}

		seg, err := parsePlaceholder(s[open+1 : end])
		if err != nil {
			return nil, err
		}

		segs = append(segs, seg)
		s = s[end+1:]
	}

	return segs, nil
}

func closingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

func parsePlaceholder(body string) (Segment, error) {
	name, rx, hasRx := strings.Cut(body, ":")
	name, rx = strings.TrimSpace(name), strings.TrimSpace(rx)

	if !namePattern.MatchString(name) {
		return Segment{}, errors.Errorf("invalid placeholder name %q", name)
	}

	if !hasRx {
		rx = DefaultRegex
	}

	if rx == "" {
		return Segment{}, errors.Errorf("empty regex for placeholder %q", name)
	}

	if _, err := regexp.Compile(rx); err != nil {
		return Segment{}, errors.Wrapf(err, "invalid regex for placeholder %q", name)
	}

	return Segment{Name: name, Regex: rx}, nil
}
