package routepattern

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Matcher matches strings against the compiled variants of a pattern.
type Matcher struct {
	pat *Pattern
	res []*regexp.Regexp
}

// Compile builds one anchored regular expression per variant of p.
func Compile(p *Pattern) (*Matcher, error) {
	m := &Matcher{pat: p, res: make([]*regexp.Regexp, len(p.variants))}

	for i, v := range p.variants {
		var b strings.Builder
		b.WriteString("^")

		n := 0
		for _, seg := range v {
			if !seg.IsParam() {
				b.WriteString(regexp.QuoteMeta(seg.Literal))
				continue
			}

			b.WriteString("(?P<p" + strconv.Itoa(n) + ">" + seg.Regex + ")")
			n++
		}

		b.WriteString("$")

		re, err := regexp.Compile(b.String())
		if err != nil {
			return nil, errors.Wrapf(err, "compile %q", p.str)
		}

		m.res[i] = re
	}

	return m, nil
}

// Pattern returns the pattern the matcher was compiled from.
func (m *Matcher) Pattern() *Pattern { return m.pat }

// Match matches s against the variants, most specific first. The values are returned as they appear in s.
func (m *Matcher) Match(s string) (map[string]string, bool) {
	for i := len(m.res) - 1; i >= 0; i-- {
		sub := m.res[i].FindStringSubmatch(s)
		if sub == nil {
			continue
		}

		names := m.pat.variants[i].Names()
		vals := make(map[string]string, len(names))
		for j, name := range names {
			vals[name] = sub[m.res[i].SubexpIndex("p"+strconv.Itoa(j))]
		}

		return vals, true
	}

	return nil, false
}
