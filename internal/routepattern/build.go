package routepattern

import (
	"strings"
)

// MissingParameterError is returned when a placeholder required by every variant has no value.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return "missing data for URL segment: " + e.Name
}

// Build expands the most specific variant of p for which vals holds every placeholder, falling back to less
// specific variants. Values are inserted as given.
func Build(p *Pattern, vals map[string]string) (string, error) {
	for i := len(p.variants) - 1; i >= 0; i-- {
		if s, ok := expand(p.variants[i], vals); ok {
			return s, nil
		}
	}

	for _, name := range p.variants[0].Names() {
		if _, ok := vals[name]; !ok {
			return "", &MissingParameterError{Name: name}
		}
	}

	panic("routepattern: least specific variant expands but was not selected")
}

func expand(v Variant, vals map[string]string) (string, bool) {
	var b strings.Builder
	for _, seg := range v {
		if !seg.IsParam() {
			b.WriteString(seg.Literal)
			continue
		}

		val, ok := vals[seg.Name]
		if !ok {
			return "", false
		}

		b.WriteString(val)
	}

	return b.String(), true
}
