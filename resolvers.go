package broute

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
)

// Resolver serializes an output for one media type.
type Resolver interface {
	Resolve(out *Output) ([]byte, error)
}

// ResolverFunc allows casting a function to a [Resolver].
type ResolverFunc func(out *Output) ([]byte, error)

// Resolve implements [Resolver].
func (f ResolverFunc) Resolve(out *Output) ([]byte, error) { return f(out) }

// Decorator can be implemented by resolvers that set headers of their own. It is called after the Content-Type is
// set and before the status and mandated headers are applied.
type Decorator interface {
	Decorate(h http.Header)
}

// JSONResolver renders outputs as JSON.
type JSONResolver struct{}

// Resolve implements [Resolver].
func (JSONResolver) Resolve(out *Output) ([]byte, error) {
	b, err := sonic.ConfigStd.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, "marshal json")
	}

	return b, nil
}

// XMLResolver renders outputs as an XML document with a <root> element. Objects become nested elements, list
// entries become <item> elements.
type XMLResolver struct{}

var (
	xmlNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)
	xmlKeyOrder    = []string{"code", "message", "field", "data", "type", "file", "line", "trace", "previous"}
)

// Resolve implements [Resolver].
func (XMLResolver) Resolve(out *Output) ([]byte, error) {
	tree, err := toTree(out)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	if err := encodeXML(enc, "root", tree); err != nil {
		return nil, err
	}

	if err := enc.Flush(); err != nil {
		return nil, errors.Wrap(err, "flush xml")
	}

	return buf.Bytes(), nil
}

// toTree turns v into maps, slices and scalars by way of its JSON form.
func toTree(v any) (any, error) {
	b, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal tree")
	}

	var tree any
	if err := sonic.ConfigStd.Unmarshal(b, &tree); err != nil {
		return nil, errors.Wrap(err, "unmarshal tree")
	}

	return tree, nil
}

func encodeXML(enc *xml.Encoder, name string, v any) error {
	if !xmlNamePattern.MatchString(name) {
		name = "item"
	}

	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return errors.Wrapf(err, "encode <%s>", name)
	}

	switch v := v.(type) {
	case map[string]any:
		for _, k := range orderedKeys(v) {
			if err := encodeXML(enc, k, v[k]); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range v {
			if err := encodeXML(enc, "item", item); err != nil {
				return err
			}
		}
	case nil:
	default:
		if err := enc.EncodeToken(xml.CharData(scalarString(v))); err != nil {
			return errors.Wrapf(err, "encode <%s> text", name)
		}
	}

	return errors.Wrapf(enc.EncodeToken(start.End()), "encode </%s>", name)
}

// orderedKeys lists the well-known output keys first and all others sorted.
func orderedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	known := map[string]bool{}
	for _, k := range xmlKeyOrder {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
			known[k] = true
		}
	}

	rest := make([]string, 0, len(m)-len(keys))
	for k := range m {
		if !known[k] {
			rest = append(rest, k)
		}
	}

	sort.Strings(rest)

	return append(keys, rest...)
}

func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// HTMLResolver renders outputs as a minimal HTML page. The page fragment of the output is used as body when it is
// set, the data is shown as indented JSON otherwise.
type HTMLResolver struct{}

var htmlPage = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Page}}{{.Page}}{{else if .Data}}<pre>{{.Data}}</pre>{{end}}
{{- with .Debug}}
<h2>{{.Type}}</h2>
<p>{{.File}}:{{.Line}}</p>
<pre>{{range .Trace}}{{.}}
{{end}}</pre>
{{- range .Previous}}
<h3>Previous: {{.Type}} ({{.Code}})</h3>
<p>{{.Message}}</p>
<p>{{.File}}:{{.Line}}</p>
<pre>{{range .Trace}}{{.}}
{{end}}</pre>
{{- end}}
{{- end}}
</body>
</html>
`))

// Resolve implements [Resolver].
func (HTMLResolver) Resolve(out *Output) ([]byte, error) {
	page := struct {
		Title string
		Page  template.HTML
		Data  string
		Debug *Debug
	}{Title: out.Message, Page: out.Page, Debug: out.Debug}

	if page.Title == "" {
		page.Title = "Code " + strconv.Itoa(out.Code)
	}

	if out.Data != nil {
		b, err := sonic.ConfigStd.MarshalIndent(out.Data, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "marshal data")
		}

		page.Data = string(b)
	}

	var buf bytes.Buffer
	if err := htmlPage.Execute(&buf, page); err != nil {
		return nil, errors.Wrap(err, "execute html template")
	}

	return buf.Bytes(), nil
}

// PlainTextResolver renders outputs as text: the message on the first line, then the data. Strings and byte slices
// are written as-is, other data as indented JSON. It is not registered by default, add it with
// WithResolver(MediaTypePlain, PlainTextResolver{}).
type PlainTextResolver struct{}

// Resolve implements [Resolver].
func (PlainTextResolver) Resolve(out *Output) ([]byte, error) {
	var buf bytes.Buffer
	if out.Message != "" {
		buf.WriteString(out.Message)
	}

	if out.Data != nil {
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}

		switch d := out.Data.(type) {
		case string:
			buf.WriteString(d)
		case []byte:
			buf.Write(d)
		default:
			b, err := sonic.ConfigStd.MarshalIndent(d, "", "  ")
			if err != nil {
				return nil, errors.Wrap(err, "marshal data")
			}

			buf.Write(b)
		}
	}

	if dbg := out.Debug; dbg != nil {
		fmt.Fprintf(&buf, "\n\n%s at %s:%d\n", dbg.Type, dbg.File, dbg.Line)
		for _, frame := range dbg.Trace {
			buf.WriteString("  " + frame + "\n")
		}
	}

	return buf.Bytes(), nil
}

// Display writes content as the plain text body of the response, regardless of what the client accepts.
func Display(w ResponseWriter, content string) error {
	w.Header().Set("Content-Type", MediaTypePlain+";charset=utf-8")
	if _, err := io.WriteString(w, content); err != nil {
		return errors.Wrap(err, "write text")
	}

	return nil
}

var (
	_ Resolver = PlainTextResolver{}
	_ Resolver = JSONResolver{}
	_ Resolver = XMLResolver{}
	_ Resolver = HTMLResolver{}
)
