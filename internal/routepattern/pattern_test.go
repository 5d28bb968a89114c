package routepattern_test

import (
	"testing"

	"github.com/advdv/broute/internal/routepattern"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("static", func(t *testing.T) {
		pat, err := routepattern.Parse("/about/team")
		require.NoError(t, err)
		assert.True(t, pat.IsStatic())
		assert.Empty(t, pat.Names())
		assert.Equal(t, "/about/team", pat.String())
	})

	t.Run("placeholders with and without regex", func(t *testing.T) {
		pat, err := routepattern.Parse("/users/{id:[0-9]+}/posts/{ slug }")
		require.NoError(t, err)
		assert.False(t, pat.IsStatic())
		assert.Equal(t, []string{"id", "slug"}, pat.Names())

		v := pat.Variants()[0]
		assert.Equal(t, "[0-9]+", v[1].Regex)
		assert.Equal(t, routepattern.DefaultRegex, v[3].Regex)
	})

	t.Run("nested optionals", func(t *testing.T) {
		pat, err := routepattern.Parse("/archive[/{year}[/{month}]]")
		require.NoError(t, err)
		require.Len(t, pat.Variants(), 3)
		assert.Empty(t, pat.Variants()[0].Names())
		assert.Equal(t, []string{"year"}, pat.Variants()[1].Names())
		assert.Equal(t, []string{"year", "month"}, pat.Variants()[2].Names())
	})

	t.Run("regex with brackets and quantifier braces", func(t *testing.T) {
		pat, err := routepattern.Parse("/code/{code:[a-z]{2}}")
		require.NoError(t, err)
		require.Len(t, pat.Variants(), 1)
		assert.Equal(t, "[a-z]{2}", pat.Variants()[0][1].Regex)
	})

	for _, tc := range []struct {
		pat  string
		want string
	}{
		{"", "empty pattern"},
		{"/a[/b]/c", "optional segments can only occur at the end"},
		{"/a[/b", "number of opening '[' and closing ']' does not match"},
		{"/a/b]", "number of opening '[' and closing ']' does not match"},
		{"/a[]", "empty optional part"},
		{"/a/{id", "unbalanced '{'"},
		{"/a/id}", "unbalanced '}'"},
		{"/a/{1id}", "invalid placeholder name"},
		{"/a/{id}/{id}", "used more than once"},
		{"/a/{id}[/{id}]", "used more than once"},
		{"/a/{id:(}", "invalid regex"},
	} {
		t.Run("invalid "+tc.pat, func(t *testing.T) {
			_, err := routepattern.Parse(tc.pat)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestMatch(t *testing.T) {
	pat, err := routepattern.Parse("/blog/{id:[0-9]+}[/{slug}]")
	require.NoError(t, err)

	m, err := routepattern.Compile(pat)
	require.NoError(t, err)

	vals, ok := m.Match("/blog/12/hello%20world")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "12", "slug": "hello%20world"}, vals)

	vals, ok = m.Match("/blog/12")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "12"}, vals)

	_, ok = m.Match("/blog/abc")
	assert.False(t, ok)

	_, ok = m.Match("/blog/12/a/b")
	assert.False(t, ok)

	t.Run("literal text is quoted", func(t *testing.T) {
		pat, err := routepattern.Parse("{sub}.example.com")
		require.NoError(t, err)

		m, err := routepattern.Compile(pat)
		require.NoError(t, err)

		vals, ok := m.Match("api.example.com")
		require.True(t, ok)
		assert.Equal(t, "api", vals["sub"])

		_, ok = m.Match("api.exampleXcom")
		assert.False(t, ok)
	})

	t.Run("capturing groups inside placeholder regex", func(t *testing.T) {
		pat, err := routepattern.Parse("/f/{name:(a|b)+}/{ext}")
		require.NoError(t, err)

		m, err := routepattern.Compile(pat)
		require.NoError(t, err)

		vals, ok := m.Match("/f/abba/txt")
		require.True(t, ok)
		assert.Equal(t, map[string]string{"name": "abba", "ext": "txt"}, vals)
	})
}

func TestBuild(t *testing.T) {
	pat, err := routepattern.Parse("/archive/{cat}[/{year}[/{month}]]")
	require.NoError(t, err)

	s, err := routepattern.Build(pat, map[string]string{"cat": "go", "year": "2024", "month": "05"})
	require.NoError(t, err)
	assert.Equal(t, "/archive/go/2024/05", s)

	s, err = routepattern.Build(pat, map[string]string{"cat": "go", "year": "2024"})
	require.NoError(t, err)
	assert.Equal(t, "/archive/go/2024", s)

	s, err = routepattern.Build(pat, map[string]string{"cat": "go", "month": "05"})
	require.NoError(t, err)
	assert.Equal(t, "/archive/go", s)

	_, err = routepattern.Build(pat, map[string]string{"year": "2024"})
	var merr *routepattern.MissingParameterError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "cat", merr.Name)
	assert.Equal(t, "missing data for URL segment: cat", err.Error())
}

func TestLowerLiterals(t *testing.T) {
	pat, err := routepattern.Parse(`{sub:\W*[A-Z]}.Example.COM`)
	require.NoError(t, err)

	lower := pat.LowerLiterals()
	assert.Equal(t, pat.String(), lower.String())

	v := lower.Variants()[0]
	assert.Equal(t, `\W*[A-Z]`, v[0].Regex)
	assert.Equal(t, ".example.com", v[1].Literal)
	assert.Equal(t, ".Example.COM", pat.Variants()[0][1].Literal)
}
