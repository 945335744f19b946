package urlnorm_test

import (
	"testing"

	"github.com/fivetwenty-io/portal-client/internal/urlnorm"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"adds scheme and root path", "portal.example.com", "http://portal.example.com/"},
		{"lowercases scheme and host", "HTTPS://Portal.Example.COM/arcgis", "https://portal.example.com/arcgis"},
		{"strips trailing host dot", "http://portal.example.com./", "http://portal.example.com/"},
		{"drops default http port", "http://portal.example.com:80/arcgis", "http://portal.example.com/arcgis"},
		{"drops default https port", "https://portal.example.com:443/", "https://portal.example.com/"},
		{"keeps non-default port", "https://portal.example.com:7443/arcgis", "https://portal.example.com:7443/arcgis"},
		{"strips leading zeros from port", "http://portal.example.com:0080/", "http://portal.example.com/"},
		{"resolves dot segments", "http://h.com/a/./b/../c", "http://h.com/a/c"},
		{"never climbs above root", "http://h.com/../../a", "http://h.com/a"},
		{"keeps trailing slash after dot segment", "http://h.com/a/b/..", "http://h.com/a/"},
		{"escapes unsafe path characters", "http://h.com/a b", "http://h.com/a%20b"},
		{"decodes unneeded escapes", "http://h.com/a%7eb%2f", "http://h.com/a~b/"},
		{"encodes query values independently", "http://h.com/?q=a b&x=1=2", "http://h.com/?q=a%20b&x=1=2"},
		{"shebang becomes escaped fragment", "http://h.com/#!state", "http://h.com/?_escaped_fragment_=state"},
		{"collapses empty userinfo", "http://@h.com/", "http://h.com/"},
		{"keeps userinfo", "http://user@h.com/", "http://user@h.com/"},
		{"converts IDN host", "http://bücher.example/", "http://xn--bcher-kva.example/"},
		{"keeps escaped delimiters in query", "http://a.com/?a=%23b&c=%26", "http://a.com/?a=%23b&c=%26"},
		{"keeps escaped delimiters in path", "http://h.com/a%3Fb%23c", "http://h.com/a%3Fb%23c"},
		{"keeps escaped equals in query key", "http://h.com/?a%3Db=c", "http://h.com/?a%3Db=c"},
		{"quotes fragment", "http://h.com/p#a b", "http://h.com/p#a%20b"},
		{"empty input", "", ""},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, urlnorm.Normalize(testCase.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"portal.example.com",
		"HTTPS://Portal.Example.COM:443/arcgis/sharing/rest/",
		"http://h.com/a/./b/../c?q=a b&x=%41",
		"http://bücher.example/Ä%20ö",
		"http://h.com/#!state",
		"http://h.com/p#frag ment",
		"http://h.com/a%zz",
		"ftp://files.example.com:21",
		"http://a.com/?a=%23b&c=%26",
		"http://h.com/a%3Fb%23c?x=%3F#y%23",
		"http://h.com/?a%3Db=c%3Dd",
		"http://h.com/a#",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			t.Parallel()

			once := urlnorm.Normalize(input)
			assert.Equal(t, once, urlnorm.Normalize(once))
		})
	}
}

func TestHostname(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "portal.example.com", urlnorm.Hostname("https://portal.example.com:7443/arcgis"))
	assert.Empty(t, urlnorm.Hostname("::bad"))
}

func TestIsHTTP(t *testing.T) {
	t.Parallel()

	assert.True(t, urlnorm.IsHTTP("http://h.com/thumb.png"))
	assert.True(t, urlnorm.IsHTTP("https://h.com/thumb.png"))
	assert.False(t, urlnorm.IsHTTP("/tmp/thumb.png"))
	assert.False(t, urlnorm.IsHTTP("ftp://h.com/thumb.png"))
}

func TestHasScheme(t *testing.T) {
	t.Parallel()

	assert.True(t, urlnorm.HasScheme("https://h.com/sharing/rest/"))
	assert.False(t, urlnorm.HasScheme("community/groups"))
	assert.False(t, urlnorm.HasScheme("/abs/path"))
}
