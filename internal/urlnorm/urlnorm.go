// Package urlnorm canonicalizes portal URLs so that equivalent spellings of
// the same endpoint compare equal.
package urlnorm

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

const (
	pathSafe     = "~:/[]@!$&'()*+,;="
	querySafe    = "~:/?[]@!$'()*+,;="
	keySafe      = "~:/?[]@!$'()*+,;"
	fragmentSafe = "~"
	upperHex     = "0123456789ABCDEF"
)

// defaultPorts maps schemes to the port that is implied when none is given.
//
//nolint:gochecknoglobals // lookup table
var defaultPorts = map[string]int{
	"ftp":      21,
	"telnet":   23,
	"http":     80,
	"gopher":   70,
	"news":     119,
	"nntp":     119,
	"prospero": 191,
	"https":    443,
	"snews":    563,
	"snntp":    563,
}

//nolint:gochecknoglobals // compiled once
var authorityPattern = regexp.MustCompile(`^([^@]*@)?([^:]*):?(.*)$`)

// Normalize returns the canonical form of raw. It never fails: input that
// cannot be interpreted is passed through as faithfully as possible.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	if raw[0] != '/' && raw[0] != '-' && !strings.Contains(prefix(raw, 7), ":") {
		raw = "http://" + raw
	}

	raw = strings.ReplaceAll(raw, "#!", "?_escaped_fragment_=")

	parts := split(strings.TrimSpace(raw))
	userinfo, host, port := splitAuthority(parts.authority)

	scheme := strings.ToLower(parts.scheme)
	host = normalizeHost(host)

	path := quote(clean(parts.path), pathSafe)
	fragment := quote(clean(parts.fragment), fragmentSafe)
	query := normalizeQuery(parts.query)

	if scheme == "" || scheme == "http" || scheme == "https" || scheme == "ftp" || scheme == "file" {
		path = removeDotSegments(path)
	}

	if userinfo == "@" || userinfo == ":@" {
		userinfo = ""
	}

	if path == "" && (scheme == "http" || scheme == "https" || scheme == "ftp" || scheme == "file") {
		path = "/"
	}

	if def, ok := defaultPorts[scheme]; ok && port != "" && isDigits(port) {
		n, err := strconv.Atoi(port)
		if err == nil {
			port = strconv.Itoa(n)
			if n == def {
				port = ""
			}
		}
	}

	authority := userinfo + host
	if port != "" {
		authority += ":" + port
	}

	if strings.HasSuffix(raw, "#") && query == "" && fragment == "" {
		path += "#"
	}

	return join(scheme, authority, path, query, fragment)
}

// Hostname returns the host portion of raw without port, or an empty string.
func Hostname(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return parsed.Hostname()
}

// IsHTTP reports whether raw is an absolute http or https URL.
func IsHTTP(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

// HasScheme reports whether raw starts with a URL scheme.
func HasScheme(raw string) bool {
	scheme, _ := splitScheme(raw)

	return scheme != ""
}

type components struct {
	scheme    string
	authority string
	path      string
	query     string
	fragment  string
}

func split(raw string) components {
	var parts components

	parts.scheme, raw = splitScheme(raw)

	if strings.HasPrefix(raw, "//") {
		raw = raw[2:]
		end := strings.IndexAny(raw, "/?#")

		if end < 0 {
			end = len(raw)
		}

		parts.authority, raw = raw[:end], raw[end:]
	}

	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw, parts.fragment = raw[:i], raw[i+1:]
	}

	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw, parts.query = raw[:i], raw[i+1:]
	}

	parts.path = raw

	return parts
}

func splitScheme(raw string) (string, string) {
	colon := strings.IndexByte(raw, ':')
	if colon <= 0 {
		return "", raw
	}

	for i := range colon {
		c := raw[i]

		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return "", raw
		}
	}

	return raw[:colon], raw[colon+1:]
}

func splitAuthority(authority string) (string, string, string) {
	match := authorityPattern.FindStringSubmatch(authority)
	if match == nil {
		return "", authority, ""
	}

	return match[1], match[2], match[3]
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimSuffix(host, ".")

	if host == "" {
		return host
	}

	ascii, err := idna.Punycode.ToASCII(host)
	if err != nil {
		return host
	}

	return ascii
}

func normalizeQuery(query string) string {
	if query == "" {
		return ""
	}

	pairs := strings.Split(query, "&")
	for i, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)

		kv[0] = quote(clean(kv[0]), keySafe)
		if len(kv) == 2 {
			kv[1] = quote(clean(kv[1]), querySafe)
		}

		pairs[i] = strings.Join(kv, "=")
	}

	return strings.Join(pairs, "&")
}

// removeDotSegments resolves "." and ".." without climbing above the first
// retained segment.
func removeDotSegments(path string) string {
	var (
		output []string
		last   string
	)

	for _, part := range strings.Split(path, "/") {
		last = part

		switch part {
		case "":
			if len(output) == 0 {
				output = append(output, part)
			}
		case ".":
		case "..":
			if len(output) > 1 {
				output = output[:len(output)-1]
			}
		default:
			output = append(output, part)
		}
	}

	if last == "" || last == "." || last == ".." {
		output = append(output, "")
	}

	return strings.Join(output, "/")
}

func join(scheme, authority, path, query, fragment string) string {
	var builder strings.Builder

	if scheme != "" {
		builder.WriteString(scheme)
		builder.WriteByte(':')
	}

	if authority != "" || usesAuthority(scheme) {
		if path != "" && path[0] != '/' {
			path = "/" + path
		}

		builder.WriteString("//")
		builder.WriteString(authority)
	}

	builder.WriteString(path)

	if query != "" {
		builder.WriteByte('?')
		builder.WriteString(query)
	}

	if fragment != "" {
		builder.WriteByte('#')
		builder.WriteString(fragment)
	}

	return builder.String()
}

func usesAuthority(scheme string) bool {
	switch scheme {
	case "http", "https", "ftp", "file", "telnet", "gopher", "nntp", "snews", "prospero", "wais":
		return true
	default:
		return false
	}
}

// clean fully percent-decodes s and returns it as NFC-normalized UTF-8.
// Invalid byte sequences become U+FFFD.
func clean(s string) string {
	decoded := unquote(s)
	if !utf8.ValidString(decoded) {
		decoded = strings.ToValidUTF8(decoded, "\uFFFD")
	}

	return norm.NFC.String(decoded)
}

func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	var builder strings.Builder

	builder.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			builder.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))

			i += 2

			continue
		}

		builder.WriteByte(s[i])
	}

	return builder.String()
}

func quote(s, safe string) string {
	var builder strings.Builder

	builder.Grow(len(s))

	for i := range len(s) {
		c := s[i]
		if isUnreserved(c) || strings.IndexByte(safe, c) >= 0 {
			builder.WriteByte(c)

			continue
		}

		builder.WriteByte('%')
		builder.WriteByte(upperHex[c>>4])
		builder.WriteByte(upperHex[c&0x0F])
	}

	return builder.String()
}

func isUnreserved(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '.' || c == '-'
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func isDigits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return s != ""
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}

	return s[:n]
}
