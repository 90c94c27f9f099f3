package core

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
	"pkt.systems/netbrowser/schema"
)

var (
	domainLikeRE = regexp.MustCompile(`^([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}(:\d+)?(/.*)?$`)
	localhostRE  = regexp.MustCompile(`^localhost(:\d+)?(/.*)?$`)
	ipv4RE       = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(:\d+)?(/.*)?$`)
)

// Schemes that are absolute without an authority component.
var opaqueSchemes = map[string]bool{
	"about":       true,
	"blob":        true,
	"browser":     true,
	"data":        true,
	"file":        true,
	"javascript":  true,
	"mailto":      true,
	"view-source": true,
}

// Resolve turns address-bar input into a URL. Absolute URLs pass through,
// domain-like input gets https:// (http:// for localhost and IPv4 literals)
// and anything else becomes a query on searchEngine.
func Resolve(raw, searchEngine string) (string, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return "", schema.ErrEmptyInput
	}
	if isAbsoluteURL(input) {
		return input, nil
	}
	if localhostRE.MatchString(input) || ipv4RE.MatchString(input) {
		return "http://" + input, nil
	}
	if candidate, ok := asciiHost(input); ok && domainLikeRE.MatchString(candidate) {
		return "https://" + candidate, nil
	}
	if searchEngine == "" {
		searchEngine = schema.DefaultSearchEngine
	}
	return searchEngine + encodeQueryComponent(input), nil
}

func isAbsoluteURL(input string) bool {
	if strings.ContainsAny(input, " \t") {
		return false
	}
	parsed, err := url.Parse(input)
	if err != nil || parsed.Scheme == "" {
		return false
	}
	if opaqueSchemes[strings.ToLower(parsed.Scheme)] {
		return true
	}
	return parsed.Host != "" || strings.HasPrefix(input[len(parsed.Scheme)+1:], "//")
}

// asciiHost converts an internationalized host to its punycode form,
// leaving port and path untouched.
func asciiHost(input string) (string, bool) {
	if strings.ContainsAny(input, " \t") {
		return "", false
	}
	host, rest := input, ""
	if idx := strings.IndexAny(input, ":/"); idx >= 0 {
		host, rest = input[:idx], input[idx:]
	}
	if host == "" {
		return "", false
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return input, true
	}
	return ascii + rest, true
}

// encodeQueryComponent escapes like encodeURIComponent: spaces become %20.
func encodeQueryComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
