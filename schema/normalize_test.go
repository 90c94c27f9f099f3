package schema

import "testing"

func TestNormalizeSessionURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://example.com/", "example.com"},
		{"http://www.example.com", "example.com"},
		{"www.example.com/path/", "example.com/path"},
		{"https://example.com/a?b=c", "example.com/a"},
		{"https://example.com/a#frag", "example.com/a"},
		{"https://www.example.com:8443/a/?q=1#top", "example.com/a"},
		{"browser://history", "history"},
		{"  https://WWW.Example.com/  ", "example.com"},
		{"about:blank", "about:blank"},
		{"example.com/a?b=c", "example.com/a?b=c"},
		{"", ""},
	}
	for _, tc := range cases {
		got := NormalizeSessionURL(tc.in)
		if got != tc.want {
			t.Fatalf("normalize %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestNormalizeSessionURLIdempotent(t *testing.T) {
	inputs := []string{
		"https://www.example.com/",
		"http://www.www.example.com//",
		"ftp://www.ftp://host/",
		"example.com",
		"https://example.com/a/b/?q=1",
		"www.",
		"://broken",
		"https://www.https://x/",
		"https://x/a//",
		"https://x/https://y/",
	}
	for _, in := range inputs {
		once := NormalizeSessionURL(in)
		twice := NormalizeSessionURL(once)
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeSessionURLIgnoresQueryAndFragment(t *testing.T) {
	base := NormalizeSessionURL("https://www.example.com/page")
	for _, variant := range []string{
		"https://example.com/page?ref=sidebar",
		"http://example.com/page#section",
		"https://example.com/page/?a=1#b",
	} {
		if got := NormalizeSessionURL(variant); got != base {
			t.Fatalf("expected %q to match %q, got %q", variant, base, got)
		}
	}
}

func TestIsScheme(t *testing.T) {
	cases := map[string]bool{
		"https":   true,
		"git+ssh": true,
		"a1":      true,
		"1a":      false,
		"":        false,
		"ht tp":   false,
	}
	for in, want := range cases {
		if got := IsScheme(in); got != want {
			t.Fatalf("scheme %q: expected %v, got %v", in, want, got)
		}
	}
}
