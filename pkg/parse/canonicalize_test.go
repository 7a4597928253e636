package parse

import (
	"errors"
	"testing"

	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

const base = "https://cs.uci.edu/dept/index.html"

func TestCanonicalize_NotCrawlable(t *testing.T) {
	for _, href := range []string{"#top", "  #", "tel:+1-949-555-0100", "TEL:555", "mailto:someone@uci.edu", "MailTo:x@y.z"} {
		t.Run(href, func(t *testing.T) {
			got, err := Canonicalize(base, href)
			if !errors.Is(err, ErrNotCrawlable) {
				t.Fatalf("Canonicalize(%q) error = %v, want ErrNotCrawlable", href, err)
			}
			if errors.Is(err, utils.ErrMalformedURL) {
				t.Errorf("Canonicalize(%q) should not be reported as malformed", href)
			}
			if got != "" {
				t.Errorf("Canonicalize(%q) = %q, want empty", href, got)
			}
		})
	}
}

func TestCanonicalize_Resolution(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		href     string
		expected string
	}{
		{"RootRelative", base, "/page2", "https://cs.uci.edu/page2"},
		{"RootRelativeHTTPBase", "http://www.ics.uci.edu:80/a/b", "/x?y=1", "http://www.ics.uci.edu/x?y=1"},
		{"ProtocolRelativeAlwaysHTTPS", "http://cs.uci.edu/", "//cdn.uci.edu/a", "https://cdn.uci.edu/a"},
		{"Absolute", base, "https://example.com/x", "https://example.com/x"},
		{"RelativePath", base, "page.html", "https://cs.uci.edu/dept/page.html"},
		{"ParentPath", base, "../faculty/", "https://cs.uci.edu/faculty/"},
		{"QueryOnly", base, "?q=1", "https://cs.uci.edu/dept/index.html?q=1"},
		{"FragmentStripped", base, "/a#sec1", "https://cs.uci.edu/a"},
		{"SurroundingWhitespace", base, "  /spaced  ", "https://cs.uci.edu/spaced"},
		{"HostLowercasedPathKept", base, "HTTPS://CS.UCI.EDU/Path/Case", "https://cs.uci.edu/Path/Case"},
		{"DefaultPortDropped", base, "https://cs.uci.edu:443/p", "https://cs.uci.edu/p"},
		{"NonDefaultPortKept", base, "http://cs.uci.edu:8080/p", "http://cs.uci.edu:8080/p"},
		{"EmptyPathBecomesSlash", base, "https://ics.uci.edu", "https://ics.uci.edu/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.base, tt.href)
			if err != nil {
				t.Fatalf("Canonicalize(%q, %q) error = %v", tt.base, tt.href, err)
			}
			if got != tt.expected {
				t.Errorf("Canonicalize(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.expected)
			}
		})
	}
}

func TestCanonicalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		base string
		href string
	}{
		{"BadIPv6Host", base, "http://[::1"},
		{"RelativeAgainstBadBase", "not a url", "page.html"},
		{"BadPort", base, "http://cs.uci.edu:99999/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.base, tt.href)
			if !errors.Is(err, utils.ErrMalformedURL) {
				t.Errorf("Canonicalize(%q, %q) error = %v, want ErrMalformedURL", tt.base, tt.href, err)
			}
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	hrefs := []string{"/a/b?x=1#frag", "//cdn.uci.edu/a", "../up", "HTTP://WWW.ICS.UCI.EDU"}
	for _, href := range hrefs {
		first, err := Canonicalize(base, href)
		if err != nil {
			t.Fatalf("Canonicalize(%q) error = %v", href, err)
		}
		second, err := Canonicalize(base, href)
		if err != nil || second != first {
			t.Errorf("Canonicalize(%q) not deterministic: %q vs %q", href, first, second)
		}
		again, err := CanonicalizeURL(first)
		if err != nil || again != first {
			t.Errorf("CanonicalizeURL(%q) = %q (err %v), want unchanged", first, again, err)
		}
		resolved, err := Canonicalize(base, first)
		if err != nil || resolved != first {
			t.Errorf("Canonicalize(base, %q) = %q (err %v), want unchanged", first, resolved, err)
		}
	}
}

func TestCanonicalizeURL_FragmentsCollapse(t *testing.T) {
	a, errA := CanonicalizeURL("https://cs.uci.edu/a#sec1")
	b, errB := CanonicalizeURL("https://cs.uci.edu/a#sec2")
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if a != b {
		t.Errorf("fragment variants should share identity: %q vs %q", a, b)
	}
}

func TestCanonicalizeURL_Malformed(t *testing.T) {
	for _, raw := range []string{"", "/relative/only", "http://[bad"} {
		if _, err := CanonicalizeURL(raw); !errors.Is(err, utils.ErrMalformedURL) {
			t.Errorf("CanonicalizeURL(%q) error = %v, want ErrMalformedURL", raw, err)
		}
	}
}

func TestHostname(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://vision.ics.uci.edu/a", "vision.ics.uci.edu"},
		{"http://cs.uci.edu:8080/p", "cs.uci.edu"},
		{"https://WWW.Stat.UCI.edu/", "www.stat.uci.edu"},
		{"::not-a-url", ""},
	}
	for _, tt := range tests {
		if got := Hostname(tt.input); got != tt.expected {
			t.Errorf("Hostname(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
