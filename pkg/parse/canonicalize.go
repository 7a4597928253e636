package parse

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"

	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// ErrNotCrawlable marks hrefs that are well-formed but never point at a page (anchors, phone and mail links)
var ErrNotCrawlable = errors.New("not a crawlable link")

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// nonPagePrefixes are matched case-insensitively against the trimmed href
var nonPagePrefixes = []string{"#", "tel:", "mailto:"}

// Canonicalize resolves href against baseURL and returns the canonical form used as page identity.
// Scheme and host are lower-cased, default ports dropped, an empty path becomes "/" and the fragment is removed.
// Protocol-relative hrefs ("//host/path") always resolve to https.
func Canonicalize(baseURL, href string) (string, error) {
	trimmed := strings.TrimSpace(href)
	lower := strings.ToLower(trimmed)
	for _, prefix := range nonPagePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", fmt.Errorf("%w: '%s'", ErrNotCrawlable, trimmed)
		}
	}

	var (
		parsed *whatwgUrl.Url
		err    error
	)
	if strings.HasPrefix(trimmed, "//") {
		parsed, err = urlParser.Parse("https:" + trimmed)
	} else {
		parsed, err = urlParser.ParseRef(baseURL, trimmed)
	}
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve '%s' against '%s': %v", utils.ErrMalformedURL, trimmed, baseURL, err)
	}
	return parsed.Href(true), nil
}

// CanonicalizeURL canonicalizes an already absolute URL, e.g. the final URL of a fetch after redirects.
func CanonicalizeURL(raw string) (string, error) {
	parsed, err := urlParser.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: cannot parse '%s': %v", utils.ErrMalformedURL, raw, err)
	}
	return parsed.Href(true), nil
}

// Hostname returns the lower-cased host of a canonical URL without port, or "" if it cannot be parsed.
func Hostname(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
