package process

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/corpus-crawler/pkg/parse"
	"github.com/Sriram-PR/corpus-crawler/pkg/scope"
)

// LinkFilter canonicalizes raw hrefs found on a page and keeps those eligible for crawling
type LinkFilter struct {
	scope *scope.Filter
	log   *logrus.Entry
}

// NewLinkFilter creates a LinkFilter
func NewLinkFilter(filter *scope.Filter, log *logrus.Entry) *LinkFilter {
	return &LinkFilter{scope: filter, log: log.WithField("component", "link_filter")}
}

// Filter resolves hrefs against baseURL and returns the in-scope canonical URLs, de-duplicated
// within the page and in first-seen order.
func (lf *LinkFilter) Filter(baseURL string, hrefs []string) []string {
	taskLog := lf.log.WithField("base_url", baseURL)
	seen := make(map[string]struct{}, len(hrefs))
	var out []string

	for _, href := range hrefs {
		canonical, err := parse.Canonicalize(baseURL, href)
		if err != nil {
			if !errors.Is(err, parse.ErrNotCrawlable) {
				taskLog.Debugf("Skipping href: %v", err)
			}
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}

		if err := lf.scope.Check(canonical); err != nil {
			taskLog.Debugf("Out of scope: %v", err)
			continue
		}
		out = append(out, canonical)
	}

	taskLog.Debugf("Kept %d of %d hrefs", len(out), len(hrefs))
	return out
}
