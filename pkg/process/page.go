package process

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/corpus-crawler/pkg/analytics"
	"github.com/Sriram-PR/corpus-crawler/pkg/models"
	"github.com/Sriram-PR/corpus-crawler/pkg/parse"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// PageProcessor turns one fetch result into analytics updates and a list of raw outgoing hrefs.
// It is safe for concurrent use; shared state lives in the Aggregator.
type PageProcessor struct {
	agg        *analytics.Aggregator
	extractor  Extractor
	stopwords  StopwordSet
	classifier models.StatusClassifier
	log        *logrus.Entry
}

// NewPageProcessor creates a PageProcessor
func NewPageProcessor(
	agg *analytics.Aggregator,
	ex Extractor,
	stop StopwordSet,
	classifier models.StatusClassifier,
	log *logrus.Entry,
) *PageProcessor {
	return &PageProcessor{
		agg:        agg,
		extractor:  ex,
		stopwords:  stop,
		classifier: classifier,
		log:        log.WithField("component", "page_processor"),
	}
}

// Process handles a single fetch result. It returns the page's raw hrefs in document order,
// or nil when the fetch failed, the URL is malformed, the page is a duplicate or parsing failed.
// No failure escapes this call.
func (p *PageProcessor) Process(result models.FetchResult) []string {
	pageLog := p.log.WithFields(logrus.Fields{"requested_url": result.RequestedURL, "status": result.StatusCode})

	if !result.Succeeded() {
		if result.HasStatus && p.classifier.IsReportable(result.StatusCode) {
			p.agg.RecordError(result.PageURL(), result.StatusCode, result.ErrorMessage)
		}
		pageLog.Debugf("Fetch not usable (class %s): %s", models.ClassifyStatus(result.StatusCode), result.ErrorMessage)
		return nil
	}

	canonical, err := parse.CanonicalizeURL(result.PageURL())
	if err != nil {
		pageLog.Debugf("Skipping page: %v", err)
		return nil
	}
	pageLog = pageLog.WithField("url", canonical)

	if !p.agg.MarkSeen(canonical) {
		pageLog.Debug("Duplicate page, already processed")
		return nil
	}

	extracted, err := p.extract(result)
	if err != nil {
		pageLog.WithField("category", utils.CategorizeError(err)).Warnf("Parse failure, page kept as seen: %v", err)
		return nil
	}

	counts := Tokenize(extracted.Text, p.stopwords)
	p.agg.RecordPage(canonical, parse.Hostname(canonical), counts)
	pageLog.WithFields(logrus.Fields{"words": CountWords(counts), "hrefs": len(extracted.Hrefs)}).Debug("Page recorded")

	return extracted.Hrefs
}

// extract runs the extractor, converting a panic into ErrParsing.
func (p *PageProcessor) extract(result models.FetchResult) (out Extracted, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Extracted{}
			err = fmt.Errorf("%w: extractor panic: %v", utils.ErrParsing, r)
		}
	}()

	out, err = p.extractor.Extract(result.Body, result.ContentType)
	if err != nil {
		return Extracted{}, fmt.Errorf("%w: extracting page: %w", utils.ErrParsing, err)
	}
	return out, nil
}
