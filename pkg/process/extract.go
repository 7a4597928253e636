package process

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// Extracted holds what a page body contributes to the crawl
type Extracted struct {
	Hrefs []string // raw href values of <a> elements, document order
	Text  string   // visible text, whitespace collapsed
}

// Extractor pulls raw hrefs and visible text out of a fetched page body.
// contentType is the response Content-Type header and may be empty.
type Extractor interface {
	Extract(body []byte, contentType string) (Extracted, error)
}

// HTMLExtractor implements Extractor for HTML documents using goquery.
// A charset declared in the Content-Type header wins; otherwise valid UTF-8 passes through and
// anything else is decoded from its meta declaration or a sniffed encoding.
type HTMLExtractor struct {
	// DetectCharset enables statistical charset detection for bodies that are not valid UTF-8
	DetectCharset bool
}

// NewHTMLExtractor returns an extractor with charset detection enabled.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{DetectCharset: true}
}

// nonVisible lists elements whose text never renders
var nonVisible = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Extract parses body once and returns its hrefs and visible text.
// Empty hrefs are skipped; the values are otherwise untouched.
func (e *HTMLExtractor) Extract(body []byte, contentType string) (Extracted, error) {
	doc, err := e.document(body, contentType)
	if err != nil {
		return Extracted{}, err
	}

	var out Extracted
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.TrimSpace(href) != "" {
			out.Hrefs = append(out.Hrefs, href)
		}
	})
	out.Text = visibleText(doc.Nodes)
	return out, nil
}

// visibleText joins every rendered text node with a space, so words in adjacent
// elements never run together.
func visibleText(roots []*html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if nonVisible[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range roots {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (e *HTMLExtractor) document(body []byte, contentType string) (*goquery.Document, error) {
	reader, err := e.decode(body, contentType)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: building document: %w", utils.ErrParsing, err)
	}
	return doc, nil
}

// decode converts body to UTF-8.
func (e *HTMLExtractor) decode(body []byte, contentType string) (io.Reader, error) {
	if declaresCharset(contentType) {
		return e.charsetReader(body, contentType)
	}
	if utf8.Valid(body) {
		return bytes.NewReader(body), nil
	}

	sniffed := "text/html"
	if e.DetectCharset {
		if r, err := chardet.NewHtmlDetector().DetectBest(body); err == nil && r.Charset != "" {
			if strings.EqualFold(r.Charset, "utf-8") {
				return bytes.NewReader(body), nil
			}
			sniffed = "text/html; charset=" + r.Charset
		}
	}
	return e.charsetReader(body, sniffed)
}

func (e *HTMLExtractor) charsetReader(body []byte, contentType string) (io.Reader, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding body as '%s': %w", utils.ErrParsing, contentType, err)
	}
	return reader, nil
}

// declaresCharset reports whether a Content-Type header names a charset the decoder knows.
func declaresCharset(contentType string) bool {
	if contentType == "" {
		return false
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	enc, _ := charset.Lookup(params["charset"])
	return enc != nil
}
