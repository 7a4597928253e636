package report

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/Sriram-PR/corpus-crawler/pkg/analytics"
)

// maxChartSlices caps the subdomain pie chart; the remaining hosts are folded into "other"
const maxChartSlices = 8

// Summary is the input to the markdown summary report.
type Summary struct {
	CrawlID      string
	StartedAt    time.Time
	GeneratedAt  time.Time
	Stats        analytics.Stats
	TopWords     []analytics.WordCount
	ErrorsLogged int
}

// WriteSummary renders a human-readable markdown overview of the crawl.
func WriteSummary(out io.Writer, s Summary) error {
	md := markdown.NewMarkdown(out)

	md.H1("Crawl Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Crawl ID", "`" + s.CrawlID + "`"},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Generated", s.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", s.GeneratedAt.Sub(s.StartedAt).Round(time.Second).String()},
			{"Unique pages", strconv.Itoa(len(s.Stats.UniquePages))},
			{"Total words", strconv.Itoa(s.Stats.TotalWords)},
			{"Longest page", longestPageCell(s.Stats.LongestPage)},
			{"Longest page metric", s.Stats.Policy.String() + " (" + strconv.Itoa(s.Stats.LongestPage.WordCount) + ")"},
			{"Errors logged", strconv.Itoa(s.ErrorsLogged)},
		},
	})
	md.PlainText("")

	md.H2("Subdomains")
	md.PlainText("")
	if len(s.Stats.Subdomains) == 0 {
		md.PlainText("No pages recorded yet.")
	} else {
		rows := make([][]string, 0, len(s.Stats.Subdomains))
		for _, sc := range s.Stats.Subdomains {
			rows = append(rows, []string{sc.Host, strconv.Itoa(sc.Pages)})
		}
		md.Table(markdown.TableSet{Header: []string{"Subdomain", "Pages"}, Rows: rows})
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, subdomainChart(s.Stats.Subdomains))
	}
	md.PlainText("")

	md.H2("Most Common Words")
	md.PlainText("")
	if len(s.TopWords) == 0 {
		md.PlainText("No words counted yet.")
	} else {
		rows := make([][]string, 0, len(s.TopWords))
		for i, wc := range s.TopWords {
			rows = append(rows, []string{strconv.Itoa(i + 1), wc.Word, strconv.Itoa(wc.Count)})
		}
		md.Table(markdown.TableSet{Header: []string{"Rank", "Word", "Count"}, Rows: rows})
	}
	md.PlainText("")

	return md.Build()
}

func longestPageCell(lp analytics.LongestPage) string {
	if lp.URL == "" {
		return "-"
	}
	return lp.URL
}

// subdomainChart renders a mermaid pie of the largest subdomains by page count.
func subdomainChart(subs []analytics.SubdomainCount) string {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages per Subdomain"),
		piechart.WithShowData(true),
	)

	ranked := make([]analytics.SubdomainCount, len(subs))
	copy(ranked, subs)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Pages > ranked[j].Pages })

	other := 0
	for i, sc := range ranked {
		if i < maxChartSlices {
			chart.LabelAndIntValue(sc.Host, uint64(sc.Pages))
			continue
		}
		other += sc.Pages
	}
	if other > 0 {
		chart.LabelAndIntValue("other", uint64(other))
	}
	return chart.String()
}
