package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/corpus-crawler/pkg/analytics"
	"github.com/Sriram-PR/corpus-crawler/pkg/config"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// Writer renders analytics snapshots into the report files. Each file is replaced atomically,
// so a periodic flush never leaves a half-written report behind.
type Writer struct {
	cfg       config.ReportsConfig
	crawlID   string
	startedAt time.Time
	errLog    *ErrorLog
	log       *logrus.Entry
}

// NewWriter creates a Writer. errLog may be nil; it only feeds the error count in the summary.
func NewWriter(cfg config.ReportsConfig, crawlID string, errLog *ErrorLog, log *logrus.Entry) *Writer {
	return &Writer{
		cfg:       cfg,
		crawlID:   crawlID,
		startedAt: time.Now(),
		errLog:    errLog,
		log:       log.WithField("component", "report"),
	}
}

// WriteAll writes every report for the given snapshot. All files are attempted; the first
// error is returned.
func (w *Writer) WriteAll(stats analytics.Stats, top []analytics.WordCount) error {
	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("%w: creating reports dir '%s': %w", utils.ErrFilesystem, w.cfg.Dir, err)
	}

	type job struct {
		name   string
		file   string
		dflt   string
		render func(io.Writer) error
	}
	jobs := []job{
		{"unique pages", w.cfg.UniquePagesFile, config.DefaultUniquePagesFile, func(out io.Writer) error { return WriteUniquePages(out, stats) }},
		{"word count", w.cfg.WordCountFile, config.DefaultWordCountFile, func(out io.Writer) error { return WriteWordCount(out, stats) }},
		{"common words", w.cfg.CommonWordsFile, config.DefaultCommonWordsFile, func(out io.Writer) error { return WriteCommonWords(out, top) }},
		{"subdomains", w.cfg.SubdomainsFile, config.DefaultSubdomainsFile, func(out io.Writer) error { return WriteSubdomains(out, stats) }},
	}
	if config.GetEffectiveEnableSummary(w.cfg) {
		jobs = append(jobs, job{"summary", w.cfg.SummaryFile, config.DefaultSummaryFile, func(out io.Writer) error {
			return WriteSummary(out, w.summary(stats, top))
		}})
	}

	var firstErr error
	for _, j := range jobs {
		path := config.GetEffectiveReportPath(w.cfg, j.file, j.dflt)
		if err := writeFileAtomic(path, j.render); err != nil {
			w.log.WithField("path", path).Errorf("Failed to write %s report: %v", j.name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		w.log.WithField("path", path).Debugf("Wrote %s report", j.name)
	}
	if firstErr == nil {
		w.log.WithFields(logrus.Fields{"unique_pages": len(stats.UniquePages), "dir": w.cfg.Dir}).Info("Reports flushed")
	}
	return firstErr
}

func (w *Writer) summary(stats analytics.Stats, top []analytics.WordCount) Summary {
	s := Summary{
		CrawlID:     w.crawlID,
		StartedAt:   w.startedAt,
		GeneratedAt: time.Now(),
		Stats:       stats,
		TopWords:    top,
	}
	if w.errLog != nil {
		s.ErrorsLogged = w.errLog.Count()
	}
	return s
}

// WriteUniquePages writes "Unique pages: N" followed by the sorted URLs, one per line.
func WriteUniquePages(out io.Writer, stats analytics.Stats) error {
	bw := bufio.NewWriter(out)
	fmt.Fprintf(bw, "Unique pages: %d\n", len(stats.UniquePages))
	for _, u := range stats.UniquePages {
		fmt.Fprintln(bw, u)
	}
	return bw.Flush()
}

// WriteWordCount writes the longest-page URL and its metric.
func WriteWordCount(out io.Writer, stats analytics.Stats) error {
	_, err := fmt.Fprintf(out, "Longest page: %s\nWord count: %d\n", stats.LongestPage.URL, stats.LongestPage.WordCount)
	return err
}

// WriteCommonWords writes one "word, count" line per entry, in the given order.
func WriteCommonWords(out io.Writer, top []analytics.WordCount) error {
	bw := bufio.NewWriter(out)
	for _, wc := range top {
		fmt.Fprintf(bw, "%s, %d\n", wc.Word, wc.Count)
	}
	return bw.Flush()
}

// WriteSubdomains writes one "host, count" line per subdomain, sorted by host.
func WriteSubdomains(out io.Writer, stats analytics.Stats) error {
	bw := bufio.NewWriter(out)
	for _, sc := range stats.Subdomains {
		fmt.Fprintf(bw, "%s, %d\n", sc.Host, sc.Pages)
	}
	return bw.Flush()
}

// writeFileAtomic renders into a temp file in the target dir and renames it over path.
func writeFileAtomic(path string, render func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating dir '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for '%s': %w", utils.ErrFilesystem, path, err)
	}
	tmpPath := tmp.Name()

	if err := render(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rendering '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp file for '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
