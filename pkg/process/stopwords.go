package process

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// StopwordSet is an immutable set of lower-case words excluded from word counts.
// The zero value is a valid empty set.
type StopwordSet map[string]struct{}

// NewStopwordSet builds a set from words, lower-casing and trimming each.
func NewStopwordSet(words ...string) StopwordSet {
	set := make(StopwordSet, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// Contains reports whether w is a stopword. w is expected to be lower-case already.
func (s StopwordSet) Contains(w string) bool {
	_, ok := s[w]
	return ok
}

// Len returns the number of stopwords.
func (s StopwordSet) Len() int {
	return len(s)
}

// LoadStopwords reads one stopword per line. A missing or unreadable file yields an empty set
// and a warning; it never aborts the crawl.
func LoadStopwords(path string, log *logrus.Logger) StopwordSet {
	f, err := os.Open(path)
	if err != nil {
		log.WithField("path", path).Warn(fmt.Errorf("%w: stopwords file unavailable, using empty set: %w", utils.ErrConfigLoad, err))
		return StopwordSet{}
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.WithField("path", path).Warn(fmt.Errorf("%w: reading stopwords file, using empty set: %w", utils.ErrConfigLoad, err))
		return StopwordSet{}
	}

	set := NewStopwordSet(words...)
	log.WithFields(logrus.Fields{"path": path, "count": set.Len()}).Info("Loaded stopwords")
	return set
}
