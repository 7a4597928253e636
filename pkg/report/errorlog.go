package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// ErrorLog is an append-only file with one line per reportable fetch failure:
// url<TAB>status<TAB>message. It is safe for concurrent use.
type ErrorLog struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	count int
	log   *logrus.Entry
}

// OpenErrorLog opens (creating if needed) the error log at path in append mode.
func OpenErrorLog(path string, log *logrus.Entry) (*ErrorLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: creating error log dir: %w", utils.ErrFilesystem, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening error log '%s': %w", utils.ErrFilesystem, path, err)
	}
	log.WithField("path", path).Info("Error log opened")
	return &ErrorLog{file: file, path: path, log: log}, nil
}

// RecordError appends one line. Tabs and newlines in message are flattened to spaces.
func (e *ErrorLog) RecordError(url string, status int, message string) error {
	line := fmt.Sprintf("%s\t%d\t%s\n", url, status, flatten(message))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return fmt.Errorf("%w: error log '%s' is closed", utils.ErrFilesystem, e.path)
	}
	if _, err := e.file.WriteString(line); err != nil {
		e.log.WithFields(logrus.Fields{
			"error_log":    e.path,
			"line_content": strings.TrimSpace(line),
		}).Errorf("Failed to write to error log: %v", err)
		return fmt.Errorf("%w: writing error log: %w", utils.ErrFilesystem, err)
	}
	e.count++
	return nil
}

// Count returns the number of lines appended since the log was opened.
func (e *ErrorLog) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Path returns the file location.
func (e *ErrorLog) Path() string {
	return e.path
}

// Close syncs and closes the file. Further RecordError calls fail.
func (e *ErrorLog) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	if err := e.file.Sync(); err != nil {
		e.log.Warnf("Error syncing error log: %v", err)
	}
	err := e.file.Close()
	e.file = nil
	if err != nil {
		return fmt.Errorf("%w: closing error log: %w", utils.ErrFilesystem, err)
	}
	return nil
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
