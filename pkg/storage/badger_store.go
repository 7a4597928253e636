package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/corpus-crawler/pkg/log"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

const queuedKeyPrefix = "queued:" // Prefix for frontier URL keys in DB

// queuedEntry is the value stored per queued URL
type queuedEntry struct {
	Depth    int       `json:"depth"`
	QueuedAt time.Time `json:"queued_at"`
}

// BadgerStore implements FrontierStore on an in-memory BadgerDB. Nothing survives Close.
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	ctx      context.Context // Parent context, interrupts long scans
	keyCount atomic.Int64    // Cached key count for O(1) QueuedCount
}

// NewBadgerStore opens an in-memory BadgerDB for the crawl frontier.
func NewBadgerStore(ctx context.Context, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{
		log: logger,
		ctx: ctx,
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening in-memory badger database: %w", utils.ErrDatabase, err)
	}

	logger.Info("Frontier database initialized (in-memory).")
	return store, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkQueued implements the FrontierStore interface
func (s *BadgerStore) MarkQueued(url string, depth int) (bool, error) {
	if s.db == nil || s.db.IsClosed() {
		return false, fmt.Errorf("%w: frontier DB not open", utils.ErrDatabase)
	}
	value, err := json.Marshal(queuedEntry{Depth: depth, QueuedAt: time.Now().UTC()})
	if err != nil {
		return false, fmt.Errorf("%w: encoding entry for '%s': %w", utils.ErrDatabase, url, err)
	}

	added := false
	key := []byte(queuedKeyPrefix + url)
	err = s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			errSet := txn.SetEntry(badger.NewEntry(key, value))
			if errSet == nil {
				added = true
			}
			return errSet
		}
		// Key already exists or another error occurred
		return errGet
	})

	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in MarkQueued: %v", err)
		return false, fmt.Errorf("%w: marking key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// QueuedCount implements the FrontierStore interface
func (s *BadgerStore) QueuedCount() int {
	return int(s.keyCount.Load())
}

// WriteQueuedLog implements the FrontierStore interface. Lines are "url<TAB>depth" in key order.
func (s *BadgerStore) WriteQueuedLog(filePath string) error {
	s.log.Info("Writing list of queued URLs (from DB)...")
	file, err := os.Create(filePath)
	if err != nil {
		s.log.Errorf("Failed create queued log '%s': %v", filePath, err)
		return fmt.Errorf("%w: create queued log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	var ioErr error
	writtenCount := 0

	iterErr := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(queuedKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		prefixBytes := []byte(queuedKeyPrefix)

		for it.Rewind(); it.Valid(); it.Next() {
			select {
			case <-s.ctx.Done():
				s.log.Warnf("WriteQueuedLog scan interrupted by context cancellation: %v", s.ctx.Err())
				return s.ctx.Err()
			default:
			}

			item := it.Item()
			keyBytes := item.KeyCopy(nil)
			url := string(bytes.TrimPrefix(keyBytes, prefixBytes))

			var entry queuedEntry
			if errVal := item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); errVal != nil {
				s.log.Warnf("Unreadable entry for '%s', writing without depth: %v", url, errVal)
			}

			if _, writeErr := fmt.Fprintf(writer, "%s\t%d\n", url, entry.Depth); writeErr != nil {
				if ioErr == nil {
					ioErr = writeErr
				}
				s.log.Errorf("Error writing URL '%s' to queued log: %v", url, writeErr)
			}
			writtenCount++
		}
		return nil
	})

	if iterErr != nil && !errors.Is(iterErr, context.Canceled) && !errors.Is(iterErr, context.DeadlineExceeded) {
		s.log.Errorf("Error during frontier DB iteration for log: %v", iterErr)
		if ioErr == nil {
			ioErr = fmt.Errorf("%w: iterating frontier: %w", utils.ErrDatabase, iterErr)
		}
	}

	if flushErr := writer.Flush(); flushErr != nil {
		s.log.Errorf("Failed final flush for queued log '%s': %v", filePath, flushErr)
		if ioErr == nil {
			ioErr = fmt.Errorf("%w: flushing queued log: %w", utils.ErrFilesystem, flushErr)
		}
	}
	if syncErr := file.Sync(); syncErr != nil {
		s.log.Errorf("Failed to sync queued log '%s': %v", filePath, syncErr)
		if ioErr == nil {
			ioErr = fmt.Errorf("%w: syncing queued log: %w", utils.ErrFilesystem, syncErr)
		}
	}

	if iterErr == nil && ioErr == nil {
		s.log.Infof("Finished writing %d URLs to queued log: %s", writtenCount, filePath)
	} else {
		s.log.Warnf("Finished writing queued log with errors. Wrote ~%d URLs to %s", writtenCount, filePath)
	}

	if errors.Is(iterErr, context.Canceled) || errors.Is(iterErr, context.DeadlineExceeded) {
		return iterErr
	}
	return ioErr
}

// Close implements the FrontierStore interface
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		s.log.Info("Closing frontier DB...")
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing frontier DB: %v", err)
			return fmt.Errorf("%w: closing frontier DB: %w", utils.ErrDatabase, err)
		}
		s.log.Info("Frontier DB closed.")
		return nil
	}
	s.log.Debug("Frontier DB already closed or was not initialized.")
	return nil
}
