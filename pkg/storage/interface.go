package storage

// FrontierStore remembers every URL ever handed to the frontier so each is queued at most once
type FrontierStore interface {
	// MarkQueued records url at the given depth.
	// Returns true if the URL was newly added, false if it was already queued
	MarkQueued(url string, depth int) (bool, error)

	// QueuedCount returns the number of distinct URLs queued so far
	QueuedCount() int

	// WriteQueuedLog writes every queued URL with its depth, sorted by URL, to filePath
	WriteQueuedLog(filePath string) error

	// Close releases the underlying database
	Close() error
}
