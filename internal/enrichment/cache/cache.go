// Package cache implements the durable suggestion cache. Records are keyed
// by check title and carry a sequential check ID that is never reused.
package cache

import (
	"errors"
)

// Stats contains cache statistics for one session.
type Stats struct {
	// TotalEntries is the number of cached records
	TotalEntries int

	// HitRate is the cache hit rate (0-1)
	HitRate float64

	// TotalHits is the number of lookups served from the cache
	TotalHits int64

	// TotalMisses is the number of lookups that found nothing
	TotalMisses int64

	// Inserts is the number of records added this session
	Inserts int64

	// Refreshes is the number of suggestions overwritten this session
	Refreshes int64

	// Resets counts loads that discarded an unreadable store
	Resets int

	// Dropped counts invalid records discarded at load
	Dropped int
}

var (
	// ErrDuplicateKey is returned when inserting a key that already exists.
	ErrDuplicateKey = errors.New("key already cached")
	// ErrDuplicateID is returned when inserting a check ID already in use.
	ErrDuplicateID = errors.New("check id already assigned")
	// ErrUnsupportedSchema is returned for cache files written by a newer version.
	ErrUnsupportedSchema = errors.New("unsupported cache schema version")
)

// Error represents a cache-specific error.
type Error struct {
	Err error
	Op  string
	Key string
}

func (e *Error) Error() string {
	return "cache " + e.Op + " failed for key " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
