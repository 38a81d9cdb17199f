package segy

import (
	"path/filepath"
	"sync"

	"example.com/segyview/internal/common"
)

type cacheEntry struct {
	path   string
	reader *Reader
	refs   int
}

// ReaderCache keeps at most one open Reader, keyed by path. Acquiring a
// different path replaces the cached reader; the replaced reader is closed
// once every holder has released it.
type ReaderCache struct {
	mu      sync.Mutex
	opts    []Option
	current *cacheEntry
	retired map[*Reader]*cacheEntry
}

// NewReaderCache returns an empty cache that opens readers with opts.
func NewReaderCache(opts ...Option) *ReaderCache {
	return &ReaderCache{
		opts:    opts,
		retired: make(map[*Reader]*cacheEntry),
	}
}

// Acquire returns the reader for path, opening it if it is not the cached
// one. Every successful Acquire must be paired with Release.
func (c *ReaderCache) Acquire(path string) (*Reader, error) {
	if path == "" {
		return nil, validationError("open", "empty path")
	}
	key := filepath.Clean(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.path == key {
		c.current.refs++
		return c.current.reader, nil
	}
	r, err := Open(key, c.opts...)
	if err != nil {
		return nil, err
	}
	if old := c.current; old != nil {
		common.Logf("reader cache: evicting %s (%d in use)", old.path, old.refs)
		if old.refs == 0 {
			old.reader.Close()
		} else {
			c.retired[old.reader] = old
		}
	}
	c.current = &cacheEntry{path: key, reader: r, refs: 1}
	return r, nil
}

// Release returns a reader obtained from Acquire.
func (c *ReaderCache) Release(r *Reader) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.reader == r {
		if c.current.refs > 0 {
			c.current.refs--
		}
		return
	}
	e, ok := c.retired[r]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(c.retired, r)
		e.reader.Close()
	}
}

// With acquires the reader for path, runs fn, and releases it.
func (c *ReaderCache) With(path string, fn func(*Reader) error) error {
	r, err := c.Acquire(path)
	if err != nil {
		return err
	}
	defer c.Release(r)
	return fn(r)
}

// Path returns the path of the cached reader, if any.
func (c *ReaderCache) Path() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return "", false
	}
	return c.current.path, true
}

// Close closes every reader the cache still owns, in use or not.
func (c *ReaderCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	if c.current != nil {
		first = c.current.reader.Close()
		c.current = nil
	}
	for r := range c.retired {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.retired, r)
	}
	return first
}
