package common

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ActivityEntry records one operation performed against an input file,
// such as an open, a render or a report export.
type ActivityEntry struct {
	Action string    `json:"action"`
	Path   string    `json:"path,omitempty"`
	Detail string    `json:"detail,omitempty"`
	Bytes  int64     `json:"bytes,omitempty"`
	Millis int64     `json:"millis,omitempty"`
	Ts     time.Time `json:"ts"`
}

// ActivityLog provides append-only access to a JSONL activity log.
type ActivityLog struct {
	path string
	mu   sync.Mutex
}

// NewActivityLog returns an ActivityLog that writes to the provided path.
func NewActivityLog(path string) *ActivityLog {
	return &ActivityLog{path: path}
}

// Path returns the backing file path for the log.
func (l *ActivityLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a new entry to the log, one JSON object per line.
func (l *ActivityLog) Append(entry ActivityEntry) error {
	if l == nil {
		return errors.New("nil activity log")
	}
	if entry.Action == "" {
		return errors.New("activity entry missing action")
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadActivityLog loads every entry from the supplied JSONL file.
func ReadActivityLog(path string) ([]ActivityEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []ActivityEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry ActivityEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode activity entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
