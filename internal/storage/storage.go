package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"netstatus/internal/models"
)

// StatusStorage handles persistence of published status messages to disk.
type StatusStorage struct {
	mu      sync.RWMutex
	path    string
	limit   int
	history []models.StatusEntry
	now     func() time.Time
}

// NewStatusStorage creates a storage instance and loads existing history if
// present. limit caps the number of entries kept; zero keeps everything.
func NewStatusStorage(path string, limit int) (*StatusStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	s := &StatusStorage{path: path, limit: limit, now: time.Now}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Record wraps a locally published msg in a new entry and appends it.
func (s *StatusStorage) Record(msg models.StatusMessage) (models.StatusEntry, error) {
	return s.RecordFrom("", msg)
}

// RecordFrom appends msg as relayed by the peer node.
func (s *StatusStorage) RecordFrom(node string, msg models.StatusMessage) (models.StatusEntry, error) {
	entry := models.StatusEntry{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		Node:      node,
		Message:   msg,
	}
	return entry, s.Append(entry)
}

// Append adds a new status entry and persists it to disk. When the write
// fails the entry is not kept, so memory and disk stay in step.
func (s *StatusStorage) Append(entry models.StatusEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.StatusEntry, 0, len(s.history)+1)
	next = append(next, s.history...)
	next = append(next, entry)
	if s.limit > 0 && len(next) > s.limit {
		next = next[len(next)-s.limit:]
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.history = next
	return nil
}

// Consume records every message from in until it closes or ctx is done.
// onError is called for entries that could not be persisted.
func (s *StatusStorage) Consume(ctx context.Context, in <-chan models.StatusMessage, onError func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			if _, err := s.Record(msg); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

// Latest returns the latest locally published entry if it exists.
func (s *StatusStorage) Latest() (models.StatusEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Local() {
			return s.history[i], true
		}
	}
	return models.StatusEntry{}, false
}

// History returns a copy of the entire history slice.
func (s *StatusStorage) History() []models.StatusEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]models.StatusEntry, len(s.history))
	copy(copied, s.history)
	return copied
}

// HistoryN returns a copy of the most recent n entries. n <= 0 returns all.
func (s *StatusStorage) HistoryN(n int) []models.StatusEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && len(s.history) > n {
		start = len(s.history) - n
	}
	copied := make([]models.StatusEntry, len(s.history)-start)
	copy(copied, s.history[start:])
	return copied
}

func (s *StatusStorage) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = []models.StatusEntry{}
			return nil
		}
		return fmt.Errorf("read history: %w", err)
	}

	if len(data) == 0 {
		s.history = []models.StatusEntry{}
		return nil
	}

	var entries []models.StatusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse history: %w", err)
	}
	if s.limit > 0 && len(entries) > s.limit {
		entries = entries[len(entries)-s.limit:]
	}

	s.history = entries
	return nil
}

func (s *StatusStorage) persist(entries []models.StatusEntry) error {
	bytes, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
