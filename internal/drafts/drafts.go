// Package drafts keeps a local list of task drafts that never touch the
// backend until pushed.
package drafts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"taskr/internal/service"
	"taskr/internal/storage"
)

// MinTitleLength is the shortest accepted draft title, in characters.
const MinTitleLength = 3

// ErrNotFound is returned when no draft has the given id.
var ErrNotFound = errors.New("draft not found")

// Draft is a locally stored task. ID is a unix millisecond timestamp.
type Draft struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Created returns the creation time encoded in the id.
func (d Draft) Created() time.Time {
	return time.UnixMilli(d.ID)
}

// Store persists drafts as a JSON array under storage.KeyDrafts.
type Store struct {
	mu  sync.Mutex
	kv  storage.Store
	now func() time.Time
}

// New creates a Store on kv.
func New(kv storage.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

// List returns the drafts in insertion order.
func (s *Store) List() ([]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add validates and appends a draft.
func (s *Store) Add(title, description string) (Draft, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(title) < MinTitleLength {
		return Draft{}, service.Invalidf("title must be at least %d characters", MinTitleLength)
	}
	if description == "" {
		return Draft{}, service.Invalidf("description required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return Draft{}, err
	}

	id := s.now().UnixMilli()
	for _, d := range list {
		if d.ID >= id {
			id = d.ID + 1
		}
	}

	d := Draft{ID: id, Title: title, Description: description}
	list = append(list, d)
	if err := s.save(list); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Get returns the draft with id.
func (s *Store) Get(id int64) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return Draft{}, err
	}
	for _, d := range list {
		if d.ID == id {
			return d, nil
		}
	}
	return Draft{}, ErrNotFound
}

// Delete removes the draft with id.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, d := range list {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(list) {
		return ErrNotFound
	}
	return s.save(kept)
}

func (s *Store) load() ([]Draft, error) {
	raw, ok, err := s.kv.Get(storage.KeyDrafts)
	if err != nil {
		return nil, fmt.Errorf("failed to read drafts: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var list []Draft
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("invalid stored drafts: %w", err)
	}
	return list, nil
}

func (s *Store) save(list []Draft) error {
	if list == nil {
		list = []Draft{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode drafts: %w", err)
	}
	if err := s.kv.Set(storage.KeyDrafts, string(data)); err != nil {
		return fmt.Errorf("failed to save drafts: %w", err)
	}
	return nil
}
