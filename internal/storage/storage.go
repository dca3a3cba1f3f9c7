package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tone-curve-agent/internal/model"
)

// Store keeps commit records in a JSON file and writes committed images
// next to it. It is the commit sink of the service.
type Store struct {
	path      string
	outputDir string
	mu        sync.RWMutex
	state     model.StoredState
}

func NewStore(path, outputDir string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	if outputDir == "" {
		return nil, errors.New("output dir is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{path: path, outputDir: outputDir}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.state = defaultState()
			return s.saveLocked()
		}
		return err
	}
	if len(b) == 0 {
		s.state = defaultState()
		return s.saveLocked()
	}

	var state model.StoredState
	if err := json.Unmarshal(b, &state); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	mergeDefaults(&state)
	s.state = state
	return nil
}

func defaultState() model.StoredState {
	return model.StoredState{
		Commits:   []model.CommitRecord{},
		CreatedAt: time.Now().UTC(),
	}
}

func mergeDefaults(state *model.StoredState) {
	if state.Commits == nil {
		state.Commits = []model.CommitRecord{}
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now().UTC()
	}
}

func (s *Store) saveLocked() error {
	s.state.LastUpdatedUnixMS = time.Now().UnixMilli()
	b, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) Snapshot() model.StoredState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, _ := json.Marshal(s.state)
	var cloned model.StoredState
	_ = json.Unmarshal(b, &cloned)
	return cloned
}

// SaveCommit writes data as <OutputDir>/<rec.ID><ext> and appends the record.
// The returned record carries the output path and size.
func (s *Store) SaveCommit(rec model.CommitRecord, ext string, data []byte) (model.CommitRecord, error) {
	if rec.ID == "" {
		return model.CommitRecord{}, errors.New("commit id is empty")
	}
	out := filepath.Join(s.outputDir, rec.ID+ext)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return model.CommitRecord{}, fmt.Errorf("write commit output: %w", err)
	}
	rec.OutputPath = out
	rec.Bytes = len(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	n, updated := len(s.state.Commits), s.state.LastUpdatedUnixMS
	s.state.Commits = append(s.state.Commits, rec)
	if err := s.saveLocked(); err != nil {
		s.state.Commits = s.state.Commits[:n]
		s.state.LastUpdatedUnixMS = updated
		if rmErr := os.Remove(out); rmErr != nil {
			log.Printf("remove orphaned commit output: path=%s err=%v", out, rmErr)
		}
		return model.CommitRecord{}, fmt.Errorf("save commit record: %w", err)
	}
	return rec, nil
}

func (s *Store) ListCommits() []model.CommitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CommitRecord, len(s.state.Commits))
	copy(out, s.state.Commits)
	return out
}

func (s *Store) GetCommit(id string) *model.CommitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.state.Commits {
		if s.state.Commits[i].ID == id {
			c := s.state.Commits[i]
			return &c
		}
	}
	return nil
}

func (s *Store) CommitsForSession(sessionID string) []model.CommitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.CommitRecord{}
	for _, c := range s.state.Commits {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out
}
