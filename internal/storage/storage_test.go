package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"tone-curve-agent/internal/model"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, dir
}

func TestNewStoreCreatesStateFile(t *testing.T) {
	_, dir := newTestStore(t)
	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Fatalf("state file: %v", err)
	}
	if _, err := NewStore("", dir); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSaveCommitWritesOutputAndRecord(t *testing.T) {
	s, dir := newTestStore(t)
	rec, err := s.SaveCommit(model.CommitRecord{ID: "c1", SessionID: "s1", Width: 2, Height: 1, Format: "png"}, ".png", []byte("pngbytes"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.OutputPath != filepath.Join(dir, "out", "c1.png") || rec.Bytes != 8 {
		t.Fatalf("record=%+v", rec)
	}
	b, err := os.ReadFile(rec.OutputPath)
	if err != nil || !bytes.Equal(b, []byte("pngbytes")) {
		t.Fatalf("output=%q err=%v", b, err)
	}
	if got := s.GetCommit("c1"); got == nil || got.SessionID != "s1" {
		t.Fatalf("GetCommit=%+v", got)
	}
	if got := s.CommitsForSession("s1"); len(got) != 1 {
		t.Fatalf("CommitsForSession=%d", len(got))
	}
	if _, err := s.SaveCommit(model.CommitRecord{}, ".png", nil); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestStoreReloadsCommits(t *testing.T) {
	s, dir := newTestStore(t)
	for _, id := range []string{"a", "b"} {
		if _, err := s.SaveCommit(model.CommitRecord{ID: id}, ".png", []byte{1}); err != nil {
			t.Fatal(err)
		}
	}
	reopened, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	got := reopened.ListCommits()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("commits=%+v", got)
	}
	if snap := reopened.Snapshot(); snap.CreatedAt.IsZero() || snap.LastUpdatedUnixMS == 0 {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestSaveCommitRollsBackWhenStateWriteFails(t *testing.T) {
	s, dir := newTestStore(t)
	if _, err := s.SaveCommit(model.CommitRecord{ID: "kept"}, ".png", []byte{1}); err != nil {
		t.Fatal(err)
	}
	before := s.Snapshot().LastUpdatedUnixMS

	// a directory in place of the state file makes the rename fail
	statePath := filepath.Join(dir, "state.json")
	if err := os.Remove(statePath); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(statePath, "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := s.SaveCommit(model.CommitRecord{ID: "c1", SessionID: "s1"}, ".png", []byte("pngbytes")); err == nil {
		t.Fatal("expected error when state file cannot be replaced")
	}
	if got := s.GetCommit("c1"); got != nil {
		t.Fatalf("failed commit still listed: %+v", got)
	}
	if got := s.ListCommits(); len(got) != 1 || got[0].ID != "kept" {
		t.Fatalf("commits=%+v", got)
	}
	if got := s.CommitsForSession("s1"); len(got) != 0 {
		t.Fatalf("CommitsForSession=%+v", got)
	}
	if got := s.Snapshot().LastUpdatedUnixMS; got != before {
		t.Fatalf("last updated moved from %d to %d", before, got)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "c1.png")); !os.IsNotExist(err) {
		t.Fatalf("orphaned output left behind: err=%v", err)
	}
	if _, err := os.Stat(statePath + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp state file left behind: err=%v", err)
	}
}
