package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()

	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "journal.db")

	s, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("opening sqlite storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_RoundTrip(t *testing.T) {
	s := newTestSQLite(t)

	accepted := time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)
	rec := &ConnectionRecord{
		ID:         "rec-1",
		ConnID:     "conn-1",
		RemoteAddr: "10.0.0.7:58210",
		Protocol:   "h2",
		Secure:     true,
		AcceptedAt: accepted,
		ClosedAt:   accepted.Add(42 * time.Second),
		Requests:   17,
	}
	if err := s.Store(context.Background(), rec); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := s.Query(context.Background(), &Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}

	r := got[0]
	if r.ID != "rec-1" || r.ConnID != "conn-1" || r.Protocol != "h2" || !r.Secure {
		t.Errorf("record fields lost: %+v", r)
	}
	if r.Requests != 17 {
		t.Errorf("requests = %d, want 17", r.Requests)
	}
	if !r.AcceptedAt.Equal(accepted) {
		t.Errorf("accepted_at = %v, want %v", r.AcceptedAt, accepted)
	}
	if r.Error != "" || r.Panicked {
		t.Errorf("clean record came back with failure fields: %+v", r)
	}
	if r.Duration() != 42*time.Second {
		t.Errorf("duration = %v, want 42s", r.Duration())
	}
}

func TestSQLiteStorage_QueryFilters(t *testing.T) {
	s := newTestSQLite(t)
	seed(t, s)

	got, err := s.Query(context.Background(), &Query{Protocol: "h2"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d h2 records, want 2", len(got))
	}
	if got[0].ConnID != "c3" || got[1].ConnID != "c2" {
		t.Errorf("expected newest-first ordering, got %s then %s", got[0].ConnID, got[1].ConnID)
	}

	count, err := s.Count(context.Background(), &Query{Outcome: "error"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("error count = %d, want 1", count)
	}

	count, err = s.Count(context.Background(), &Query{Outcome: "panic"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("panic count = %d, want 1", count)
	}
}

func TestSQLiteStorage_Delete(t *testing.T) {
	s := newTestSQLite(t)
	base := seed(t, s)

	cutoff := base.Add(90 * time.Minute)
	deleted, err := s.Delete(context.Background(), &Query{Until: &cutoff})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	count, _ := s.Count(context.Background(), &Query{})
	if count != 2 {
		t.Errorf("remaining = %d, want 2", count)
	}
}

func TestSQLiteStorage_ReopenKeepsData(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "journal.db")

	s, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	if err := s.Store(context.Background(), record("c1", "h2", time.Now().UTC(), "", false)); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s.Close()

	count, err := s.Count(context.Background(), &Query{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count after reopen = %d, want 1", count)
	}
}
