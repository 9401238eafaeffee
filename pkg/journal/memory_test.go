package journal

import (
	"context"
	"testing"
	"time"
)

func record(connID, protocol string, acceptedAt time.Time, errStr string, panicked bool) *ConnectionRecord {
	return &ConnectionRecord{
		ID:         connID + "-rec",
		ConnID:     connID,
		RemoteAddr: "127.0.0.1:5000",
		Protocol:   protocol,
		AcceptedAt: acceptedAt,
		ClosedAt:   acceptedAt.Add(time.Second),
		Requests:   1,
		Error:      errStr,
		Panicked:   panicked,
	}
}

func seed(t *testing.T, s Storage) time.Time {
	t.Helper()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	records := []*ConnectionRecord{
		record("c1", "http/1.1", base, "", false),
		record("c2", "h2", base.Add(time.Hour), "", false),
		record("c3", "h2", base.Add(2*time.Hour), "read timeout", false),
		record("c4", "http/1.1", base.Add(3*time.Hour), "", true),
	}
	for _, rec := range records {
		if err := s.Store(context.Background(), rec); err != nil {
			t.Fatalf("store %s: %v", rec.ConnID, err)
		}
	}
	return base
}

func TestMemoryStorage_QueryFilters(t *testing.T) {
	s := NewMemoryStorage()
	base := seed(t, s)

	tests := []struct {
		name  string
		query *Query
		want  []string // conn IDs, newest first
	}{
		{"all", &Query{}, []string{"c4", "c3", "c2", "c1"}},
		{"by protocol", &Query{Protocol: "h2"}, []string{"c3", "c2"}},
		{"clean only", &Query{Outcome: "clean"}, []string{"c2", "c1"}},
		{"errors only", &Query{Outcome: "error"}, []string{"c3"}},
		{"panics only", &Query{Outcome: "panic"}, []string{"c4"}},
		{"since", &Query{Since: timePtr(base.Add(90 * time.Minute))}, []string{"c4", "c3"}},
		{"until", &Query{Until: timePtr(base.Add(90 * time.Minute))}, []string{"c2", "c1"}},
		{"limit", &Query{Limit: 2}, []string{"c4", "c3"}},
		{"offset", &Query{Offset: 3}, []string{"c1"}},
		{"offset past end", &Query{Offset: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			for i, rec := range got {
				if rec.ConnID != tt.want[i] {
					t.Errorf("record %d: conn %s, want %s", i, rec.ConnID, tt.want[i])
				}
			}
		})
	}
}

func TestMemoryStorage_CountAndDelete(t *testing.T) {
	s := NewMemoryStorage()
	base := seed(t, s)

	count, err := s.Count(context.Background(), &Query{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}

	cutoff := base.Add(90 * time.Minute)
	deleted, err := s.Delete(context.Background(), &Query{Until: &cutoff})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	count, _ = s.Count(context.Background(), &Query{})
	if count != 2 {
		t.Errorf("count after delete = %d, want 2", count)
	}
}

func TestMemoryStorage_StoreCopies(t *testing.T) {
	s := NewMemoryStorage()

	rec := record("c1", "h2", time.Now(), "", false)
	if err := s.Store(context.Background(), rec); err != nil {
		t.Fatalf("store: %v", err)
	}

	// Mutating the caller's record must not reach the stored copy.
	rec.Protocol = "mutated"

	got, err := s.Query(context.Background(), &Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got[0].Protocol != "h2" {
		t.Errorf("stored record was aliased to the caller's: protocol %q", got[0].Protocol)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
