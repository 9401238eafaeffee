package journal

import (
	"context"
	"testing"
	"time"
)

func TestPruner_InvalidScheduleRejected(t *testing.T) {
	_, err := NewPruner(NewMemoryStorage(), &PrunerConfig{PruneSchedule: "not a cron line"})
	if err == nil {
		t.Fatal("invalid schedule accepted")
	}
}

func TestPruner_PruneByAge(t *testing.T) {
	s := NewMemoryStorage()

	old := record("old", "h2", time.Now().AddDate(0, 0, -40), "", false)
	fresh := record("fresh", "h2", time.Now().Add(-time.Hour), "", false)
	for _, rec := range []*ConnectionRecord{old, fresh} {
		if err := s.Store(context.Background(), rec); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	p, err := NewPruner(s, &PrunerConfig{RetentionDays: 30})
	if err != nil {
		t.Fatalf("new pruner: %v", err)
	}

	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	got, _ := s.Query(context.Background(), &Query{})
	if len(got) != 1 || got[0].ConnID != "fresh" {
		t.Errorf("wrong records survived: %+v", got)
	}
}

func TestPruner_PruneByCount(t *testing.T) {
	s := NewMemoryStorage()

	base := time.Now().Add(-10 * time.Hour)
	for i := 0; i < 10; i++ {
		rec := record("c", "h2", base.Add(time.Duration(i)*time.Hour), "", false)
		rec.ID = rec.ConnID + time.Duration(i).String()
		if err := s.Store(context.Background(), rec); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	p, err := NewPruner(s, &PrunerConfig{MaxRecords: 4})
	if err != nil {
		t.Fatalf("new pruner: %v", err)
	}

	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 6 {
		t.Errorf("deleted = %d, want 6", deleted)
	}

	count, _ := s.Count(context.Background(), &Query{})
	if count != 4 {
		t.Errorf("remaining = %d, want 4", count)
	}

	// The newest records are the ones kept.
	got, _ := s.Query(context.Background(), &Query{})
	for _, rec := range got {
		if rec.AcceptedAt.Before(base.Add(6 * time.Hour)) {
			t.Errorf("old record survived count pruning: %v", rec.AcceptedAt)
		}
	}
}

func TestPruner_ZeroConfigKeepsEverything(t *testing.T) {
	s := NewMemoryStorage()
	seed(t, s)

	p, err := NewPruner(s, &PrunerConfig{})
	if err != nil {
		t.Fatalf("new pruner: %v", err)
	}

	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

func TestPruner_NoScheduleStartIsNoop(t *testing.T) {
	p, err := NewPruner(NewMemoryStorage(), &PrunerConfig{})
	if err != nil {
		t.Fatalf("new pruner: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if p.NextPruning() != nil {
		t.Error("next pruning reported without a schedule")
	}
	p.Stop()
}
