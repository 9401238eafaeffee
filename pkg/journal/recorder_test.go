package journal

import (
	"context"
	"testing"
	"time"
)

func TestRecorder_WritesAsync(t *testing.T) {
	s := NewMemoryStorage()
	r := NewRecorder(s, nil)

	for i := 0; i < 5; i++ {
		r.Record(record("c1", "h2", time.Now(), "", false))
	}
	r.Close()

	count, err := s.Count(context.Background(), &Query{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestRecorder_AssignsRecordID(t *testing.T) {
	s := NewMemoryStorage()
	r := NewRecorder(s, nil)

	rec := record("c1", "h2", time.Now(), "", false)
	rec.ID = ""
	r.Record(rec)
	r.Close()

	got, err := s.Query(context.Background(), &Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID == "" {
		t.Error("record stored without an id")
	}
}

func TestRecorder_DisabledDropsSilently(t *testing.T) {
	s := NewMemoryStorage()
	cfg := DefaultRecorderConfig()
	cfg.Enabled = false
	r := NewRecorder(s, cfg)

	r.Record(record("c1", "h2", time.Now(), "", false))
	r.Close()

	count, _ := s.Count(context.Background(), &Query{})
	if count != 0 {
		t.Errorf("disabled recorder stored %d records", count)
	}
	if r.Dropped() != 0 {
		t.Errorf("disabled recorder counted drops: %d", r.Dropped())
	}
}

// blockingStorage stalls Store until released, to fill the recorder buffer.
type blockingStorage struct {
	*MemoryStorage
	release chan struct{}
}

func (b *blockingStorage) Store(ctx context.Context, rec *ConnectionRecord) error {
	<-b.release
	return b.MemoryStorage.Store(ctx, rec)
}

func TestRecorder_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	bs := &blockingStorage{MemoryStorage: NewMemoryStorage(), release: make(chan struct{})}
	cfg := DefaultRecorderConfig()
	cfg.AsyncBuffer = 2
	r := NewRecorder(bs, cfg)

	// One record in the worker's hands, two in the buffer, the rest dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 6; i++ {
			r.Record(record("c1", "h2", time.Now(), "", false))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}

	close(bs.release)
	r.Close()

	if r.Dropped() == 0 {
		t.Error("no drops counted despite a full buffer")
	}
	count, _ := bs.MemoryStorage.Count(context.Background(), &Query{})
	if count == 0 {
		t.Error("buffered records never reached storage")
	}
	if count+r.Dropped() != 6 {
		t.Errorf("stored %d + dropped %d, want 6 total", count, r.Dropped())
	}
}
