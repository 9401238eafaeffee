package admission

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSlotPool_Basic(t *testing.T) {
	pool := NewSlotPool(2)

	if !pool.TryAcquire() {
		t.Fatal("expected first acquire to succeed")
	}
	if !pool.TryAcquire() {
		t.Fatal("expected second acquire to succeed")
	}
	if pool.TryAcquire() {
		t.Fatal("expected third acquire to fail")
	}

	if pool.InUse() != 2 {
		t.Errorf("expected 2 slots in use, got %d", pool.InUse())
	}

	pool.Release()
	if !pool.TryAcquire() {
		t.Fatal("expected acquire after release to succeed")
	}
}

func TestSlotPool_AcquireBlocksUntilRelease(t *testing.T) {
	pool := NewSlotPool(1)
	if err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := pool.Acquire(context.Background()); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("acquire succeeded while pool was full")
	case <-time.After(50 * time.Millisecond):
	}

	pool.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock after release")
	}
}

func TestSlotPool_AcquireCancelled(t *testing.T) {
	pool := NewSlotPool(1)
	if err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := pool.Acquire(ctx); err == nil {
		t.Fatal("expected context error from blocked acquire")
	}
}

func TestSlotPool_ClampsLimit(t *testing.T) {
	pool := NewSlotPool(0)
	if pool.Limit() != 1 {
		t.Errorf("expected limit clamped to 1, got %d", pool.Limit())
	}
}

func TestSlotPool_ConcurrentAcquireRelease(t *testing.T) {
	pool := NewSlotPool(10)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			time.Sleep(time.Millisecond)
			pool.Release()
		}()
	}
	wg.Wait()

	if pool.InUse() != 0 {
		t.Errorf("expected 0 slots in use after drain, got %d", pool.InUse())
	}
}
