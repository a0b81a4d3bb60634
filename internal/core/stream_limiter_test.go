package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStreamLimiter_AcquireRelease(t *testing.T) {
	l := NewStreamLimiter(2, time.Second)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if !l.TryAcquire() {
		t.Fatal("TryAcquire should take the second slot")
	}
	if l.TryAcquire() {
		t.Fatal("TryAcquire should fail when full")
	}

	st := l.Status()
	if st.Active != 2 || st.Available != 0 || st.Max != 2 {
		t.Errorf("status = %+v", st)
	}

	l.Release()
	l.Release()
	if got := l.Active(); got != 0 {
		t.Errorf("Active after release = %d, want 0", got)
	}
}

func TestStreamLimiter_TimesOutWhenFull(t *testing.T) {
	l := NewStreamLimiter(1, 50*time.Millisecond)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	start := time.Now()
	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTooManyStreams) {
		t.Errorf("error = %v, want ErrTooManyStreams", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %v, expected to wait", elapsed)
	}
}

func TestStreamLimiter_ContextCancel(t *testing.T) {
	l := NewStreamLimiter(1, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestStreamLimiter_WaitForDrain(t *testing.T) {
	l := NewStreamLimiter(1, time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		l.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain: %v", err)
	}
}

func TestNewStreamLimiter_Defaults(t *testing.T) {
	l := NewStreamLimiter(0, 0)
	if l.Status().Max != DefaultMaxStreams || l.maxWait != DefaultStreamWait {
		t.Errorf("defaults not applied: max %d wait %v", l.Status().Max, l.maxWait)
	}
}
