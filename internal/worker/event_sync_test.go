package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"sanctuary/backend/internal/service/events"
)

type fakeSyncer struct {
	syncRecurring func(ctx context.Context, now time.Time) (events.SyncReport, error)
	calls         atomic.Int32
}

func (f *fakeSyncer) SyncRecurring(ctx context.Context, now time.Time) (events.SyncReport, error) {
	f.calls.Add(1)
	if f.syncRecurring == nil {
		panic("SyncRecurring not configured")
	}
	return f.syncRecurring(ctx, now)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := NewEventSyncWorker(&fakeSyncer{}, Options{Schedule: "every tuesday"}, quiet())
	if err == nil {
		t.Fatalf("err = nil, want schedule error")
	}
}

func TestRunNowUsesClockAndTimeout(t *testing.T) {
	fixed := time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)
	s := &fakeSyncer{syncRecurring: func(ctx context.Context, now time.Time) (events.SyncReport, error) {
		if !now.Equal(fixed) {
			t.Fatalf("now = %v, want %v", now, fixed)
		}
		if _, ok := ctx.Deadline(); !ok {
			t.Fatalf("pass has no deadline")
		}
		return events.SyncReport{Advanced: 2}, nil
	}}
	w, err := NewEventSyncWorker(s, Options{RunTimeout: time.Minute, Now: func() time.Time { return fixed }}, quiet())
	if err != nil {
		t.Fatalf("NewEventSyncWorker: %v", err)
	}
	report, err := w.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if report.Advanced != 2 {
		t.Fatalf("advanced = %d, want 2", report.Advanced)
	}
}

func TestRunOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := &fakeSyncer{syncRecurring: func(ctx context.Context, now time.Time) (events.SyncReport, error) {
		ran <- struct{}{}
		return events.SyncReport{}, nil
	}}
	w, err := NewEventSyncWorker(s, Options{Schedule: "0 3 1 1 *", RunOnStart: true}, quiet())
	if err != nil {
		t.Fatalf("NewEventSyncWorker: %v", err)
	}
	w.Start()
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("startup pass did not run")
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	s := &fakeSyncer{syncRecurring: func(ctx context.Context, now time.Time) (events.SyncReport, error) {
		close(entered)
		<-release
		return events.SyncReport{}, nil
	}}
	w, err := NewEventSyncWorker(s, Options{}, quiet())
	if err != nil {
		t.Fatalf("NewEventSyncWorker: %v", err)
	}

	first := make(chan struct{})
	go func() {
		w.job.Run()
		close(first)
	}()
	<-entered

	w.job.Run()
	if got := s.calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	close(release)
	<-first
}

func TestStopCancelsRunningPass(t *testing.T) {
	entered := make(chan struct{})
	s := &fakeSyncer{syncRecurring: func(ctx context.Context, now time.Time) (events.SyncReport, error) {
		close(entered)
		<-ctx.Done()
		return events.SyncReport{}, ctx.Err()
	}}
	w, err := NewEventSyncWorker(s, Options{RunOnStart: true}, quiet())
	if err != nil {
		t.Fatalf("NewEventSyncWorker: %v", err)
	}
	w.Start()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSyncErrorDoesNotPanic(t *testing.T) {
	s := &fakeSyncer{syncRecurring: func(ctx context.Context, now time.Time) (events.SyncReport, error) {
		return events.SyncReport{}, errors.New("db down")
	}}
	w, err := NewEventSyncWorker(s, Options{}, quiet())
	if err != nil {
		t.Fatalf("NewEventSyncWorker: %v", err)
	}
	w.job.Run()
	if got := s.calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}
