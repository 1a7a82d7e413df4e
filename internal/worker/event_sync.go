package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sanctuary/backend/internal/service/events"
)

const DefaultSchedule = "*/15 * * * *"

type Syncer interface {
	SyncRecurring(ctx context.Context, now time.Time) (events.SyncReport, error)
}

type Options struct {
	Schedule   string
	RunOnStart bool
	// RunTimeout bounds a single pass. Zero means no limit.
	RunTimeout time.Duration
	Now        func() time.Time
}

// EventSyncWorker runs the recurring-event sync on a cron schedule. A tick that
// arrives while a pass is still running is skipped.
type EventSyncWorker struct {
	syncer Syncer
	cron   *cron.Cron
	job    cron.Job
	opts   Options
	log    *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	startup sync.WaitGroup
}

func NewEventSyncWorker(syncer Syncer, opts Options, log *slog.Logger) (*EventSyncWorker, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log = log.With(slog.String("component", "event_sync_worker"))

	schedule, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("sync schedule %q: %w", opts.Schedule, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &EventSyncWorker{
		syncer:  syncer,
		opts:    opts,
		log:     log,
		baseCtx: ctx,
		cancel:  cancel,
	}
	logger := cronLogger{log: log}
	w.job = cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(w.runOnce))
	w.cron = cron.New(cron.WithLogger(logger))
	w.cron.Schedule(schedule, w.job)
	return w, nil
}

// Start begins scheduling. With RunOnStart a pass also runs right away.
func (w *EventSyncWorker) Start() {
	w.cron.Start()
	if w.opts.RunOnStart {
		w.startup.Add(1)
		go func() {
			defer w.startup.Done()
			w.job.Run()
		}()
	}
	w.log.Info("event sync scheduled", slog.String("schedule", w.opts.Schedule), slog.Bool("run_on_start", w.opts.RunOnStart))
}

// Stop cancels running passes and waits for them to return or for ctx to end.
func (w *EventSyncWorker) Stop(ctx context.Context) error {
	w.cancel()
	cronDone := w.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		w.startup.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow performs one pass synchronously, outside the schedule.
func (w *EventSyncWorker) RunNow(ctx context.Context) (events.SyncReport, error) {
	if w.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.RunTimeout)
		defer cancel()
	}
	return w.syncer.SyncRecurring(ctx, w.opts.Now())
}

func (w *EventSyncWorker) runOnce() {
	if w.baseCtx.Err() != nil {
		return
	}
	started := time.Now()
	report, err := w.RunNow(w.baseCtx)
	if err != nil {
		w.log.Error("scheduled event sync failed", slog.Any("err", err))
		return
	}
	w.log.Debug("scheduled event sync finished",
		slog.Int("advanced", report.Advanced),
		slog.Int("failed", report.Failed),
		slog.Duration("took", time.Since(started)),
	)
}

// cronLogger routes scheduler messages into slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{slog.Any("err", err)}, keysAndValues...)...)
}
