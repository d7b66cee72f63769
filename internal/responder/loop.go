// Package responder runs the poll-and-reply loop: every tick it lists unread
// inbox mail, answers what has not been answered, and moves the original out
// of the inbox under the vacation label.
package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	gc "github.com/joshsymonds/vacationd/internal/gmail"
	"github.com/joshsymonds/vacationd/internal/reply"
	"github.com/joshsymonds/vacationd/internal/screen"
)

// ErrNotRunning is returned by Stop when the loop is idle.
var ErrNotRunning = errors.New("loop is not running")

// relabelTimeout bounds the label change after a sent reply, which runs
// detached from the tick context.
const relabelTimeout = 30 * time.Second

// unreadInbox is the server-side filter for candidate messages.
var unreadInbox = gc.Query{Raw: "is:unread", LabelIDs: []gc.LabelID{gc.LabelInbox}}

// Options tunes a Loop. The zero value polls every 45-120s and never screens.
type Options struct {
	Interval      Interval
	Drafter       reply.Drafter
	SkipAutomated bool // leave machine-generated mail alone
	PollOnStart   bool // tick immediately instead of after the first pause
}

// Loop owns one background poller. Start and Stop may be called from any
// goroutine; ticks never overlap.
type Loop struct {
	Client gc.Client
	Label  gc.Label
	Log    *slog.Logger
	Opts   Options
	Clock  func() time.Time
	// Sleep pauses between ticks and returns early with ctx's error.
	Sleep func(ctx context.Context, d time.Duration) error

	tickMu sync.Mutex

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop constructs a Loop with sane defaults.
func NewLoop(client gc.Client, label gc.Label, logger *slog.Logger, opts Options) *Loop {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if opts.Interval == (Interval{}) {
		opts.Interval = DefaultInterval
	}
	return &Loop{
		Client: client,
		Label:  label,
		Log:    logger,
		Opts:   opts,
		Clock:  time.Now,
		Sleep:  sleepContext,
		status: Status{State: StateStopped, Label: label.Name},
	}
}

// Start launches the poller bound to ctx. Starting a running loop changes
// nothing and reports its current status.
func (l *Loop) Start(ctx context.Context) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return l.status
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.status.State = StateRunning
	l.status.RunID = uuid.NewString()
	l.status.StartedAt = l.Clock()
	l.status.LastError = ""
	l.Log.InfoContext(ctx, "auto-reply loop started",
		"run_id", l.status.RunID, "label", l.Label.Name,
		"min", l.Opts.Interval.Min, "max", l.Opts.Interval.Max)
	go l.run(runCtx, cancel, l.done)
	return l.status
}

// Stop cancels the pending wait or in-flight tick and waits for the poller to
// exit, or for ctx to end.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop loop: %w", ctx.Err())
	}
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Loop) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer func() {
		cancel()
		l.mu.Lock()
		l.cancel, l.done = nil, nil
		l.status.State = StateStopped
		l.status.NextTickAt = time.Time{}
		runID := l.status.RunID
		l.mu.Unlock()
		l.Log.Info("auto-reply loop stopped", "run_id", runID)
	}()

	wait := !l.Opts.PollOnStart
	for {
		if wait {
			d := l.Opts.Interval.Next()
			l.mu.Lock()
			l.status.NextTickAt = l.Clock().Add(d)
			l.mu.Unlock()
			l.Log.Debug("waiting for next tick", "in", d)
			if err := l.Sleep(ctx, d); err != nil {
				return
			}
		}
		wait = true

		tickID := uuid.NewString()
		res, err := l.Tick(ctx)
		if ctx.Err() != nil {
			l.recordPartial(res)
			return
		}
		l.record(res, err)
		if err != nil {
			l.Log.Error("tick failed", "tick_id", tickID, "error", err,
				"replied", res.Replied, "skipped", res.Skipped)
			continue
		}
		l.Log.Info("tick complete", "tick_id", tickID,
			"seen", res.Seen, "replied", res.Replied, "skipped", res.Skipped)
	}
}

func (l *Loop) record(res TickResult, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Ticks++
	l.status.Replied += res.Replied
	l.status.Skipped += res.Skipped
	l.status.LastTickAt = l.Clock()
	if err != nil {
		l.status.LastError = err.Error()
	} else {
		l.status.LastError = ""
	}
}

// recordPartial keeps the counts of a tick cut short by a stop.
func (l *Loop) recordPartial(res TickResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Replied += res.Replied
	l.status.Skipped += res.Skipped
}

// Tick runs one poll-and-reply batch. The first failure ends the batch; the
// counts so far are returned with it.
func (l *Loop) Tick(ctx context.Context) (TickResult, error) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	var res TickResult
	ids, err := l.unread(ctx)
	if err != nil {
		return res, err
	}
	res.Seen = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		replied, err := l.handle(ctx, id)
		if err != nil {
			return res, err
		}
		if replied {
			res.Replied++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

func (l *Loop) unread(ctx context.Context) ([]gc.MessageID, error) {
	var all []gc.MessageID
	pageToken := ""
	for {
		page, err := l.Client.List(ctx, unreadInbox, pageToken)
		if err != nil {
			return nil, fmt.Errorf("list unread: %w", err)
		}
		all = append(all, page.IDs...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// handle answers one message. It reports false when the message was skipped.
func (l *Loop) handle(ctx context.Context, id gc.MessageID) (bool, error) {
	msg, err := l.Client.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", id, err)
	}
	if msg.HasHeader("In-Reply-To") {
		l.Log.DebugContext(ctx, "skip reply", "id", id, "reason", "in-reply-to")
		return false, nil
	}
	if l.Opts.SkipAutomated {
		if reason := screen.Automated(msg); reason != "" {
			l.Log.DebugContext(ctx, "skip reply", "id", id, "reason", reason)
			return false, nil
		}
	}

	out, err := l.Opts.Drafter.Draft(msg)
	if errors.Is(err, reply.ErrNoSender) {
		l.Log.WarnContext(ctx, "skip reply", "id", id, "reason", "no sender")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := l.Client.Send(ctx, out); err != nil {
		return false, fmt.Errorf("reply to %s: %w", id, err)
	}
	ops := gc.ModifyOps{
		AddLabels:    []gc.LabelID{l.Label.ID},
		RemoveLabels: []gc.LabelID{gc.LabelInbox},
	}
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relabelTimeout)
	defer cancel()
	if err := l.Client.Modify(mctx, id, ops); err != nil {
		return false, fmt.Errorf("relabel %s: %w", id, err)
	}
	from, _ := msg.Header("From")
	l.Log.InfoContext(ctx, "sent vacation reply", "id", id, "to", from)
	return true, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
