// Package queue drains queued notifications: it claims due pending rows,
// hands them to the mail collaborator, and applies the retry/backoff
// policy. One background dispatcher runs per process; the conditional
// pending -> processing claim in the store keeps multiple processes from
// double-sending a row.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soporteware/helpdesk/internal/mailer"
	"github.com/soporteware/helpdesk/internal/model"
	"github.com/soporteware/helpdesk/internal/store"
)

// ErrIllegalTransition is returned when retry or cancel is attempted
// from a state that does not allow it.
var ErrIllegalTransition = errors.New("illegal queue state transition")

// ErrDrainBusy is returned by ProcessNow when a drain pass is already
// running in this process.
var ErrDrainBusy = errors.New("queue drain already in progress")

// Retry backoff bounds per the delivery policy: 60s doubling per attempt,
// capped at 30 minutes.
const (
	backoffBase = 60 * time.Second
	backoffCap  = 1800 * time.Second
)

// recordTimeout bounds the store update after a send attempt. The update
// runs on its own context: once a row is claimed its outcome must be
// recorded even when the pass budget has expired, or the row would sit
// in processing forever.
const recordTimeout = 10 * time.Second

// Store is the slice of the persistence interface the dispatcher needs.
type Store interface {
	DueNotifications(ctx context.Context, now time.Time, limit int) ([]model.QueuedNotification, error)
	ClaimNotification(ctx context.Context, id string) error
	MarkNotificationSent(ctx context.Context, id string, sentAt time.Time, log []model.SendLogEntry) error
	ScheduleNotificationRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, lastError string, log []model.SendLogEntry) error
	FailNotification(ctx context.Context, id string, retryCount int, lastError string, log []model.SendLogEntry) error
	ResetNotification(ctx context.Context, id string) error
	CancelNotification(ctx context.Context, id string) error
	PromoteScheduled(ctx context.Context, now time.Time) (int, error)
}

// DrainResult reports one drain pass for operational visibility.
type DrainResult struct {
	Processed int
	Succeeded int
	Failed    int
}

// Options configures a Dispatcher.
type Options struct {
	// Interval between background drain passes. Defaults to 30s.
	Interval time.Duration

	// BatchSize caps rows per pass. Defaults to 20.
	BatchSize int

	// SendTimeout bounds one collaborator send call. Defaults to 30s.
	SendTimeout time.Duration

	// From and ReplyTo set the outbound envelope.
	From    string
	ReplyTo string
}

// Dispatcher owns the drain loop.
type Dispatcher struct {
	store  Store
	sender mailer.Sender
	opts   Options

	stopCh   chan struct{}
	mu       sync.Mutex
	running  bool
	draining bool
}

// NewDispatcher creates a Dispatcher over the given store and send
// collaborator.
func NewDispatcher(s Store, sender mailer.Sender, opts Options) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{
		store:  s,
		sender: sender,
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start launches the background drain loop. Calling Start twice is a
// no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	go d.loop()
}

// Stop halts the background loop.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	close(d.stopCh)
	d.running = false
}

func (d *Dispatcher) loop() {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), d.opts.Interval)
			if _, err := d.store.PromoteScheduled(ctx, time.Now()); err != nil {
				slog.Error("promoting scheduled notifications failed", "err", err)
			}
			if _, err := d.drain(ctx); err != nil && !errors.Is(err, ErrDrainBusy) {
				slog.Error("queue drain failed", "err", err)
			}
			cancel()
		}
	}
}

// ProcessNow runs one drain pass synchronously and returns its counts.
func (d *Dispatcher) ProcessNow(ctx context.Context) (DrainResult, error) {
	if _, err := d.store.PromoteScheduled(ctx, time.Now()); err != nil {
		return DrainResult{}, fmt.Errorf("promoting scheduled notifications: %w", err)
	}
	return d.drain(ctx)
}

// drain claims and sends one batch of due rows. The in-process draining
// flag keeps overlapping passes from running concurrently.
func (d *Dispatcher) drain(ctx context.Context) (DrainResult, error) {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return DrainResult{}, ErrDrainBusy
	}
	d.draining = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.draining = false
		d.mu.Unlock()
	}()

	due, err := d.store.DueNotifications(ctx, time.Now(), d.opts.BatchSize)
	if err != nil {
		return DrainResult{}, fmt.Errorf("selecting due notifications: %w", err)
	}

	var result DrainResult
	for _, n := range due {
		// The conditional claim is the mutual-exclusion point: a row
		// another worker took between select and claim is skipped.
		if err := d.store.ClaimNotification(ctx, n.ID); err != nil {
			if errors.Is(err, store.ErrNotClaimed) {
				continue
			}
			return result, fmt.Errorf("claiming notification %s: %w", n.ID, err)
		}

		result.Processed++
		if d.processClaimed(ctx, n) {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	return result, nil
}

// processClaimed sends one claimed row and records the outcome. Returns
// true when the row reached the sent state.
func (d *Dispatcher) processClaimed(ctx context.Context, n model.QueuedNotification) bool {
	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	res := d.sender.Send(sendCtx, mailer.Message{
		From:    d.opts.From,
		ReplyTo: d.opts.ReplyTo,
		To:      n.To,
		Cc:      n.Cc,
		Subject: n.Subject,
		HTML:    n.HTML,
		Text:    n.Text,
	})
	cancel()

	now := time.Now().UTC()
	log := appendSendLog(n.SendLog, n, res, now)

	// Outcome bookkeeping gets a fresh context, not the pass context.
	recordCtx, recordCancel := context.WithTimeout(context.Background(), recordTimeout)
	defer recordCancel()

	if res.Success {
		if err := d.store.MarkNotificationSent(recordCtx, n.ID, now, log); err != nil {
			slog.Error("marking notification sent failed", "id", n.ID, "err", err)
			return false
		}
		return true
	}

	retryCount := n.RetryCount + 1
	if retryCount < n.MaxRetries {
		delay := backoffDelay(retryCount)
		if err := d.store.ScheduleNotificationRetry(recordCtx, n.ID, retryCount, now.Add(delay), res.Error, log); err != nil {
			slog.Error("scheduling notification retry failed", "id", n.ID, "err", err)
		} else {
			slog.Warn("notification send failed, retry scheduled",
				"id", n.ID, "retry_count", retryCount, "delay", delay, "err", res.Error)
		}
		return false
	}

	if err := d.store.FailNotification(recordCtx, n.ID, retryCount, res.Error, log); err != nil {
		slog.Error("failing notification failed", "id", n.ID, "err", err)
	} else {
		slog.Error("notification failed permanently",
			"id", n.ID, "retry_count", retryCount, "err", res.Error)
	}
	return false
}

// Retry returns an error or cancelled row to pending with a cleared
// retry state. Any other state is an illegal transition.
func (d *Dispatcher) Retry(ctx context.Context, id string) error {
	err := d.store.ResetNotification(ctx, id)
	if errors.Is(err, store.ErrNotClaimed) {
		return fmt.Errorf("retry of notification %s: %w", id, ErrIllegalTransition)
	}
	return err
}

// Cancel cancels a pending row. Any other state is an illegal
// transition; in particular an in-flight (processing) send cannot be
// cancelled.
func (d *Dispatcher) Cancel(ctx context.Context, id string) error {
	err := d.store.CancelNotification(ctx, id)
	if errors.Is(err, store.ErrNotClaimed) {
		return fmt.Errorf("cancel of notification %s: %w", id, ErrIllegalTransition)
	}
	return err
}

// backoffDelay computes the retry delay after the given failure count.
func backoffDelay(retryCount int) time.Duration {
	delay := backoffBase
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= backoffCap {
			return backoffCap
		}
	}
	return delay
}

// appendSendLog adds one entry per recipient for this attempt.
func appendSendLog(log []model.SendLogEntry, n model.QueuedNotification, res mailer.Result, at time.Time) []model.SendLogEntry {
	for _, email := range n.To {
		log = append(log, model.SendLogEntry{
			Email: email, Success: res.Success, Error: res.Error, Timestamp: at,
		})
	}
	for _, email := range n.Cc {
		log = append(log, model.SendLogEntry{
			Email: email, Success: res.Success, Error: res.Error, Timestamp: at,
		})
	}
	return log
}
