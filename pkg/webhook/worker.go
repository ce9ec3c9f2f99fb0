package webhook

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkerState is the worker's run state: stopped or running.
type WorkerState string

const (
	WorkerStateStopped WorkerState = "stopped"
	WorkerStateRunning WorkerState = "running"
)

// DeliveryStore is the persistence seam the worker polls and updates.
// Implemented by the database package's webhook repository; kept as an
// interface here so this package stays free of a database import.
type DeliveryStore interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Delivery, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, attemptCount int, nextAttemptAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// Worker polls for due deliveries on a fixed interval and sends them,
// rescheduling on failure per RetryDelay and giving up after maxAttempts.
type Worker struct {
	mu sync.Mutex

	store    DeliveryStore
	sender   *Sender
	interval time.Duration
	batch    int
	logger   *log.Logger

	state  WorkerState
	stopCh chan struct{}
	doneCh chan struct{}
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Store    DeliveryStore
	Sender   *Sender
	Interval time.Duration
	Batch    int
	Logger   *log.Logger
}

// NewWorker builds a stopped Worker ready for Start.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[webhook-worker] ", log.LstdFlags)
	}
	return &Worker{
		store:    cfg.Store,
		sender:   cfg.Sender,
		interval: cfg.Interval,
		batch:    cfg.Batch,
		logger:   cfg.Logger,
		state:    WorkerStateStopped,
	}
}

// Start launches the poll loop if not already running.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WorkerStateRunning {
		return
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.state = WorkerStateRunning
	go w.run(ctx)
	w.logger.Printf("webhook worker started (interval=%s, batch=%d)", w.interval, w.batch)
}

// Stop signals the loop to exit and waits for it to finish. Safe to call
// when not running.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state != WorkerStateRunning {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.state = WorkerStateStopped
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.logger.Println("webhook worker stopped")
}

// State reports the worker's current run state, used by the /ready check.
func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.cycle(ctx); err != nil {
				// A cycle failure must not stop the loop: pending rows
				// remain claimable on the next tick.
				w.logger.Printf("cycle failed: %v", err)
			}
		}
	}
}

func (w *Worker) cycle(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := w.store.ClaimDue(ctx, now, w.batch)
	if err != nil {
		return err
	}
	for _, d := range due {
		w.deliverOne(ctx, d, now)
	}
	return nil
}

func (w *Worker) deliverOne(ctx context.Context, d Delivery, now time.Time) {
	status, err := w.sender.Send(ctx, d.TargetURL, d.Payload)
	attempt := d.AttemptCount + 1

	if err == nil && status >= 200 && status < 300 {
		if merr := w.store.MarkSent(ctx, d.ID, now); merr != nil {
			w.logger.Printf("mark sent failed for %s: %v", d.ID, merr)
		}
		return
	}

	lastError := errString(err, status)
	if attempt >= maxAttempts {
		if merr := w.store.MarkFailed(ctx, d.ID, lastError); merr != nil {
			w.logger.Printf("mark failed for %s: %v", d.ID, merr)
		}
		return
	}

	nextAttempt := now.Add(RetryDelay(attempt))
	if merr := w.store.MarkRetry(ctx, d.ID, attempt, nextAttempt, lastError); merr != nil {
		w.logger.Printf("mark retry failed for %s: %v", d.ID, merr)
	}
}

func errString(err error, status int) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("unexpected status %d", status)
}
