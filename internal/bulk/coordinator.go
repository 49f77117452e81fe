// Package bulk coordinates batched asynchronous operations such as deleting,
// syncing or exporting a selection of items. The coordinator dispatches the
// whole selection to an Executor in one call and reconciles the reply into
// per-item statuses.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/google/uuid"
)

// Coordinator runs bulk operations. It never retries; re-running an
// operation is up to the caller.
type Coordinator struct {
	store OperationStore

	mu        sync.RWMutex
	listeners []Listener
	closed    bool
	wg        sync.WaitGroup

	// abort cancels background operations still running when Stop times out.
	aborted context.Context
	abort   context.CancelFunc

	newID func() string
	now   func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithIDGenerator overrides operation id generation.
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator. store may be nil when operations do
// not need to be reported after they finish.
func NewCoordinator(store OperationStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: store,
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
	c.aborted, c.abort = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers a listener for item transitions.
func (c *Coordinator) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Run executes req synchronously and returns the finished operation.
// Executor failures are reflected in item statuses, not in the returned
// error, which is reserved for invalid requests and store failures.
func (c *Coordinator) Run(ctx context.Context, req Request, exec Executor) (*Operation, error) {
	op, err := c.prepare(ctx, req, exec)
	if err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}
	c.execute(ctx, op, exec)
	return op.Clone(), nil
}

// Submit validates and saves req, then executes it in the background. The
// returned operation is still pending; poll the store for progress.
func (c *Coordinator) Submit(ctx context.Context, req Request, exec Executor) (*Operation, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("Submit: coordinator is closed")
	}

	op, err := c.prepare(ctx, req, exec)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}
	snapshot := op.Clone()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("Submit: coordinator is closed")
	}
	c.wg.Add(1)
	c.mu.Unlock()

	// the request may end before the executor does
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	unwatch := context.AfterFunc(c.aborted, cancel)
	go func() {
		defer c.wg.Done()
		defer cancel()
		defer unwatch()
		c.execute(bg, op, exec)
	}()
	return snapshot, nil
}

// Stop refuses new submissions and waits for running operations. When ctx
// ends first, the remaining operations are cancelled and Stop returns
// ctx.Err() without waiting for executors that ignore cancellation.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.abort()
		return ctx.Err()
	}
}

// prepare builds the pending operation. Blank ids are skipped and
// duplicates keep their first occurrence.
func (c *Coordinator) prepare(ctx context.Context, req Request, exec Executor) (*Operation, error) {
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return nil, &domain.ValidationError{Field: "kind", Reason: err.Error()}
	}
	if exec == nil {
		return nil, domain.InvalidState(fmt.Sprintf("No executor available for %s", req.Kind))
	}

	seen := make(map[string]bool, len(req.Items))
	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ID == "" || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		items = append(items, Item{ID: it.ID, Name: it.Name, Status: ItemPending})
	}
	if len(items) == 0 {
		return nil, domain.InvalidState(MsgNoItems)
	}

	op := &Operation{
		ID:        c.newID(),
		Kind:      req.Kind,
		Status:    OperationPending,
		Items:     items,
		CreatedAt: c.now(),
	}
	if c.store != nil {
		if err := c.store.SaveOperation(ctx, op.Clone()); err != nil {
			return nil, fmt.Errorf("failed to save operation: %w", err)
		}
	}
	return op, nil
}

// execute dispatches op to exec and reconciles the reply. Every item ends
// in a terminal status whatever the executor does.
func (c *Coordinator) execute(ctx context.Context, op *Operation, exec Executor) {
	log := logger.FromContext(ctx).With().
		Str("operation_id", op.ID).
		Str("kind", string(op.Kind)).
		Int("items", len(op.Items)).
		Logger()

	if err := ctx.Err(); err != nil {
		log.Info().Err(err).Msg("bulk operation cancelled before dispatch")
		c.finishAll(ctx, op, ItemCancelled, MsgCancelled)
		return
	}

	started := c.now()
	op.StartedAt = &started
	op.Status = OperationRunning
	c.transitionAll(op, ItemProcessing, "")
	c.save(ctx, op)

	outcome, err := confirm(ctx, exec, op.IDs())
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Msg("bulk operation cancelled")
		c.finishAll(ctx, op, ItemCancelled, MsgCancelled)
		return
	case err != nil:
		log.Error().Err(err).Msg("bulk executor failed")
		c.finishAll(ctx, op, ItemError, MsgUnexpectedError)
		return
	}

	success := make(map[string]bool, len(outcome.Success))
	for _, id := range outcome.Success {
		success[id] = true
	}
	for i := range op.Items {
		it := &op.Items[i]
		if success[it.ID] {
			c.transition(op, it, ItemSuccess, "")
			continue
		}
		msg := MsgOperationFailed
		if detail := outcome.Errors[it.ID]; detail != "" {
			msg = detail
		}
		c.transition(op, it, ItemError, msg)
	}
	c.complete(ctx, op)

	log.Info().
		Int("success", op.SuccessCount).
		Int("error", op.ErrorCount).
		Msg("bulk operation completed")
}

// confirm calls the executor, converting a panic into an error.
func confirm(ctx context.Context, exec Executor, ids []string) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return exec.Confirm(ctx, ids)
}

func (c *Coordinator) finishAll(ctx context.Context, op *Operation, status ItemStatus, msg string) {
	c.transitionAll(op, status, msg)
	c.complete(ctx, op)
}

func (c *Coordinator) transitionAll(op *Operation, status ItemStatus, msg string) {
	for i := range op.Items {
		c.transition(op, &op.Items[i], status, msg)
	}
}

// transition moves it to status unless it is already terminal.
func (c *Coordinator) transition(op *Operation, it *Item, status ItemStatus, msg string) {
	if it.Status.Terminal() || it.Status == status {
		return
	}
	from := it.Status
	it.Status = status
	if status == ItemError || status == ItemCancelled {
		it.Error = msg
	}

	c.mu.RLock()
	listeners := c.listeners
	c.mu.RUnlock()
	for _, l := range listeners {
		l(Transition{OperationID: op.ID, ItemID: it.ID, From: from, To: status, Error: it.Error})
	}
}

func (c *Coordinator) complete(ctx context.Context, op *Operation) {
	done := c.now()
	op.CompletedAt = &done
	op.Status = OperationCompleted
	op.recount()
	c.save(ctx, op)
}

func (c *Coordinator) save(ctx context.Context, op *Operation) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveOperation(context.WithoutCancel(ctx), op.Clone()); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("operation_id", op.ID).Msg("failed to save operation")
	}
}
