package syncstate

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/google/uuid"
)

// Transition is handed to listeners after an event is applied.
type Transition struct {
	Previous State
	Current  State
	Outcome  Outcome
}

// Listener observes applied transitions. Listeners run on the writer
// goroutine and must not call back into the Tracker's writing methods.
type Listener func(Transition)

type request struct {
	ctx    context.Context
	event  Event
	forget string
	reply  chan reply
}

type reply struct {
	state   State
	outcome Outcome
	err     error
}

// Tracker owns the sync state of every resource. All writes go through a
// single goroutine so events for the same resource never interleave;
// readers get copies.
type Tracker struct {
	requests  chan request
	closeChan chan struct{}
	wg        sync.WaitGroup

	mu        sync.RWMutex
	states    map[string]State
	listeners []Listener
	started   bool
	closed    bool

	newID func() string
	now   func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the time source used for events without a timestamp.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() string) TrackerOption {
	return func(t *Tracker) { t.newID = newID }
}

// NewTracker creates a Tracker. bufferSize bounds how many events can be
// waiting for the writer before Apply blocks.
func NewTracker(bufferSize int, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		requests:  make(chan request, bufferSize),
		closeChan: make(chan struct{}),
		states:    make(map[string]State),
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe registers a listener for applied transitions.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Start launches the writer goroutine. It stops when ctx is done or Stop is
// called.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("tracker is closed")
	}
	if t.started {
		return fmt.Errorf("tracker already started")
	}
	t.started = true

	t.wg.Add(1)
	go t.writer(ctx)
	return nil
}

func (t *Tracker) writer(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.closeChan:
			return
		case req := <-t.requests:
			req.reply <- t.handle(req)
		}
	}
}

func (t *Tracker) handle(req request) reply {
	if req.forget != "" {
		return reply{err: t.forget(req.forget)}
	}

	ev := req.event
	if ev.At.IsZero() {
		ev.At = t.now()
	}

	t.mu.RLock()
	current, ok := t.states[ev.ResourceID]
	listeners := slices.Clone(t.listeners)
	t.mu.RUnlock()
	if !ok {
		current = Idle(ev.ResourceID)
	}

	next, outcome := Next(current, ev)
	log := logger.FromContext(req.ctx).With().
		Str("resource_id", ev.ResourceID).
		Str("event_status", string(ev.Status)).
		Logger()

	if !outcome.Applied {
		log.Debug().Str("reason", outcome.Reason).Str("status", string(current.Status)).Msg("sync event ignored")
		return reply{state: current.clone(), outcome: outcome}
	}
	if outcome.NewSession {
		next.SessionID = t.newID()
		log.Info().Str("session_id", next.SessionID).Msg("sync session started")
	}
	if next.Status.Terminal() {
		log.Info().Str("session_id", next.SessionID).Str("status", string(next.Status)).Str("message", next.Message).Msg("sync session finished")
	}

	t.mu.Lock()
	t.states[ev.ResourceID] = next
	t.mu.Unlock()

	for _, l := range listeners {
		l(Transition{Previous: current.clone(), Current: next.clone(), Outcome: outcome})
	}
	return reply{state: next.clone(), outcome: outcome}
}

func (t *Tracker) forget(resourceID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[resourceID]
	if !ok {
		return nil
	}
	if st.Status.Active() {
		return domain.InvalidState(fmt.Sprintf("Resource %s has an active sync session", resourceID))
	}
	delete(t.states, resourceID)
	return nil
}

func (t *Tracker) send(ctx context.Context, req request) (reply, error) {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return reply{}, fmt.Errorf("tracker is closed")
	}
	t.mu.RUnlock()

	req.reply = make(chan reply, 1)
	select {
	case t.requests <- req:
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-t.closeChan:
		return reply{}, fmt.Errorf("tracker is closed")
	}

	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-t.closeChan:
		return reply{}, fmt.Errorf("tracker is closed")
	}
}

// Apply feeds one event through the writer and returns the resulting state.
// Ignored events are not errors; inspect the Outcome.
func (t *Tracker) Apply(ctx context.Context, ev Event) (State, Outcome, error) {
	if strings.TrimSpace(ev.ResourceID) == "" {
		return State{}, Outcome{}, &domain.ValidationError{Field: "resource_id", Reason: "is required"}
	}
	r, err := t.send(ctx, request{ctx: ctx, event: ev})
	if err != nil {
		return State{}, Outcome{}, fmt.Errorf("Apply: %w", err)
	}
	return r.state, r.outcome, nil
}

// Forget drops a finished resource. Resources mid-session are kept.
func (t *Tracker) Forget(ctx context.Context, resourceID string) error {
	if resourceID == "" {
		return fmt.Errorf("Forget: resource ID is required")
	}
	r, err := t.send(ctx, request{ctx: ctx, forget: resourceID})
	if err != nil {
		return fmt.Errorf("Forget: %w", err)
	}
	return r.err
}

// Snapshot returns a copy of one resource's state. Unknown resources are
// reported idle with ok false.
func (t *Tracker) Snapshot(resourceID string) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.states[resourceID]
	if !ok {
		return Idle(resourceID), false
	}
	return st.clone(), true
}

// SnapshotAll returns copies of every tracked state ordered by resource id.
func (t *Tracker) SnapshotAll() []State {
	t.mu.RLock()
	out := make([]State, 0, len(t.states))
	for _, st := range t.states {
		out = append(out, st.clone())
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b State) int {
		return strings.Compare(a.ResourceID, b.ResourceID)
	})
	return out
}

// Stop shuts the writer down and waits for it to exit.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.closeChan)
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
