package bulk

import (
	"context"

	"github.com/dvloznov/finance-dashboard/internal/syncstate"
)

// Enqueuer accepts sync events. *syncstate.Tracker satisfies it.
type Enqueuer interface {
	Apply(ctx context.Context, ev syncstate.Event) (syncstate.State, syncstate.Outcome, error)
}

// SyncExecutor queues a sync session for every selected resource. A
// resource whose session is already running reports the reason as its
// error.
type SyncExecutor struct {
	Tracker Enqueuer
	Kind    syncstate.Kind
}

// Confirm implements Executor.
func (e SyncExecutor) Confirm(ctx context.Context, ids []string) (Outcome, error) {
	out := Outcome{Errors: map[string]string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		_, o, err := e.Tracker.Apply(ctx, syncstate.Event{ResourceID: id, Kind: e.Kind, Status: syncstate.StatusQueued})
		switch {
		case err != nil:
			out.Failed = append(out.Failed, id)
			out.Errors[id] = err.Error()
		case !o.Applied:
			out.Failed = append(out.Failed, id)
			out.Errors[id] = o.Reason
		default:
			out.Success = append(out.Success, id)
		}
	}
	return out, nil
}

var _ Executor = SyncExecutor{}
