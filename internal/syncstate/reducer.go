package syncstate

// Next applies ev to current and returns the resulting state. It never
// mutates current. When Outcome.Applied is false the returned state equals
// current.
//
// A session starts with a queued event, or implicitly with a syncing event
// while idle, and ends with exactly one of completed or failed. Within a
// session statuses only move forward; a repeated status may raise progress
// or replace the message but never lower progress. Finished sessions ignore
// everything except a queued event.
//
// Next leaves SessionID empty on a new session; the caller assigns one.
func Next(current State, ev Event) (State, Outcome) {
	if current.Status == "" {
		current.Status = StatusIdle
	}
	if current.ResourceID != "" && ev.ResourceID != "" && ev.ResourceID != current.ResourceID {
		return current, ignored(ReasonWrongResource)
	}
	evRank, ok := rank[ev.Status]
	if !ok {
		return current, ignored(ReasonUnknownStatus)
	}
	if ev.Status == StatusIdle {
		return current, ignored(ReasonIdleEvent)
	}

	kind := current.Kind
	if ev.Kind != "" {
		kind = ev.Kind
	}
	if !kind.Allows(ev.Status) {
		return current, ignored(ReasonNotForKind)
	}

	if !current.Status.Active() {
		switch {
		case ev.Status == StatusQueued:
		case current.Status.Terminal():
			return current, ignored(ReasonTerminal)
		case ev.Status.Terminal():
			return current, ignored(ReasonNoSession)
		}
		next := State{
			ResourceID: firstNonEmpty(current.ResourceID, ev.ResourceID),
			Kind:       kind,
			Status:     ev.Status,
			Progress:   clampProgress(ev.Progress),
			Message:    ev.Message,
			StartedAt:  ev.At,
			UpdatedAt:  ev.At,
		}
		return next, Outcome{Applied: true, NewSession: true}
	}

	if ev.Status == StatusQueued {
		return current, ignored(ReasonSessionActive)
	}

	curRank := rank[current.Status]
	switch {
	case evRank < curRank:
		return current, ignored(ReasonBackward)

	case evRank == curRank:
		next := current.clone()
		next.Kind = kind
		changed := false
		if p := clampProgress(ev.Progress); p != nil && (next.Progress == nil || *p > *next.Progress) {
			next.Progress = p
			changed = true
		}
		if ev.Message != "" && ev.Message != next.Message {
			next.Message = ev.Message
			changed = true
		}
		if !changed {
			return current, ignored(ReasonUnchanged)
		}
		next.UpdatedAt = ev.At
		return next, Outcome{Applied: true}

	default:
		next := current.clone()
		next.Kind = kind
		next.Status = ev.Status
		next.Progress = clampProgress(ev.Progress)
		next.Message = ev.Message
		next.UpdatedAt = ev.At
		if ev.Status == StatusCompleted && next.Progress == nil {
			full := 100
			next.Progress = &full
		}
		return next, Outcome{Applied: true}
	}
}

func clampProgress(p *int) *int {
	if p == nil {
		return nil
	}
	v := min(max(*p, 0), 100)
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
