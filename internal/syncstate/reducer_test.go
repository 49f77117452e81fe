package syncstate

import (
	"testing"
	"time"
)

func pct(v int) *int { return &v }

func ev(status Status) Event {
	return Event{ResourceID: "wallet-1", Status: status}
}

// run folds events over an idle state and returns the final state plus
// every outcome.
func run(kind Kind, events ...Event) (State, []Outcome) {
	st := Idle("wallet-1")
	st.Kind = kind
	var outcomes []Outcome
	for _, e := range events {
		var o Outcome
		st, o = Next(st, e)
		outcomes = append(outcomes, o)
	}
	return st, outcomes
}

func TestNext_FullCryptoSession(t *testing.T) {
	st, outcomes := run(KindCrypto,
		ev(StatusQueued),
		ev(StatusSyncing),
		ev(StatusSyncingAssets),
		ev(StatusSyncingTransactions),
		ev(StatusSyncingNFTs),
		ev(StatusSyncingDeFi),
		ev(StatusCompleted),
	)

	for i, o := range outcomes {
		if !o.Applied {
			t.Errorf("event %d ignored: %s", i, o.Reason)
		}
	}
	if !outcomes[0].NewSession {
		t.Error("queued must start a session")
	}
	if st.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", st.Status)
	}
	if st.Progress == nil || *st.Progress != 100 {
		t.Errorf("progress = %v, want 100", st.Progress)
	}
}

func TestNext_IgnoredEvents(t *testing.T) {
	tests := []struct {
		name       string
		kind       Kind
		events     []Event
		wantStatus Status
		wantReason string
	}{
		{
			name:       "backward transition",
			events:     []Event{ev(StatusQueued), ev(StatusSyncingTransactions), ev(StatusSyncingAssets)},
			wantStatus: StatusSyncingTransactions,
			wantReason: ReasonBackward,
		},
		{
			name:       "queued mid-session",
			events:     []Event{ev(StatusQueued), ev(StatusSyncing), ev(StatusQueued)},
			wantStatus: StatusSyncing,
			wantReason: ReasonSessionActive,
		},
		{
			name:       "terminal from idle",
			events:     []Event{ev(StatusFailed)},
			wantStatus: StatusIdle,
			wantReason: ReasonNoSession,
		},
		{
			name:       "failed after completed",
			events:     []Event{ev(StatusQueued), ev(StatusCompleted), ev(StatusFailed)},
			wantStatus: StatusCompleted,
			wantReason: ReasonTerminal,
		},
		{
			name:       "completed after failed",
			events:     []Event{ev(StatusQueued), ev(StatusFailed), ev(StatusCompleted)},
			wantStatus: StatusFailed,
			wantReason: ReasonTerminal,
		},
		{
			name:       "syncing after terminal",
			events:     []Event{ev(StatusQueued), ev(StatusFailed), ev(StatusSyncing)},
			wantStatus: StatusFailed,
			wantReason: ReasonTerminal,
		},
		{
			name:       "bank resources never sync nfts",
			kind:       KindBank,
			events:     []Event{ev(StatusQueued), ev(StatusSyncingNFTs)},
			wantStatus: StatusQueued,
			wantReason: ReasonNotForKind,
		},
		{
			name:       "unknown status",
			events:     []Event{ev(StatusQueued), ev(Status("rebooting"))},
			wantStatus: StatusQueued,
			wantReason: ReasonUnknownStatus,
		},
		{
			name:       "idle event",
			events:     []Event{ev(StatusQueued), ev(StatusIdle)},
			wantStatus: StatusQueued,
			wantReason: ReasonIdleEvent,
		},
		{
			name:       "other resource",
			events:     []Event{ev(StatusQueued), {ResourceID: "wallet-2", Status: StatusSyncing}},
			wantStatus: StatusQueued,
			wantReason: ReasonWrongResource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, outcomes := run(tt.kind, tt.events...)
			last := outcomes[len(outcomes)-1]
			if last.Applied {
				t.Fatalf("last event applied, want ignored")
			}
			if last.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", last.Reason, tt.wantReason)
			}
			if st.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", st.Status, tt.wantStatus)
			}
		})
	}
}

func TestNext_TerminalIsStickyUntilQueued(t *testing.T) {
	st, _ := run(KindCrypto, ev(StatusQueued), ev(StatusCompleted))
	frozen := st

	for _, s := range []Status{StatusSyncing, StatusSyncingAssets, StatusFailed, StatusCompleted} {
		next, o := Next(st, ev(s))
		if o.Applied || next.Status != frozen.Status {
			t.Fatalf("event %s changed a finished session", s)
		}
	}

	next, o := Next(st, ev(StatusQueued))
	if !o.Applied || !o.NewSession || next.Status != StatusQueued {
		t.Errorf("queued after completed = %+v, %+v", next, o)
	}
	if next.Progress != nil {
		t.Errorf("new session kept progress %d", *next.Progress)
	}
}

func TestNext_ImplicitSessionFromIdle(t *testing.T) {
	st, o := Next(Idle("acct"), Event{ResourceID: "acct", Kind: KindBank, Status: StatusSyncingAssets})
	if !o.Applied || !o.NewSession {
		t.Fatalf("outcome = %+v, want new session", o)
	}
	if st.Kind != KindBank || st.Status != StatusSyncingAssets {
		t.Errorf("state = %+v", st)
	}
}

func TestNext_Progress(t *testing.T) {
	st, _ := run(KindCrypto, ev(StatusQueued), Event{ResourceID: "wallet-1", Status: StatusSyncingAssets, Progress: pct(40)})

	lower := Event{ResourceID: "wallet-1", Status: StatusSyncingAssets, Progress: pct(20)}
	if _, o := Next(st, lower); o.Applied {
		t.Error("progress must not decrease within a status")
	}

	higher := Event{ResourceID: "wallet-1", Status: StatusSyncingAssets, Progress: pct(250)}
	next, o := Next(st, higher)
	if !o.Applied || *next.Progress != 100 {
		t.Errorf("progress = %v, want clamped 100", next.Progress)
	}
	if *st.Progress != 40 {
		t.Error("Next must not mutate its input")
	}

	msg := Event{ResourceID: "wallet-1", Status: StatusSyncingAssets, Message: "fetching balances"}
	next, o = Next(st, msg)
	if !o.Applied || next.Message != "fetching balances" || *next.Progress != 40 {
		t.Errorf("message update = %+v, %+v", next, o)
	}

	if _, o := Next(st, Event{ResourceID: "wallet-1", Status: StatusSyncingAssets}); o.Reason != ReasonUnchanged {
		t.Errorf("empty repeat reason = %q, want %q", o.Reason, ReasonUnchanged)
	}

	// a new phase resets progress
	next, _ = Next(st, Event{ResourceID: "wallet-1", Status: StatusSyncingTransactions, Progress: pct(5)})
	if *next.Progress != 5 {
		t.Errorf("progress = %d, want 5", *next.Progress)
	}
}

func TestNext_OneTerminalPerSession(t *testing.T) {
	statuses := []Status{StatusCompleted, StatusFailed}
	for _, first := range statuses {
		for _, second := range statuses {
			_, outcomes := run(KindCrypto, ev(StatusQueued), ev(StatusSyncing), ev(first), ev(second))
			if !outcomes[2].Applied || outcomes[3].Applied {
				t.Errorf("%s then %s: outcomes %+v", first, second, outcomes)
			}
		}
	}
}

func TestNext_Timestamps(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	st, _ := Next(Idle("r"), Event{ResourceID: "r", Status: StatusQueued, At: start})
	st, _ = Next(st, Event{ResourceID: "r", Status: StatusSyncing, At: start.Add(time.Minute)})

	if !st.StartedAt.Equal(start) || !st.UpdatedAt.Equal(start.Add(time.Minute)) {
		t.Errorf("StartedAt = %v, UpdatedAt = %v", st.StartedAt, st.UpdatedAt)
	}
}

func TestParseStatusAndKind(t *testing.T) {
	if s, err := ParseStatus(" Syncing_DeFi "); err != nil || s != StatusSyncingDeFi {
		t.Errorf("ParseStatus = %q, %v", s, err)
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Error("expected error for unknown status")
	}
	if k, err := ParseKind("BANK"); err != nil || k != KindBank {
		t.Errorf("ParseKind = %q, %v", k, err)
	}
	if _, err := ParseKind("stock"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
