// Package syncstate tracks per-resource synchronisation progress fed by
// push events. Next is a pure reducer; Tracker owns the per-resource map and
// serialises every update through one writer goroutine.
package syncstate

import (
	"fmt"
	"strings"
	"time"
)

// Status is a stage of a sync session.
type Status string

const (
	StatusIdle                Status = "idle"
	StatusQueued              Status = "queued"
	StatusSyncing             Status = "syncing"
	StatusSyncingAssets       Status = "syncing_assets"
	StatusSyncingTransactions Status = "syncing_transactions"
	StatusSyncingNFTs         Status = "syncing_nfts"
	StatusSyncingDeFi         Status = "syncing_defi"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
)

// rank orders statuses within one session. Both terminal statuses share
// the highest rank so neither can follow the other.
var rank = map[Status]int{
	StatusIdle:                0,
	StatusQueued:              1,
	StatusSyncing:             2,
	StatusSyncingAssets:       3,
	StatusSyncingTransactions: 4,
	StatusSyncingNFTs:         5,
	StatusSyncingDeFi:         6,
	StatusCompleted:           7,
	StatusFailed:              7,
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rank[st]; !ok {
		return "", fmt.Errorf("unknown sync status %q", s)
	}
	return st, nil
}

// Terminal reports whether the status ends a session.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether a session is in flight.
func (s Status) Active() bool {
	r, ok := rank[s]
	return ok && r > 0 && !s.Terminal()
}

// Kind is the family of the resource being synced. It restricts which
// sub-phases a session may pass through.
type Kind string

const (
	KindBank   Kind = "bank"
	KindCrypto Kind = "crypto"
)

// ParseKind validates a kind. The empty string is accepted and leaves the
// kind unknown.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "", KindBank, KindCrypto:
		return k, nil
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Allows reports whether resources of this kind use status. Banking
// connections never report NFT or DeFi phases. An unknown kind allows all.
func (k Kind) Allows(s Status) bool {
	if k == KindBank {
		return s != StatusSyncingNFTs && s != StatusSyncingDeFi
	}
	return true
}

// State is the sync state of one resource.
type State struct {
	ResourceID string    `json:"resource_id"`
	Kind       Kind      `json:"kind,omitempty"`
	Status     Status    `json:"status"`
	Progress   *int      `json:"progress,omitempty"`
	Message    string    `json:"message,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Idle returns the initial state for a resource.
func Idle(resourceID string) State {
	return State{ResourceID: resourceID, Status: StatusIdle}
}

// clone returns a copy that shares no memory with s.
func (s State) clone() State {
	if s.Progress != nil {
		p := *s.Progress
		s.Progress = &p
	}
	return s
}

// Event is one push notification about a resource.
type Event struct {
	ResourceID string    `json:"resource_id"`
	Kind       Kind      `json:"kind,omitempty"`
	Status     Status    `json:"status"`
	Progress   *int      `json:"progress,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at,omitempty"`
}

// Outcome describes what Next did with an event.
type Outcome struct {
	Applied    bool   `json:"applied"`
	NewSession bool   `json:"new_session,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Reasons an event is ignored.
const (
	ReasonUnknownStatus = "unknown status"
	ReasonWrongResource = "event is for another resource"
	ReasonNotForKind    = "status not used by this resource kind"
	ReasonTerminal      = "session already finished"
	ReasonNoSession     = "no active session"
	ReasonSessionActive = "session already active"
	ReasonBackward      = "backward transition"
	ReasonUnchanged     = "no change"
	ReasonIdleEvent     = "idle is not an event"
)

func ignored(reason string) Outcome {
	return Outcome{Reason: reason}
}
