package bulk

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind is the action a bulk operation performs on its items.
type Kind string

const (
	// KindDelete removes the selected transactions.
	KindDelete Kind = "delete"
	// KindSync queues the selected resources for a provider sync.
	KindSync Kind = "sync"
	// KindMove reassigns the selected transactions to another account.
	KindMove Kind = "move"
	// KindExport writes the selected transactions to external storage.
	KindExport Kind = "export"
	// KindImport pulls the selected records into the ledger.
	KindImport Kind = "import"
)

// ParseKind validates an operation kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindDelete, KindSync, KindMove, KindExport, KindImport:
		return k, nil
	}
	return "", fmt.Errorf("unknown operation kind %q", s)
}

// ItemStatus is the state of one item in a bulk operation.
type ItemStatus string

const (
	// ItemPending means the item has not been dispatched yet.
	ItemPending ItemStatus = "pending"
	// ItemProcessing means the executor is working on the item.
	ItemProcessing ItemStatus = "processing"
	// ItemSuccess means the executor confirmed the item.
	ItemSuccess ItemStatus = "success"
	// ItemError means the item failed.
	ItemError ItemStatus = "error"
	// ItemCancelled means the operation was cancelled before the item finished.
	ItemCancelled ItemStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s ItemStatus) Terminal() bool {
	return s == ItemSuccess || s == ItemError || s == ItemCancelled
}

// OperationStatus is the state of a whole bulk operation.
type OperationStatus string

const (
	OperationPending   OperationStatus = "pending"
	OperationRunning   OperationStatus = "running"
	OperationCompleted OperationStatus = "completed"
)

// Messages attached to failed items.
const (
	MsgOperationFailed = "Operation failed"
	MsgUnexpectedError = "Unexpected error occurred"
	MsgCancelled       = "Operation cancelled"
	MsgNoItems         = "No items selected"
)

// Item is one unit of work in a bulk operation.
type Item struct {
	ID     string     `json:"id"`
	Name   string     `json:"name,omitempty"`
	Status ItemStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Operation is a batched action over a set of items.
type Operation struct {
	// ID is the unique identifier for this operation.
	ID string `json:"id"`

	// Kind is the action performed.
	Kind Kind `json:"kind"`

	// Status is the overall state of the operation.
	Status OperationStatus `json:"status"`

	// Items are kept in request order.
	Items []Item `json:"items"`

	SuccessCount   int `json:"success_count"`
	ErrorCount     int `json:"error_count"`
	CancelledCount int `json:"cancelled_count"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy.
func (o *Operation) Clone() *Operation {
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	if o.StartedAt != nil {
		t := *o.StartedAt
		c.StartedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// SafeToClose reports whether no item is mid-processing.
func (o *Operation) SafeToClose() bool {
	for _, it := range o.Items {
		if it.Status == ItemProcessing {
			return false
		}
	}
	return true
}

// IDs returns the item ids in order.
func (o *Operation) IDs() []string {
	ids := make([]string, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.ID
	}
	return ids
}

func (o *Operation) recount() {
	o.SuccessCount, o.ErrorCount, o.CancelledCount = 0, 0, 0
	for _, it := range o.Items {
		switch it.Status {
		case ItemSuccess:
			o.SuccessCount++
		case ItemError:
			o.ErrorCount++
		case ItemCancelled:
			o.CancelledCount++
		}
	}
}

// Outcome is what an executor reports for a batch. Ids in neither list
// are treated as failed. Errors optionally carries per-id detail.
type Outcome struct {
	Success []string          `json:"success"`
	Failed  []string          `json:"failed"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Executor performs the remote side of a bulk operation in a single call.
type Executor interface {
	Confirm(ctx context.Context, ids []string) (Outcome, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, ids []string) (Outcome, error)

// Confirm implements Executor.
func (f ExecutorFunc) Confirm(ctx context.Context, ids []string) (Outcome, error) {
	return f(ctx, ids)
}

// Request starts a bulk operation. Only ID and Name of each item are read.
type Request struct {
	Kind  Kind   `json:"kind"`
	Items []Item `json:"items"`
}

// Transition is emitted for every item status change.
type Transition struct {
	OperationID string     `json:"operation_id"`
	ItemID      string     `json:"item_id"`
	From        ItemStatus `json:"from"`
	To          ItemStatus `json:"to"`
	Error       string     `json:"error,omitempty"`
}

// Listener observes item transitions. Presentation timing such as staggered
// animations is up to the listener.
type Listener func(Transition)

// OperationStore persists operations so they can be reported later.
type OperationStore interface {
	// SaveOperation saves or updates an operation.
	SaveOperation(ctx context.Context, op *Operation) error

	// GetOperation retrieves an operation by ID.
	GetOperation(ctx context.Context, id string) (*Operation, error)

	// ListOperations retrieves operations with optional filtering.
	ListOperations(ctx context.Context, filter OperationFilter) ([]*Operation, error)
}

// OperationFilter defines filtering criteria for listing operations.
type OperationFilter struct {
	Kind   Kind
	Status OperationStatus
	Limit  int
	Offset int
}
