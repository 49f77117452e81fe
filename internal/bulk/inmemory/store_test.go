package inmemory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/bulk"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	op := &bulk.Operation{
		ID:     "op-1",
		Kind:   bulk.KindDelete,
		Status: bulk.OperationPending,
		Items:  []bulk.Item{{ID: "a", Status: bulk.ItemPending}},
	}
	if err := store.SaveOperation(ctx, op); err != nil {
		t.Fatalf("SaveOperation() error = %v", err)
	}

	// mutating the caller's copy must not leak into the store
	op.Items[0].Status = bulk.ItemSuccess

	got, err := store.GetOperation(ctx, "op-1")
	if err != nil {
		t.Fatalf("GetOperation() error = %v", err)
	}
	if got.Items[0].Status != bulk.ItemPending {
		t.Errorf("stored item status = %s, want pending", got.Items[0].Status)
	}

	got.Items[0].Status = bulk.ItemError
	again, _ := store.GetOperation(ctx, "op-1")
	if again.Items[0].Status != bulk.ItemPending {
		t.Error("GetOperation must return a copy")
	}
}

func TestStore_Errors(t *testing.T) {
	store := NewStore()
	if err := store.SaveOperation(context.Background(), &bulk.Operation{}); err == nil {
		t.Error("expected error for missing ID")
	}
	if _, err := store.GetOperation(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown ID")
	}
}

func TestStore_ListOperations(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		kind := bulk.KindDelete
		if i%2 == 1 {
			kind = bulk.KindExport
		}
		op := &bulk.Operation{
			ID:        fmt.Sprintf("op-%d", i),
			Kind:      kind,
			Status:    bulk.OperationCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveOperation(ctx, op); err != nil {
			t.Fatalf("SaveOperation() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter bulk.OperationFilter
		want   []string
	}{
		{"all newest first", bulk.OperationFilter{}, []string{"op-4", "op-3", "op-2", "op-1", "op-0"}},
		{"by kind", bulk.OperationFilter{Kind: bulk.KindExport}, []string{"op-3", "op-1"}},
		{"by status", bulk.OperationFilter{Status: bulk.OperationRunning}, []string{}},
		{"limit and offset", bulk.OperationFilter{Limit: 2, Offset: 1}, []string{"op-3", "op-2"}},
		{"offset past end", bulk.OperationFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListOperations(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListOperations() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d operations, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].ID != tt.want[i] {
					t.Errorf("operation %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}
