package memory

import (
	"context"
	"testing"

	"budget/internal/sheets"
)

func TestMemoryStoreAppendAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Append(ctx, sheets.Row{TransactionID: 2, Description: "b"})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if _, err := s.Append(ctx, sheets.Row{TransactionID: 1, Description: "a"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Re-appending replaces the row.
	if _, err := s.Append(ctx, sheets.Row{TransactionID: 2, Description: "b2"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[0].TransactionID != 1 || rows[1].Description != "b2" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if rows := s.Rows(); len(rows) != 1 || rows[0].TransactionID != 2 {
		t.Fatalf("unexpected rows after delete: %+v", rows)
	}
}

func TestMemoryStoreRejectsMissingID(t *testing.T) {
	if _, err := New().Append(context.Background(), sheets.Row{}); err == nil {
		t.Fatal("expected error for row without transaction id")
	}
}
