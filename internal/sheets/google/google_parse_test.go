package google

import "testing"

func TestFindRow(t *testing.T) {
	values := [][]interface{}{
		{"ID"},
		{"7"},
		{},
		{float64(12)},
		{"1,024"},
		{"33.0"},
	}
	tests := []struct {
		id   int64
		want int
	}{
		{7, 2},
		{12, 4},
		{1024, 5},
		{33, 6},
		{99, 0},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%d) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestFindRow_Empty(t *testing.T) {
	if got := findRow(nil, 1); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestHasHeader(t *testing.T) {
	if !hasHeader([][]interface{}{{"id", "Date"}}) {
		t.Error("expected header match regardless of case")
	}
	if hasHeader([][]interface{}{{"5", "2026-01-01"}}) {
		t.Error("data row is not a header")
	}
	if hasHeader(nil) {
		t.Error("empty sheet has no header")
	}
}
