package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"budget/internal/sheets"
)

// Store is an in-process mirror used in development and tests. Rows are
// keyed by transaction id, so appending the same transaction twice replaces
// the earlier row.
type Store struct {
	mu   sync.Mutex
	rows map[int64]sheets.Row
	seq  int
}

var _ sheets.Mirror = (*Store)(nil)

func New() *Store {
	return &Store{rows: map[int64]sheets.Row{}}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, r sheets.Row) (string, error) {
	if r.TransactionID <= 0 {
		return "", fmt.Errorf("append row: missing transaction id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.rows[r.TransactionID] = r
	return fmt.Sprintf("mem:%d", s.seq), nil
}

func (s *Store) Delete(_ context.Context, transactionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, transactionID)
	return nil
}

// Rows returns a copy of the mirrored rows ordered by transaction id.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out
}
