package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

var userSeq int

func seedUser(t *testing.T, repo *storage.SQLiteRepository) core.User {
	t.Helper()
	userSeq++
	u, err := repo.Queries().CreateUser(context.Background(), fmt.Sprintf("user%d@example.com", userSeq), "Test")
	require.NoError(t, err)
	return u
}

func seedAccount(t *testing.T, repo *storage.SQLiteRepository, userID int64, name, initial string) core.Account {
	t.Helper()
	a, err := repo.Queries().CreateAccount(context.Background(), core.Account{
		UserID:         userID,
		Name:           name,
		Type:           core.AccountBank,
		InitialBalance: dec(initial),
		Currency:       core.DefaultCurrency,
		Color:          core.DefaultAccountColor,
	})
	require.NoError(t, err)
	return a
}

// seedUserAccount returns a fresh user with one bank account.
func seedUserAccount(t *testing.T, repo *storage.SQLiteRepository, initial string) (core.User, core.Account) {
	t.Helper()
	u := seedUser(t, repo)
	return u, seedAccount(t, repo, u.ID, "Banco", initial)
}

// defaultCategory returns one of the global categories of the given type.
func defaultCategory(t *testing.T, repo *storage.SQLiteRepository, userID int64, typ core.TxType) core.Category {
	t.Helper()
	cats, err := repo.Queries().ListCategories(context.Background(), userID, typ)
	require.NoError(t, err)
	require.NotEmpty(t, cats)
	return cats[0]
}

func balanceOf(t *testing.T, repo *storage.SQLiteRepository, userID, accountID int64) decimal.Decimal {
	t.Helper()
	a, err := repo.Queries().GetAccount(context.Background(), userID, accountID)
	require.NoError(t, err)
	return a.Balance
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedClock(year, month, day int) Clock {
	return func() time.Time { return time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC) }
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}
