package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUserAccount(t *testing.T, repo *SQLiteRepository, initial string) (core.User, core.Account) {
	t.Helper()
	ctx := context.Background()
	u, err := repo.Queries().CreateUser(ctx, "ana@example.com", "Ana")
	require.NoError(t, err)
	a, err := repo.Queries().CreateAccount(ctx, core.Account{
		UserID:         u.ID,
		Name:           "Banco",
		Type:           core.AccountBank,
		InitialBalance: decimal.RequireFromString(initial),
		Currency:       "USD",
		Color:          core.DefaultAccountColor,
	})
	require.NoError(t, err)
	return u, a
}

func TestNewSQLiteRepository_SeedsDefaultCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.Queries().CreateUser(ctx, "u@example.com", "U")
	require.NoError(t, err)

	expense, err := repo.Queries().ListCategories(ctx, u.ID, core.Expense)
	require.NoError(t, err)
	assert.NotEmpty(t, expense)
	for _, c := range expense {
		assert.Equal(t, core.Expense, c.Type)
		assert.Zero(t, c.UserID, "defaults are global")
	}

	version, dirty, err := MigrationVersion(filepath.Join(t.TempDir(), "other.db"))
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestLoadCategoryDefaults(t *testing.T) {
	d, err := LoadCategoryDefaults()
	require.NoError(t, err)
	assert.NotEmpty(t, d.Categories)
	for _, c := range d.Categories {
		assert.NotEmpty(t, c.Icon, c.Name)
	}
}

func TestAccountBalanceAndLedgerSums(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "1000")
	q := repo.Queries()

	tx, err := q.InsertTransaction(ctx, core.Transaction{
		UserID: u.ID, AccountID: a.ID, Type: core.Expense,
		Amount: decimal.RequireFromString("200"), Date: core.NewDate(2025, 3, 10), Description: "Super",
	})
	require.NoError(t, err)
	require.NoError(t, q.AddToBalance(ctx, a.ID, decimal.RequireFromString("-200")))
	assert.Zero(t, tx.CategoryID)

	got, err := q.GetAccount(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("800")), "balance %s", got.Balance)

	sums, err := q.AccountLedgerSums(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, sums.Expected(got.InitialBalance).Equal(got.Balance))

	_, err = q.GetAccount(ctx, u.ID+1, a.ID)
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestCreateBalanceAdjustment(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, a := seedUserAccount(t, repo, "100")
	q := repo.Queries()

	before := time.Now().UTC()
	adj, err := q.CreateBalanceAdjustment(ctx, core.BalanceAdjustment{
		AccountID: a.ID, Delta: decimal.RequireFromString("-12.50"), Reason: "fee",
	})
	require.NoError(t, err)
	assert.NotZero(t, adj.ID)
	assert.False(t, adj.CreatedAt.Before(before))
	assert.False(t, adj.CreatedAt.After(time.Now().UTC()))

	sums, err := q.AccountLedgerSums(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, sums.Adjustments.Equal(decimal.RequireFromString("-12.50")), "adjustments %s", sums.Adjustments)
}

func TestInsertTransaction_RejectsZeroAmount(t *testing.T) {
	repo := newTestRepo(t)
	u, a := seedUserAccount(t, repo, "100")

	_, err := repo.Queries().InsertTransaction(context.Background(), core.Transaction{
		UserID: u.ID, AccountID: a.ID, Type: core.Income,
		Amount: decimal.RequireFromString("0.004"), Date: core.NewDate(2025, 3, 10),
	})
	assert.Error(t, err)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "50")

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, []LockKey{AccountLock(a.ID)}, func(q *Queries) error {
		if err := q.AddToBalance(ctx, a.ID, decimal.NewFromInt(25)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.Queries().GetAccount(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(50)))
	assert.Zero(t, repo.locks.held())
}

func TestAmountsByCategory_Uncategorized(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "0")
	q := repo.Queries()

	cats, err := q.ListCategories(ctx, u.ID, core.Expense)
	require.NoError(t, err)
	require.NotEmpty(t, cats)

	day := core.NewDate(2025, 5, 2)
	for _, tx := range []core.Transaction{
		{CategoryID: cats[0].ID, Amount: decimal.NewFromInt(30)},
		{CategoryID: cats[0].ID, Amount: decimal.NewFromInt(20)},
		{Amount: decimal.NewFromInt(70)},
	} {
		tx.UserID, tx.AccountID, tx.Type, tx.Date = u.ID, a.ID, core.Expense, day
		_, err := q.InsertTransaction(ctx, tx)
		require.NoError(t, err)
	}

	got, err := q.AmountsByCategory(ctx, u.ID, core.Expense, day.MonthStart(), day.MonthEnd())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.UncategorizedID, got[0].CategoryID)
	assert.Equal(t, core.UncategorizedName, got[0].Name)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, cats[0].ID, got[1].CategoryID)
	assert.Equal(t, 2, got[1].Count)

	months, err := q.MonthlyTotals(ctx, u.ID, day.MonthStart(), day.MonthEnd())
	require.NoError(t, err)
	assert.True(t, months["2025-05"].Expense.Equal(decimal.NewFromInt(120)))
}

func TestPendingSync(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "0")
	q := repo.Queries()

	tx, err := q.InsertTransaction(ctx, core.Transaction{
		UserID: u.ID, AccountID: a.ID, Type: core.Income,
		Amount: decimal.NewFromInt(10), Date: core.NewDate(2025, 1, 1),
	})
	require.NoError(t, err)

	pending, err := q.ListPendingSync(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []PendingSync{{TransactionID: tx.ID}}, pending)

	require.NoError(t, q.MarkSyncError(ctx, tx.ID))
	pending, err = q.ListPendingSync(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []PendingSync{{TransactionID: tx.ID, Failed: true}}, pending)

	require.NoError(t, q.MarkSynced(ctx, tx.ID, "Ledger!A2"))
	pending, err = q.ListPendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInvestmentRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "0")

	inv, err := repo.Queries().InsertInvestment(ctx, core.Investment{
		UserID:             u.ID,
		Type:               core.InvestmentInsurance,
		Name:               "Seguro",
		AccountID:          a.ID,
		InitialAmount:      decimal.NewFromInt(10000),
		CurrentAmount:      decimal.NewFromInt(10000),
		ExpectedReturnRate: decimal.RequireFromString("6.5"),
		MaturityTermMonths: 24,
		StartDate:          core.NewDate(2025, 1, 15),
		Status:             core.InvestmentActive,
	})
	require.NoError(t, err)
	assert.True(t, inv.ExpectedReturnRate.Equal(decimal.RequireFromString("6.5")))
	assert.True(t, inv.TargetAmount.IsZero())
	assert.True(t, inv.LastReturnDate.IsZero())

	active, err := repo.Queries().ListActiveInsurance(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, inv.ID, active[0].ID)
}
