package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

// seedTrendLedger books April and June activity with an empty May, on a
// clock set to 2025-06-20.
func seedTrendLedger(t *testing.T) (*TrendsService, core.User, core.Category, *LedgerService, core.Account) {
	t.Helper()
	repo := newTestStore(t)
	u, a := seedUserAccount(t, repo, "10000")
	food := defaultCategory(t, repo, u.ID, core.Expense)
	ledger := NewLedgerService(repo, nil)

	for _, tx := range []core.Transaction{
		{Type: core.Expense, CategoryID: food.ID, Amount: dec("100"), Date: core.NewDate(2025, 4, 12)},
		{Type: core.Expense, CategoryID: food.ID, Amount: dec("150"), Date: core.NewDate(2025, 6, 2)},
		{Type: core.Expense, Amount: dec("50"), Date: core.NewDate(2025, 6, 5)},
		{Type: core.Income, Amount: dec("1000"), Date: core.NewDate(2025, 6, 1)},
	} {
		tx.AccountID = a.ID
		_, err := ledger.CreateTransaction(context.Background(), u.ID, tx)
		require.NoError(t, err)
	}
	return NewTrendsService(repo, fixedClock(2025, 6, 20)), u, food, ledger, a
}

func TestTrends_MonthlySeriesFillsGaps(t *testing.T) {
	svc, u, _, _, _ := seedTrendLedger(t)

	series, err := svc.MonthlySeries(context.Background(), u.ID, 0)
	require.NoError(t, err)
	require.Len(t, series, 6)
	assert.Equal(t, "2025-01", series[0].Month)
	assert.Equal(t, "2025-06", series[5].Month)

	assert.True(t, dec("100").Equal(series[3].Expense))
	assert.True(t, series[4].Expense.IsZero())
	assert.True(t, series[4].Income.IsZero())
	assert.True(t, dec("1000").Equal(series[5].Income))
	assert.True(t, dec("200").Equal(series[5].Expense))
	assert.True(t, dec("800").Equal(series[5].Net))
}

func TestTrends_CategoryTrend(t *testing.T) {
	svc, u, food, _, _ := seedTrendLedger(t)
	ctx := context.Background()

	_, err := svc.CategoryTrend(ctx, u.ID, food.ID, 5)
	assert.ErrorIs(t, err, core.ErrInvalidTrendWindow)

	_, err = NewBudgetService(svc.store, fixedClock(2025, 6, 20)).CreateBudget(ctx, u.ID,
		core.Budget{CategoryID: food.ID, Amount: dec("300")})
	require.NoError(t, err)

	trend, err := svc.CategoryTrend(ctx, u.ID, food.ID, 3)
	require.NoError(t, err)
	require.Len(t, trend.Points, 3)

	tests := []struct {
		month  string
		amount string
		dir    core.TrendDirection
	}{
		{"2025-04", "100", core.TrendStable},
		{"2025-05", "0", core.TrendStable},
		{"2025-06", "150", core.TrendIncrease},
	}
	for i, tt := range tests {
		p := trend.Points[i]
		assert.Equal(t, tt.month, p.Month)
		assert.True(t, dec(tt.amount).Equal(p.Amount), "%s amount %s", tt.month, p.Amount)
		assert.Equal(t, tt.dir, p.VsPrevious, tt.month)
		assert.False(t, p.ChangePercentage.Valid, "no percentage against an empty month")
	}
	assert.True(t, dec("250").Equal(trend.Total))
	assert.True(t, dec("83.33").Equal(trend.Average))
	require.True(t, trend.Budget.Valid)
	assert.True(t, dec("300").Equal(trend.Budget.Decimal))

	budgeted, err := svc.BudgetedCategories(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, budgeted, 1)
	assert.Equal(t, food.ID, budgeted[0].ID)
}

func TestTrends_SixMonthTrendZeroFillsMiddle(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "1000")
	food := defaultCategory(t, repo, u.ID, core.Expense)
	ledger := NewLedgerService(repo, nil)
	for _, d := range []core.Date{core.NewDate(2025, 1, 15), core.NewDate(2025, 6, 3)} {
		_, err := ledger.CreateTransaction(ctx, u.ID, core.Transaction{
			AccountID: a.ID, CategoryID: food.ID, Type: core.Expense, Amount: dec("80"), Date: d,
		})
		require.NoError(t, err)
	}

	trend, err := NewTrendsService(repo, fixedClock(2025, 6, 20)).CategoryTrend(ctx, u.ID, food.ID, 6)
	require.NoError(t, err)
	require.Len(t, trend.Points, 6)

	assert.Equal(t, "2025-01", trend.Points[0].Month)
	assert.True(t, dec("80").Equal(trend.Points[0].Amount))
	for _, p := range trend.Points[1:5] {
		assert.True(t, p.Amount.IsZero(), "%s amount %s", p.Month, p.Amount)
		assert.Equal(t, core.TrendStable, p.VsPrevious, p.Month)
	}
	assert.Equal(t, "2025-06", trend.Points[5].Month)
	assert.Equal(t, core.TrendIncrease, trend.Points[5].VsPrevious)
	assert.True(t, dec("160").Equal(trend.Total))
}

func TestTrends_DistributionKeepsUncategorized(t *testing.T) {
	svc, u, food, _, _ := seedTrendLedger(t)
	ctx := context.Background()

	d, err := svc.Distribution(ctx, u.ID, core.Date{}, core.Date{})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", d.From.String())
	assert.True(t, dec("200").Equal(d.Total))
	require.Len(t, d.Categories, 2)
	assert.Equal(t, food.ID, d.Categories[0].CategoryID)
	assert.True(t, dec("75").Equal(d.Categories[0].Percentage))
	assert.Zero(t, d.Categories[1].CategoryID)
	assert.Equal(t, core.UncategorizedName, d.Categories[1].Name)

	_, err = svc.Distribution(ctx, u.ID, core.NewDate(2025, 6, 10), core.NewDate(2025, 6, 1))
	assert.ErrorIs(t, err, core.ErrInvalidDateRange)
}

func TestTrends_Compare(t *testing.T) {
	svc, u, food, ledger, a := seedTrendLedger(t)
	ctx := context.Background()

	mom, err := svc.Compare(ctx, u.ID, MonthOverMonth)
	require.NoError(t, err)
	assert.True(t, dec("200").Equal(mom.Current.Expense))
	assert.True(t, mom.Previous.Expense.IsZero())
	assert.True(t, mom.ExpenseChange.IsZero(), "change against an empty month is zero")

	_, err = ledger.CreateTransaction(ctx, u.ID, core.Transaction{
		AccountID: a.ID, CategoryID: food.ID, Type: core.Expense, Amount: dec("100"), Date: core.NewDate(2025, 5, 9),
	})
	require.NoError(t, err)

	mom, err = svc.Compare(ctx, u.ID, MonthOverMonth)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(mom.ExpenseChange))

	yoy, err := svc.Compare(ctx, u.ID, YearOverYear)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", yoy.Previous.From.String())

	_, err = svc.Compare(ctx, u.ID, "weekly")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDashboard_Assembles(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	clock := fixedClock(2025, 6, 20)
	u, a := seedUserAccount(t, repo, "1000")
	food := defaultCategory(t, repo, u.ID, core.Expense)

	_, err := NewLedgerService(repo, nil).CreateTransaction(ctx, u.ID, core.Transaction{
		AccountID: a.ID, CategoryID: food.ID, Type: core.Expense, Amount: dec("200"), Date: core.NewDate(2025, 6, 10),
	})
	require.NoError(t, err)

	budgets := NewBudgetService(repo, clock)
	goals := NewGoalService(repo)
	debts := NewDebtService(repo, clock, nil)
	recurring := NewRecurringService(repo, clock, nil)

	_, err = budgets.CreateBudget(ctx, u.ID, core.Budget{CategoryID: food.ID, Amount: dec("400")})
	require.NoError(t, err)
	_, err = goals.CreateGoal(ctx, u.ID, core.Goal{Name: "Viaje", Target: dec("500"), Current: dec("100")})
	require.NoError(t, err)
	_, err = debts.CreateDebt(ctx, u.ID, core.Debt{
		Creditor: "Banco", Principal: dec("1200"), TermMonths: 12, StartDate: core.NewDate(2025, 1, 25),
	})
	require.NoError(t, err)
	newTemplate(t, recurring, u.ID, a.ID, 0, core.Income, "1000", 1)

	d, err := NewDashboardService(repo, clock, budgets, goals, debts, recurring).Dashboard(ctx, u.ID)
	require.NoError(t, err)

	assert.True(t, dec("800").Equal(d.TotalBalance))
	assert.True(t, dec("200").Equal(d.TotalExpenses))
	assert.True(t, d.TotalIncome.IsZero())
	assert.Equal(t, 1, d.AccountsCount)
	assert.Len(t, d.RecentTransactions, 1)
	assert.Equal(t, 1, d.Goals.Total)
	require.Len(t, d.BudgetStatus, 1)
	assert.True(t, dec("200").Equal(d.BudgetStatus[0].Spent))
	require.Len(t, d.TopGoals, 1)
	require.Len(t, d.UpcomingPayments, 1)
	assert.Equal(t, 5, d.UpcomingPayments[0].DaysLeft)

	require.Len(t, d.MiniProjection, 3)
	assert.Equal(t, "2025-06", d.MiniProjection[0].Month)
	assert.True(t, dec("800").Equal(d.MiniProjection[0].Balance))
	assert.True(t, dec("1700").Equal(d.MiniProjection[1].Balance))
	assert.True(t, dec("3500").Equal(d.ProjectedBalance))
}
