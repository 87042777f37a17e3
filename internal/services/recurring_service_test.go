package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/amqp"
	"budget/internal/core"
)

func newTemplate(t *testing.T, svc *RecurringService, userID, accountID, categoryID int64, typ core.TxType, amount string, day int) RecurringView {
	t.Helper()
	v, err := svc.CreateRecurring(context.Background(), userID, core.RecurringTransaction{
		Name:        "Luz",
		Type:        typ,
		Amount:      dec(amount),
		Frequency:   core.Monthly,
		DayOfPeriod: day,
		AccountID:   accountID,
		CategoryID:  categoryID,
		StartDate:   core.NewDate(2025, 1, 1),
	})
	require.NoError(t, err)
	return v
}

func TestRecurring_GenerateIfDueOncePerDay(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "1000")
	food := defaultCategory(t, repo, u.ID, core.Expense)
	pub := &recordingPublisher{}
	svc := NewRecurringService(repo, fixedClock(2025, 3, 15), pub)
	v := newTemplate(t, svc, u.ID, a.ID, food.ID, core.Expense, "50", 15)
	assert.Equal(t, "2025-04-15", v.NextOccurrence.String())

	today := core.NewDate(2025, 3, 15)
	gen, err := svc.GenerateIfDue(ctx, v.RecurringTransaction, today)
	require.NoError(t, err)
	assert.True(t, gen.Generated)
	assert.True(t, dec("950").Equal(balanceOf(t, repo, u.ID, a.ID)))

	tx, err := repo.Queries().GetTransaction(ctx, u.ID, gen.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "Luz (Egreso recurrente)", tx.Description)
	assert.Equal(t, v.ID, tx.RecurringID)
	assert.Equal(t, food.ID, tx.CategoryID)

	// The caller's copy still has the old watermark; the row is re-read.
	again, err := svc.GenerateIfDue(ctx, v.RecurringTransaction, today)
	require.NoError(t, err)
	assert.False(t, again.Generated)

	next, err := svc.GenerateIfDue(ctx, v.RecurringTransaction, today.AddDays(1))
	require.NoError(t, err)
	assert.False(t, next.Generated)

	got, err := svc.GetRecurring(ctx, u.ID, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalGenerated)
	assert.Equal(t, "2025-03-15", got.LastGeneratedDate.String())
	assert.Equal(t, "2025-04-15", got.NextOccurrence.String())
	assert.Equal(t, []amqp.EventKind{amqp.EventTransactionCreated}, pub.kinds())
}

func TestRecurring_GenerateNowRequiresActive(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "0")
	salary := defaultCategory(t, repo, u.ID, core.Income)
	svc := NewRecurringService(repo, fixedClock(2025, 3, 2), nil)
	v := newTemplate(t, svc, u.ID, a.ID, salary.ID, core.Income, "1500", 28)

	gen, err := svc.GenerateNow(ctx, u.ID, v.ID)
	require.NoError(t, err)
	assert.True(t, gen.Generated, "on demand ignores the schedule")
	assert.True(t, dec("1500").Equal(balanceOf(t, repo, u.ID, a.ID)))

	tx, err := repo.Queries().GetTransaction(ctx, u.ID, gen.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "Luz (Ingreso recurrente)", tx.Description)

	v, err = svc.ToggleActive(ctx, u.ID, v.ID)
	require.NoError(t, err)
	assert.False(t, v.IsActive)

	_, err = svc.GenerateNow(ctx, u.ID, v.ID)
	assert.ErrorIs(t, err, core.ErrRecurringInactive)
}

func TestRecurring_CreateValidation(t *testing.T) {
	repo := newTestStore(t)
	u, a := seedUserAccount(t, repo, "0")
	salary := defaultCategory(t, repo, u.ID, core.Income)
	svc := NewRecurringService(repo, fixedClock(2025, 3, 2), nil)

	base := core.RecurringTransaction{
		Name: "X", Type: core.Expense, Amount: dec("10"), Frequency: core.Monthly, DayOfPeriod: 1, AccountID: a.ID,
	}
	tests := []struct {
		name   string
		mutate func(*core.RecurringTransaction)
		want   error
	}{
		{"bad frequency", func(r *core.RecurringTransaction) { r.Frequency = "yearly" }, core.ErrInvalidFrequency},
		{"weekly day 8", func(r *core.RecurringTransaction) { r.Frequency, r.DayOfPeriod = core.Weekly, 8 }, core.ErrInvalidDayOfPeriod},
		{"biweekly day 16", func(r *core.RecurringTransaction) { r.Frequency, r.DayOfPeriod = core.Biweekly, 16 }, core.ErrInvalidDayOfPeriod},
		{"income category on expense", func(r *core.RecurringTransaction) { r.CategoryID = salary.ID }, core.ErrCategoryMismatch},
		{"unknown account", func(r *core.RecurringTransaction) { r.AccountID = 9999 }, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := base
			tt.mutate(&rt)
			_, err := svc.CreateRecurring(context.Background(), u.ID, rt)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecurring_CatchUpMissed(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "500")
	svc := NewRecurringService(repo, fixedClock(2025, 3, 10), nil)
	missed := newTemplate(t, svc, u.ID, a.ID, 0, core.Expense, "20", 5)
	newTemplate(t, svc, u.ID, a.ID, 0, core.Expense, "30", 20)

	today := core.NewDate(2025, 3, 10)
	gens, err := svc.CatchUpMissed(ctx, today)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, missed.ID, gens[0].RecurringID)
	assert.True(t, dec("480").Equal(balanceOf(t, repo, u.ID, a.ID)))

	gens, err = svc.CatchUpMissed(ctx, today)
	require.NoError(t, err)
	assert.Empty(t, gens)
}

func TestRecurring_Projections(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "1000")
	svc := NewRecurringService(repo, fixedClock(2025, 3, 10), nil)
	newTemplate(t, svc, u.ID, a.ID, 0, core.Income, "1000", 1)
	newTemplate(t, svc, u.ID, a.ID, 0, core.Expense, "50", 5)

	_, err := NewDebtService(repo, fixedClock(2025, 3, 10), nil).CreateDebt(ctx, u.ID, core.Debt{
		Creditor: "Tarjeta", Principal: dec("600"), TermMonths: 6,
	})
	require.NoError(t, err)

	months, err := svc.Projections(ctx, u.ID, 3, false)
	require.NoError(t, err)
	require.Len(t, months, 3)
	assert.Equal(t, "2025-03", months[0].Month)
	assert.Equal(t, "2025-05", months[2].Month)
	for _, m := range months {
		assert.True(t, dec("1000").Equal(m.Income))
		assert.True(t, dec("50").Equal(m.RecurringExpenses))
		assert.True(t, dec("100").Equal(m.DebtPayments))
		assert.True(t, m.VariableExpenses.IsZero())
		assert.True(t, dec("850").Equal(m.Net))
	}
	assert.True(t, dec("3550").Equal(months[2].CumulativeBalance))

	all, err := svc.Projections(ctx, u.ID, 0, false)
	require.NoError(t, err)
	assert.Len(t, all, 12)
}
