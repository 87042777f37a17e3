package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// RecurringView is a template with its projected next date and how many
// transactions it has produced.
type RecurringView struct {
	core.RecurringTransaction
	NextOccurrence core.Date `json:"next_occurrence"`
	TotalGenerated int       `json:"total_generated"`
}

// Generation is the result of evaluating one template for a day.
type Generation struct {
	RecurringID   int64           `json:"recurring_id"`
	Generated     bool            `json:"generated"`
	TransactionID int64           `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

// ProjectionMonth is one month of the cash-flow projection.
type ProjectionMonth struct {
	Month             string          `json:"month"`
	Income            decimal.Decimal `json:"projected_income"`
	RecurringExpenses decimal.Decimal `json:"recurring_expenses"`
	DebtPayments      decimal.Decimal `json:"debt_payments"`
	VariableExpenses  decimal.Decimal `json:"variable_expenses"`
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	Net               decimal.Decimal `json:"net"`
	CumulativeBalance decimal.Decimal `json:"cumulative_balance"`
}

// RecurringService manages recurring templates and turns them into real
// transactions.
type RecurringService struct {
	store  Store
	clock  Clock
	events emitter
}

func NewRecurringService(store Store, clock Clock, pub Publisher) *RecurringService {
	return &RecurringService{store: store, clock: clock, events: emitter{pub}}
}

func (s *RecurringService) CreateRecurring(ctx context.Context, userID int64, rt core.RecurringTransaction) (RecurringView, error) {
	rt.UserID = userID
	rt.IsActive = true
	rt.LastGeneratedDate = core.Date{}
	if rt.StartDate.IsZero() {
		rt.StartDate = s.clock.today()
	}
	if err := rt.Validate(); err != nil {
		return RecurringView{}, err
	}
	q := s.store.Queries()
	if err := s.checkRefs(ctx, q, rt); err != nil {
		return RecurringView{}, err
	}
	created, err := q.InsertRecurring(ctx, rt)
	if err != nil {
		return RecurringView{}, err
	}
	slog.InfoContext(ctx, "Recurring transaction created",
		"id", created.ID, "type", created.Type, "frequency", created.Frequency, "amount", created.Amount)
	return s.view(ctx, q, created)
}

// UpdateRecurring replaces the template's schedule and amounts. The
// generation watermark is kept.
func (s *RecurringService) UpdateRecurring(ctx context.Context, userID, id int64, rt core.RecurringTransaction) (RecurringView, error) {
	var updated core.RecurringTransaction
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.RecurringLock(id)}, func(q *storage.Queries) error {
		cur, err := q.GetRecurring(ctx, userID, id)
		if err != nil {
			return err
		}
		rt.ID, rt.UserID = id, userID
		rt.LastGeneratedDate = cur.LastGeneratedDate
		if err := rt.Validate(); err != nil {
			return err
		}
		if err := s.checkRefs(ctx, q, rt); err != nil {
			return err
		}
		if err := q.UpdateRecurring(ctx, rt); err != nil {
			return err
		}
		updated, err = q.GetRecurring(ctx, userID, id)
		return err
	})
	if err != nil {
		return RecurringView{}, err
	}
	return s.view(ctx, s.store.Queries(), updated)
}

func (s *RecurringService) ToggleActive(ctx context.Context, userID, id int64) (RecurringView, error) {
	var updated core.RecurringTransaction
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.RecurringLock(id)}, func(q *storage.Queries) error {
		rt, err := q.GetRecurring(ctx, userID, id)
		if err != nil {
			return err
		}
		rt.IsActive = !rt.IsActive
		updated = rt
		return q.UpdateRecurring(ctx, rt)
	})
	if err != nil {
		return RecurringView{}, err
	}
	slog.InfoContext(ctx, "Recurring transaction toggled", "id", id, "is_active", updated.IsActive)
	return s.view(ctx, s.store.Queries(), updated)
}

func (s *RecurringService) DeleteRecurring(ctx context.Context, userID, id int64) error {
	return s.store.Queries().DeleteRecurring(ctx, userID, id)
}

func (s *RecurringService) GetRecurring(ctx context.Context, userID, id int64) (RecurringView, error) {
	q := s.store.Queries()
	rt, err := q.GetRecurring(ctx, userID, id)
	if err != nil {
		return RecurringView{}, err
	}
	return s.view(ctx, q, rt)
}

func (s *RecurringService) ListRecurring(ctx context.Context, userID int64, activeOnly bool) ([]RecurringView, error) {
	q := s.store.Queries()
	list, err := q.ListRecurring(ctx, userID, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]RecurringView, 0, len(list))
	for _, rt := range list {
		v, err := s.view(ctx, q, rt)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GenerateNow creates today's transaction for an active template on demand,
// regardless of its schedule and watermark.
func (s *RecurringService) GenerateNow(ctx context.Context, userID, id int64) (Generation, error) {
	rt, err := s.store.Queries().GetRecurring(ctx, userID, id)
	if err != nil {
		return Generation{RecurringID: id}, err
	}
	return s.generate(ctx, rt, s.clock.today(), func(cur core.RecurringTransaction, _ core.Date) (bool, error) {
		if !cur.IsActive {
			return false, core.ErrRecurringInactive
		}
		return true, nil
	})
}

// GenerateIfDue creates the template's transaction for today when it is
// eligible. Eligibility is evaluated again under the template's lock, so
// concurrent callers generate at most one transaction per day.
func (s *RecurringService) GenerateIfDue(ctx context.Context, rt core.RecurringTransaction, today core.Date) (Generation, error) {
	return s.generate(ctx, rt, today, func(cur core.RecurringTransaction, today core.Date) (bool, error) {
		return ShouldGenerate(cur, today), nil
	})
}

// generate runs check and write in one unit of work holding the template and
// account locks. check sees the row as re-read inside the unit.
func (s *RecurringService) generate(ctx context.Context, rt core.RecurringTransaction, today core.Date,
	check func(core.RecurringTransaction, core.Date) (bool, error)) (Generation, error) {
	gen := Generation{RecurringID: rt.ID}
	keys := []storage.LockKey{storage.RecurringLock(rt.ID), storage.AccountLock(rt.AccountID)}
	err := s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		cur, err := q.GetRecurring(ctx, rt.UserID, rt.ID)
		if err != nil {
			return err
		}
		if cur.AccountID != rt.AccountID {
			return core.ErrConcurrentWrite
		}
		ok, err := check(cur, today)
		if err != nil || !ok {
			return err
		}
		t, err := postTransaction(ctx, q, core.Transaction{
			UserID:      cur.UserID,
			AccountID:   cur.AccountID,
			CategoryID:  cur.CategoryID,
			RecurringID: cur.ID,
			Type:        cur.Type,
			Amount:      cur.Amount,
			Date:        today,
			Description: recurringDescription(cur),
		})
		if err != nil {
			return err
		}
		if err := q.SetRecurringWatermark(ctx, cur.ID, today); err != nil {
			return err
		}
		gen.Generated, gen.TransactionID, gen.Amount = true, t.ID, t.Amount
		return nil
	})
	if err != nil {
		return gen, err
	}
	if gen.Generated {
		slog.InfoContext(ctx, "Created transaction from recurring template",
			"recurring_id", rt.ID, "transaction_id", gen.TransactionID, "amount", gen.Amount, "frequency", rt.Frequency)
		s.events.emit(ctx, amqp.EventTransactionCreated, rt.UserID, gen.TransactionID)
	}
	return gen, nil
}

// CatchUpMissed generates this month's transaction for active monthly
// templates whose day has already passed without a generation, for example
// after the daily driver was down. Templates already generated this month
// are left alone.
func (s *RecurringService) CatchUpMissed(ctx context.Context, today core.Date) ([]Generation, error) {
	list, err := s.store.Queries().ListActiveRecurring(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []Generation
	for _, rt := range list {
		if !missedThisMonth(rt, today) {
			continue
		}
		gen, err := s.generate(ctx, rt, today, func(cur core.RecurringTransaction, today core.Date) (bool, error) {
			return missedThisMonth(cur, today), nil
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to catch up recurring transaction", "recurring_id", rt.ID, "error", err)
			continue
		}
		if gen.Generated {
			out = append(out, gen)
		}
	}
	slog.InfoContext(ctx, "Catch-up complete", "generated", len(out), "checked", len(list))
	return out, nil
}

func missedThisMonth(rt core.RecurringTransaction, today core.Date) bool {
	if !rt.IsActive || rt.Frequency != core.Monthly || today.Before(rt.StartDate) {
		return false
	}
	if !rt.EndDate.IsZero() && today.After(rt.EndDate) {
		return false
	}
	if today.Day() < rt.DayOfPeriod {
		return false
	}
	return rt.LastGeneratedDate.IsZero() || rt.LastGeneratedDate.Before(today.MonthStart())
}

// Projections estimates income and expenses for the coming months from the
// active templates and debts. With includeVariable, the average of other
// spending over the last three months is added to every month.
func (s *RecurringService) Projections(ctx context.Context, userID int64, months int, includeVariable bool) ([]ProjectionMonth, error) {
	if months <= 0 {
		months = 12
	}
	today := s.clock.today()
	q := s.store.Queries()

	active, err := q.ListRecurring(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	debts, err := q.SumActiveDebtPayments(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, err := q.TotalBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	variable := decimal.Zero
	if includeVariable {
		if variable, err = s.variableSpending(ctx, q, userID, today, active, debts); err != nil {
			return nil, err
		}
	}

	out := make([]ProjectionMonth, 0, months)
	for i := 0; i < months; i++ {
		month := today.AddMonths(i)
		p := ProjectionMonth{Month: month.MonthKey(), DebtPayments: debts, VariableExpenses: variable}
		for _, rt := range active {
			amount := monthlyAmount(rt, month)
			if rt.Type == core.Income {
				p.Income = p.Income.Add(amount)
			} else {
				p.RecurringExpenses = p.RecurringExpenses.Add(amount)
			}
		}
		p.TotalExpenses = p.RecurringExpenses.Add(p.DebtPayments).Add(p.VariableExpenses)
		p.Net = p.Income.Sub(p.TotalExpenses)
		balance = balance.Add(p.Net)
		p.CumulativeBalance = balance
		out = append(out, p)
	}
	return out, nil
}

// variableSpending is the monthly average of expenses over the last three
// months not explained by recurring templates or debt installments.
func (s *RecurringService) variableSpending(ctx context.Context, q *storage.Queries, userID int64, today core.Date,
	active []core.RecurringTransaction, debts decimal.Decimal) (decimal.Decimal, error) {
	three := decimal.NewFromInt(3)
	spent, err := q.SumByType(ctx, userID, core.Expense, today.AddMonths(-3), today)
	if err != nil {
		return decimal.Zero, err
	}
	explained := debts.Mul(three)
	for _, rt := range active {
		if rt.Type != core.Expense {
			continue
		}
		checker, err := GetDuenessChecker(rt.Frequency)
		if err != nil {
			continue
		}
		explained = explained.Add(rt.Amount.Mul(decimal.NewFromInt(int64(checker.OccurrencesPerMonth() * 3))))
	}
	rest := spent.Sub(explained)
	if rest.IsNegative() {
		return decimal.Zero, nil
	}
	return core.Round2(rest.Div(three)), nil
}

// monthlyAmount is what a template contributes to the month starting at
// month, zero outside its active window.
func monthlyAmount(rt core.RecurringTransaction, month core.Date) decimal.Decimal {
	if !rt.EndDate.IsZero() && rt.EndDate.Before(month) {
		return decimal.Zero
	}
	if rt.StartDate.After(month.MonthEnd()) {
		return decimal.Zero
	}
	checker, err := GetDuenessChecker(rt.Frequency)
	if err != nil {
		return decimal.Zero
	}
	return rt.Amount.Mul(decimal.NewFromInt(int64(checker.OccurrencesPerMonth())))
}

func (s *RecurringService) checkRefs(ctx context.Context, q *storage.Queries, rt core.RecurringTransaction) error {
	if _, err := q.GetAccount(ctx, rt.UserID, rt.AccountID); err != nil {
		return err
	}
	return checkCategory(ctx, q, rt.UserID, rt.CategoryID, rt.Type)
}

func (s *RecurringService) view(ctx context.Context, q *storage.Queries, rt core.RecurringTransaction) (RecurringView, error) {
	v := RecurringView{RecurringTransaction: rt}
	if checker, err := GetDuenessChecker(rt.Frequency); err == nil {
		v.NextOccurrence = checker.NextOccurrence(rt, s.clock.today())
	}
	n, err := q.CountTransactionsByRecurring(ctx, rt.ID)
	if err != nil {
		return v, err
	}
	v.TotalGenerated = n
	return v, nil
}

func recurringDescription(rt core.RecurringTransaction) string {
	if rt.Type == core.Income {
		return rt.Name + " (Ingreso recurrente)"
	}
	return rt.Name + " (Egreso recurrente)"
}
