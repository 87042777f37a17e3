package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/storage"
)

// BudgetView is a budget with the figures derived from this month's spending.
type BudgetView struct {
	core.Budget
	CategoryName string          `json:"category_name"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	Percentage   decimal.Decimal `json:"percentage"`
	// DaysLeft is nil for recurring or open-ended budgets.
	DaysLeft     *int `json:"days_left"`
	HistoryCount int  `json:"history_count"`
	IsIndefinite bool `json:"is_indefinite"`
}

// BudgetChange is an edit of a budget's limit or end date.
type BudgetChange struct {
	Amount      decimal.Decimal
	PeriodEnd   core.Date
	IsRecurring bool
	Reason      string
}

type BudgetService struct {
	store Store
	clock Clock
}

func NewBudgetService(store Store, clock Clock) *BudgetService {
	return &BudgetService{store: store, clock: clock}
}

func (s *BudgetService) CreateBudget(ctx context.Context, userID int64, b core.Budget) (BudgetView, error) {
	b.UserID = userID
	if b.Status == "" {
		b.Status = core.BudgetActive
	}
	if b.PeriodStart.IsZero() {
		b.PeriodStart = s.clock.today().MonthStart()
	}
	if err := b.Validate(); err != nil {
		return BudgetView{}, err
	}
	q := s.store.Queries()
	if err := checkCategory(ctx, q, userID, b.CategoryID, core.Expense); err != nil {
		return BudgetView{}, err
	}
	created, err := q.InsertBudget(ctx, b)
	if err != nil {
		return BudgetView{}, err
	}
	slog.InfoContext(ctx, "Budget created", "id", created.ID, "category_id", created.CategoryID, "amount", created.Amount)
	return s.view(ctx, q, created)
}

// UpdateBudget changes the limit and end date and appends a history row
// recording the previous and new values.
func (s *BudgetService) UpdateBudget(ctx context.Context, userID, id int64, c BudgetChange) (BudgetView, error) {
	var updated core.Budget
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.BudgetLock(id)}, func(q *storage.Queries) error {
		cur, err := q.GetBudget(ctx, userID, id)
		if err != nil {
			return err
		}
		next := cur
		next.Amount = c.Amount
		next.PeriodEnd = c.PeriodEnd
		next.IsRecurring = c.IsRecurring
		if err := next.Validate(); err != nil {
			return err
		}
		if err := q.UpdateBudget(ctx, next); err != nil {
			return err
		}
		err = q.InsertBudgetHistory(ctx, core.BudgetHistory{
			BudgetID:          id,
			PreviousAmount:    cur.Amount,
			NewAmount:         next.Amount,
			PreviousPeriodEnd: cur.PeriodEnd,
			NewPeriodEnd:      next.PeriodEnd,
			ChangeReason:      c.Reason,
			ChangedBy:         userID,
		})
		if err != nil {
			return err
		}
		updated, err = q.GetBudget(ctx, userID, id)
		return err
	})
	if err != nil {
		return BudgetView{}, err
	}
	slog.InfoContext(ctx, "Budget updated", "id", id, "amount", updated.Amount, "period_end", updated.PeriodEnd.String())
	return s.view(ctx, s.store.Queries(), updated)
}

// ToggleStatus flips an Active budget to Paused and anything else to Active.
func (s *BudgetService) ToggleStatus(ctx context.Context, userID, id int64) (BudgetView, error) {
	return s.changeStatus(ctx, userID, id, func(cur core.BudgetStatus) core.BudgetStatus {
		if cur == core.BudgetActive {
			return core.BudgetPaused
		}
		return core.BudgetActive
	})
}

// SetStatus moves a budget to an explicit status, including Archived.
func (s *BudgetService) SetStatus(ctx context.Context, userID, id int64, status core.BudgetStatus) (BudgetView, error) {
	if !status.Valid() {
		return BudgetView{}, core.Detail(core.ErrInvalidBudgetStatus, "%q", status)
	}
	return s.changeStatus(ctx, userID, id, func(core.BudgetStatus) core.BudgetStatus { return status })
}

func (s *BudgetService) changeStatus(ctx context.Context, userID, id int64, next func(core.BudgetStatus) core.BudgetStatus) (BudgetView, error) {
	var updated core.Budget
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.BudgetLock(id)}, func(q *storage.Queries) error {
		b, err := q.GetBudget(ctx, userID, id)
		if err != nil {
			return err
		}
		b.Status = next(b.Status)
		if err := q.UpdateBudget(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return BudgetView{}, err
	}
	slog.InfoContext(ctx, "Budget status changed", "id", id, "status", updated.Status)
	return s.view(ctx, s.store.Queries(), updated)
}

func (s *BudgetService) DeleteBudget(ctx context.Context, userID, id int64) error {
	return s.store.Queries().DeleteBudget(ctx, userID, id)
}

func (s *BudgetService) GetBudget(ctx context.Context, userID, id int64) (BudgetView, error) {
	q := s.store.Queries()
	b, err := q.GetBudget(ctx, userID, id)
	if err != nil {
		return BudgetView{}, err
	}
	return s.view(ctx, q, b)
}

// ListBudgets returns every budget of the user, or with eligibleOnly just
// the Active ones whose period contains today.
func (s *BudgetService) ListBudgets(ctx context.Context, userID int64, eligibleOnly bool) ([]BudgetView, error) {
	q := s.store.Queries()
	var on core.Date
	if eligibleOnly {
		on = s.clock.today()
	}
	budgets, err := q.ListBudgets(ctx, userID, on)
	if err != nil {
		return nil, err
	}
	out := make([]BudgetView, 0, len(budgets))
	for _, b := range budgets {
		v, err := s.view(ctx, q, b)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// TopBudgets returns the n eligible budgets with the highest usage.
func (s *BudgetService) TopBudgets(ctx context.Context, userID int64, n int) ([]BudgetView, error) {
	views, err := s.ListBudgets(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Percentage.GreaterThan(views[j].Percentage)
	})
	if len(views) > n {
		views = views[:n]
	}
	return views, nil
}

func (s *BudgetService) History(ctx context.Context, userID, id int64) ([]core.BudgetHistory, error) {
	q := s.store.Queries()
	if _, err := q.GetBudget(ctx, userID, id); err != nil {
		return nil, err
	}
	return q.ListBudgetHistory(ctx, id)
}

// view derives spending over the current calendar month. The budget's own
// period only decides eligibility.
func (s *BudgetService) view(ctx context.Context, q *storage.Queries, b core.Budget) (BudgetView, error) {
	today := s.clock.today()
	v := BudgetView{Budget: b, IsIndefinite: b.PeriodEnd.IsZero()}

	cat, err := q.GetCategory(ctx, b.UserID, b.CategoryID)
	if err != nil {
		return v, err
	}
	v.CategoryName = cat.Name

	if v.Spent, err = q.CategorySpent(ctx, b.UserID, b.CategoryID, today.MonthStart(), today.MonthEnd()); err != nil {
		return v, err
	}
	v.Remaining = b.Amount.Sub(v.Spent)
	v.Percentage = core.Percent(v.Spent, b.Amount)

	if !b.IsRecurring && !b.PeriodEnd.IsZero() {
		days := today.MonthEnd().DaysSince(today)
		v.DaysLeft = &days
	}
	if v.HistoryCount, err = q.CountBudgetHistory(ctx, b.ID); err != nil {
		return v, err
	}
	return v, nil
}
