package services

import (
	"context"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/storage"
)

// CategoryTrend is a category's monthly spending with its budget as a
// reference line.
type CategoryTrend struct {
	CategoryID int64               `json:"category_id"`
	Name       string              `json:"category_name"`
	Months     int                 `json:"months"`
	Points     []core.TrendPoint   `json:"data"`
	Total      decimal.Decimal     `json:"total"`
	Average    decimal.Decimal     `json:"average"`
	Budget     decimal.NullDecimal `json:"budget_amount"`
}

// Distribution is a period's spending split by category.
type Distribution struct {
	From       core.Date             `json:"start_date"`
	To         core.Date             `json:"end_date"`
	Total      decimal.Decimal       `json:"total"`
	Categories []core.CategoryAmount `json:"categories"`
}

// ComparisonMode picks the previous period of a comparison.
type ComparisonMode string

const (
	MonthOverMonth ComparisonMode = "mom"
	YearOverYear   ComparisonMode = "yoy"
)

// PeriodTotals is income and expense of one calendar month.
type PeriodTotals struct {
	From    core.Date       `json:"start_date"`
	To      core.Date       `json:"end_date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// PeriodComparison compares the current month with the previous month or the
// same month a year earlier. A change against a zero period is reported as 0.
type PeriodComparison struct {
	Mode          ComparisonMode  `json:"mode"`
	Current       PeriodTotals    `json:"current"`
	Previous      PeriodTotals    `json:"previous"`
	IncomeChange  decimal.Decimal `json:"income_change_percentage"`
	ExpenseChange decimal.Decimal `json:"expense_change_percentage"`
	NetChange     decimal.Decimal `json:"net_change_percentage"`
}

// TrendsService answers read-only aggregate questions over the ledger.
type TrendsService struct {
	store Store
	clock Clock
}

func NewTrendsService(store Store, clock Clock) *TrendsService {
	return &TrendsService{store: store, clock: clock}
}

// MonthlySeries returns income, expense and net for each of the last months
// ending with the current one, oldest first. Months without transactions are
// present with zeros.
func (s *TrendsService) MonthlySeries(ctx context.Context, userID int64, months int) ([]core.MonthTotals, error) {
	if months <= 0 {
		months = 6
	}
	today := s.clock.today()
	from := today.AddMonths(-(months - 1))
	totals, err := s.store.Queries().MonthlyTotals(ctx, userID, from, today.MonthEnd())
	if err != nil {
		return nil, err
	}
	out := make([]core.MonthTotals, 0, months)
	for i := 0; i < months; i++ {
		key := from.AddMonths(i).MonthKey()
		m, ok := totals[key]
		if !ok {
			m = core.MonthTotals{Month: key}
		}
		out = append(out, m)
	}
	return out, nil
}

// CategoryTrend returns 3, 6 or 12 months of a category's spending ending
// with the current month, each month classified against the one before.
func (s *TrendsService) CategoryTrend(ctx context.Context, userID, categoryID int64, months int) (CategoryTrend, error) {
	if months != 3 && months != 6 && months != 12 {
		return CategoryTrend{}, core.ErrInvalidTrendWindow
	}
	q := s.store.Queries()
	cat, err := q.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return CategoryTrend{}, err
	}
	today := s.clock.today()
	from := today.AddMonths(-(months - 1))
	spending, err := q.CategoryMonthlySpending(ctx, userID, categoryID, from, today.MonthEnd())
	if err != nil {
		return CategoryTrend{}, err
	}

	trend := CategoryTrend{CategoryID: cat.ID, Name: cat.Name, Months: months}
	previous := decimal.Zero
	for i := 0; i < months; i++ {
		key := from.AddMonths(i).MonthKey()
		amount := spending[key]
		change, dir := core.ClassifyChange(previous, amount, i == 0)
		trend.Points = append(trend.Points, core.TrendPoint{
			Month:            key,
			Amount:           amount,
			ChangePercentage: change,
			VsPrevious:       dir,
		})
		trend.Total = trend.Total.Add(amount)
		previous = amount
	}
	trend.Average = core.Round2(trend.Total.Div(decimal.NewFromInt(int64(months))))

	b, ok, err := q.LatestActiveBudget(ctx, userID, categoryID)
	if err != nil {
		return CategoryTrend{}, err
	}
	if ok {
		trend.Budget = decimal.NewNullDecimal(b.Amount)
	}
	return trend, nil
}

// BudgetedCategories lists the categories that have a budget, the index of
// available spending trends.
func (s *TrendsService) BudgetedCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	return s.store.Queries().BudgetedCategories(ctx, userID)
}

// Distribution splits expenses in [from, to] by category. Expenses without a
// category form their own bucket with id 0.
func (s *TrendsService) Distribution(ctx context.Context, userID int64, from, to core.Date) (Distribution, error) {
	if from.IsZero() {
		from = s.clock.today().MonthStart()
	}
	if to.IsZero() {
		to = s.clock.today()
	}
	if to.Before(from) {
		return Distribution{}, core.ErrInvalidDateRange
	}
	amounts, err := s.store.Queries().AmountsByCategory(ctx, userID, core.Expense, from, to)
	if err != nil {
		return Distribution{}, err
	}
	d := Distribution{From: from, To: to, Categories: amounts}
	for _, a := range amounts {
		d.Total = d.Total.Add(a.Amount)
	}
	for i := range d.Categories {
		d.Categories[i].Percentage = core.Percent(d.Categories[i].Amount, d.Total)
	}
	return d, nil
}

func (s *TrendsService) Compare(ctx context.Context, userID int64, mode ComparisonMode) (PeriodComparison, error) {
	today := s.clock.today()
	current := today.MonthStart()
	var previous core.Date
	switch mode {
	case MonthOverMonth:
		previous = current.AddMonths(-1)
	case YearOverYear:
		previous = current.AddMonths(-12)
	default:
		return PeriodComparison{}, core.Validationf("comparison must be %q or %q", MonthOverMonth, YearOverYear)
	}

	q := s.store.Queries()
	cur, err := monthTotals(ctx, q, userID, current)
	if err != nil {
		return PeriodComparison{}, err
	}
	prev, err := monthTotals(ctx, q, userID, previous)
	if err != nil {
		return PeriodComparison{}, err
	}
	return PeriodComparison{
		Mode:          mode,
		Current:       cur,
		Previous:      prev,
		IncomeChange:  core.PercentChange(prev.Income, cur.Income),
		ExpenseChange: core.PercentChange(prev.Expense, cur.Expense),
		NetChange:     core.PercentChange(prev.Net, cur.Net),
	}, nil
}

func monthTotals(ctx context.Context, q *storage.Queries, userID int64, month core.Date) (PeriodTotals, error) {
	p := PeriodTotals{From: month.MonthStart(), To: month.MonthEnd()}
	var err error
	if p.Income, err = q.SumByType(ctx, userID, core.Income, p.From, p.To); err != nil {
		return p, err
	}
	if p.Expense, err = q.SumByType(ctx, userID, core.Expense, p.From, p.To); err != nil {
		return p, err
	}
	p.Net = p.Income.Sub(p.Expense)
	return p, nil
}
