package services

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"budget/internal/core"
	"budget/internal/storage"
)

const (
	dashboardWindowDays   = 30
	dashboardRecent       = 10
	dashboardTop          = 5
	dashboardUpcomingDays = 15
	dashboardProjection   = 3
)

// ProjectionPoint is the projected total balance at the start of a month.
type ProjectionPoint struct {
	Month   string          `json:"month"`
	Balance decimal.Decimal `json:"balance"`
}

// Dashboard is the landing summary of a user's finances.
type Dashboard struct {
	TotalBalance       decimal.Decimal    `json:"total_balance"`
	TotalIncome        decimal.Decimal    `json:"total_income"`
	TotalExpenses      decimal.Decimal    `json:"total_expenses"`
	AccountsCount      int                `json:"accounts_count"`
	RecentTransactions []core.Transaction `json:"recent_transactions"`
	Goals              GoalSummary        `json:"goals_summary"`
	BudgetStatus       []BudgetView       `json:"budget_status"`
	TopGoals           []GoalView         `json:"top_goals"`
	UpcomingPayments   []UpcomingPayment  `json:"upcoming_payments"`
	MiniProjection     []ProjectionPoint  `json:"mini_projection"`
	ProjectedBalance   decimal.Decimal    `json:"projection_final_balance"`
}

// DashboardService assembles the dashboard. Its sections are independent
// reads and are loaded concurrently.
type DashboardService struct {
	store     Store
	clock     Clock
	budgets   *BudgetService
	goals     *GoalService
	debts     *DebtService
	recurring *RecurringService
}

func NewDashboardService(store Store, clock Clock, budgets *BudgetService, goals *GoalService, debts *DebtService, recurring *RecurringService) *DashboardService {
	return &DashboardService{store: store, clock: clock, budgets: budgets, goals: goals, debts: debts, recurring: recurring}
}

func (s *DashboardService) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	today := s.clock.today()
	since := today.AddDays(-dashboardWindowDays)
	q := s.store.Queries()
	d := &Dashboard{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.TotalBalance, err = q.TotalBalance(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.TotalIncome, err = q.SumByType(ctx, userID, core.Income, since, today)
		return err
	})
	g.Go(func() (err error) {
		d.TotalExpenses, err = q.SumByType(ctx, userID, core.Expense, since, today)
		return err
	})
	g.Go(func() (err error) {
		d.AccountsCount, err = q.CountAccounts(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.RecentTransactions, err = q.ListTransactions(ctx, userID, storage.TransactionFilter{Limit: dashboardRecent})
		return err
	})
	g.Go(func() (err error) {
		d.Goals, err = s.goals.Summary(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.BudgetStatus, err = s.budgets.TopBudgets(ctx, userID, dashboardTop)
		return err
	})
	g.Go(func() (err error) {
		d.TopGoals, err = s.goals.TopGoals(ctx, userID, dashboardTop)
		return err
	})
	g.Go(func() (err error) {
		d.UpcomingPayments, err = s.debts.Upcoming(ctx, userID, dashboardUpcomingDays)
		return err
	})
	g.Go(func() error {
		months, err := s.recurring.Projections(ctx, userID, dashboardProjection, false)
		if err != nil {
			return err
		}
		d.MiniProjection, d.ProjectedBalance = miniProjection(months)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// miniProjection turns month projections into start-of-month balances plus
// the balance after the last month.
func miniProjection(months []ProjectionMonth) ([]ProjectionPoint, decimal.Decimal) {
	points := make([]ProjectionPoint, 0, len(months))
	var final decimal.Decimal
	for _, m := range months {
		points = append(points, ProjectionPoint{Month: m.Month, Balance: m.CumulativeBalance.Sub(m.Net)})
		final = m.CumulativeBalance
	}
	return points, final
}
