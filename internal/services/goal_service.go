package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/storage"
)

// GoalView is a legacy savings goal with its progress.
type GoalView struct {
	core.Goal
	Progress  decimal.Decimal `json:"progress_percentage"`
	Remaining decimal.Decimal `json:"remaining_amount"`
}

// GoalSummary counts goals by status.
type GoalSummary struct {
	Total      int             `json:"total"`
	InProgress int             `json:"in_progress"`
	Completed  int             `json:"completed"`
	Saved      decimal.Decimal `json:"total_saved"`
	Target     decimal.Decimal `json:"total_target"`
}

type GoalService struct {
	store Store
}

func NewGoalService(store Store) *GoalService {
	return &GoalService{store: store}
}

func (s *GoalService) CreateGoal(ctx context.Context, userID int64, g core.Goal) (GoalView, error) {
	g.UserID = userID
	g.Status = core.GoalInProgress
	if err := g.Validate(); err != nil {
		return GoalView{}, err
	}
	q := s.store.Queries()
	if g.AccountID != 0 {
		if _, err := q.GetAccount(ctx, userID, g.AccountID); err != nil {
			return GoalView{}, err
		}
	}
	if !g.Current.LessThan(g.Target) {
		g.Status = core.GoalCompleted
	}
	created, err := q.InsertGoal(ctx, g)
	if err != nil {
		return GoalView{}, err
	}
	slog.InfoContext(ctx, "Goal created", "id", created.ID, "target", created.Target)
	return goalView(created), nil
}

// UpdateGoal edits name, target, deadline and linked account. Closed goals
// cannot be edited.
func (s *GoalService) UpdateGoal(ctx context.Context, userID, id int64, g core.Goal) (GoalView, error) {
	var updated core.Goal
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.GoalLock(id)}, func(q *storage.Queries) error {
		cur, err := q.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if cur.Status != core.GoalInProgress {
			return core.ErrGoalClosed
		}
		if g.AccountID != 0 {
			if _, err := q.GetAccount(ctx, userID, g.AccountID); err != nil {
				return err
			}
		}
		cur.Name, cur.Target, cur.Deadline, cur.AccountID = g.Name, g.Target, g.Deadline, g.AccountID
		if err := cur.Validate(); err != nil {
			return err
		}
		updated = settle(cur)
		return q.UpdateGoal(ctx, updated)
	})
	if err != nil {
		return GoalView{}, err
	}
	return goalView(updated), nil
}

// SetAmount records progress on an in-progress goal and completes it once
// the target is reached.
func (s *GoalService) SetAmount(ctx context.Context, userID, id int64, amount decimal.Decimal) (GoalView, error) {
	if amount.IsNegative() {
		return GoalView{}, core.Validationf("current amount cannot be negative")
	}
	var updated core.Goal
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.GoalLock(id)}, func(q *storage.Queries) error {
		g, err := q.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if g.Status != core.GoalInProgress {
			return core.ErrGoalClosed
		}
		g.Current = core.Round2(amount)
		updated = settle(g)
		return q.UpdateGoal(ctx, updated)
	})
	if err != nil {
		return GoalView{}, err
	}
	if updated.Status == core.GoalCompleted {
		slog.InfoContext(ctx, "Goal completed", "id", id, "target", updated.Target)
	}
	return goalView(updated), nil
}

func (s *GoalService) CancelGoal(ctx context.Context, userID, id int64) (GoalView, error) {
	var updated core.Goal
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.GoalLock(id)}, func(q *storage.Queries) error {
		g, err := q.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if g.Status != core.GoalInProgress {
			return core.ErrGoalClosed
		}
		g.Status = core.GoalCancelled
		updated = g
		return q.UpdateGoal(ctx, g)
	})
	if err != nil {
		return GoalView{}, err
	}
	return goalView(updated), nil
}

func (s *GoalService) DeleteGoal(ctx context.Context, userID, id int64) error {
	return s.store.Queries().DeleteGoal(ctx, userID, id)
}

func (s *GoalService) GetGoal(ctx context.Context, userID, id int64) (GoalView, error) {
	g, err := s.store.Queries().GetGoal(ctx, userID, id)
	if err != nil {
		return GoalView{}, err
	}
	return goalView(g), nil
}

func (s *GoalService) ListGoals(ctx context.Context, userID int64, status core.GoalStatus) ([]GoalView, error) {
	goals, err := s.store.Queries().ListGoals(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	out := make([]GoalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalView(g))
	}
	return out, nil
}

// TopGoals returns the n in-progress goals closest to their target.
func (s *GoalService) TopGoals(ctx context.Context, userID int64, n int) ([]GoalView, error) {
	views, err := s.ListGoals(ctx, userID, core.GoalInProgress)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Progress.GreaterThan(views[j].Progress)
	})
	if len(views) > n {
		views = views[:n]
	}
	return views, nil
}

func (s *GoalService) Summary(ctx context.Context, userID int64) (GoalSummary, error) {
	goals, err := s.store.Queries().ListGoals(ctx, userID, "")
	if err != nil {
		return GoalSummary{}, err
	}
	sum := GoalSummary{Total: len(goals)}
	for _, g := range goals {
		switch g.Status {
		case core.GoalInProgress:
			sum.InProgress++
		case core.GoalCompleted:
			sum.Completed++
		case core.GoalCancelled:
			continue
		}
		sum.Saved = sum.Saved.Add(g.Current)
		sum.Target = sum.Target.Add(g.Target)
	}
	return sum, nil
}

// settle completes an in-progress goal whose current amount reached its target.
func settle(g core.Goal) core.Goal {
	if g.Status == core.GoalInProgress && !g.Current.LessThan(g.Target) {
		g.Status = core.GoalCompleted
	}
	return g
}

func goalView(g core.Goal) GoalView {
	v := GoalView{Goal: g, Progress: core.Percent(g.Current, g.Target)}
	if rem := g.Target.Sub(g.Current); rem.IsPositive() {
		v.Remaining = rem
	}
	return v
}
