package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

func TestGoal_ProgressCompletesAtTarget(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "1000")
	goals := NewGoalService(repo)

	g, err := goals.CreateGoal(ctx, u.ID, core.Goal{
		AccountID: a.ID, Name: "Vacaciones", Target: dec("400"), Current: dec("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, core.GoalInProgress, g.Status)
	assert.Equal(t, "25.00", g.Progress.StringFixed(2))
	assert.True(t, dec("300").Equal(g.Remaining))

	g, err = goals.SetAmount(ctx, u.ID, g.ID, dec("400"))
	require.NoError(t, err)
	assert.Equal(t, core.GoalCompleted, g.Status)
	assert.True(t, g.Remaining.IsZero())

	_, err = goals.SetAmount(ctx, u.ID, g.ID, dec("450"))
	assert.ErrorIs(t, err, core.ErrGoalClosed)
	assert.ErrorIs(t, err, core.ErrState)

	_, err = goals.SetAmount(ctx, u.ID, g.ID, dec("-1"))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestGoal_UpdateAndCancel(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	u, a := seedUserAccount(t, repo, "1000")
	goals := NewGoalService(repo)

	g, err := goals.CreateGoal(ctx, u.ID, core.Goal{AccountID: a.ID, Name: "Auto", Target: dec("5000")})
	require.NoError(t, err)

	// Lowering the target below what is saved completes the goal.
	_, err = goals.SetAmount(ctx, u.ID, g.ID, dec("3000"))
	require.NoError(t, err)
	g, err = goals.UpdateGoal(ctx, u.ID, g.ID, core.Goal{AccountID: a.ID, Name: "Moto", Target: dec("2500")})
	require.NoError(t, err)
	assert.Equal(t, "Moto", g.Name)
	assert.Equal(t, core.GoalCompleted, g.Status)

	other, err := goals.CreateGoal(ctx, u.ID, core.Goal{Name: "Fondo", Target: dec("100")})
	require.NoError(t, err)
	other, err = goals.CancelGoal(ctx, u.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, core.GoalCancelled, other.Status)
	_, err = goals.UpdateGoal(ctx, u.ID, other.ID, core.Goal{Name: "Fondo", Target: dec("200")})
	assert.ErrorIs(t, err, core.ErrGoalClosed)

	_, err = goals.CreateGoal(ctx, u.ID, core.Goal{AccountID: 9999, Name: "X", Target: dec("1")})
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Another user's goal is not found.
	stranger := seedUser(t, repo)
	_, err = goals.GetGoal(ctx, stranger.ID, g.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGoal_SummaryAndTop(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	u, _ := seedUserAccount(t, repo, "0")
	goals := NewGoalService(repo)

	for _, g := range []core.Goal{
		{Name: "A", Target: dec("100"), Current: dec("10")},
		{Name: "B", Target: dec("100"), Current: dec("90")},
		{Name: "C", Target: dec("100"), Current: dec("100")},
	} {
		_, err := goals.CreateGoal(ctx, u.ID, g)
		require.NoError(t, err)
	}
	cancelled, err := goals.CreateGoal(ctx, u.ID, core.Goal{Name: "D", Target: dec("50")})
	require.NoError(t, err)
	_, err = goals.CancelGoal(ctx, u.ID, cancelled.ID)
	require.NoError(t, err)

	sum, err := goals.Summary(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.InProgress)
	assert.Equal(t, 1, sum.Completed)
	assert.True(t, dec("200").Equal(sum.Saved))
	assert.True(t, dec("300").Equal(sum.Target))

	top, err := goals.TopGoals(ctx, u.ID, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "B", top[0].Name)
}

func TestGoal_AutoCompletesAndLocks(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, repo)
	goals := NewGoalService(repo)

	g, err := goals.CreateGoal(ctx, u.ID, core.Goal{Name: "Bici", Target: dec("400")})
	require.NoError(t, err)
	assert.Equal(t, core.GoalInProgress, g.Status)

	g, err = goals.SetAmount(ctx, u.ID, g.ID, dec("100"))
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(g.Progress))
	assert.True(t, dec("300").Equal(g.Remaining))

	g, err = goals.SetAmount(ctx, u.ID, g.ID, dec("400"))
	require.NoError(t, err)
	assert.Equal(t, core.GoalCompleted, g.Status)
	assert.True(t, g.Remaining.IsZero())

	_, err = goals.SetAmount(ctx, u.ID, g.ID, dec("10"))
	assert.ErrorIs(t, err, core.ErrGoalClosed)
	_, err = goals.UpdateGoal(ctx, u.ID, g.ID, core.Goal{Name: "Bici", Target: dec("800")})
	assert.ErrorIs(t, err, core.ErrGoalClosed)
	_, err = goals.CancelGoal(ctx, u.ID, g.ID)
	assert.ErrorIs(t, err, core.ErrGoalClosed)
}
