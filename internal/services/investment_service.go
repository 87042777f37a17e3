package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// InvestmentView is an investment with its derived figures.
type InvestmentView struct {
	core.Investment
	core.InvestmentFigures
}

// Movement is a contribution to or withdrawal from an investment.
type Movement struct {
	AccountID int64
	Amount    decimal.Decimal
	Date      core.Date
	Notes     string
}

// ReturnOutcome reports what ApplyMonthlyReturn did to one policy.
type ReturnOutcome struct {
	InvestmentID  int64           `json:"investment_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID int64           `json:"transaction_id,omitempty"`
	Matured       bool            `json:"matured"`
	Skipped       bool            `json:"skipped"`
}

// InvestmentService keeps investment running totals and the ledger rows that
// justify them in step: every movement with a monetary effect writes a real
// transaction and links back to it.
type InvestmentService struct {
	store  Store
	clock  Clock
	events emitter
}

func NewInvestmentService(store Store, clock Clock, pub Publisher) *InvestmentService {
	return &InvestmentService{store: store, clock: clock, events: emitter{pub}}
}

func (s *InvestmentService) CreateInvestment(ctx context.Context, userID int64, inv core.Investment) (InvestmentView, error) {
	inv.UserID = userID
	inv.Status = core.InvestmentActive
	if inv.StartDate.IsZero() {
		inv.StartDate = s.clock.today()
	}
	if err := inv.Validate(); err != nil {
		return InvestmentView{}, err
	}
	inv.MaturityDate = inv.EffectiveMaturity()
	inv.CurrentAmount = inv.InitialAmount

	q := s.store.Queries()
	if inv.AccountID != 0 {
		if _, err := q.GetAccount(ctx, userID, inv.AccountID); err != nil {
			return InvestmentView{}, err
		}
	}
	created, err := q.InsertInvestment(ctx, inv)
	if err != nil {
		return InvestmentView{}, err
	}
	slog.InfoContext(ctx, "Investment created", "id", created.ID, "type", created.Type, "initial_amount", created.InitialAmount)
	return investmentView(created), nil
}

// UpdateInvestment edits descriptive and insurance fields. Amounts only move
// through Contribute, Withdraw and returns.
func (s *InvestmentService) UpdateInvestment(ctx context.Context, userID, id int64, in core.Investment) (InvestmentView, error) {
	var updated core.Investment
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.InvestmentLock(id)}, func(q *storage.Queries) error {
		cur, err := q.GetInvestment(ctx, userID, id)
		if err != nil {
			return err
		}
		if cur.Status != core.InvestmentActive {
			return core.ErrInvestmentClosed
		}
		if in.AccountID != 0 {
			if _, err := q.GetAccount(ctx, userID, in.AccountID); err != nil {
				return err
			}
		}
		cur.Name = in.Name
		cur.AccountID = in.AccountID
		cur.TargetAmount = in.TargetAmount
		cur.PolicyNumber = in.PolicyNumber
		cur.Institution = in.Institution
		cur.ExpectedReturnRate = in.ExpectedReturnRate
		cur.Deadline = in.Deadline
		cur.Notes = in.Notes
		if in.MaturityTermMonths != cur.MaturityTermMonths || !in.MaturityDate.Equal(cur.MaturityDate) {
			cur.MaturityTermMonths = in.MaturityTermMonths
			cur.MaturityDate = in.MaturityDate
			cur.MaturityDate = cur.EffectiveMaturity()
		}
		if err := cur.Validate(); err != nil {
			return err
		}
		updated = cur
		return q.UpdateInvestment(ctx, cur)
	})
	if err != nil {
		return InvestmentView{}, err
	}
	return investmentView(updated), nil
}

// Contribute moves money from an account into the investment as an expense.
// A goal investment that reaches its target completes.
func (s *InvestmentService) Contribute(ctx context.Context, userID, id int64, m Movement) (InvestmentView, error) {
	if err := core.RequirePositive(m.Amount); err != nil {
		return InvestmentView{}, err
	}
	m = s.defaults(m)

	var (
		updated core.Investment
		txID    int64
	)
	keys := []storage.LockKey{storage.InvestmentLock(id), storage.AccountLock(m.AccountID)}
	err := s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		inv, err := q.GetInvestment(ctx, userID, id)
		if err != nil {
			return err
		}
		if inv.Status != core.InvestmentActive {
			return core.ErrInvestmentClosed
		}
		t, err := postTransaction(ctx, q, core.Transaction{
			UserID:      userID,
			AccountID:   m.AccountID,
			Type:        core.Expense,
			Amount:      m.Amount,
			Date:        m.Date,
			Description: "Aporte a " + inv.Name,
		})
		if err != nil {
			return err
		}
		_, err = q.InsertInvestmentTransaction(ctx, core.InvestmentTransaction{
			InvestmentID:  id,
			Type:          core.MovementContribution,
			Amount:        m.Amount,
			Date:          m.Date,
			AccountID:     m.AccountID,
			TransactionID: t.ID,
			Notes:         m.Notes,
		})
		if err != nil {
			return err
		}
		txID = t.ID
		inv.CurrentAmount = inv.CurrentAmount.Add(m.Amount)
		if inv.Type == core.InvestmentGoal && !inv.CurrentAmount.LessThan(inv.TargetAmount) {
			inv.Status = core.InvestmentCompleted
		}
		updated = inv
		return q.UpdateInvestment(ctx, inv)
	})
	if err != nil {
		return InvestmentView{}, err
	}

	slog.InfoContext(ctx, "Investment contribution", "id", id, "account_id", m.AccountID, "amount", m.Amount, "status", updated.Status)
	s.events.emit(ctx, amqp.EventTransactionCreated, userID, txID)
	return investmentView(updated), nil
}

// Withdraw moves money out of the investment into an account as income. It
// cannot take more than the current amount.
func (s *InvestmentService) Withdraw(ctx context.Context, userID, id int64, m Movement) (InvestmentView, error) {
	if err := core.RequirePositive(m.Amount); err != nil {
		return InvestmentView{}, err
	}
	m = s.defaults(m)

	var (
		updated core.Investment
		txID    int64
	)
	keys := []storage.LockKey{storage.InvestmentLock(id), storage.AccountLock(m.AccountID)}
	err := s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		inv, err := q.GetInvestment(ctx, userID, id)
		if err != nil {
			return err
		}
		if inv.Status != core.InvestmentActive {
			return core.ErrInvestmentClosed
		}
		if m.Amount.GreaterThan(inv.CurrentAmount) {
			return core.Detail(core.ErrInsufficientFunds, "%s holds %s", inv.Name, inv.CurrentAmount.StringFixed(2))
		}
		t, err := postTransaction(ctx, q, core.Transaction{
			UserID:      userID,
			AccountID:   m.AccountID,
			Type:        core.Income,
			Amount:      m.Amount,
			Date:        m.Date,
			Description: "Retiro de " + inv.Name,
		})
		if err != nil {
			return err
		}
		_, err = q.InsertInvestmentTransaction(ctx, core.InvestmentTransaction{
			InvestmentID:  id,
			Type:          core.MovementWithdrawal,
			Amount:        m.Amount,
			Date:          m.Date,
			AccountID:     m.AccountID,
			TransactionID: t.ID,
			Notes:         m.Notes,
		})
		if err != nil {
			return err
		}
		txID = t.ID
		inv.CurrentAmount = inv.CurrentAmount.Sub(m.Amount)
		updated = inv
		return q.UpdateInvestment(ctx, inv)
	})
	if err != nil {
		return InvestmentView{}, err
	}

	slog.InfoContext(ctx, "Investment withdrawal", "id", id, "account_id", m.AccountID, "amount", m.Amount)
	s.events.emit(ctx, amqp.EventTransactionCreated, userID, txID)
	return investmentView(updated), nil
}

// Complete closes an active investment.
func (s *InvestmentService) Complete(ctx context.Context, userID, id int64) (InvestmentView, error) {
	return s.close(ctx, userID, id, core.InvestmentCompleted, false)
}

// CancelPolicy cancels an active insurance policy.
func (s *InvestmentService) CancelPolicy(ctx context.Context, userID, id int64) (InvestmentView, error) {
	return s.close(ctx, userID, id, core.InvestmentCancelled, true)
}

func (s *InvestmentService) close(ctx context.Context, userID, id int64, status core.InvestmentStatus, insuranceOnly bool) (InvestmentView, error) {
	var updated core.Investment
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.InvestmentLock(id)}, func(q *storage.Queries) error {
		inv, err := q.GetInvestment(ctx, userID, id)
		if err != nil {
			return err
		}
		if insuranceOnly && inv.Type != core.InvestmentInsurance {
			return core.ErrNotInsurance
		}
		if inv.Status != core.InvestmentActive {
			return core.ErrInvestmentClosed
		}
		inv.Status = status
		updated = inv
		return q.UpdateInvestment(ctx, inv)
	})
	if err != nil {
		return InvestmentView{}, err
	}
	slog.InfoContext(ctx, "Investment closed", "id", id, "status", status)
	return investmentView(updated), nil
}

// PayoutMatured pays the full current amount of a matured policy into an
// account and completes it.
func (s *InvestmentService) PayoutMatured(ctx context.Context, userID, id, accountID int64) (InvestmentView, error) {
	today := s.clock.today()
	var (
		updated core.Investment
		txID    int64
	)
	keys := []storage.LockKey{storage.InvestmentLock(id), storage.AccountLock(accountID)}
	err := s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		inv, err := q.GetInvestment(ctx, userID, id)
		if err != nil {
			return err
		}
		if inv.Type != core.InvestmentInsurance {
			return core.ErrNotInsurance
		}
		if inv.Status != core.InvestmentMatured {
			return core.Statef("policy %s has not matured", inv.Name)
		}
		movement := core.InvestmentTransaction{
			InvestmentID: id,
			Type:         core.MovementMaturity,
			Amount:       inv.CurrentAmount,
			Date:         today,
			AccountID:    accountID,
			Notes:        "Pago al vencimiento",
		}
		if inv.CurrentAmount.IsPositive() {
			t, err := postTransaction(ctx, q, core.Transaction{
				UserID:      userID,
				AccountID:   accountID,
				Type:        core.Income,
				Amount:      inv.CurrentAmount,
				Date:        today,
				Description: inv.Name + " (Vencimiento)",
			})
			if err != nil {
				return err
			}
			movement.TransactionID = t.ID
		}
		txID = movement.TransactionID
		if _, err := q.InsertInvestmentTransaction(ctx, movement); err != nil {
			return err
		}
		inv.CurrentAmount = decimal.Zero
		inv.Status = core.InvestmentCompleted
		updated = inv
		return q.UpdateInvestment(ctx, inv)
	})
	if err != nil {
		return InvestmentView{}, err
	}
	slog.InfoContext(ctx, "Matured policy paid out", "id", id, "account_id", accountID)
	if txID != 0 {
		s.events.emit(ctx, amqp.EventTransactionCreated, userID, txID)
	}
	return investmentView(updated), nil
}

// ApplyMonthlyReturn credits one month of interest to an insurance policy if
// it is due today, or marks it matured once today is past maturity. The due
// check is repeated under the investment lock, so concurrent runs credit a
// policy at most once per day. With dryRun nothing is written.
func (s *InvestmentService) ApplyMonthlyReturn(ctx context.Context, userID, id int64, today core.Date, dryRun bool) (ReturnOutcome, error) {
	out := ReturnOutcome{InvestmentID: id}
	q := s.store.Queries()
	inv, err := q.GetInvestment(ctx, userID, id)
	if err != nil {
		return out, err
	}
	due, matured := inv.ReturnDue(today)
	if !due && !matured {
		out.Skipped = true
		return out, nil
	}
	var accountID int64
	if due {
		if accountID, err = returnAccount(ctx, q, inv); err != nil {
			return out, err
		}
	}
	if dryRun {
		out.Matured = matured
		if due {
			out.Amount = inv.MonthlyReturn()
			out.Skipped = !out.Amount.IsPositive()
		}
		return out, nil
	}

	keys := []storage.LockKey{storage.InvestmentLock(id), storage.AccountLock(accountID)}
	err = s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		inv, err := q.GetInvestment(ctx, userID, id)
		if err != nil {
			return err
		}
		due, matured := inv.ReturnDue(today)
		if matured {
			out.Matured = true
			inv.Status = core.InvestmentMatured
			return q.UpdateInvestment(ctx, inv)
		}
		amount := inv.MonthlyReturn()
		if !due || !amount.IsPositive() {
			out.Skipped = true
			return nil
		}
		if current, err := returnAccount(ctx, q, inv); err != nil {
			return err
		} else if current != accountID {
			return core.ErrConcurrentWrite
		}

		t, err := postTransaction(ctx, q, core.Transaction{
			UserID:      userID,
			AccountID:   accountID,
			Type:        core.Income,
			Amount:      amount,
			Date:        today,
			Description: inv.Name + " (Rendimiento mensual)",
		})
		if err != nil {
			return err
		}
		_, err = q.InsertInvestmentTransaction(ctx, core.InvestmentTransaction{
			InvestmentID:  id,
			Type:          core.MovementReturn,
			Amount:        amount,
			Date:          today,
			AccountID:     accountID,
			TransactionID: t.ID,
			Notes:         "Rendimiento mensual automático",
		})
		if err != nil {
			return err
		}
		inv.CurrentAmount = inv.CurrentAmount.Add(amount)
		inv.LastReturnDate = today
		out.Amount, out.TransactionID = amount, t.ID
		return q.UpdateInvestment(ctx, inv)
	})
	if err != nil {
		return out, err
	}

	switch {
	case out.Matured:
		slog.InfoContext(ctx, "Policy matured", "id", id)
		s.events.emit(ctx, amqp.EventInvestmentMatured, userID, id)
	case !out.Skipped:
		slog.InfoContext(ctx, "Monthly return applied", "id", id, "amount", out.Amount, "transaction_id", out.TransactionID)
		s.events.emit(ctx, amqp.EventTransactionCreated, userID, out.TransactionID)
	}
	return out, nil
}

func (s *InvestmentService) DeleteInvestment(ctx context.Context, userID, id int64) error {
	return s.store.Queries().DeleteInvestment(ctx, userID, id)
}

func (s *InvestmentService) GetInvestment(ctx context.Context, userID, id int64) (InvestmentView, error) {
	inv, err := s.store.Queries().GetInvestment(ctx, userID, id)
	if err != nil {
		return InvestmentView{}, err
	}
	return investmentView(inv), nil
}

func (s *InvestmentService) ListInvestments(ctx context.Context, userID int64, f storage.InvestmentFilter) ([]InvestmentView, error) {
	invs, err := s.store.Queries().ListInvestments(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	out := make([]InvestmentView, 0, len(invs))
	for _, inv := range invs {
		out = append(out, investmentView(inv))
	}
	return out, nil
}

func (s *InvestmentService) Movements(ctx context.Context, userID, id int64) ([]core.InvestmentTransaction, error) {
	q := s.store.Queries()
	if _, err := q.GetInvestment(ctx, userID, id); err != nil {
		return nil, err
	}
	return q.ListInvestmentTransactions(ctx, id)
}

func (s *InvestmentService) defaults(m Movement) Movement {
	if m.Date.IsZero() {
		m.Date = s.clock.today()
	}
	return m
}

// returnAccount is the linked account, or the user's oldest one.
func returnAccount(ctx context.Context, q *storage.Queries, inv core.Investment) (int64, error) {
	if inv.AccountID != 0 {
		return inv.AccountID, nil
	}
	a, err := q.FirstAccount(ctx, inv.UserID)
	if errors.Is(err, core.ErrAccountNotFound) {
		return 0, core.Detail(core.ErrNoAccountForReturn, "user %d has no accounts", inv.UserID)
	}
	if err != nil {
		return 0, fmt.Errorf("return account of investment %d: %w", inv.ID, err)
	}
	return a.ID, nil
}

func investmentView(inv core.Investment) InvestmentView {
	return InvestmentView{Investment: inv, InvestmentFigures: inv.Figures()}
}
