package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// DebtView is a debt with the figures derived from its stored fields.
type DebtView struct {
	core.Debt
	core.DebtFigures
	PaymentsCount int       `json:"payments_count"`
	NextDueDate   core.Date `json:"next_due_date"`
}

// DebtChange edits a debt. Nil fields keep the stored value.
type DebtChange struct {
	Creditor     *string
	Principal    *decimal.Decimal
	InterestRate *decimal.Decimal
	InterestType *core.InterestType
	TermMonths   *int
	StartDate    *core.Date
	Notes        *string
}

// Payment is one installment paid from an account.
type Payment struct {
	AccountID int64
	Amount    decimal.Decimal
	Date      core.Date
	Notes     string
}

// UpcomingPayment is an active debt's next installment.
type UpcomingPayment struct {
	DebtID   int64           `json:"debt_id"`
	Creditor string          `json:"creditor"`
	Amount   decimal.Decimal `json:"amount"`
	DueDate  core.Date       `json:"due_date"`
	DaysLeft int             `json:"days_left"`
}

type DebtService struct {
	store  Store
	clock  Clock
	events emitter
}

func NewDebtService(store Store, clock Clock, pub Publisher) *DebtService {
	return &DebtService{store: store, clock: clock, events: emitter{pub}}
}

func (s *DebtService) CreateDebt(ctx context.Context, userID int64, d core.Debt) (DebtView, error) {
	d.UserID = userID
	d.Status = core.DebtActive
	d.AmountPaid = decimal.Zero
	if d.InterestType == "" {
		d.InterestType = core.InterestSimple
	}
	if d.StartDate.IsZero() {
		d.StartDate = s.clock.today()
	}
	if err := d.Validate(); err != nil {
		return DebtView{}, err
	}
	d.MonthlyPayment = core.MonthlyPayment(d.Principal, d.InterestRate, d.TermMonths, d.InterestType)

	q := s.store.Queries()
	created, err := q.InsertDebt(ctx, d)
	if err != nil {
		return DebtView{}, err
	}
	slog.InfoContext(ctx, "Debt created", "id", created.ID, "principal", created.Principal, "monthly_payment", created.MonthlyPayment)
	return s.view(ctx, q, created)
}

// UpdateDebt applies the supplied fields and recomputes the monthly payment
// from the merged values.
func (s *DebtService) UpdateDebt(ctx context.Context, userID, id int64, c DebtChange) (DebtView, error) {
	var updated core.Debt
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.DebtLock(id)}, func(q *storage.Queries) error {
		d, err := q.GetDebt(ctx, userID, id)
		if err != nil {
			return err
		}
		if d.Status == core.DebtCancelled {
			return core.ErrDebtClosed
		}
		if c.Creditor != nil {
			d.Creditor = *c.Creditor
		}
		if c.Principal != nil {
			d.Principal = *c.Principal
		}
		if c.InterestRate != nil {
			d.InterestRate = *c.InterestRate
		}
		if c.InterestType != nil {
			d.InterestType = *c.InterestType
		}
		if c.TermMonths != nil {
			d.TermMonths = *c.TermMonths
		}
		if c.StartDate != nil {
			d.StartDate = *c.StartDate
		}
		if c.Notes != nil {
			d.Notes = *c.Notes
		}
		if err := d.Validate(); err != nil {
			return err
		}
		d.MonthlyPayment = core.MonthlyPayment(d.Principal, d.InterestRate, d.TermMonths, d.InterestType)
		d.Status = debtStatus(d)
		updated = d
		return q.UpdateDebt(ctx, d)
	})
	if err != nil {
		return DebtView{}, err
	}
	slog.InfoContext(ctx, "Debt updated", "id", id, "monthly_payment", updated.MonthlyPayment, "status", updated.Status)
	return s.view(ctx, s.store.Queries(), updated)
}

// AddPayment pays an installment from an account: an expense transaction, a
// payment row linked to it and the increased amount paid. The debt flips to
// Paid when nothing remains.
func (s *DebtService) AddPayment(ctx context.Context, userID, id int64, p Payment) (DebtView, core.DebtPayment, error) {
	if err := core.RequirePositive(p.Amount); err != nil {
		return DebtView{}, core.DebtPayment{}, err
	}
	if p.Date.IsZero() {
		p.Date = s.clock.today()
	}

	var (
		updated core.Debt
		payment core.DebtPayment
		paidOff bool
	)
	keys := []storage.LockKey{storage.DebtLock(id), storage.AccountLock(p.AccountID)}
	err := s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		d, err := q.GetDebt(ctx, userID, id)
		if err != nil {
			return err
		}
		if d.Status != core.DebtActive {
			return core.ErrDebtClosed
		}
		desc := "Pago de deuda: " + d.Creditor
		if p.Notes != "" {
			desc += " - " + p.Notes
		}
		t, err := postTransaction(ctx, q, core.Transaction{
			UserID:      userID,
			AccountID:   p.AccountID,
			Type:        core.Expense,
			Amount:      p.Amount,
			Date:        p.Date,
			Description: desc,
		})
		if err != nil {
			return err
		}
		payment, err = q.InsertDebtPayment(ctx, core.DebtPayment{
			DebtID:        id,
			AccountID:     p.AccountID,
			TransactionID: t.ID,
			Amount:        p.Amount,
			Date:          p.Date,
			Notes:         p.Notes,
		})
		if err != nil {
			return err
		}
		d.AmountPaid = d.AmountPaid.Add(p.Amount)
		d.Status = debtStatus(d)
		paidOff = d.Status == core.DebtPaid
		updated = d
		return q.UpdateDebt(ctx, d)
	})
	if err != nil {
		return DebtView{}, payment, err
	}

	slog.InfoContext(ctx, "Debt payment recorded", "debt_id", id, "account_id", p.AccountID, "amount", p.Amount, "transaction_id", payment.TransactionID)
	s.events.emit(ctx, amqp.EventTransactionCreated, userID, payment.TransactionID)
	if paidOff {
		slog.InfoContext(ctx, "Debt paid off", "debt_id", id)
		s.events.emit(ctx, amqp.EventDebtPaidOff, userID, id)
	}
	view, err := s.view(ctx, s.store.Queries(), updated)
	return view, payment, err
}

func (s *DebtService) CancelDebt(ctx context.Context, userID, id int64) (DebtView, error) {
	var updated core.Debt
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.DebtLock(id)}, func(q *storage.Queries) error {
		d, err := q.GetDebt(ctx, userID, id)
		if err != nil {
			return err
		}
		if d.Status != core.DebtActive {
			return core.ErrDebtClosed
		}
		d.Status = core.DebtCancelled
		updated = d
		return q.UpdateDebt(ctx, d)
	})
	if err != nil {
		return DebtView{}, err
	}
	return s.view(ctx, s.store.Queries(), updated)
}

func (s *DebtService) DeleteDebt(ctx context.Context, userID, id int64) error {
	return s.store.Queries().DeleteDebt(ctx, userID, id)
}

func (s *DebtService) GetDebt(ctx context.Context, userID, id int64) (DebtView, error) {
	q := s.store.Queries()
	d, err := q.GetDebt(ctx, userID, id)
	if err != nil {
		return DebtView{}, err
	}
	return s.view(ctx, q, d)
}

func (s *DebtService) ListDebts(ctx context.Context, userID int64, status core.DebtStatus) ([]DebtView, error) {
	q := s.store.Queries()
	debts, err := q.ListDebts(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	out := make([]DebtView, 0, len(debts))
	for _, d := range debts {
		v, err := s.view(ctx, q, d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *DebtService) Payments(ctx context.Context, userID, id int64) ([]core.DebtPayment, error) {
	q := s.store.Queries()
	if _, err := q.GetDebt(ctx, userID, id); err != nil {
		return nil, err
	}
	return q.ListDebtPayments(ctx, id)
}

// Upcoming lists the installments of active debts due within the next days.
func (s *DebtService) Upcoming(ctx context.Context, userID int64, days int) ([]UpcomingPayment, error) {
	today := s.clock.today()
	debts, err := s.store.Queries().ListDebts(ctx, userID, core.DebtActive)
	if err != nil {
		return nil, err
	}
	var out []UpcomingPayment
	for _, d := range debts {
		due := d.NextDueDate(today)
		left := due.DaysSince(today)
		if left > days {
			continue
		}
		out = append(out, UpcomingPayment{
			DebtID:   d.ID,
			Creditor: d.Creditor,
			Amount:   d.MonthlyPayment,
			DueDate:  due,
			DaysLeft: left,
		})
	}
	return out, nil
}

func (s *DebtService) view(ctx context.Context, q *storage.Queries, d core.Debt) (DebtView, error) {
	v := DebtView{Debt: d, DebtFigures: d.Figures()}
	if d.Status == core.DebtActive {
		v.NextDueDate = d.NextDueDate(s.clock.today())
	}
	n, err := q.CountDebtPayments(ctx, d.ID)
	if err != nil {
		return v, err
	}
	v.PaymentsCount = n
	return v, nil
}

// debtStatus settles Active and Paid from the payments; Cancelled sticks.
func debtStatus(d core.Debt) core.DebtStatus {
	if d.Status == core.DebtCancelled {
		return d.Status
	}
	if d.IsPaidOff() {
		return core.DebtPaid
	}
	return core.DebtActive
}
