package core

import "github.com/shopspring/decimal"

var twelve = decimal.NewFromInt(12)

// MonthlyPayment computes the level monthly payment of a debt.
//
// simple:    (P + P*rate/100*n/12) / n
// amortized: P*r*(1+r)^n / ((1+r)^n - 1) with r = rate/100/12, or P/n when
// the rate is zero.
func MonthlyPayment(principal, annualRate decimal.Decimal, termMonths int, it InterestType) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(termMonths))
	if it == InterestSimple {
		interest := SimpleInterest(principal, annualRate, termMonths)
		return Round2(principal.Add(interest).Div(n))
	}
	if annualRate.IsZero() {
		return Round2(principal.Div(n))
	}
	r := annualRate.Div(hundred).Div(twelve)
	growth := decimal.NewFromInt(1).Add(r).Pow(n)
	return Round2(principal.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1))))
}

// SimpleInterest is P * rate/100 * months/12.
func SimpleInterest(principal, annualRate decimal.Decimal, termMonths int) decimal.Decimal {
	return principal.Mul(annualRate).Div(hundred).Mul(decimal.NewFromInt(int64(termMonths))).Div(twelve)
}

// DebtFigures are the read-side values derived from a Debt row.
type DebtFigures struct {
	TotalInterest    decimal.Decimal `json:"total_interest"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	PaymentProgress  decimal.Decimal `json:"payment_progress"`
}

func (d Debt) InterestTotal() decimal.Decimal {
	if d.InterestType == InterestSimple {
		return Round2(SimpleInterest(d.Principal, d.InterestRate, d.TermMonths))
	}
	payment := d.MonthlyPayment
	if payment.IsZero() {
		payment = MonthlyPayment(d.Principal, d.InterestRate, d.TermMonths, d.InterestType)
	}
	return payment.Mul(decimal.NewFromInt(int64(d.TermMonths))).Sub(d.Principal)
}

func (d Debt) Figures() DebtFigures {
	interest := d.InterestTotal()
	total := d.Principal.Add(interest)
	f := DebtFigures{
		TotalInterest:    interest,
		TotalAmount:      total,
		RemainingBalance: total.Sub(d.AmountPaid),
	}
	if total.IsPositive() {
		f.PaymentProgress = Percent(d.AmountPaid, total)
	}
	return f
}

// IsPaidOff reports whether cumulative payments cover the total amount.
func (d Debt) IsPaidOff() bool {
	return !d.Figures().RemainingBalance.IsPositive()
}

// NextDueDate returns the first payment date on or after today, taking the
// start date's day of month as the due day and clamping it in short months.
func (d Debt) NextDueDate(today Date) Date {
	due := today.WithDayClamped(d.StartDate.Day())
	if due.Before(today) {
		due = today.AddMonths(1).WithDayClamped(d.StartDate.Day())
	}
	if due.Before(d.StartDate) {
		return d.StartDate
	}
	return due
}
