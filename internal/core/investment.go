package core

import "github.com/shopspring/decimal"

// InvestmentFigures are the read-side values derived from an Investment row.
type InvestmentFigures struct {
	ProgressPercentage  decimal.Decimal `json:"progress_percentage"`
	ProjectedReturn     decimal.Decimal `json:"projected_return"`
	ProjectedFinalValue decimal.Decimal `json:"projected_final_value"`
}

func (inv Investment) Figures() InvestmentFigures {
	var f InvestmentFigures
	if inv.Type == InvestmentGoal && inv.TargetAmount.IsPositive() {
		f.ProgressPercentage = Percent(inv.CurrentAmount, inv.TargetAmount)
	}
	if inv.ExpectedReturnRate.IsPositive() && inv.InitialAmount.IsPositive() {
		years := decimal.NewFromInt(1)
		if inv.MaturityTermMonths > 0 {
			years = decimal.NewFromInt(int64(inv.MaturityTermMonths)).Div(twelve)
		}
		f.ProjectedReturn = Round2(inv.InitialAmount.Mul(inv.ExpectedReturnRate).Div(hundred).Mul(years))
	}
	f.ProjectedFinalValue = inv.InitialAmount.Add(f.ProjectedReturn)
	return f
}

// MonthlyReturn is current * rate/100/12, rounded to cents. It compounds on
// the running amount, not the original principal.
func (inv Investment) MonthlyReturn() decimal.Decimal {
	return Round2(inv.CurrentAmount.Mul(inv.ExpectedReturnRate).Div(hundred).Div(twelve))
}

// EffectiveMaturity is the maturity date, or start plus the term when only a
// term is known.
func (inv Investment) EffectiveMaturity() Date {
	if !inv.MaturityDate.IsZero() || inv.MaturityTermMonths <= 0 {
		return inv.MaturityDate
	}
	return NewDate(inv.StartDate.Year(), inv.StartDate.Month()+inv.MaturityTermMonths, 1).WithDayClamped(inv.StartDate.Day())
}

// ReturnDue decides whether an insurance policy earns its monthly return
// today. matured is true when today is past maturity and the policy should
// transition to InvestmentMatured instead.
func (inv Investment) ReturnDue(today Date) (due, matured bool) {
	if inv.Type != InvestmentInsurance || inv.Status != InvestmentActive {
		return false, false
	}
	if !inv.ExpectedReturnRate.IsPositive() {
		return false, false
	}
	if today.Before(inv.StartDate) {
		return false, false
	}
	if m := inv.EffectiveMaturity(); !m.IsZero() && today.After(m) {
		return false, true
	}
	if !inv.LastReturnDate.IsZero() && inv.LastReturnDate.Equal(today) {
		return false, false
	}
	return today.Day() == inv.StartDate.Day(), false
}

// IsCommitted reports whether the investment's current amount counts as
// reserved money in its linked account's available balance.
func (inv Investment) IsCommitted() bool {
	return inv.Type == InvestmentGoal && inv.Status == InvestmentActive && inv.AccountID != 0
}
