package core

import "github.com/shopspring/decimal"

// TrendDirection classifies a month against the one before it.
type TrendDirection string

const (
	TrendIncrease TrendDirection = "increase"
	TrendDecrease TrendDirection = "decrease"
	TrendStable   TrendDirection = "stable"
)

// UncategorizedID and UncategorizedName label the bucket holding expenses
// without a category.
const (
	UncategorizedID   int64 = 0
	UncategorizedName       = "Sin categoría"
)

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID int64           `json:"category_id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MonthTotals is the income/expense summary of one calendar month.
type MonthTotals struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// TrendPoint is one month of a category spending trend.
type TrendPoint struct {
	Month            string              `json:"month"`
	Amount           decimal.Decimal     `json:"amount"`
	ChangePercentage decimal.NullDecimal `json:"change_percentage"`
	VsPrevious       TrendDirection      `json:"vs_previous"`
}

// ClassifyChange compares a month with the previous one. The change is only
// defined when the previous month had spending; a move from zero to positive
// spending is an increase, and a month without spending is stable.
func ClassifyChange(previous, current decimal.Decimal, first bool) (decimal.NullDecimal, TrendDirection) {
	if first || current.IsZero() {
		return decimal.NullDecimal{}, TrendStable
	}
	if !previous.IsPositive() {
		if current.IsPositive() {
			return decimal.NullDecimal{}, TrendIncrease
		}
		return decimal.NullDecimal{}, TrendStable
	}
	pct := current.Sub(previous).Div(previous).Mul(hundred).Round(2)
	dir := TrendStable
	switch {
	case pct.GreaterThan(decimal.NewFromInt(1)):
		dir = TrendIncrease
	case pct.LessThan(decimal.NewFromInt(-1)):
		dir = TrendDecrease
	}
	return decimal.NewNullDecimal(pct), dir
}

// PercentChange is the period-over-period change, zero when the previous
// period is zero.
func PercentChange(previous, current decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous.Abs()).Mul(hundred).Round(2)
}
