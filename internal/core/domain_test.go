package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		AccountID:   1,
		Type:        Expense,
		Amount:      dec("10.50"),
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{AccountID: 1, Type: "Refund", Amount: dec("1"), Date: NewDate(2025, 1, 1)},
		{AccountID: 1, Type: Income, Amount: dec("0"), Date: NewDate(2025, 1, 1)},
		{AccountID: 1, Type: Income, Amount: dec("-5"), Date: NewDate(2025, 1, 1)},
		{AccountID: 0, Type: Income, Amount: dec("1"), Date: NewDate(2025, 1, 1)},
		{AccountID: 1, Type: Income, Amount: dec("1")},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransferValidate(t *testing.T) {
	tr := Transfer{FromAccountID: 2, ToAccountID: 2, Amount: dec("5"), Date: NewDate(2025, 1, 1)}
	if err := tr.Validate(); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
}

func TestRecurringValidateDayOfPeriod(t *testing.T) {
	base := RecurringTransaction{
		Name:      "Rent",
		Type:      Expense,
		Amount:    dec("900"),
		AccountID: 1,
		StartDate: NewDate(2025, 1, 1),
	}
	cases := []struct {
		freq Frequency
		day  int
		ok   bool
	}{
		{Monthly, 1, true},
		{Monthly, 31, true},
		{Monthly, 32, false},
		{Biweekly, 15, true},
		{Biweekly, 16, false},
		{Weekly, 7, true},
		{Weekly, 8, false},
		{Weekly, 0, false},
		{"daily", 1, false},
	}
	for _, tc := range cases {
		r := base
		r.Frequency, r.DayOfPeriod = tc.freq, tc.day
		err := r.Validate()
		if tc.ok != (err == nil) {
			t.Fatalf("%s day %d: ok=%v, err=%v", tc.freq, tc.day, tc.ok, err)
		}
		if !tc.ok && !errors.Is(err, ErrValidation) {
			t.Fatalf("%s day %d: expected validation kind, got %v", tc.freq, tc.day, err)
		}
	}

	r := base
	r.Frequency, r.DayOfPeriod = Monthly, 5
	r.EndDate = NewDate(2024, 12, 31)
	if err := r.Validate(); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestInvestmentValidate(t *testing.T) {
	start := NewDate(2025, 1, 15)
	cases := []struct {
		name string
		inv  Investment
		ok   bool
	}{
		{"goal with target", Investment{Type: InvestmentGoal, Name: "Trip", TargetAmount: dec("1000"), StartDate: start}, true},
		{"goal without target", Investment{Type: InvestmentGoal, Name: "Trip", StartDate: start}, false},
		{"insurance complete", Investment{Type: InvestmentInsurance, Name: "Policy", InitialAmount: dec("5000"), ExpectedReturnRate: dec("6"), MaturityTermMonths: 24, StartDate: start}, true},
		{"insurance with date", Investment{Type: InvestmentInsurance, Name: "Policy", InitialAmount: dec("5000"), ExpectedReturnRate: dec("6"), MaturityDate: NewDate(2030, 1, 15), StartDate: start}, true},
		{"insurance no rate", Investment{Type: InvestmentInsurance, Name: "Policy", InitialAmount: dec("5000"), MaturityTermMonths: 24, StartDate: start}, false},
		{"insurance no maturity", Investment{Type: InvestmentInsurance, Name: "Policy", InitialAmount: dec("5000"), ExpectedReturnRate: dec("6"), StartDate: start}, false},
		{"insurance zero initial", Investment{Type: InvestmentInsurance, Name: "Policy", ExpectedReturnRate: dec("6"), MaturityTermMonths: 12, StartDate: start}, false},
		{"unknown type", Investment{Type: "stocks", Name: "X", StartDate: start}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.inv.Validate()
			if tc.ok != (err == nil) {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestAccountValidate(t *testing.T) {
	a := Account{Name: "Main", Type: AccountBank, Currency: "MXN", Color: "#667eea"}
	if err := a.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	a.Color = "blue"
	if err := a.Validate(); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
	a.Color, a.Currency = "", "pesos"
	if err := a.Validate(); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestTxTypeSigned(t *testing.T) {
	if got := Expense.Signed(dec("20")); !got.Equal(dec("-20")) {
		t.Fatalf("Expense.Signed = %s", got)
	}
	if got := Income.Signed(dec("20")); !got.Equal(dec("20")) {
		t.Fatalf("Income.Signed = %s", got)
	}
}

func TestParseTxType(t *testing.T) {
	tests := []struct {
		in      string
		want    TxType
		wantErr bool
	}{
		{"Income", Income, false},
		{"expense", Expense, false},
		{"EXPENSE", Expense, false},
		{"transfer", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTxType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTxType) {
					t.Errorf("ParseTxType(%q) error = %v, want ErrInvalidTxType", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseTxType(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
			}
		})
	}
}
