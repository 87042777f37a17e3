package core

import "testing"

func TestMonthlyPayment(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		term      int
		kind      InterestType
		want      string
	}{
		{"amortized zero rate", "1200", "0", 12, InterestAmortized, "100"},
		{"amortized 12 percent", "10000", "12", 12, InterestAmortized, "888.49"},
		{"simple", "1200", "10", 12, InterestSimple, "110"},
		{"simple zero rate", "600", "0", 6, InterestSimple, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthlyPayment(dec(tt.principal), dec(tt.rate), tt.term, tt.kind)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("MonthlyPayment() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDebtFigures(t *testing.T) {
	d := Debt{
		Principal:    dec("1200"),
		InterestRate: dec("10"),
		InterestType: InterestSimple,
		TermMonths:   12,
		AmountPaid:   dec("330"),
	}
	d.MonthlyPayment = MonthlyPayment(d.Principal, d.InterestRate, d.TermMonths, d.InterestType)
	f := d.Figures()
	if !f.TotalInterest.Equal(dec("120")) {
		t.Fatalf("TotalInterest = %s", f.TotalInterest)
	}
	if !f.TotalAmount.Equal(dec("1320")) || !f.RemainingBalance.Equal(dec("990")) {
		t.Fatalf("TotalAmount = %s, Remaining = %s", f.TotalAmount, f.RemainingBalance)
	}
	if !f.PaymentProgress.Equal(dec("25")) {
		t.Fatalf("PaymentProgress = %s", f.PaymentProgress)
	}

	amortized := Debt{Principal: dec("10000"), InterestRate: dec("12"), InterestType: InterestAmortized, TermMonths: 12}
	amortized.MonthlyPayment = MonthlyPayment(amortized.Principal, amortized.InterestRate, 12, InterestAmortized)
	if got := amortized.InterestTotal(); !got.Equal(dec("661.88")) {
		t.Fatalf("amortized InterestTotal = %s, want 661.88", got)
	}
}

func TestDebtIsPaidOff(t *testing.T) {
	d := Debt{Principal: dec("1200"), InterestRate: dec("0"), InterestType: InterestAmortized, TermMonths: 12, MonthlyPayment: dec("100")}
	d.AmountPaid = dec("1199.99")
	if d.IsPaidOff() {
		t.Fatalf("one cent short is not paid off")
	}
	d.AmountPaid = dec("1200")
	if !d.IsPaidOff() {
		t.Fatalf("exact total is paid off")
	}
}

func TestDebtNextDueDate(t *testing.T) {
	d := Debt{StartDate: NewDate(2025, 1, 31)}
	tests := []struct {
		today, want Date
	}{
		{NewDate(2025, 2, 10), NewDate(2025, 2, 28)},
		{NewDate(2025, 3, 31), NewDate(2025, 3, 31)},
		{NewDate(2025, 4, 1), NewDate(2025, 4, 30)},
		{NewDate(2024, 12, 1), NewDate(2025, 1, 31)},
	}
	for _, tt := range tests {
		if got := d.NextDueDate(tt.today); !got.Equal(tt.want) {
			t.Errorf("NextDueDate(%s) = %s, want %s", tt.today, got, tt.want)
		}
	}
}
