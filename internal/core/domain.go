package core

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	TxType           string
	AccountType      string
	BudgetStatus     string
	GoalStatus       string
	InvestmentType   string
	InvestmentStatus string
	MovementType     string
	InterestType     string
	DebtStatus       string
	Frequency        string
)

const (
	Income  TxType = "Income"
	Expense TxType = "Expense"

	AccountBank       AccountType = "bank"
	AccountCash       AccountType = "cash"
	AccountCard       AccountType = "card"
	AccountInvestment AccountType = "investment"

	BudgetActive   BudgetStatus = "Active"
	BudgetPaused   BudgetStatus = "Paused"
	BudgetArchived BudgetStatus = "Archived"

	GoalInProgress GoalStatus = "In Progress"
	GoalCompleted  GoalStatus = "Completed"
	GoalCancelled  GoalStatus = "Cancelled"

	InvestmentGoal      InvestmentType = "goal"
	InvestmentInsurance InvestmentType = "insurance"

	InvestmentActive    InvestmentStatus = "active"
	InvestmentCompleted InvestmentStatus = "completed"
	InvestmentMatured   InvestmentStatus = "matured"
	InvestmentCancelled InvestmentStatus = "cancelled"

	MovementContribution MovementType = "contribution"
	MovementWithdrawal   MovementType = "withdrawal"
	MovementReturn       MovementType = "return"
	MovementMaturity     MovementType = "maturity"

	InterestSimple    InterestType = "simple"
	InterestAmortized InterestType = "amortized"

	DebtActive    DebtStatus = "Active"
	DebtPaid      DebtStatus = "Paid"
	DebtCancelled DebtStatus = "Cancelled"

	Monthly  Frequency = "monthly"
	Biweekly Frequency = "biweekly"
	Weekly   Frequency = "weekly"
)

const (
	DefaultAccountColor = "#667eea"
	DefaultCurrency     = "USD"
	maxDescriptionLen   = 255
	maxNameLen          = 100
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (t TxType) Valid() bool { return t == Income || t == Expense }

// ParseTxType accepts the type name in any letter case.
func ParseTxType(s string) (TxType, error) {
	switch strings.ToLower(s) {
	case "income":
		return Income, nil
	case "expense":
		return Expense, nil
	}
	return "", ErrInvalidTxType
}

// Signed returns amount with the sign of its effect on a balance.
func (t TxType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == Expense {
		return amount.Neg()
	}
	return amount
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCash, AccountCard, AccountInvestment:
		return true
	}
	return false
}

func (s BudgetStatus) Valid() bool {
	return s == BudgetActive || s == BudgetPaused || s == BudgetArchived
}

func (f Frequency) Valid() bool {
	return f == Monthly || f == Biweekly || f == Weekly
}

// DayOfPeriodRange is the inclusive range of day_of_period for f.
func (f Frequency) DayOfPeriodRange() (lo, hi int) {
	switch f {
	case Monthly:
		return 1, 31
	case Biweekly:
		return 1, 15
	case Weekly:
		return 1, 7
	}
	return 0, 0
}

type (
	User struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}

	Account struct {
		ID             int64           `json:"id"`
		UserID         int64           `json:"user_id"`
		Name           string          `json:"name"`
		Type           AccountType     `json:"type"`
		InitialBalance decimal.Decimal `json:"initial_balance"`
		Balance        decimal.Decimal `json:"balance"`
		Currency       string          `json:"currency"`
		Color          string          `json:"color"`
		CreatedAt      time.Time       `json:"created_at"`

		CommittedToGoals decimal.Decimal `json:"committed_to_goals"`
		AvailableBalance decimal.Decimal `json:"available_balance"`
	}

	// BalanceAdjustment is a direct correction of an account balance that is
	// not backed by a transaction or transfer.
	BalanceAdjustment struct {
		ID        int64           `json:"id"`
		AccountID int64           `json:"account_id"`
		Delta     decimal.Decimal `json:"delta"`
		Reason    string          `json:"reason"`
		CreatedAt time.Time       `json:"created_at"`
	}

	// Category with UserID 0 is a global default.
	Category struct {
		ID     int64  `json:"id"`
		UserID int64  `json:"user_id,omitempty"`
		Name   string `json:"name"`
		Type   TxType `json:"type"`
		Icon   string `json:"icon,omitempty"`
	}

	// Transaction amounts are never negative; Type decides the sign.
	Transaction struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"user_id"`
		AccountID   int64           `json:"account_id"`
		CategoryID  int64           `json:"category_id,omitempty"`
		RecurringID int64           `json:"recurring_id,omitempty"`
		Type        TxType          `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	Transfer struct {
		ID            int64           `json:"id"`
		UserID        int64           `json:"user_id"`
		FromAccountID int64           `json:"from_account_id"`
		ToAccountID   int64           `json:"to_account_id"`
		Amount        decimal.Decimal `json:"amount"`
		Date          Date            `json:"date"`
		Description   string          `json:"description,omitempty"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	Budget struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"user_id"`
		CategoryID  int64           `json:"category_id"`
		Amount      decimal.Decimal `json:"amount"`
		PeriodStart Date            `json:"period_start"`
		PeriodEnd   Date            `json:"period_end"`
		IsRecurring bool            `json:"is_recurring"`
		Status      BudgetStatus    `json:"status"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	BudgetHistory struct {
		ID                int64           `json:"id"`
		BudgetID          int64           `json:"budget_id"`
		PreviousAmount    decimal.Decimal `json:"previous_amount"`
		NewAmount         decimal.Decimal `json:"new_amount"`
		PreviousPeriodEnd Date            `json:"previous_period_end"`
		NewPeriodEnd      Date            `json:"new_period_end"`
		ChangeReason      string          `json:"change_reason"`
		ChangedBy         int64           `json:"changed_by"`
		ChangedAt         time.Time       `json:"changed_at"`
	}

	// Goal is the legacy savings goal kept alongside Investment.
	Goal struct {
		ID        int64           `json:"id"`
		UserID    int64           `json:"user_id"`
		AccountID int64           `json:"account_id,omitempty"`
		Name      string          `json:"name"`
		Target    decimal.Decimal `json:"target_amount"`
		Current   decimal.Decimal `json:"current_amount"`
		Deadline  Date            `json:"deadline"`
		Status    GoalStatus      `json:"status"`
		CreatedAt time.Time       `json:"created_at"`
	}

	// Investment is either a target-driven savings goal or a rate-driven
	// insurance policy. A zero TargetAmount or ExpectedReturnRate means unset.
	Investment struct {
		ID                 int64            `json:"id"`
		UserID             int64            `json:"user_id"`
		Type               InvestmentType   `json:"type"`
		Name               string           `json:"name"`
		AccountID          int64            `json:"account_id,omitempty"`
		InitialAmount      decimal.Decimal  `json:"initial_amount"`
		CurrentAmount      decimal.Decimal  `json:"current_amount"`
		TargetAmount       decimal.Decimal  `json:"target_amount"`
		PolicyNumber       string           `json:"policy_number,omitempty"`
		Institution        string           `json:"institution,omitempty"`
		ExpectedReturnRate decimal.Decimal  `json:"expected_return_rate"`
		MaturityTermMonths int              `json:"maturity_term_months,omitempty"`
		MaturityDate       Date             `json:"maturity_date"`
		StartDate          Date             `json:"start_date"`
		Deadline           Date             `json:"deadline"`
		Status             InvestmentStatus `json:"status"`
		Notes              string           `json:"notes,omitempty"`
		LastReturnDate     Date             `json:"last_return_date"`
		CreatedAt          time.Time        `json:"created_at"`
		UpdatedAt          time.Time        `json:"updated_at"`
	}

	// InvestmentTransaction records one movement of an investment. Whenever
	// Amount is non-zero TransactionID points at the ledger row it produced.
	InvestmentTransaction struct {
		ID            int64           `json:"id"`
		InvestmentID  int64           `json:"investment_id"`
		Type          MovementType    `json:"type"`
		Amount        decimal.Decimal `json:"amount"`
		Date          Date            `json:"date"`
		AccountID     int64           `json:"account_id,omitempty"`
		TransactionID int64           `json:"transaction_id,omitempty"`
		Notes         string          `json:"notes,omitempty"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	Debt struct {
		ID             int64           `json:"id"`
		UserID         int64           `json:"user_id"`
		Creditor       string          `json:"creditor"`
		Principal      decimal.Decimal `json:"principal"`
		InterestRate   decimal.Decimal `json:"interest_rate"`
		InterestType   InterestType    `json:"interest_type"`
		TermMonths     int             `json:"term_months"`
		MonthlyPayment decimal.Decimal `json:"monthly_payment"`
		AmountPaid     decimal.Decimal `json:"amount_paid"`
		StartDate      Date            `json:"start_date"`
		Status         DebtStatus      `json:"status"`
		Notes          string          `json:"notes,omitempty"`
		CreatedAt      time.Time       `json:"created_at"`
		UpdatedAt      time.Time       `json:"updated_at"`
	}

	DebtPayment struct {
		ID            int64           `json:"id"`
		DebtID        int64           `json:"debt_id"`
		AccountID     int64           `json:"account_id"`
		TransactionID int64           `json:"transaction_id"`
		Amount        decimal.Decimal `json:"amount"`
		Date          Date            `json:"date"`
		Notes         string          `json:"notes,omitempty"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	// RecurringTransaction is a template producing real transactions on a
	// schedule. LastGeneratedDate is the watermark against double generation.
	RecurringTransaction struct {
		ID                int64           `json:"id"`
		UserID            int64           `json:"user_id"`
		Name              string          `json:"name"`
		Type              TxType          `json:"transaction_type"`
		Amount            decimal.Decimal `json:"amount"`
		Frequency         Frequency       `json:"frequency"`
		DayOfPeriod       int             `json:"day_of_period"`
		AccountID         int64           `json:"account_id"`
		CategoryID        int64           `json:"category_id,omitempty"`
		StartDate         Date            `json:"start_date"`
		EndDate           Date            `json:"end_date"`
		IsActive          bool            `json:"is_active"`
		Notes             string          `json:"notes,omitempty"`
		LastGeneratedDate Date            `json:"last_generated_date"`
		CreatedAt         time.Time       `json:"created_at"`
		UpdatedAt         time.Time       `json:"updated_at"`
	}
)

func validName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLen {
		return Validationf("name too long (max %d characters)", maxNameLen)
	}
	return nil
}

func validDescription(desc string) error {
	if len(desc) > maxDescriptionLen {
		return Validationf("description too long (max %d characters)", maxDescriptionLen)
	}
	return nil
}

func validRange(start, end Date) error {
	if err := start.Validate(); err != nil {
		return err
	}
	if !end.IsZero() && end.Before(start) {
		return ErrInvalidDateRange
	}
	return nil
}

func (a Account) Validate() error {
	if err := validName(a.Name); err != nil {
		return err
	}
	if !a.Type.Valid() {
		return Validationf("invalid account type %q", a.Type)
	}
	if _, err := NormalizeCurrency(a.Currency); err != nil {
		return err
	}
	if a.Color != "" && !hexColor.MatchString(a.Color) {
		return ErrInvalidColor
	}
	return nil
}

func (c Category) Validate() error {
	if err := validName(c.Name); err != nil {
		return err
	}
	if !c.Type.Valid() {
		return ErrInvalidTxType
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidTxType
	}
	if err := RequirePositive(t.Amount); err != nil {
		return err
	}
	if t.AccountID <= 0 {
		return ErrAccountNotFound
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return validDescription(t.Description)
}

func (t Transfer) Validate() error {
	if err := RequirePositive(t.Amount); err != nil {
		return err
	}
	if t.FromAccountID == t.ToAccountID {
		return ErrSameAccount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return validDescription(t.Description)
}

func (b Budget) Validate() error {
	if b.CategoryID <= 0 {
		return ErrCategoryNotFound
	}
	if err := RequirePositive(b.Amount); err != nil {
		return err
	}
	if !b.Status.Valid() {
		return Validationf("invalid budget status %q", b.Status)
	}
	return validRange(b.PeriodStart, b.PeriodEnd)
}

func (g Goal) Validate() error {
	if err := validName(g.Name); err != nil {
		return err
	}
	if err := RequirePositive(g.Target); err != nil {
		return err
	}
	if g.Current.IsNegative() {
		return Validationf("current amount cannot be negative")
	}
	return nil
}

// Validate checks the fields every investment needs plus the ones its type
// requires: a target for goals, a positive initial amount, a rate and a
// maturity term or date for insurance.
func (inv Investment) Validate() error {
	if err := validName(inv.Name); err != nil {
		return err
	}
	if inv.InitialAmount.IsNegative() {
		return Validationf("initial amount cannot be negative")
	}
	if err := inv.StartDate.Validate(); err != nil {
		return err
	}
	switch inv.Type {
	case InvestmentGoal:
		if !inv.TargetAmount.IsPositive() {
			return Validationf("goal investments require a target amount")
		}
	case InvestmentInsurance:
		if !inv.InitialAmount.IsPositive() {
			return Validationf("insurance investments require a positive initial amount")
		}
		if !inv.ExpectedReturnRate.IsPositive() {
			return Validationf("insurance investments require an expected return rate")
		}
		if inv.MaturityTermMonths <= 0 && inv.MaturityDate.IsZero() {
			return Validationf("insurance investments require a maturity term or date")
		}
		if !inv.MaturityDate.IsZero() && inv.MaturityDate.Before(inv.StartDate) {
			return ErrInvalidDateRange
		}
	default:
		return Validationf("invalid investment type %q", inv.Type)
	}
	return nil
}

func (d Debt) Validate() error {
	if err := validName(d.Creditor); err != nil {
		return err
	}
	if err := RequirePositive(d.Principal); err != nil {
		return err
	}
	if d.InterestRate.IsNegative() {
		return ErrInvalidRate
	}
	if d.TermMonths < 1 {
		return ErrInvalidTerm
	}
	if d.InterestType != InterestSimple && d.InterestType != InterestAmortized {
		return Validationf("invalid interest type %q", d.InterestType)
	}
	return d.StartDate.Validate()
}

func (r RecurringTransaction) Validate() error {
	if err := validName(r.Name); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return ErrInvalidTxType
	}
	if err := RequirePositive(r.Amount); err != nil {
		return err
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if lo, hi := r.Frequency.DayOfPeriodRange(); r.DayOfPeriod < lo || r.DayOfPeriod > hi {
		return Detail(ErrInvalidDayOfPeriod, "%s requires a day between %d and %d", r.Frequency, lo, hi)
	}
	if r.AccountID <= 0 {
		return ErrAccountNotFound
	}
	return validRange(r.StartDate, r.EndDate)
}
