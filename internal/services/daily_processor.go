package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Outcome of one entity in a daily run.
type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeErrored   Outcome = "errored"
)

// DailyOptions configures a daily run. A zero Today means the clock's day;
// an empty Type processes both income and expense templates.
type DailyOptions struct {
	Today  core.Date
	DryRun bool
	Type   core.TxType
}

// DailyEntry reports what happened to one template or policy.
type DailyEntry struct {
	Entity        string          `json:"entity"`
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Name          string          `json:"name"`
	Outcome       Outcome         `json:"outcome"`
	TransactionID int64           `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Matured       bool            `json:"matured,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// DailyReport summarizes a run.
type DailyReport struct {
	RunID     string       `json:"run_id"`
	Date      core.Date    `json:"date"`
	DryRun    bool         `json:"dry_run"`
	Entries   []DailyEntry `json:"entries"`
	Generated int          `json:"generated"`
	Skipped   int          `json:"skipped"`
	Errored   int          `json:"errored"`
	Duration  string       `json:"duration"`
}

func (r *DailyReport) add(e DailyEntry) {
	switch e.Outcome {
	case OutcomeGenerated:
		r.Generated++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeErrored:
		r.Errored++
	}
	r.Entries = append(r.Entries, e)
}

// DailyProcessor is the batch that turns due recurring templates and
// insurance returns into transactions. Each entity is handled on its own: a
// failure is logged, counted and does not stop the run.
type DailyProcessor struct {
	store       Store
	clock       Clock
	recurring   *RecurringService
	investments *InvestmentService
}

func NewDailyProcessor(store Store, clock Clock, recurring *RecurringService, investments *InvestmentService) *DailyProcessor {
	return &DailyProcessor{store: store, clock: clock, recurring: recurring, investments: investments}
}

// RunDaily evaluates every active template and insurance policy for the day.
// Running it twice on the same day generates nothing the second time.
func (p *DailyProcessor) RunDaily(ctx context.Context, opts DailyOptions) (*DailyReport, error) {
	if opts.Type != "" && !opts.Type.Valid() {
		return nil, core.ErrInvalidTxType
	}
	today := opts.Today
	if today.IsZero() {
		today = p.clock.today()
	}
	start := time.Now()
	report := &DailyReport{RunID: uuid.NewString(), Date: today, DryRun: opts.DryRun}
	log := slog.With("run_id", report.RunID, "date", today.String(), "dry_run", opts.DryRun)

	templates, err := p.store.Queries().ListActiveRecurring(ctx, opts.Type)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	log.InfoContext(ctx, "Processing recurring transactions", "total_active", len(templates))

	for _, rt := range templates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.add(p.processTemplate(ctx, log, rt, today, opts.DryRun))
	}

	if opts.Type == "" || opts.Type == core.Income {
		policies, err := p.store.Queries().ListActiveInsurance(ctx)
		if err != nil {
			return nil, fmt.Errorf("list insurance policies: %w", err)
		}
		log.InfoContext(ctx, "Processing insurance returns", "total_active", len(policies))
		for _, inv := range policies {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.add(p.processPolicy(ctx, log, inv, today, opts.DryRun))
		}
	}

	report.Duration = time.Since(start).Round(time.Millisecond).String()
	log.InfoContext(ctx, "Daily processing complete",
		"generated", report.Generated, "skipped", report.Skipped, "errored", report.Errored, "duration", report.Duration)
	return report, nil
}

func (p *DailyProcessor) processTemplate(ctx context.Context, log *slog.Logger, rt core.RecurringTransaction, today core.Date, dryRun bool) (entry DailyEntry) {
	entry = DailyEntry{Entity: "recurring", ID: rt.ID, UserID: rt.UserID, Name: rt.Name, Amount: rt.Amount, Outcome: OutcomeSkipped}
	defer recoverEntry(ctx, log, &entry)

	if !ShouldGenerate(rt, today) {
		return entry
	}
	if dryRun {
		entry.Outcome = OutcomeGenerated
		return entry
	}
	gen, err := p.recurring.GenerateIfDue(ctx, rt, today)
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate recurring transaction",
			"recurring_id", rt.ID, "kind", core.KindOf(err), "error", err)
		entry.Outcome, entry.Error = OutcomeErrored, err.Error()
		return entry
	}
	if gen.Generated {
		entry.Outcome, entry.TransactionID = OutcomeGenerated, gen.TransactionID
	}
	return entry
}

func (p *DailyProcessor) processPolicy(ctx context.Context, log *slog.Logger, inv core.Investment, today core.Date, dryRun bool) (entry DailyEntry) {
	entry = DailyEntry{Entity: "investment", ID: inv.ID, UserID: inv.UserID, Name: inv.Name, Outcome: OutcomeSkipped}
	defer recoverEntry(ctx, log, &entry)

	out, err := p.investments.ApplyMonthlyReturn(ctx, inv.UserID, inv.ID, today, dryRun)
	if err != nil {
		log.ErrorContext(ctx, "Failed to apply investment return",
			"investment_id", inv.ID, "kind", core.KindOf(err), "error", err)
		entry.Outcome, entry.Error = OutcomeErrored, err.Error()
		return entry
	}
	entry.Matured = out.Matured
	entry.Amount = out.Amount
	if !out.Skipped && !out.Matured {
		entry.Outcome, entry.TransactionID = OutcomeGenerated, out.TransactionID
	}
	return entry
}

// recoverEntry turns a panic while handling one entity into an errored entry.
func recoverEntry(ctx context.Context, log *slog.Logger, entry *DailyEntry) {
	if r := recover(); r != nil {
		log.ErrorContext(ctx, "Panic while processing entity", "entity", entry.Entity, "id", entry.ID, "panic", r)
		entry.Outcome, entry.Error = OutcomeErrored, fmt.Sprint(r)
	}
}
