package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"budget/internal/core"
	"budget/internal/services"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed)
	faint  = color.New(color.Faint)
)

func printSuccess(format string, args ...any) {
	green.Printf("  → %s\n", fmt.Sprintf(format, args...))
}

func printHeader(text string) {
	line := strings.Repeat("=", 60)
	green.Printf("\n%s\n%s\n%s\n\n", line, text, line)
}

// printReport renders one line per entity and a colored summary.
func printReport(r *services.DailyReport, verbose bool) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	printHeader(fmt.Sprintf("Daily run %s%s", r.Date, mode))

	for _, e := range r.Entries {
		if e.Outcome == services.OutcomeSkipped && !verbose {
			continue
		}
		label := fmt.Sprintf("%-9s %-10s #%-5d %-28s %12s", e.Outcome, e.Entity, e.ID, e.Name, core.FormatAmount(e.Amount, core.DefaultCurrency))
		switch e.Outcome {
		case services.OutcomeGenerated:
			if e.Matured {
				label += "  matured"
			}
			green.Println(label)
		case services.OutcomeErrored:
			red.Printf("%s  %s\n", label, e.Error)
		default:
			faint.Println(label)
		}
	}

	fmt.Println()
	green.Printf("generated: %d  ", r.Generated)
	fmt.Printf("skipped: %d  ", r.Skipped)
	if r.Errored > 0 {
		red.Printf("errored: %d", r.Errored)
	} else {
		fmt.Printf("errored: %d", r.Errored)
	}
	faint.Printf("  [%s in %s]\n", r.RunID, r.Duration)
}

func printGenerations(gens []services.Generation) {
	if len(gens) == 0 {
		yellow.Println("  ⚠ nothing to catch up")
		return
	}
	for _, g := range gens {
		printSuccess("template #%d → transaction #%d (%s)", g.RecurringID, g.TransactionID, core.FormatAmount(g.Amount, core.DefaultCurrency))
	}
}
