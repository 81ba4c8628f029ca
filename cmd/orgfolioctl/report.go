package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"orgfolio/internal/models"
	"orgfolio/internal/scheduler"
	"orgfolio/internal/services"
)

// render writes v as JSON when -json is set, otherwise the markdown report,
// styled for the terminal unless -plain is set.
func render(w io.Writer, v interface{}, md string) error {
	if *jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if *plain {
		_, err := io.WriteString(w, md)
		return err
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func snapshotReport(r *services.SnapshotResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Snapshot %s\n\n", r.Date)
	fmt.Fprintf(&b, "Source `%s`, started %s, took %dms.\n\n", r.Source, r.StartedAt.Format("2006-01-02 15:04:05"), r.TookMS)
	b.WriteString("| Received | Saved | Failed | Skipped |\n|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n", r.Received, r.Saved, r.Failed, r.Skipped)
	return b.String()
}

func valuationReport(v *services.ValuationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio %s on %s\n\n", v.PortfolioID, v.CalculationDate)
	fmt.Fprintf(&b, "Total value: **%.2f**\n\n", v.TotalValue)
	if len(v.PositionsDetail) == 0 {
		b.WriteString("No positions.\n")
		return b.String()
	}

	b.WriteString("| Symbol | Quantity | Price | Value | Weight | Price from |\n")
	b.WriteString("|---|---:|---:|---:|---:|---|\n")
	for _, p := range v.PositionsDetail {
		from := p.PriceSource
		if p.PriceDate != nil {
			from += " " + p.PriceDate.String()
		}
		fmt.Fprintf(&b, "| %s | %g | %.4f | %.2f | %.2f%% | %s |\n",
			p.Symbol, p.Quantity, p.CurrentPrice, p.PositionValue, p.WeightPercentage, from)
	}
	if len(v.SymbolsNotFound) > 0 {
		fmt.Fprintf(&b, "\nNo price found for: %s\n", strings.Join(v.SymbolsNotFound, ", "))
	}
	return b.String()
}

func statsReport(s *services.PortfolioStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio %s on %s\n\n", s.PortfolioID, s.CalculationDate)
	fmt.Fprintf(&b, "- Positions: %d\n", s.TotalPositions)
	fmt.Fprintf(&b, "- Priced symbols: %d\n", s.SymbolsCount)
	fmt.Fprintf(&b, "- Symbols without price: %d\n", s.SymbolsNotFound)
	fmt.Fprintf(&b, "- Total value: **%.2f**\n", s.TotalValue)
	return b.String()
}

func pricesReport(title string, points []models.PricePoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if len(points) == 0 {
		b.WriteString("No prices recorded.\n")
		return b.String()
	}

	b.WriteString("| Date | Symbol | Price | Raw | Source |\n|---|---|---:|---|---|\n")
	for _, p := range points {
		price := "-"
		if p.Price.Valid {
			price = p.Price.Decimal.String()
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", p.Date, p.Symbol, price, escapeCell(p.RawPrice), p.Source)
	}
	return b.String()
}

func statusReport(s scheduler.Status) string {
	var b strings.Builder
	b.WriteString("# Snapshot scheduler\n\n")
	state := "stopped"
	if s.Running {
		state = "running"
	}
	fmt.Fprintf(&b, "- State: %s\n", state)
	fmt.Fprintf(&b, "- Jobs: %d\n", s.JobsCount)
	fmt.Fprintf(&b, "- Next run: %s\n", s.NextRun)
	fmt.Fprintf(&b, "- Server time: %s\n", s.CurrentTime)
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
