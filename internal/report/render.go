package report

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// renderFunc runs one report against the engine and writes its formatted
// lines. Empty result sets render as "no data", never as an error.
type renderFunc func(ctx context.Context, e *Engine, w io.Writer) error

var renderers = map[string]renderFunc{
	"active-projects":    renderActiveProjects,
	"total-issued":       renderTotalIssued,
	"recent-tx":          renderRecentTransactions,
	"users-by-role":      renderUsersByRole,
	"plot-count":         renderPlotCount,
	"plots-by-type":      renderPlotsByType,
	"ndvi-by-type":       renderNDVIByType,
	"biomass-trend":      renderBiomassTrend,
	"co2-trend":          renderCO2Trend,
	"ch4-trend":          renderCH4Trend,
	"ndvi-monthly-trend": renderNDVIMonthly,
}

// Names lists the reports renderable by name, sorted.
func Names() []string {
	names := make([]string, 0, len(renderers))
	for name := range renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render runs the named report and writes it to w. An unknown name is an
// error; the proximity report takes parameters and is reachable through the
// API instead.
func Render(ctx context.Context, e *Engine, w io.Writer, name string) error {
	fn, ok := renderers[name]
	if !ok {
		return fmt.Errorf("unknown report %q", name)
	}
	return fn(ctx, e, w)
}

// RenderAll runs every named report in order.
func RenderAll(ctx context.Context, e *Engine, w io.Writer) error {
	for _, name := range Names() {
		if err := Render(ctx, e, w, name); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func renderActiveProjects(ctx context.Context, e *Engine, w io.Writer) error {
	projects, err := e.ActiveProjects(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Active Projects:")
	if len(projects) == 0 {
		fmt.Fprintln(w, "  no data")
		return nil
	}
	for _, p := range projects {
		fmt.Fprintf(w, "  %s (%s) - %d credits\n", p.Name, p.ProjectType, p.Circulating)
	}
	return nil
}

func renderTotalIssued(ctx context.Context, e *Engine, w io.Writer) error {
	total, err := e.TotalCreditsIssued(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Total credits issued: %d\n", total)
	return nil
}

func renderRecentTransactions(ctx context.Context, e *Engine, w io.Writer) error {
	txs, err := e.RecentTransactions(ctx, DefaultRecentLimit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Recent Transactions:")
	if len(txs) == 0 {
		fmt.Fprintln(w, "  no data")
		return nil
	}
	for _, tx := range txs {
		details := tx.Details.Data()
		if details.Amount > 0 {
			fmt.Fprintf(w, "  %s: %s (%d credits)\n", tx.Type, details.ProjectID, details.Amount)
		} else {
			fmt.Fprintf(w, "  %s: %s (N/A credits)\n", tx.Type, details.ProjectID)
		}
	}
	return nil
}

func renderUsersByRole(ctx context.Context, e *Engine, w io.Writer) error {
	roles, err := e.UsersByRole(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Users by Role:")
	if len(roles) == 0 {
		fmt.Fprintln(w, "  no data")
		return nil
	}
	for _, r := range roles {
		fmt.Fprintf(w, "  %s: %d users\n", r.Role, r.Count)
	}
	return nil
}

func renderPlotCount(ctx context.Context, e *Engine, w io.Writer) error {
	count, err := e.PlotCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Total plots: %d\n", count)
	return nil
}

func renderPlotsByType(ctx context.Context, e *Engine, w io.Writer) error {
	counts, err := e.PlotsByProjectType(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Plots by Project Type:")
	if len(counts) == 0 {
		fmt.Fprintln(w, "  no data")
		return nil
	}
	for _, c := range counts {
		fmt.Fprintf(w, "  %s: %d plots\n", c.ProjectType, c.Count)
	}
	return nil
}

func renderNDVIByType(ctx context.Context, e *Engine, w io.Writer) error {
	averages, err := e.AverageNDVIByProjectType(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Average NDVI by Project Type:")
	if len(averages) == 0 {
		fmt.Fprintln(w, "  no data")
		return nil
	}
	for _, a := range averages {
		fmt.Fprintf(w, "  %s: %.4f\n", a.ProjectType, a.AvgNDVI)
	}
	return nil
}

func renderBiomassTrend(ctx context.Context, e *Engine, w io.Writer) error {
	years, err := e.BiomassTrend(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Biomass Trend by Monitoring Year:")
	if len(years) == 0 {
		fmt.Fprintln(w, "  no data")
		return nil
	}
	for _, y := range years {
		fmt.Fprintf(w, "  %d:", y.Year)
		if y.AvgAbove != nil {
			fmt.Fprintf(w, " avg above %.2f kg", *y.AvgAbove)
		}
		if y.AvgBelow != nil {
			fmt.Fprintf(w, " avg below %.2f kg", *y.AvgBelow)
		}
		if y.TotalBiomass != nil {
			fmt.Fprintf(w, " total %.2f kg", *y.TotalBiomass)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func renderCO2Trend(ctx context.Context, e *Engine, w io.Writer) error {
	years, err := e.CO2FluxTrend(ctx)
	if err != nil {
		return err
	}
	return renderFluxYears(w, "CO2 Flux Trend (mg/m2/day):", years)
}

func renderCH4Trend(ctx context.Context, e *Engine, w io.Writer) error {
	years, err := e.CH4FluxTrend(ctx)
	if err != nil {
		return err
	}
	return renderFluxYears(w, "CH4 Flux Trend (mg/m2/day):", years)
}

func renderFluxYears(w io.Writer, title string, years []FluxYear) error {
	fmt.Fprintln(w, title)
	if len(years) == 0 {
		fmt.Fprintln(w, "  no data")
		return nil
	}
	for _, y := range years {
		fmt.Fprintf(w, "  %d: %.2f\n", y.Year, y.AvgFlux)
	}
	return nil
}

func renderNDVIMonthly(ctx context.Context, e *Engine, w io.Writer) error {
	months, err := e.NDVIMonthlyTrend(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Monthly NDVI Trend:")
	if len(months) == 0 {
		fmt.Fprintln(w, "  no data")
		return nil
	}
	for _, m := range months {
		fmt.Fprintf(w, "  %04d-%02d: %.4f\n", m.Year, m.Month, m.AvgNDVI)
	}
	return nil
}
