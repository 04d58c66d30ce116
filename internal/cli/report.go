package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/starford/finplan/internal/checksum"
	"github.com/starford/finplan/internal/finance"
)

// ReportOptions selects the optional sections of a calculator report.
type ReportOptions struct {
	Sensitivity bool
	MonteCarlo  bool
	Simulation  finance.SimulationOptions
}

// WriteReport renders metrics and the selected analyses for p to w.
// A zero seed is derived from p so identical inputs print identical output.
func WriteReport(ctx context.Context, w io.Writer, p finance.LoanParams, opts ReportOptions) error {
	if _, err := fmt.Fprintln(w, RenderTitle("finplan calculator")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, RenderMetrics(finance.Calculate(p))); err != nil {
		return err
	}

	if opts.Sensitivity {
		if _, err := fmt.Fprintln(w, RenderSensitivity(finance.Sensitivity(p))); err != nil {
			return err
		}
	}

	if opts.MonteCarlo {
		sim := opts.Simulation
		if sim.Seed == 0 {
			digest, err := checksum.JSON(p)
			if err != nil {
				return err
			}
			sim.Seed = checksum.Seed(digest)
		}
		res, err := finance.MonteCarlo(ctx, p, sim)
		if err != nil {
			return fmt.Errorf("monte carlo: %w", err)
		}
		if _, err := fmt.Fprintln(w, RenderSimulation(res)); err != nil {
			return err
		}
	}
	return nil
}
