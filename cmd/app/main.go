package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/finplan/internal"
	appcli "github.com/starford/finplan/internal/cli"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	pkgconfig "github.com/starford/finplan/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func calc(ctx context.Context, cmd *cli.Command) error {
	p := finance.LoanParams{
		PurchasePrice:   cmd.Float("price"),
		DownPayment:     cmd.Float("down"),
		AnnualRate:      cmd.Float("rate"),
		TermMonths:      int(cmd.Int("term")),
		MonthlyIncome:   cmd.Float("income"),
		MonthlyExpenses: cmd.Float("expenses"),
	}
	if err := models.ValidateLoan(&p); err != nil {
		return fmt.Errorf("invalid loan: %w", err)
	}
	return appcli.WriteReport(ctx, os.Stdout, p, appcli.ReportOptions{
		Sensitivity: cmd.Bool("sensitivity"),
		MonteCarlo:  cmd.Bool("monte-carlo"),
		Simulation: finance.SimulationOptions{
			Iterations: int(cmd.Int("iterations")),
			Seed:       uint64(cmd.Uint("seed")),
		},
	})
}

func main() {
	cmd := &cli.Command{
		Name:   "finplan",
		Usage:  "Household finance planning: loan scenarios, budgets, expense analytics and rate offers",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the calculators and plans as MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:   "calc",
				Usage:  "Print loan metrics for the given parameters",
				Action: calc,
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "price", Usage: "Purchase price", Required: true},
					&cli.FloatFlag{Name: "down", Usage: "Down payment"},
					&cli.FloatFlag{Name: "rate", Usage: "Annual interest rate, percent", Required: true},
					&cli.IntFlag{Name: "term", Usage: "Term in months", Value: 360},
					&cli.FloatFlag{Name: "income", Usage: "Monthly income"},
					&cli.FloatFlag{Name: "expenses", Usage: "Monthly expenses"},
					&cli.BoolFlag{Name: "sensitivity", Aliases: []string{"s"}, Usage: "Include sensitivity analysis"},
					&cli.BoolFlag{Name: "monte-carlo", Aliases: []string{"m"}, Usage: "Include a Monte Carlo summary"},
					&cli.IntFlag{Name: "iterations", Usage: "Monte Carlo iterations", Value: finance.DefaultIterations},
					&cli.UintFlag{Name: "seed", Usage: "Monte Carlo seed; 0 derives one from the inputs"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
