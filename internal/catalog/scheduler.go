package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// RunSchedule runs job on the cron spec (standard 5-field or descriptors
// such as "@hourly") until ctx is cancelled. Running jobs are allowed to
// finish before it returns.
func RunSchedule(ctx context.Context, spec string, job func(context.Context) error, logger *slog.Logger) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := job(ctx); err != nil {
			logger.Warn("scheduled job failed", slog.String("schedule", spec), slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("catalog: schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info("scheduler: started", slog.String("schedule", spec))
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("scheduler: stopped")
	return nil
}

// ValidSchedule reports whether spec parses as a cron schedule.
func ValidSchedule(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}
