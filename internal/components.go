package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/finplan/internal/budgetservice"
	"github.com/starford/finplan/internal/cache"
	"github.com/starford/finplan/internal/catalog"
	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/notify"
	"github.com/starford/finplan/internal/planservice"
	"github.com/starford/finplan/internal/sse"
	"github.com/starford/finplan/internal/store"
)

// components are the long-lived services shared by the HTTP and MCP entry points.
type components struct {
	db        *store.DB
	broker    *sse.Broker
	amqp      *events.AMQP
	publisher events.Publisher
	sims      cache.Cache[finance.Simulation]
	catalog   *catalog.Catalog
	plans     *planservice.Service
	budgets   *budgetservice.Service
}

func buildComponents(ctx context.Context, cfg *Config, logger *slog.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.db, err = store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	c.broker = sse.NewBroker(cfg.Events.GraphThrottle)
	pubs := events.Multi{c.broker}
	if cfg.Events.AMQPURL != "" {
		c.amqp, err = events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("init amqp: %w", err)
		}
		pubs = append(pubs, c.amqp)
		logger.Info("AMQP publisher enabled", slog.String("exchange", cfg.Events.AMQPExchange))
	}
	c.publisher = pubs

	c.sims, err = cache.New[finance.Simulation](cache.Options{
		Backend:   cfg.Simulation.Cache.Backend,
		Size:      cfg.Simulation.Cache.Size,
		TTL:       cfg.Simulation.Cache.TTL,
		RedisAddr: cfg.Simulation.Cache.RedisAddr,
		Prefix:    "finplan:sim:",
	})
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.Enabled {
		notifier = notify.NewEmail(notify.SMTPConfig{
			Host:     cfg.Notify.Host,
			Port:     cfg.Notify.Port,
			Username: cfg.Notify.Username,
			Password: cfg.Notify.Password,
			From:     cfg.Notify.From,
			To:       cfg.Notify.To,
		}, logger)
	}

	file, err := catalog.NewFile(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	c.catalog = catalog.New(file, c.db, logger)
	if changes, err := c.catalog.Sync(ctx); err != nil {
		logger.Warn("initial catalog sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("catalog synced", slog.Int("changes", len(changes)))
	}

	c.plans = planservice.NewService(c.db, planservice.Config{
		Iterations:  cfg.Simulation.Iterations,
		Simulations: c.sims,
		Events:      c.publisher,
		Logger:      logger,
	})
	c.budgets = budgetservice.NewService(c.db, budgetservice.Config{
		Notifier: notifier,
		Events:   c.publisher,
		Logger:   logger,
	})
	return c, nil
}

// ratesUpdated announces catalog or reference rate changes.
func (c *components) ratesUpdated(ctx context.Context, logger *slog.Logger, data any) {
	if err := c.publisher.Publish(ctx, events.New(events.RatesUpdated, "", data)); err != nil {
		logger.Warn("publish event failed", slog.String("type", string(events.RatesUpdated)), slog.String("error", err.Error()))
	}
}

// refreshReference is the scheduled reference rate job.
func (c *components) refreshReference(feed *catalog.ReferenceFeed, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		rate, err := feed.Refresh(ctx)
		if err != nil {
			return err
		}
		c.ratesUpdated(ctx, logger, map[string]string{"id": rate.ID})
		return nil
	}
}

// ready reports whether the store and the simulation cache are reachable.
func (c *components) ready(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		return err
	}
	return c.sims.Ping(ctx)
}

// Close releases everything buildComponents opened.
func (c *components) Close() {
	if c.sims != nil {
		_ = c.sims.Close()
	}
	if c.broker != nil {
		c.broker.Close()
	}
	if c.amqp != nil {
		_ = c.amqp.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
}
