// Package notify sends budget alert notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
)

// BudgetAlert describes a budget crossing its alert threshold.
type BudgetAlert struct {
	Owner       string
	BudgetID    string
	BudgetName  string
	Status      string // warning or exceeded
	Amount      decimal.Decimal
	Spent       decimal.Decimal
	Utilization float64
	Period      string
}

// Notifier delivers alerts.
type Notifier interface {
	BudgetAlert(ctx context.Context, a BudgetAlert) error
}

// Nop discards alerts.
type Nop struct{}

// BudgetAlert implements Notifier.
func (Nop) BudgetAlert(context.Context, BudgetAlert) error { return nil }

// SMTPConfig configures the email notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SendFunc delivers a prepared message.
type SendFunc func(addr string, auth smtp.Auth, e *email.Email) error

// Email sends alerts over SMTP.
type Email struct {
	cfg    SMTPConfig
	send   SendFunc
	logger *slog.Logger
}

// NewEmail returns an SMTP notifier.
func NewEmail(cfg SMTPConfig, logger *slog.Logger) *Email {
	return &Email{
		cfg:    cfg,
		logger: logger,
		send: func(addr string, auth smtp.Auth, e *email.Email) error {
			return e.Send(addr, auth)
		},
	}
}

// WithSender replaces the delivery function.
func (n *Email) WithSender(fn SendFunc) *Email {
	n.send = fn
	return n
}

// BudgetAlert implements Notifier.
func (n *Email) BudgetAlert(_ context.Context, a BudgetAlert) error {
	e := n.message(a)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := n.send(addr, auth, e); err != nil {
		n.logger.Error("budget alert email failed",
			slog.String("budget_id", a.BudgetID),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to send budget alert: %w", err)
	}
	n.logger.Info("budget alert email sent",
		slog.String("budget_id", a.BudgetID),
		slog.String("status", a.Status))
	return nil
}

func (n *Email) message(a BudgetAlert) *email.Email {
	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = n.cfg.To
	if a.Status == "exceeded" {
		e.Subject = fmt.Sprintf("Budget exceeded: %s", a.BudgetName)
	} else {
		e.Subject = fmt.Sprintf("Budget warning: %s", a.BudgetName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Budget %q (%s) is at %.1f%% of its limit.\n\n", a.BudgetName, a.Period, a.Utilization)
	fmt.Fprintf(&b, "Limit: %s\n", a.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Spent: %s\n", a.Spent.StringFixed(2))
	if a.Status == "exceeded" {
		fmt.Fprintf(&b, "Over by: %s\n", a.Spent.Sub(a.Amount).StringFixed(2))
	} else {
		fmt.Fprintf(&b, "Remaining: %s\n", a.Amount.Sub(a.Spent).StringFixed(2))
	}
	b.WriteString("\nfinplan")
	e.Text = []byte(b.String())
	return e
}
