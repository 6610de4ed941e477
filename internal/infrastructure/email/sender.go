package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/dmwangi/medsupply/internal/infrastructure/config"
	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Sender delivers transactional email. Failures are the caller's to log;
// sending never blocks an order or payment from succeeding.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, to, name, orderNumber string, totalCents int64) error
	SendPaymentReceipt(ctx context.Context, to, name, orderNumber, receiptNumber string, amountCents int64) error
}

type smtpSender struct {
	cfg     *config.EmailConfig
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewSMTPSender(cfg *config.EmailConfig, logger zerolog.Logger, metrics *observability.Metrics) Sender {
	return &smtpSender{cfg: cfg, logger: logger, metrics: metrics}
}

func (s *smtpSender) SendOrderConfirmation(ctx context.Context, to, name, orderNumber string, totalCents int64) error {
	subject := fmt.Sprintf("Order %s received", orderNumber)
	body := fmt.Sprintf(`
		<h1>Thank you for your order, %s</h1>
		<p>Your order <strong>%s</strong> for KES %s has been received.</p>
		<p>Complete payment via M-Pesa to confirm it.</p>
	`, name, orderNumber, formatKES(totalCents))

	return s.send(ctx, "order_confirmation", to, subject, body)
}

func (s *smtpSender) SendPaymentReceipt(ctx context.Context, to, name, orderNumber, receiptNumber string, amountCents int64) error {
	subject := fmt.Sprintf("Payment received for order %s", orderNumber)
	body := fmt.Sprintf(`
		<h1>Payment confirmed</h1>
		<p>Hi %s, we received KES %s for order <strong>%s</strong>.</p>
		<p>M-Pesa receipt: %s</p>
	`, name, formatKES(amountCents), orderNumber, receiptNumber)

	return s.send(ctx, "payment_receipt", to, subject, body)
}

func (s *smtpSender) send(_ context.Context, template, to, subject, body string) error {
	if !s.cfg.Enabled {
		s.logger.Debug().Str("to", to).Str("template", template).Msg("Email disabled, skipping send")
		return nil
	}

	headers := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n",
		s.cfg.FromName, s.cfg.From, to, subject)
	msg := []byte(headers + body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := smtp.SendMail(s.cfg.Addr(), auth, s.cfg.From, []string{to}, msg); err != nil {
		s.metrics.EmailsSent.WithLabelValues(template, "error").Inc()
		s.logger.Error().Err(err).Str("to", to).Str("template", template).Msg("Failed to send email")
		return fmt.Errorf("send mail: %w", err)
	}

	s.metrics.EmailsSent.WithLabelValues(template, "success").Inc()
	s.logger.Info().Str("to", to).Str("template", template).Msg("Email sent")
	return nil
}

func formatKES(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
