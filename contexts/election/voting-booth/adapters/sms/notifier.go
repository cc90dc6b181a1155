package sms

import (
	"context"
	"log/slog"
	"strings"

	"ballotbooth/contexts/election/voting-booth/ports"
)

// LogNotifier stands in for an SMS gateway and records each message in the
// structured log. Only the last four digits of the number are logged.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, phone string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("sms notification sent",
		"event", "booth_sms_sent",
		"module", "election/voting-booth",
		"layer", "adapter",
		"phone_suffix", maskPhone(phone),
		"message", message,
	)
	return nil
}

func maskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

var _ ports.Notifier = LogNotifier{}
