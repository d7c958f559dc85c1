package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the log instead of delivering them
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the message
func (s *LogSender) Send(ctx context.Context, destination, message string) error {
	s.log.Info("Notification", zap.String("to", destination), zap.String("message", message))
	return nil
}
