package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/Mounkaila144/produit-sub000/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidDestination is returned for destinations that are not +<10..15 digits>
	ErrInvalidDestination = errors.New("invalid notification destination")
	// ErrDeliveryFailed is returned when the underlying sender could not deliver
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

var destinationPattern = regexp.MustCompile(`^\+[0-9]{10,15}$`)

// ValidateDestination checks the international phone format
func ValidateDestination(destination string) error {
	if !destinationPattern.MatchString(destination) {
		return fmt.Errorf("%w: %q", ErrInvalidDestination, destination)
	}
	return nil
}

// Sender delivers one message to a phone-number destination
type Sender interface {
	Send(ctx context.Context, destination, message string) error
}

// Kind labels a notification for metrics and logs
type Kind string

const (
	KindExpired Kind = "expired"
	KindWarning Kind = "warning"
	KindRenewed Kind = "renewed"
)

// Channel validates, rate-limits and records every outgoing notification
// before handing it to a Sender.
type Channel struct {
	sender  Sender
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewChannel wraps sender. A nil limiter means unlimited.
func NewChannel(sender Sender, limiter *rate.Limiter, log *zap.Logger) *Channel {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Channel{sender: sender, limiter: limiter, log: log}
}

// Notify sends message to destination. Malformed destinations are rejected
// without a delivery attempt.
func (c *Channel) Notify(ctx context.Context, kind Kind, destination, message string) error {
	if err := ValidateDestination(destination); err != nil {
		prometheus.RecordNotification(string(kind), "rejected")
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		prometheus.RecordNotification(string(kind), "failed")
		return fmt.Errorf("%w: rate limit: %v", ErrDeliveryFailed, err)
	}
	if err := c.sender.Send(ctx, destination, message); err != nil {
		prometheus.RecordNotification(string(kind), "failed")
		if errors.Is(err, ErrDeliveryFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	prometheus.RecordNotification(string(kind), "sent")
	c.log.Debug("Notification sent", zap.String("kind", string(kind)), zap.String("destination", destination))
	return nil
}
