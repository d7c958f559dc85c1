package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	calls []string
	err   error
}

func (s *recordingSender) Send(ctx context.Context, destination, message string) error {
	s.calls = append(s.calls, destination)
	return s.err
}

func TestValidateDestination(t *testing.T) {
	valid := []string{"+2250700000000", "+1234567890", "+123456789012345"}
	for _, d := range valid {
		assert.NoError(t, ValidateDestination(d), d)
	}

	invalid := []string{"", "2250700000000", "+123456789", "+1234567890123456", "+22507 000000", "+22507000000a"}
	for _, d := range invalid {
		assert.ErrorIs(t, ValidateDestination(d), ErrInvalidDestination, d)
	}
}

func TestChannel_RejectsMalformedDestinationWithoutSending(t *testing.T) {
	sender := &recordingSender{}
	ch := NewChannel(sender, nil, zap.NewNop())

	err := ch.Notify(context.Background(), KindWarning, "0700000000", "hello")
	assert.ErrorIs(t, err, ErrInvalidDestination)
	assert.Empty(t, sender.calls)
}

func TestChannel_Delivers(t *testing.T) {
	sender := &recordingSender{}
	ch := NewChannel(sender, nil, zap.NewNop())

	require.NoError(t, ch.Notify(context.Background(), KindRenewed, "+2250700000000", "renewed"))
	assert.Equal(t, []string{"+2250700000000"}, sender.calls)
}

func TestChannel_WrapsSenderFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("timeout")}
	ch := NewChannel(sender, nil, zap.NewNop())

	err := ch.Notify(context.Background(), KindExpired, "+2250700000000", "expired")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "timeout")
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(zap.NewNop()).Send(context.Background(), "+2250700000000", "hi"))
}
