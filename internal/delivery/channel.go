package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/coinsentry/coinsentry/internal/types"
)

// Channel is one delivery endpoint. Implementations live in
// internal/channels; IsConfigured reports whether credentials are present,
// and is checked at routing time rather than treated as a send failure.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, n types.Notification) error
}

// ChannelError classifies a send failure. Transport faults and upstream 5xx
// responses are retryable; rejections such as bad credentials are not.
type ChannelError struct {
	Channel   string
	Err       error
	Retryable bool
}

func (e *ChannelError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("channel %s: %s: %v", e.Channel, kind, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Retryable wraps err as a retryable channel failure.
func Retryable(channel string, err error) error {
	return &ChannelError{Channel: channel, Err: err, Retryable: true}
}

// Permanent wraps err as a non-retryable channel failure.
func Permanent(channel string, err error) error {
	return &ChannelError{Channel: channel, Err: err, Retryable: false}
}

// IsRetryable reports whether a send failure warrants another attempt.
// Unclassified errors are treated as retryable.
func IsRetryable(err error) bool {
	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return true
}
