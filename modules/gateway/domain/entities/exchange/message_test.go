package exchange_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/exchange"
)

func TestNewMessage(t *testing.T) {
	now := time.Now()
	msg, err := exchange.NewMessage(1, "s1", "hello", true, now)
	require.NoError(t, err)
	require.Equal(t, 1, msg.ProfileID())
	require.Equal(t, "s1", msg.SessionID())
	require.Equal(t, "hello", msg.Text())
	require.True(t, msg.IsUser())
	require.Equal(t, now, msg.CreatedAt())
}

func TestNewMessage_ZeroTimeDefaultsToNow(t *testing.T) {
	msg, err := exchange.NewMessage(1, "s1", "hello", false, time.Time{})
	require.NoError(t, err)
	require.False(t, msg.CreatedAt().IsZero())
}

func TestNewMessage_Validation(t *testing.T) {
	_, err := exchange.NewMessage(1, "s1", "", true, time.Now())
	require.ErrorIs(t, err, exchange.ErrEmptyMessage)

	_, err = exchange.NewMessage(1, "", "hello", true, time.Now())
	require.ErrorIs(t, err, exchange.ErrEmptySession)

	_, err = exchange.NewMessage(1, "s1", strings.Repeat("x", exchange.MaxMessageLength+1), true, time.Now())
	require.ErrorIs(t, err, exchange.ErrMessageTooLong)

	// exactly at the limit is fine
	_, err = exchange.NewMessage(1, "s1", strings.Repeat("x", exchange.MaxMessageLength), true, time.Now())
	require.NoError(t, err)
}
