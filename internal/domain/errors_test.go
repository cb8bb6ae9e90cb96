package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("address already in use")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("dial", baseErr)

		assert.True(t, err.IsRetriable())
		assert.Equal(t, "dial: address already in use", err.Error())
		assert.ErrorIs(t, err, baseErr)
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("listen", baseErr)
		assert.False(t, err.IsRetriable())
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		assert.True(t, IsRetriable(NewNetworkError("dial", baseErr)))
		assert.False(t, IsRetriable(NewFatalNetworkError("listen", baseErr)))
		assert.False(t, IsRetriable(errors.New("plain error")))
	})
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "server.tcp_addr", Err: errors.New("missing value")}

	assert.False(t, err.IsRetriable())
	assert.Equal(t, "config error [server.tcp_addr]: missing value", err.Error())
}

func TestProtocolError(t *testing.T) {
	err := NewProtocolError(MsgUnsupportedCommand, ErrUnsupportedCommand)

	assert.ErrorIs(t, err, ErrUnsupportedCommand)
	assert.Equal(t, "Unsupported command", err.Message)

	var pe *ProtocolError
	assert.True(t, errors.As(error(err), &pe))
	assert.False(t, IsRetriable(err))
}
