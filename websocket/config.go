package websocket

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/c360/simucore/errors"
	"github.com/c360/simucore/pkg/retry"
)

// Config holds the listener address and the per-connection timeouts. A zero
// timeout disables the corresponding deadline.
type Config struct {
	Host             string
	Port             int
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration

	// BindRetry controls how often a busy port is retried on Start
	BindRetry retry.Config
}

// DefaultConfig listens on all interfaces on port 8080
func DefaultConfig() Config {
	return Config{
		Port:             8080,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     2 * time.Second,
		BindRetry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		},
	}
}

// Validate checks the port range and timeouts
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %d out of range", errors.ErrInvalidConfig, c.Port),
			"websocket", "Validate", "port check")
	}
	if c.HandshakeTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: negative timeout", errors.ErrInvalidConfig),
			"websocket", "Validate", "timeout check")
	}
	return nil
}

func (c Config) address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
