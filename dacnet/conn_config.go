package dacnet

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/arloliu/go-lnhrdac/logger"
)

// Default timing values per the programmer's manual recommendations.
const (
	// DefaultReplyTimeout is the ceiling for one response line. The manual
	// recommends 3 seconds; the firmware normally answers within a few
	// milliseconds.
	DefaultReplyTimeout = 3 * time.Second

	// DefaultConnectTimeout is the TCP dial timeout.
	DefaultConnectTimeout = 3 * time.Second

	// DefaultDisconnectDelay is the settle period after closing a connection
	// before the port may be reconnected.
	DefaultDisconnectDelay = 3 * time.Millisecond

	// DefaultCtrlSettleDelay is the device-internal synchronisation delay
	// after a control ("c ...") command.
	DefaultCtrlSettleDelay = 200 * time.Millisecond

	// DefaultMemWriteSettleDelay is the additional delay after a control
	// command that commits wave memory ("... write ...").
	DefaultMemWriteSettleDelay = 300 * time.Millisecond

	// DefaultPollInterval is the pacing interval for ExpectQueryAnswer when
	// the caller does not specify one.
	DefaultPollInterval = 100 * time.Millisecond
)

// Timing sanity limits. The reply timeout in particular must not be shorter
// than the firmware's worst-case command processing latency.
const (
	MinReplyTimeout = 100 * time.Millisecond
	MaxReplyTimeout = 120 * time.Second

	MinPollInterval = time.Millisecond
)

// ConnectionConfig holds all configuration for communicating with one
// LNHR DAC II instrument.
type ConnectionConfig struct {
	host string
	port int

	// replyTimeout bounds the wait for each response line.
	replyTimeout time.Duration

	// connectTimeout bounds the TCP dial.
	connectTimeout time.Duration

	// disconnectDelay is slept after each close before the transport may be
	// re-established.
	disconnectDelay time.Duration

	// ctrlSettleDelay and memWriteSettleDelay give the firmware time to
	// synchronise internally after control / memory-write commands.
	ctrlSettleDelay     time.Duration
	memWriteSettleDelay time.Duration

	// pollInterval is the default pacing for ExpectQueryAnswer.
	pollInterval time.Duration

	// probeOnOpen queries "all s?" during Open to verify the endpoint is a
	// responsive DAC and log the channel status banner.
	probeOnOpen bool

	logger logger.Logger
}

// NewConnectionConfig creates a connection configuration for the instrument
// at host:port.
//
// opts are functional options applied in order; see the With* functions.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		replyTimeout:        DefaultReplyTimeout,
		connectTimeout:      DefaultConnectTimeout,
		disconnectDelay:     DefaultDisconnectDelay,
		ctrlSettleDelay:     DefaultCtrlSettleDelay,
		memWriteSettleDelay: DefaultMemWriteSettleDelay,
		pollInterval:        DefaultPollInterval,
		logger:              logger.GetLogger(),
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}
	if err := cfg.setPort(port); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *ConnectionConfig) setHost(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		cfg.host = host
		return nil
	}

	host = strings.TrimPrefix(host, ".")
	host = strings.TrimSuffix(host, ".")
	if _, err := net.LookupHost(host); err == nil {
		cfg.host = host
		return nil
	}

	return fmt.Errorf("dacnet: invalid host %q", host)
}

func (cfg *ConnectionConfig) setPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("dacnet: port %d out of range [0, 65535]", port)
	}
	cfg.port = port

	return nil
}

// --- Getters ---

// Host returns the configured host address.
func (cfg *ConnectionConfig) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *ConnectionConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ConnectionConfig) Addr() string { return fmt.Sprintf("%s:%d", cfg.host, cfg.port) }

// ReplyTimeout returns the per-response-line timeout.
func (cfg *ConnectionConfig) ReplyTimeout() time.Duration { return cfg.replyTimeout }

// ConnectTimeout returns the TCP dial timeout.
func (cfg *ConnectionConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// DisconnectDelay returns the post-close settle delay.
func (cfg *ConnectionConfig) DisconnectDelay() time.Duration { return cfg.disconnectDelay }

// CtrlSettleDelay returns the post-control-command settle delay.
func (cfg *ConnectionConfig) CtrlSettleDelay() time.Duration { return cfg.ctrlSettleDelay }

// MemWriteSettleDelay returns the additional settle delay for memory-write
// control commands.
func (cfg *ConnectionConfig) MemWriteSettleDelay() time.Duration { return cfg.memWriteSettleDelay }

// PollInterval returns the default poll pacing interval.
func (cfg *ConnectionConfig) PollInterval() time.Duration { return cfg.pollInterval }

// ProbeOnOpen returns whether Open verifies the device with a status query.
func (cfg *ConnectionConfig) ProbeOnOpen() bool { return cfg.probeOnOpen }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithReplyTimeout sets the ceiling for each response line.
func WithReplyTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinReplyTimeout || d > MaxReplyTimeout {
			return fmt.Errorf("dacnet: reply timeout %v out of range [%v, %v]", d, MinReplyTimeout, MaxReplyTimeout)
		}
		cfg.replyTimeout = d

		return nil
	})
}

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("dacnet: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithDisconnectDelay sets the settle period after closing a connection.
// Zero disables the delay (useful in tests against in-process devices).
func WithDisconnectDelay(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < 0 {
			return errors.New("dacnet: disconnect delay must not be negative")
		}
		cfg.disconnectDelay = d

		return nil
	})
}

// WithCtrlSettleDelay sets the settle delay applied after control ("c ...")
// commands. Zero disables it.
func WithCtrlSettleDelay(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < 0 {
			return errors.New("dacnet: control settle delay must not be negative")
		}
		cfg.ctrlSettleDelay = d

		return nil
	})
}

// WithMemWriteSettleDelay sets the additional settle delay applied after
// memory-write control commands. Zero disables it.
func WithMemWriteSettleDelay(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < 0 {
			return errors.New("dacnet: memory write settle delay must not be negative")
		}
		cfg.memWriteSettleDelay = d

		return nil
	})
}

// WithPollInterval sets the default pacing interval for ExpectQueryAnswer.
func WithPollInterval(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinPollInterval {
			return fmt.Errorf("dacnet: poll interval %v below minimum %v", d, MinPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithProbeOnOpen makes Open query "all s?" to verify the endpoint is a
// responsive DAC and log the per-channel status banner.
func WithProbeOnOpen(enabled bool) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.probeOnOpen = enabled

		return nil
	})
}

// WithLogger sets the logger for the driver.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("dacnet: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
