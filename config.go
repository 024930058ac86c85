// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import (
	"context"
	"log/slog"
	"net"
	"strconv"
)

// DefaultBufferSize is the scratch buffer capacity used when [Config.BufferSize] is zero.
const DefaultBufferSize = 256

// Dialer opens the byte stream a [Session] runs over. [*net.Dialer] satisfies this interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config contains settings used by [Connect] and [Handshake].
type Config struct {
	// Host is the hostname or IP address of the RCON server. Only used by [Connect].
	Host string

	// Port is the TCP port of the RCON server. Only used by [Connect].
	Port int

	// Password is the shared secret. It never crosses the wire; only its salted digest does.
	Password string

	// BufferSize is the capacity of the scratch buffer reused for every read. A value of zero
	// selects [DefaultBufferSize]. Negative values are rejected before any network activity.
	BufferSize int

	// Dialer opens the transport for [Connect]. A nil Dialer uses a zero [net.Dialer].
	Dialer Dialer

	// Logger receives log entries from the handshake and the resulting session.
	Logger *slog.Logger

	// LogLoginDigest must be explicitly enabled for debug logging to include the outbound login
	// frame. The digest is bound to a single seed, but it still proves knowledge of the password
	// for that connection. When false (the default value,) the digest is replaced in log output.
	LogLoginDigest bool
}

// Validate reports the first invalid field of the receiving [Config] as a [*ConfigError].
func (c Config) Validate() error {
	if c.Host == "" {
		return &ConfigError{Field: "host", Reason: "must not be empty"}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigError{Field: "port", Reason: "must be between 1 and 65535, got " + strconv.Itoa(c.Port)}
	}
	return c.validateBufferSize()
}

func (c Config) validateBufferSize() error {
	if c.BufferSize < 0 {
		return &ConfigError{
			Field:  "buffer size",
			Reason: "must be a positive integer, got " + strconv.Itoa(c.BufferSize),
		}
	}
	return nil
}

func (c Config) bufferSize() int {
	if c.BufferSize == 0 {
		return DefaultBufferSize
	}
	return c.BufferSize
}

func (c Config) address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) dialer() Dialer {
	if c.Dialer == nil {
		return &net.Dialer{}
	}
	return c.Dialer
}
