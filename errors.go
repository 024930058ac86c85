// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is matched by every [*ConfigError].
	ErrInvalidConfig = errors.New("rcon: invalid config")

	// ErrUnexpectedResponse is matched by every [*UnexpectedResponseError].
	ErrUnexpectedResponse = errors.New("rcon: unexpected response")

	// ErrAuthenticationFailed is matched by every [*AuthenticationError].
	ErrAuthenticationFailed = errors.New("rcon: authentication failed")

	// ErrClosed is returned by [Session.Send] once the session has been closed.
	ErrClosed = errors.New("rcon: session closed")

	// ErrInvalidDrainArgs is returned by [Drain] when given an empty buffer or terminator.
	ErrInvalidDrainArgs = errors.New("rcon: drain requires a non-empty buffer and terminator")
)

// ConfigError reports an invalid [Config] field. It is always raised before any network activity.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rcon: invalid config: %s %s", e.Field, e.Reason)
}

// Is reports whether target is [ErrInvalidConfig].
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// UnexpectedResponseError reports server output that does not follow the protocol, such as a
// welcome banner without a digest seed. Response holds the raw text for diagnostics.
type UnexpectedResponseError struct {
	Msg      string
	Response string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("rcon: unexpected response: %s", e.Msg)
}

// Is reports whether target is [ErrUnexpectedResponse].
func (e *UnexpectedResponseError) Is(target error) bool { return target == ErrUnexpectedResponse }

// AuthenticationError reports a login response other than the success literal. Response holds
// the server's reply, which is often a server specific failure message.
type AuthenticationError struct {
	Response string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("rcon: authentication failed: %q", e.Response)
}

// Is reports whether target is [ErrAuthenticationFailed].
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthenticationFailed }
