// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"net"
	"strings"
	"unicode/utf8"

	"go.uber.org/multierr"
)

// SuccessLiteral is the exact response a server sends to an accepted login.
const SuccessLiteral = "Authentication successful, rcon ready."

// SeedLength is the number of characters in a digest seed.
const SeedLength = 16

// seedPrefix introduces the final line of a welcome banner.
const seedPrefix = "### Digest seed: "

// Connect validates cfg, dials the server, and authenticates. The returned [Session] is ready
// for [Session.Send]. Configuration errors are reported before any connection is attempted.
//
// No partial result is ever returned: on failure the connection, if one was opened, is closed.
// Errors from the transport are returned unchanged.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := cfg.dialer().DialContext(ctx, "tcp", cfg.address())
	if err != nil {
		return nil, err
	}

	return handshake(ctx, conn, cfg)
}

// Handshake authenticates over conn, a freshly opened connection whose welcome banner has not
// been read yet. This allows sessions over transports other than plain TCP, such as TLS or a Unix
// socket. Only the password, buffer size, and logging fields of cfg are used.
//
// If cfg is invalid, conn is left untouched. Once the handshake starts, conn belongs to the
// returned [Session], or is closed on failure.
func Handshake(ctx context.Context, conn net.Conn, cfg Config) (*Session, error) {
	if err := cfg.validateBufferSize(); err != nil {
		return nil, err
	}
	return handshake(ctx, conn, cfg)
}

func handshake(ctx context.Context, conn net.Conn, cfg Config) (*Session, error) {
	s := newSession(conn, cfg)

	if err := s.authenticate(ctx, cfg.Password); err != nil {
		s.log(ctx, slog.LevelWarn, "handshake failed", slog.String("error", err.Error()))
		return nil, multierr.Append(err, s.Close())
	}

	s.log(ctx, slog.LevelDebug, "authenticated", slog.String("remote", conn.RemoteAddr().String()))
	return s, nil
}

func (s *Session) authenticate(ctx context.Context, password string) error {
	banner, err := s.readBanner(ctx)
	if err != nil {
		return err
	}

	seed, err := ParseDigestSeed(banner)
	if err != nil {
		return err
	}
	s.log(ctx, slog.LevelDebug, "digest seed received")

	resp, err := s.Send(ctx, loginCommand+LoginDigest(seed, password))
	if err != nil {
		return err
	}
	if resp != SuccessLiteral {
		return &AuthenticationError{Response: resp}
	}
	return nil
}

// ParseDigestSeed extracts the digest seed from a welcome banner. The banner must end with a
// blank line, and its last line must be "### Digest seed: " followed by exactly [SeedLength]
// characters. Anything else is reported as an [*UnexpectedResponseError] carrying the banner.
func ParseDigestSeed(banner string) (string, error) {
	body, ok := strings.CutSuffix(banner, BannerTerminator)
	if !ok {
		return "", &UnexpectedResponseError{Msg: "welcome message is not terminated by a blank line", Response: banner}
	}

	line := body[strings.LastIndexByte(body, '\n')+1:]
	seed, ok := strings.CutPrefix(line, seedPrefix)
	if !ok {
		return "", &UnexpectedResponseError{Msg: "expected digest seed in welcome message", Response: banner}
	}
	if utf8.RuneCountInString(seed) != SeedLength || strings.ContainsAny(seed, "\r\u2028\u2029") {
		return "", &UnexpectedResponseError{Msg: "malformed digest seed in welcome message", Response: banner}
	}

	return seed, nil
}

// LoginDigest returns the lowercase hex MD5 digest of seed followed by password. The algorithm is
// fixed by the server and is not a security choice.
func LoginDigest(seed, password string) string {
	sum := md5.Sum([]byte(seed + password))
	return hex.EncodeToString(sum[:])
}
