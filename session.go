// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// loginCommand prefixes the digest in the only command the handshake sends.
const loginCommand = "login "

// Session is an authenticated RCON connection. Sessions are only created by [Connect] and
// [Handshake], so a Session is never open without having logged in.
//
// The protocol is strictly half-duplex: a server answers one command at a time and responses
// carry no correlation ID. Send holds the session for the whole round trip, so concurrent callers
// are serialized, but a server that writes unsolicited output will still corrupt the framing of
// the next response. Independent sessions share nothing and may be used concurrently.
type Session struct {
	// id correlates log records from one session.
	id string

	// mu serializes round trips over conn and use of buf.
	mu sync.Mutex

	// conn is the underlying connection, exclusively owned by the session.
	conn net.Conn

	// buf is the scratch buffer reused by every read.
	buf []byte

	closed    atomic.Bool
	closeOnce sync.Once

	// logger receives any log output from a session.
	logger *slog.Logger

	// logLoginDigest mirrors [Config.LogLoginDigest].
	logLoginDigest bool
}

func newSession(conn net.Conn, cfg Config) *Session {
	return &Session{
		id:             uuid.NewString(),
		conn:           conn,
		buf:            make([]byte, cfg.bufferSize()),
		logger:         cfg.Logger,
		logLoginDigest: cfg.LogLoginDigest,
	}
}

// ID returns the identifier attached to the receiving session's log records.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the remote network address of the underlying connection.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Send writes command as a single request frame and returns the server's response. A trailing
// newline and end-of-transmission pair is stripped from the response; a response ending in a bare
// end-of-transmission byte is returned as is.
//
// If the connection reaches end of stream before the response is terminated, the partial
// response is returned without error.
//
// The core applies no timeout of its own. A deadline or cancellation on ctx is applied to the
// underlying connection and ctx.Err() is returned. The framing state of a session is unknown
// after an interrupted Send, so it should be closed.
func (s *Session) Send(ctx context.Context, command string) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.roundTrip(ctx, Request{Command: command})
	if err != nil {
		return "", err
	}
	return StripTrailer(resp), nil
}

// Close releases the underlying connection. Only the first call closes the connection and
// reports its error; later calls are no-ops that return nil. Close does not wait for an in-flight
// Send, which fails once the connection is gone.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) roundTrip(ctx context.Context, req Request) (string, error) {
	stop, err := s.watch(ctx)
	if err != nil {
		return "", err
	}
	defer stop()

	s.logRequest(ctx, req)
	if _, err := req.WriteTo(s.conn); err != nil {
		return "", contextErr(ctx, err)
	}

	resp, err := Drain(s.conn, s.buf, ResponseTerminator)
	if err != nil {
		return "", contextErr(ctx, err)
	}
	s.logText(ctx, "received frame", resp)

	return resp, nil
}

// readBanner drains the unauthenticated welcome banner.
func (s *Session) readBanner(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stop, err := s.watch(ctx)
	if err != nil {
		return "", err
	}
	defer stop()

	banner, err := Drain(s.conn, s.buf, BannerTerminator)
	if err != nil {
		return "", contextErr(ctx, err)
	}
	s.logText(ctx, "received banner", banner)

	return banner, nil
}

// watch maps the deadline and cancellation of ctx onto the connection. The returned function
// must be called once the operation completes to restore an unbounded deadline.
func (s *Session) watch(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	fired := make(chan struct{})
	stopAfter := context.AfterFunc(ctx, func() {
		defer close(fired)
		// Any past instant unblocks pending reads and writes.
		_ = s.conn.SetDeadline(time.Unix(1, 0))
	})

	return func() {
		if !stopAfter() {
			<-fired
		}
		_ = s.conn.SetDeadline(time.Time{})
	}, nil
}

// contextErr prefers the context's error over the I/O error it caused.
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// The conn deadline can fire just before the context's own timer does.
	if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// logRequest logs an outbound request frame. Unless the session is explicitly configured to log
// the login digest, it is scrubbed when applicable.
func (s *Session) logRequest(ctx context.Context, req Request) {
	// NOP if the session logger is nil or is not level set for debug log messages.
	if s.logger == nil || !s.logger.Handler().Enabled(ctx, slog.LevelDebug) {
		return
	}

	if strings.HasPrefix(req.Command, loginCommand) && !s.logLoginDigest {
		req.Command = loginCommand + "xxxxx"
	}

	bs, err := req.MarshalBinary()
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to marshal frame for logging", slog.String("error", err.Error()))
		return
	}

	s.logger.LogAttrs(
		ctx,
		slog.LevelDebug,
		"sending frame",
		slog.String("session", s.id),
		slog.String("frame", hex.EncodeToString(bs)),
	)
}

func (s *Session) logText(ctx context.Context, logMsg, text string) {
	if s.logger == nil || !s.logger.Handler().Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.logger.LogAttrs(
		ctx,
		slog.LevelDebug,
		logMsg,
		slog.String("session", s.id),
		slog.String("frame", hex.EncodeToString([]byte(text))),
	)
}

func (s *Session) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, level, msg, append([]slog.Attr{slog.String("session", s.id)}, attrs...)...)
}
