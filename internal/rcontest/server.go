// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

// Package rcontest provides an in-process RCON server for tests.
package rcontest

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"

	rcon "github.com/schultz-is/digest-rcon"
)

// DefaultSeed is the digest seed a [Server] sends unless configured otherwise.
const DefaultSeed = "0123456789abcdef"

// DefaultPreamble precedes the digest seed line in the welcome banner.
const DefaultPreamble = "Welcome to the test server.\nThis connection is not encrypted.\n"

// FailureResponse is sent in reply to a login with the wrong digest.
const FailureResponse = "Authentication failed."

// HandlerFunc answers an authenticated command with a response body.
type HandlerFunc func(command string) string

// Echo is a [HandlerFunc] that returns every command unchanged.
func Echo(command string) string { return command }

// Option configures a [Server].
type Option func(*Server)

// WithSeed overrides [DefaultSeed].
func WithSeed(seed string) Option {
	return func(s *Server) { s.seed = seed }
}

// WithBanner replaces the whole welcome banner, seed line included.
func WithBanner(banner string) Option {
	return func(s *Server) { s.banner = &banner }
}

// WithChunkSize splits every write into chunks of at most n bytes.
func WithChunkSize(n int) Option {
	return func(s *Server) { s.chunkSize = n }
}

// WithoutTrailerNewline terminates command responses with a bare end-of-transmission byte. Login
// responses keep the newline.
func WithoutTrailerNewline() Option {
	return func(s *Server) { s.bareTerminator = true }
}

// Server is a minimal RCON server listening on a loopback port.
type Server struct {
	Host string
	Port int

	password       string
	handler        HandlerFunc
	seed           string
	banner         *string
	chunkSize      int
	bareTerminator bool

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	closing  bool
	conns    map[net.Conn]struct{}
	commands []string
	accepted int
}

// NewServer starts a [Server] that accepts password and answers commands with handler. It panics
// if no loopback listener can be opened, in the manner of net/http/httptest.
func NewServer(password string, handler HandlerFunc, opts ...Option) *Server {
	s := &Server{
		password: password,
		handler:  handler,
		seed:     DefaultSeed,
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("rcontest: failed to listen on a port: " + err.Error())
	}
	s.listener = l

	host, port, _ := net.SplitHostPort(l.Addr().String())
	s.Host = host
	s.Port, _ = strconv.Atoi(port)

	s.wg.Add(1)
	go s.serve()

	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Commands returns every command received so far, logins included, in arrival order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Close stops the listener, closes open connections, and waits for every handler to return.
func (s *Server) Close() {
	_ = s.listener.Close()

	s.mu.Lock()
	s.closing = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Banner returns the welcome banner sent on every connection.
func (s *Server) Banner() string {
	if s.banner != nil {
		return *s.banner
	}
	return DefaultPreamble + "### Digest seed: " + s.seed + "\n\n"
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			_ = c.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, c)
				s.mu.Unlock()
				_ = c.Close()
			}()
			s.handle(c)
		}()
	}
}

func (s *Server) handle(c net.Conn) {
	if err := s.write(c, s.Banner()); err != nil {
		return
	}

	authed := false
	r := bufio.NewReader(c)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimSuffix(strings.TrimPrefix(line, string(rune(rcon.StartOfText))), "\n")

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		var resp string
		bare := false
		switch {
		case strings.HasPrefix(cmd, "login "):
			if strings.TrimPrefix(cmd, "login ") == rcon.LoginDigest(s.seed, s.password) {
				authed = true
				resp = rcon.SuccessLiteral
			} else {
				resp = FailureResponse
			}
		case !authed:
			resp = "Not authenticated."
		default:
			resp = s.handler(cmd)
			bare = s.bareTerminator
		}

		if err := s.write(c, frame(resp, bare)); err != nil {
			return
		}
	}
}

func frame(resp string, bare bool) string {
	if bare {
		return resp + rcon.ResponseTerminator
	}
	return resp + "\n" + rcon.ResponseTerminator
}

func (s *Server) write(c net.Conn, msg string) error {
	b := []byte(msg)
	n := s.chunkSize
	if n <= 0 {
		n = len(b)
	}
	for len(b) > 0 {
		chunk := b[:min(n, len(b))]
		if _, err := c.Write(chunk); err != nil {
			return err
		}
		b = b[len(chunk):]
	}
	return nil
}
