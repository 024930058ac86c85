// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon_test

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	rcon "github.com/schultz-is/digest-rcon"
	"github.com/schultz-is/digest-rcon/internal/rcontest"
)

func ExampleRequest_WriteTo() {
	var buf bytes.Buffer

	n, err := rcon.Request{Command: "info"}.WriteTo(&buf)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Wrote %d bytes: %0x\n", n, buf.Bytes())

	// Output:
	// Wrote 6 bytes: 02696e666f0a
}

func ExampleDrain() {
	r := strings.NewReader("players online: 3\n\x04")

	resp, err := rcon.Drain(r, make([]byte, 4), rcon.ResponseTerminator)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%q\n", rcon.StripTrailer(resp))

	// Output:
	// "players online: 3"
}

func ExampleLoginDigest() {
	seed, err := rcon.ParseDigestSeed("Welcome!\n### Digest seed: 0123456789abcdef\n\n")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(rcon.LoginDigest(seed, "secret"))

	// Output:
	// 116fecf84dd81c77b969dac1b22c8eef
}

func ExampleConnect() {
	srv := rcontest.NewServer("super secret password", func(string) string { return "pong" })
	defer srv.Close()

	s, err := rcon.Connect(context.Background(), rcon.Config{
		Host:     srv.Host,
		Port:     srv.Port,
		Password: "super secret password",
	})
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	result, err := s.Send(context.Background(), "ping")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Send result: %q\n", result)

	// Output:
	// Send result: "pong"
}

func ExampleConnect_authenticationFailed() {
	srv := rcontest.NewServer("super secret password", rcontest.Echo)
	defer srv.Close()

	_, err := rcon.Connect(context.Background(), rcon.Config{
		Host:     srv.Host,
		Port:     srv.Port,
		Password: "wrong password",
	})

	var authErr *rcon.AuthenticationError
	if errors.As(err, &authErr) {
		fmt.Printf("Server said: %q\n", authErr.Response)
	}

	// Output:
	// Server said: "Authentication failed."
}

func ExampleHandshake() {
	// Handshake authenticates over any net.Conn, such as a TLS connection to a server that
	// terminates TLS in front of its console.
	conn, err := tls.Dial("tcp", "192.0.2.1:27015", &tls.Config{ServerName: "rcon.example.com"})
	if err != nil {
		log.Fatal(err)
	}

	s, err := rcon.Handshake(context.Background(), conn, rcon.Config{Password: "super secret password"})
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	_, _ = s.Send(context.Background(), "status")
}

// Compile-time check that the standard dialer satisfies Dialer.
var _ rcon.Dialer = (*net.Dialer)(nil)
