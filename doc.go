// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

/*
Package rcon provides a client for the digest-seed RCON protocol, a line-oriented remote console
spoken over a raw byte stream.

A server greets each connection with a banner ending in a digest seed line:

	### Digest seed: 0123456789abcdef

The client proves knowledge of the shared password by sending the lowercase hex MD5 of the seed
followed by the password as "login <digest>". After authentication, commands are framed by a
start-of-text byte (0x02) and a trailing newline, and responses are terminated by an
end-of-transmission byte (0x04). Exactly one command may be in flight per [Session].

Use [Connect] to dial and authenticate in one step, or [Handshake] to authenticate over a
[net.Conn] the caller already holds.
*/
package rcon
