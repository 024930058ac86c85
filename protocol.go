// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

const (
	// StartOfText is the control byte that opens every request frame.
	StartOfText = 0x02

	// EndOfTransmission is the control byte that terminates every response frame.
	EndOfTransmission = 0x04
)

const (
	// BannerTerminator ends the welcome banner a server sends on connect.
	BannerTerminator = "\n\n"

	// ResponseTerminator ends every response frame.
	ResponseTerminator = string(rune(EndOfTransmission))

	// responseTrailer is stripped from responses when present. Servers that omit the newline
	// leave the terminator in place.
	responseTrailer = "\n" + ResponseTerminator
)

// Request is a single command frame sent from a client to a server.
type Request struct {
	// Command is the opaque command text. The protocol assigns it no meaning.
	Command string
}

// MarshalBinary encodes the receiving [Request] as a start-of-text byte, the command text, and a
// trailing newline. This satisfies the [encoding.BinaryMarshaler] interface.
func (r Request) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, len(r.Command)+2)
	b = append(b, StartOfText)
	b = append(b, r.Command...)
	b = append(b, '\n')
	return b, nil
}

// WriteTo writes the framed request to w in a single Write call. This method satisfies the
// [io.WriterTo] interface.
func (r Request) WriteTo(w io.Writer) (int64, error) {
	bs, err := r.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(bs)

	return int64(n), err
}

// Drain reads from r into buf until the accumulated text ends with terminator and returns
// everything read, terminator included. buf is scratch space and is reused for every read.
//
// The terminator is matched against the accumulated bytes rather than any single read, so the
// result does not depend on how the stream is fragmented. Text is decoded once over the whole
// accumulation, which keeps multi-byte characters split across reads intact. Invalid UTF-8 is
// replaced with U+FFFD.
//
// Reaching [io.EOF] before the terminator is not an error here: the partial text is returned
// with a nil error and callers decide whether a missing terminator is a protocol violation. Any
// other read error is returned alongside the text accumulated so far.
func Drain(r io.Reader, buf []byte, terminator string) (string, error) {
	if len(buf) == 0 || terminator == "" {
		return "", ErrInvalidDrainArgs
	}

	term := []byte(terminator)
	var msg []byte
	for {
		n, err := r.Read(buf)
		msg = append(msg, buf[:n]...)
		if bytes.HasSuffix(msg, term) {
			break
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return decodeText(msg), err
		}
	}

	return decodeText(msg), nil
}

// StripTrailer removes a trailing newline and end-of-transmission pair from s. Any other ending,
// including a bare end-of-transmission byte, is returned unmodified.
func StripTrailer(s string) string {
	if strings.HasSuffix(s, responseTrailer) {
		return s[:len(s)-len(responseTrailer)]
	}
	return s
}

func decodeText(b []byte) string {
	s, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
