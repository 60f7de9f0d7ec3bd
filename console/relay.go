// Package console bridges the guest's serial port to interactive
// clients. The console server owns a PTY pair whose replica side is
// handed to the hypervisor as the serial device; clients attach over a
// Unix socket and detach with an SSH-style escape sequence.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

const (
	stateNormal    escapeState = iota
	stateLineStart             // after CR/LF or at session start, escape char recognized here
	stateEscaped               // escape char received at line start

	// DefaultEscapeChar is Ctrl-], same as telnet and the SSH "~" idea.
	DefaultEscapeChar byte = 0x1D
)

// escapeState tracks the three-state escape detection machine. Escape
// sequences are only recognized at the start of a line, matching SSH
// client behavior.
type escapeState int

// Relay runs bidirectional I/O between the user's terminal and the
// console stream. rw is the attached Unix socket, or the PTY itself
// when attaching in-process. Returns nil on clean disconnect: escape
// sequence, EOF, or EIO from a vanished console.
func Relay(ctx context.Context, rw io.ReadWriter, escapeChar byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2) //nolint:mnd

	// console -> stdout
	go func() {
		_, err := io.Copy(os.Stdout, rw)
		errCh <- err
		cancel()
	}()

	// stdin -> console, with escape detection
	go func() {
		err := forwardInput(ctx, os.Stdin, rw, escapeChar)
		errCh <- err
		cancel()
	}()

	var firstErr error
	select {
	case <-ctx.Done():
		select {
		case err := <-errCh:
			if err != nil && !isCleanExit(err) {
				return err
			}
		default:
		}
		return nil
	case firstErr = <-errCh:
	}

	if firstErr == nil || isCleanExit(firstErr) {
		// cancel() already fired, the peer goroutine exits promptly:
		// forwardInput checks ctx.Done(), io.Copy returns on close.
		if secondErr := <-errCh; secondErr != nil && !isCleanExit(secondErr) {
			return secondErr
		}
		return nil
	}
	return firstErr
}

// FormatEscapeChar returns a human-readable form of the escape byte.
func FormatEscapeChar(b byte) string {
	if b >= 1 && b <= 0x1F {
		return "^" + string(rune(b+'@'))
	}
	return string(b)
}

// ParseEscapeChar parses the --escape-char flag value. It accepts
// caret notation for control characters ("^]", "^A") or a single raw
// character.
func ParseEscapeChar(s string) (byte, error) {
	if len(s) == 2 && s[0] == '^' {
		c := s[1]
		if c >= '@' && c <= '_' {
			return validateEscapeByte(c-'@', s)
		}
		if c >= 'a' && c <= 'z' {
			return validateEscapeByte(c-'a'+1, s)
		}
		return 0, fmt.Errorf("invalid caret notation %q (use ^A through ^_ or ^a through ^z)", s)
	}
	if len(s) == 1 {
		return validateEscapeByte(s[0], s)
	}
	return 0, fmt.Errorf("escape-char must be a single character or ^X caret notation, got %q", s)
}

func validateEscapeByte(b byte, original string) (byte, error) {
	switch {
	case b == 0:
		return 0, fmt.Errorf("NUL cannot be used as escape character")
	case b == '\r' || b == '\n':
		return 0, fmt.Errorf("CR/LF cannot be used as escape character (conflicts with line-start detection)")
	case b == '.' || b == '?':
		return 0, fmt.Errorf("%q cannot be used as escape character (conflicts with escape sequence commands)", original)
	case b == 0x7F: //nolint:mnd
		return 0, fmt.Errorf("DEL (0x7F) cannot be used as escape character")
	case b >= 0x80: //nolint:mnd
		return 0, fmt.Errorf("non-ASCII byte 0x%02X cannot be used as escape character", b)
	}
	return b, nil
}

// isCleanExit reports errors that mean the console went away normally.
func isCleanExit(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}

// forwardInput copies stdin to the console with escape sequence
// detection. Returns nil on disconnect (escape char followed by '.').
func forwardInput(ctx context.Context, stdin io.Reader, console io.Writer, escapeChar byte) error {
	state := stateLineStart // session start counts as line start
	buf := make([]byte, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := stdin.Read(buf)
		if n == 0 || err != nil {
			return err
		}
		b := buf[0]

		switch state {
		case stateNormal:
			if b == '\r' || b == '\n' {
				state = stateLineStart
			}
			if _, werr := console.Write(buf[:1]); werr != nil {
				return werr
			}

		case stateLineStart:
			if b == escapeChar {
				state = stateEscaped
				continue // held back until the next byte decides
			}
			if b == '\r' || b == '\n' {
				state = stateLineStart
			} else {
				state = stateNormal
			}
			if _, werr := console.Write(buf[:1]); werr != nil {
				return werr
			}

		case stateEscaped:
			switch b {
			case '.':
				return nil // disconnect
			case '?':
				esc := FormatEscapeChar(escapeChar)
				helpMsg := "\r\nSupported escape sequences:\r\n" +
					"  " + esc + ".  Disconnect\r\n" +
					"  " + esc + "?  This help\r\n" +
					"  " + esc + esc + "  Send escape character\r\n"
				_, _ = os.Stdout.Write([]byte(helpMsg))
				state = stateLineStart
				continue
			case escapeChar:
				state = stateNormal
				if _, werr := console.Write([]byte{escapeChar}); werr != nil {
					return werr
				}
			default:
				if b == '\r' || b == '\n' {
					state = stateLineStart
				} else {
					state = stateNormal
				}
				if _, werr := console.Write([]byte{escapeChar, b}); werr != nil {
					return werr
				}
			}
		}
	}
}
