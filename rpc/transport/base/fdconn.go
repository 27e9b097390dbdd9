//go:build linux

package base

import (
	"io"

	"golang.org/x/sys/unix"
)

// fdConn adapts a non-blocking socket descriptor to IConn.
// Interrupted calls are retried, EAGAIN is reported as ErrWouldBlock.
type fdConn struct {
	fd int
}

func (c *fdConn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err != nil:
			return 0, err
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

func (c *fdConn) Write(p []byte) (int, error) {
	for {
		// MSG_NOSIGNAL: a vanished peer yields EPIPE instead of a signal
		n, err := unix.SendmsgN(c.fd, p, nil, nil, unix.MSG_NOSIGNAL)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err != nil:
			return 0, err
		}
		return n, nil
	}
}

func (c *fdConn) Close() error {
	return unix.Close(c.fd)
}
