package base

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// isStale polls the connection for any event without waiting. Between two
// exchanges the daemon never sends anything, so a readable, hung up or failed
// socket means the cached connection can't be used anymore.
func isStale(conn net.Conn) bool {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return true
	}

	stale := false
	err = raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			n, err := unix.Poll(fds, 0)
			if err == unix.EINTR {
				continue
			}
			stale = err != nil || (n > 0 && fds[0].Revents != 0)
			return
		}
	})
	return stale || err != nil
}
