//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

// readable polls the socket with a zero timeout. Hang-ups and errors count
// as readable so the following read or peek can observe them.
func (c *Client) readable() (bool, error) {
	if len(c.stash) > 0 {
		return true, nil
	}
	rc, err := c.conn.SyscallConn()
	if err != nil {
		return false, err
	}
	var ready bool
	var pollErr error
	err = rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			n, err := unix.Poll(fds, 0)
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if err != nil {
				pollErr = err
				return
			}
			ready = n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
			return
		}
	})
	if err != nil {
		return false, err
	}
	return ready, pollErr
}

// peek looks at one byte without consuming it.
func (c *Client) peek() (int, error) {
	if len(c.stash) > 0 {
		return len(c.stash), nil
	}
	rc, err := c.conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var peekErr error
	err = rc.Control(func(fd uintptr) {
		var b [1]byte
		n, _, peekErr = unix.Recvfrom(int(fd), b[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
	})
	if err != nil {
		return 0, err
	}
	if errors.Is(peekErr, unix.EAGAIN) {
		// Readable a moment ago but nothing queued now: still open.
		return 1, nil
	}
	return n, peekErr
}
