//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package transport

import (
	"errors"
	"io"
	"time"
)

const probeWindow = time.Millisecond

// readable has no zero-wait poll to lean on here, so it reads with a 1ms
// deadline and stashes whatever arrived for the next read.
func (c *Client) readable() (bool, error) {
	if len(c.stash) > 0 {
		return true, nil
	}
	var deadline time.Time
	if err := c.conn.SetReadDeadline(time.Now().Add(probeWindow)); err != nil {
		return false, err
	}
	defer c.conn.SetReadDeadline(deadline)

	chunk := make([]byte, 4096)
	n, err := c.conn.Read(chunk)
	if n > 0 {
		c.stash = append(c.stash, chunk[:n]...)
		return true, nil
	}
	switch {
	case err == nil:
		return false, nil
	case isTimeout(err):
		return false, nil
	case errors.Is(err, io.EOF):
		return true, nil
	default:
		return false, err
	}
}

func (c *Client) peek() (int, error) {
	return len(c.stash), nil
}
