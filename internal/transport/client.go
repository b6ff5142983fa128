package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"
)

const (
	defaultTimeout          = 5 * time.Second
	defaultDrainDelay       = 100 * time.Millisecond
	defaultMaxResponseBytes = 64 * 1024
)

// ErrNotConnected is returned by Send when Connect never succeeded.
var ErrNotConnected = errors.New("transport: not connected")

var headerTerminator = []byte("\r\n\r\n")

// Config holds the timing knobs for one Client. Zero values take defaults.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration // defaults to ReadTimeout

	// DrainDelay is how long ReadResponse waits after the header terminator
	// before draining bytes flushed in a later segment.
	DrainDelay time.Duration

	// MaxResponseBytes bounds the capture buffer.
	MaxResponseBytes int
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = c.ReadTimeout
	}
	if c.DrainDelay < 0 {
		c.DrainDelay = 0
	} else if c.DrainDelay == 0 {
		c.DrainDelay = defaultDrainDelay
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	return c
}

// Capture is the outcome of one ReadResponse call.
type Capture struct {
	Data  []byte
	State ConnectionState
	// DoubleFlush reports that the drain phase picked up bytes that were
	// not there when the header terminator arrived.
	DoubleFlush bool
}

// Client owns a single TCP connection and performs byte-exact I/O on it.
// It knows nothing about HTTP beyond the CRLFCRLF header terminator.
// A Client is not safe for concurrent use.
type Client struct {
	cfg  Config
	conn *net.TCPConn
	buf  []byte

	// stash holds bytes consumed by a readiness probe on platforms
	// without a peekable poll; read serves them first.
	stash []byte
}

// New creates an unconnected Client.
func New(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

// Connect resolves host to an IPv4 address and opens a TCP connection to
// it under the connect timeout. The returned error is non-nil exactly when
// the state is not Open and only carries detail for display.
func (c *Client) Connect(ctx context.Context, host string, port int) (ConnectionState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return classifyDialError(ctx, fmt.Errorf("resolving %s: %w", host, err))
	}
	var ipv4 net.IP
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			ipv4 = v4
			break
		}
	}
	if ipv4 == nil {
		return Error, fmt.Errorf("resolving %s: no IPv4 address", host)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", net.JoinHostPort(ipv4.String(), strconv.Itoa(port)))
	if err != nil {
		return classifyDialError(ctx, err)
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return Error, fmt.Errorf("unexpected connection type %T", conn)
	}
	_ = tcp.SetNoDelay(true)
	c.conn = tcp
	return Open, nil
}

func classifyDialError(ctx context.Context, err error) (ConnectionState, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return TimedOut, err
	}
	return Error, err
}

// Send writes data in full, looping over partial writes.
func (c *Client) Send(data []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	for sent := 0; sent < len(data); {
		n, err := c.conn.Write(data[sent:])
		sent += n
		if err != nil {
			return fmt.Errorf("write after %d of %d bytes: %w", sent, len(data), err)
		}
	}
	return nil
}

// ReadResponse captures a response in two phases under one deadline.
// Phase 1 reads until CRLFCRLF, a full buffer, EOF or the deadline. Phase 2
// sleeps DrainDelay and then reads only what is immediately available,
// never blocking again.
func (c *Client) ReadResponse() Capture {
	if c.conn == nil {
		return Capture{State: Error}
	}
	if cap(c.buf) < c.cfg.MaxResponseBytes {
		c.buf = make([]byte, c.cfg.MaxResponseBytes)
	}
	buf := c.buf[:c.cfg.MaxResponseBytes]
	deadline := time.Now().Add(c.cfg.ReadTimeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return Capture{State: Error}
	}

	total := 0
	for total < len(buf) {
		n, err := c.read(buf[total:])
		from := max(0, total-len(headerTerminator)+1)
		total += n
		if err != nil {
			return c.capture(buf, total, stateForReadError(err), false)
		}
		if bytes.Contains(buf[from:total], headerTerminator) {
			break
		}
	}

	delay := c.cfg.DrainDelay
	if remaining := time.Until(deadline); remaining < delay {
		time.Sleep(max(remaining, 0))
		return c.capture(buf, total, TimedOut, false)
	}
	time.Sleep(delay)

	before := total
	total, state := c.drain(buf, total)
	return c.capture(buf, total, state, total > before)
}

func (c *Client) capture(buf []byte, n int, state ConnectionState, doubleFlush bool) Capture {
	data := make([]byte, n)
	copy(data, buf[:n])
	return Capture{Data: data, State: state, DoubleFlush: doubleFlush}
}

// drain consumes bytes that are already buffered at the socket.
func (c *Client) drain(buf []byte, total int) (int, ConnectionState) {
	for total < len(buf) {
		ready, err := c.readable()
		if err != nil {
			return total, ClosedByServer
		}
		if !ready {
			break
		}
		n, err := c.read(buf[total:])
		total += n
		if err != nil {
			return total, stateForReadError(err)
		}
		if n == 0 {
			break
		}
	}
	return total, Open
}

func (c *Client) read(p []byte) (int, error) {
	if len(c.stash) > 0 {
		n := copy(p, c.stash)
		c.stash = c.stash[n:]
		return n, nil
	}
	return c.conn.Read(p)
}

// CheckLiveness is a non-blocking point-in-time check. A readable socket
// whose one-byte peek returns zero means the peer already sent FIN.
func (c *Client) CheckLiveness() ConnectionState {
	if c.conn == nil {
		return ClosedByServer
	}
	ready, err := c.readable()
	if err != nil {
		return ClosedByServer
	}
	if !ready {
		return Open
	}
	n, err := c.peek()
	if err != nil || n == 0 {
		return ClosedByServer
	}
	return Open
}

// Close shuts the connection down and releases it. Errors are swallowed.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	_ = c.conn.CloseWrite()
	_ = c.conn.CloseRead()
	_ = c.conn.Close()
	c.conn = nil
	c.stash = nil
}

func stateForReadError(err error) ConnectionState {
	switch {
	case errors.Is(err, io.EOF):
		return ClosedByServer
	case isTimeout(err):
		return TimedOut
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE), errors.Is(err, net.ErrClosed):
		return ClosedByServer
	default:
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return ClosedByServer
		}
		return Error
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
