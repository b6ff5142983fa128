package testcase

import (
	"net"
	"strconv"
)

// Target identifies the server under test. It is immutable for a run.
type Target struct {
	Host string
	Port int
}

// HostHeader is the value payloads put in Host; port 80 is omitted.
func (t Target) HostHeader() string {
	if t.Port == 80 {
		return t.Host
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}
