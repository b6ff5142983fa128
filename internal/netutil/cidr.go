// Package netutil turns the target flags into a list of probe targets.
package netutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// MaxTargets bounds CIDR expansion so a typo like /8 fails fast.
const MaxTargets = 65536

// ParseTarget reads "host", "host:port" or "[v6]:port". The port defaults
// to defaultPort.
func ParseTarget(s string, defaultPort int) (testcase.Target, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return testcase.Target{}, fmt.Errorf("empty target")
	}
	host, portText, err := net.SplitHostPort(s)
	if err != nil {
		// No port given.
		return testcase.Target{Host: strings.Trim(s, "[]"), Port: defaultPort}, nil
	}
	port, err := parsePort(portText)
	if err != nil {
		return testcase.Target{}, err
	}
	if host == "" {
		return testcase.Target{}, fmt.Errorf("invalid target %q: missing host", s)
	}
	return testcase.Target{Host: host, Port: port}, nil
}

// ExpandTargets takes a CIDR range (or a single IP) and a port list such
// as "80,8080,9000-9002", and returns one target per address and port.
func ExpandTargets(cidr string, portsStr string) ([]testcase.Target, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		// Maybe it's a single IP, not a CIDR.
		ip = net.ParseIP(cidr)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %q", cidr)
		}
		mask := net.CIDRMask(32, 32)
		if ip.To4() == nil {
			mask = net.CIDRMask(128, 128)
		} else {
			ip = ip.To4()
		}
		ipnet = &net.IPNet{IP: ip, Mask: mask}
	}

	ports, err := ParsePorts(portsStr)
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		ports = []int{80}
	}

	ones, bits := ipnet.Mask.Size()
	if bits-ones > 30 || (1<<uint(bits-ones))*len(ports) > MaxTargets {
		return nil, fmt.Errorf("%s with %d port(s) expands to more than %d targets", cidr, len(ports), MaxTargets)
	}

	var targets []testcase.Target
	for ip := ip.Mask(ipnet.Mask); ipnet.Contains(ip); inc(ip) {
		// Skip network and broadcast addresses for /30 and larger.
		if bits-ones > 1 {
			if ip.Equal(ipnet.IP.Mask(ipnet.Mask)) {
				continue // network address
			}
			if ip.Equal(broadcastAddr(ipnet)) {
				continue // broadcast address
			}
		}
		for _, port := range ports {
			targets = append(targets, testcase.Target{Host: ip.String(), Port: port})
		}
	}
	return targets, nil
}

// ParsePorts reads a comma-separated list of ports and inclusive ranges.
func ParsePorts(s string) ([]int, error) {
	var ports []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(p, "-")
		if !isRange {
			port, err := parsePort(p)
			if err != nil {
				return nil, err
			}
			ports = append(ports, port)
			continue
		}
		a, err := parsePort(lo)
		if err != nil {
			return nil, err
		}
		b, err := parsePort(hi)
		if err != nil {
			return nil, err
		}
		if a > b {
			return nil, fmt.Errorf("invalid port range %q", p)
		}
		for port := a; port <= b; port++ {
			ports = append(ports, port)
		}
	}
	return ports, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}

func inc(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

func broadcastAddr(n *net.IPNet) net.IP {
	base := n.IP.Mask(n.Mask)
	ip := make(net.IP, len(base))
	for i := range ip {
		ip[i] = base[i] | ^n.Mask[i]
	}
	return ip
}
