package prober

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"
)

// PortProber implements the port_check monitor type (spec §4.8).
type PortProber struct{}

func NewPortProber() *PortProber { return &PortProber{} }

func (p *PortProber) Probe(ctx context.Context, target string, config map[string]interface{}) (*Result, error) {
	port := intField(config, "port", 0)
	if port <= 0 {
		return &Result{Status: StatusError, Error: "port_check requires config.port"}, nil
	}
	protocol := strings.ToLower(stringField(config, "protocol", "tcp"))
	timeoutSec := intField(config, "timeoutSeconds", 10)
	timeout := time.Duration(timeoutSec) * time.Second

	addr := net.JoinHostPort(target, strconv.Itoa(port))

	if protocol == "udp" {
		return p.probeUDP(ctx, addr, timeout)
	}
	return p.probeTCP(ctx, addr, timeout)
}

func (p *PortProber) probeTCP(ctx context.Context, addr string, timeout time.Duration) (*Result, error) {
	dialer := &net.Dialer{Timeout: timeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)

	if err != nil {
		return classifyDialError(err, elapsed), nil
	}
	conn.Close()
	return &Result{Status: StatusUp, IsUp: true, ResponseTimeMs: durationMs(elapsed)}, nil
}

// probeUDP sends a 4-byte probe datagram; absence of an ICMP port-unreachable
// error within the timeout is treated as best-effort "up" (spec §4.8).
func (p *PortProber) probeUDP(ctx context.Context, addr string, timeout time.Duration) (*Result, error) {
	dialer := &net.Dialer{Timeout: timeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return classifyDialError(err, time.Since(start)), nil
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return &Result{Status: StatusError, Error: err.Error()}, nil
	}

	if _, err := conn.Write([]byte{0, 0, 0, 0}); err != nil {
		return classifyDialError(err, time.Since(start)), nil
	}

	buf := make([]byte, 512)
	_, err = conn.Read(buf)
	elapsed := time.Since(start)

	if err == nil {
		return &Result{Status: StatusUp, IsUp: true, ResponseTimeMs: durationMs(elapsed),
			Details: map[string]interface{}{"note": "received response"}}, nil
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		// No ICMP unreachable observed within the window: best-effort up.
		return &Result{Status: StatusUp, IsUp: true, ResponseTimeMs: durationMs(elapsed),
			Details: map[string]interface{}{"note": "no response within timeout, treated as up (best-effort)"}}, nil
	}
	return classifyDialError(err, elapsed), nil
}

func classifyDialError(err error, elapsed time.Duration) *Result {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "timeout"):
		return &Result{Status: StatusTimeout, ResponseTimeMs: durationMs(elapsed), Error: msg}
	case strings.Contains(lower, "refused"), strings.Contains(lower, "unreachable"):
		return &Result{Status: StatusDown, ResponseTimeMs: durationMs(elapsed), Error: msg}
	default:
		return &Result{Status: StatusDown, ResponseTimeMs: durationMs(elapsed), Error: msg}
	}
}
