package prober

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// PingProber implements the ping_host monitor type (spec §4.8) by shelling
// out to the platform ping binary — the same process-exec idiom the
// executor package uses for the test-script runner, rather than requiring
// raw-socket privileges for ICMP.
type PingProber struct{}

func NewPingProber() *PingProber { return &PingProber{} }

var pingRTTPattern = regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`)

func (p *PingProber) Probe(ctx context.Context, target string, config map[string]interface{}) (*Result, error) {
	timeoutSec := intField(config, "timeoutSeconds", 5)
	timeout := time.Duration(timeoutSec) * time.Second

	cmdCtx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	name, args := pingCommand(target, timeoutSec)
	cmd := exec.CommandContext(cmdCtx, name, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if cmdCtx.Err() == context.DeadlineExceeded {
		return &Result{Status: StatusTimeout, ResponseTimeMs: durationMs(elapsed)}, nil
	}

	rtt := parsePingRTT(out.String())
	responseMs := rtt
	if responseMs == nil {
		responseMs = durationMs(elapsed)
	}

	if err != nil {
		return &Result{Status: StatusDown, IsUp: false, ResponseTimeMs: responseMs, Error: out.String()}, nil
	}

	return &Result{Status: StatusUp, IsUp: true, ResponseTimeMs: responseMs}, nil
}

func parsePingRTT(output string) *int {
	m := pingRTTPattern.FindStringSubmatch(output)
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	ms := int(f)
	return &ms
}
