//go:build windows

package prober

import "strconv"

func pingCommand(target string, timeoutSec int) (string, []string) {
	return "ping", []string{"-n", "1", "-w", strconv.Itoa(timeoutSec * 1000), target}
}
