//go:build !windows

package prober

import "strconv"

func pingCommand(target string, timeoutSec int) (string, []string) {
	return "ping", []string{"-c", "1", "-W", strconv.Itoa(timeoutSec), target}
}
