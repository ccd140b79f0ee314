// Package cronplan computes next-fire times for cron expressions (spec
// §4.1). It wraps robfig/cron/v3's parser rather than hand-rolling field
// parsing: cron syntax has enough edge cases (ranges, steps, the optional
// seconds field) that reimplementing it would just reproduce the library
// with less testing behind it.
package cronplan

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/supercheck/core/internal/xerrors"
)

// parser accepts both standard 5-field (minute hour dom month dow) and an
// optional leading seconds field, per spec §6.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Next parses expr and returns its next fire time strictly after ref. An
// invalid expression is a hard user error — surfaced to the API layer,
// never retried, per spec §4.1 and §7.
func Next(expr string, ref time.Time) (time.Time, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, xerrors.UserError(xerrors.Wrapf(err, "invalid cron expression %q", expr))
	}
	return schedule.Next(ref), nil
}

// Valid reports whether expr parses without computing a next-fire time.
func Valid(expr string) bool {
	_, err := parser.Parse(expr)
	return err == nil
}
