package cronplan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercheck/core/internal/xerrors"
)

func TestNext(t *testing.T) {
	ref := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	next, err := Next("*/15 * * * *", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 30, 10, 15, 0, 0, time.UTC), next)
}

func TestNextWithSecondsField(t *testing.T) {
	ref := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	next, err := Next("30 * * * * *", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 30, 10, 0, 30, 0, time.UTC), next)
}

func TestNextInvalidExpression(t *testing.T) {
	_, err := Next("not a cron expression", time.Now())
	require.Error(t, err)
	assert.True(t, xerrors.IsUserError(err))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("0 */6 * * *"))
	assert.False(t, Valid("garbage"))
}
