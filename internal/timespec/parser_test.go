package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	ms, err := Parse("15m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-15*time.Minute).UnixMilli(), ms)

	ms, err = Parse("2026-10-19T09:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC).UnixMilli(), ms)

	for _, bad := range []string{"", "yesterday", "-5m"} {
		_, err := Parse(bad, now)
		assert.Error(t, err, bad)
	}
}

func TestParseRange(t *testing.T) {
	since, until, err := ParseRange("", "", now)
	require.NoError(t, err)
	assert.Zero(t, since)
	assert.Zero(t, until)

	since, until, err = ParseRange("2h", "1h", now)
	require.NoError(t, err)
	assert.Less(t, since, until)

	_, _, err = ParseRange("1h", "2h", now)
	assert.ErrorContains(t, err, "--since must be before --until")

	_, _, err = ParseRange("soon", "", now)
	assert.ErrorContains(t, err, "invalid --since")

	_, _, err = ParseRange("", "later", now)
	assert.ErrorContains(t, err, "invalid --until")
}
