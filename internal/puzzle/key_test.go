package puzzle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestKey_RoundTrip(t *testing.T) {
	date := time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)
	key := RequestKey("alice@example", date, 7)
	assert.Equal(t, "request|2024-01-01|7@alice@example", key)

	inserter, day, index, err := ParseRequestKey(key)
	require.NoError(t, err)
	assert.Equal(t, "alice@example", inserter)
	assert.Equal(t, Day(date), day)
	assert.Equal(t, 7, index)
}

func TestParseRequestKey_Malformed(t *testing.T) {
	for _, key := range []string{
		"",
		"2024-01-01|0@alice",
		"request|2024-01-01|0",
		"request|2024-01-01|0@",
		"request|2024-01-01@alice",
		"request|yesterday|0@alice",
		"request|2024-01-01|-1@alice",
		"request|2024-01-01|x@alice",
	} {
		t.Run(key, func(t *testing.T) {
			_, _, _, err := ParseRequestKey(key)
			assert.ErrorIs(t, err, ErrMalformedKey)
		})
	}
}

func TestSolutionKey_RoundTrip(t *testing.T) {
	id := DeriveID("carol", TypeCaptcha, time.Now(), 2)
	key := SolutionKey(id)

	got, err := IDFromSolutionKey(key)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = IDFromSolutionKey(id)
	assert.ErrorIs(t, err, ErrMalformedKey)
	_, err = IDFromSolutionKey("solution|garbage@carol")
	assert.ErrorIs(t, err, ErrMalformedKey)
}
