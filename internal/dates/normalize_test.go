package dates

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/stratbook/pkg/logger"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"canonical", "2024-01-05", "2024-01-05", true},
		{"canonical with spaces", "  2024-01-05 ", "2024-01-05", true},
		{"single digit month and day", "2024-1-5", "2024-01-05", true},
		{"single digit day", "2024-11-5", "2024-11-05", true},
		{"us slash", "1/5/2024", "2024-01-05", true},
		{"us slash padded", "01/05/2024", "2024-01-05", true},
		{"us dash", "1-5-2024", "2024-01-05", true},
		{"two digit year", "1/5/24", "2024-01-05", true},
		{"day first when month is impossible", "13/05/2024", "2024-05-13", true},
		{"dotted day first", "05.01.2024", "2024-01-05", true},
		{"year first slash", "2024/01/05", "2024-01-05", true},
		{"year first dotted", "2024.01.05", "2024-01-05", true},
		{"short month name", "Jan 5, 2024", "2024-01-05", true},
		{"lower case month name", "jan 05, 2024", "2024-01-05", true},
		{"long month name", "January 5, 2024", "2024-01-05", true},
		{"day then month name", "5 January 2024", "2024-01-05", true},
		{"day then short month", "05 Jan 2024", "2024-01-05", true},
		{"timestamp", "2024-01-05 15:30:00", "2024-01-05", true},
		{"iso timestamp", "2024-01-05T15:30:00Z", "2024-01-05", true},
		{"compact", "20240105", "2024-01-05", true},
		{"garbage", "next tuesday", "next tuesday", false},
		{"impossible loose iso", "2024-2-30", "2024-2-30", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"2024-1-5", "1/5/2024", "13/05/2024", "Jan 5, 2024", "05.01.2024", "2024.01.05"}

	for _, in := range inputs {
		once, ok := Normalize(in)
		require.True(t, ok, in)

		twice, ok := Normalize(once)
		require.True(t, ok, in)
		assert.Equal(t, once, twice, in)
	}
}

func TestNormalizeOrWarn(t *testing.T) {
	var buf bytes.Buffer
	log := logger.FromZerolog(zerolog.New(&buf))

	assert.Equal(t, "2024-01-05", NormalizeOrWarn(log, "1/5/2024"))
	assert.Empty(t, buf.String())

	assert.Equal(t, "", NormalizeOrWarn(log, ""))
	assert.Empty(t, buf.String())

	assert.Equal(t, "someday", NormalizeOrWarn(log, "someday"))
	assert.Contains(t, buf.String(), "Could not normalize date")
	assert.Contains(t, buf.String(), "someday")
}

func TestTodayAt(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC is still the previous evening in New York
	now := time.Date(2024, 1, 6, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-01-05", TodayAt(now, ny))
	assert.Equal(t, "2024-01-06", TodayAt(now, nil))
}

func TestToday(t *testing.T) {
	got := Today(time.UTC)
	_, ok := Normalize(got)
	assert.True(t, ok)
	assert.Len(t, got, 10)
}
