package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

func TestFindTimeTokens_Formats(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		hour   int
		minute int
	}{
		{"colon 24h", "14:30 walk", 14, 30},
		{"colon 12h am", "6:30 AM- oats", 6, 30},
		{"colon 12h pm", "4:15 PM tea", 16, 15},
		{"hour with space", "6 AM- almonds", 6, 0},
		{"hour attached", "8AM- breakfast", 8, 0},
		{"hour attached trailing dash", "8PM- dinner", 20, 0},
		{"noon", "12 PM lunch", 12, 0},
		{"midnight", "12 AM water", 0, 0},
		{"pm adds twelve", "11 PM sleep", 23, 0},
		{"lowercase", "7 pm soup", 19, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := FindTimeTokens(tt.line)
			require.Len(t, tokens, 1, "line %q", tt.line)
			assert.Equal(t, tt.hour, tokens[0].Hour)
			assert.Equal(t, tt.minute, tokens[0].Minute)
		})
	}
}

func TestFindTimeTokens_NoFalsePositives(t *testing.T) {
	lines := []string{
		"drink 2 glasses of water",
		"take 50 gm paneer",
		"no clock here",
		"",
		"25:10 not a time",
		"13 PM impossible",
	}
	for _, line := range lines {
		assert.Empty(t, FindTimeTokens(line), "line %q", line)
	}
}

func TestFindTimeTokens_OverlapResolution(t *testing.T) {
	// "6:30 PM" must be one token, not a second match on "30 PM".
	tokens := FindTimeTokens("6:30 PM- dinner")
	require.Len(t, tokens, 1)
	assert.Equal(t, 18, tokens[0].Hour)
	assert.Equal(t, 30, tokens[0].Minute)
}

func TestFindTimeTokens_MultipleOrdered(t *testing.T) {
	tokens := FindTimeTokens("6 AM- almonds 8:30 AM- oats")
	require.Len(t, tokens, 2)
	assert.Equal(t, 6, tokens[0].Hour)
	assert.Equal(t, 8, tokens[1].Hour)
	assert.Equal(t, 30, tokens[1].Minute)
	assert.Less(t, tokens[0].Start, tokens[1].Start)
}

func TestFindDayHeaders(t *testing.T) {
	lines := []string{
		"THURSDAY - 14th AUG",
		"6 AM- almonds",
		"friday: 15 aug",
		"on monday we rest", // not anchored at a header shape
		"Saturday, 16 Aug",
		"SUNDAY",            // no separator + date suffix
	}
	headers := FindDayHeaders(lines)
	require.Len(t, headers, 3)

	assert.Equal(t, 0, headers[0].LineIndex)
	assert.Equal(t, types.Thursday, headers[0].Day)
	assert.Equal(t, 2, headers[1].LineIndex)
	assert.Equal(t, types.Friday, headers[1].Day)
	assert.Equal(t, 4, headers[2].LineIndex)
	assert.Equal(t, types.Saturday, headers[2].Day)
}

func TestTo24Hour(t *testing.T) {
	tests := []struct {
		hour     int
		meridiem string
		want     int
		ok       bool
	}{
		{12, "am", 0, true},
		{12, "pm", 12, true},
		{1, "pm", 13, true},
		{11, "pm", 23, true},
		{9, "am", 9, true},
		{0, "am", 0, false},
		{13, "pm", 0, false},
	}
	for _, tt := range tests {
		got, ok := to24Hour(tt.hour, tt.meridiem)
		assert.Equal(t, tt.ok, ok, "%d %s", tt.hour, tt.meridiem)
		if tt.ok {
			assert.Equal(t, tt.want, got, "%d %s", tt.hour, tt.meridiem)
		}
	}
}
