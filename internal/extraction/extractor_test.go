package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

func TestExtract_DayContextFlow(t *testing.T) {
	clean := Normalize(`THURSDAY - 14th AUG
6 AM- almonds
8:30 AM- oats with milk
FRIDAY - 15th AUG
6 AM- almonds`)

	res := Extract(clean)
	require.Len(t, res.Activities, 3)

	a := res.Activities[0]
	assert.Equal(t, "almonds", a.RawText)
	assert.Equal(t, 6, a.Hour)
	assert.Equal(t, 0, a.Minute)
	require.NotNil(t, a.Day)
	assert.Equal(t, types.Thursday, *a.Day)

	b := res.Activities[1]
	assert.Equal(t, "oats with milk", b.RawText)
	assert.Equal(t, 8, b.Hour)
	assert.Equal(t, 30, b.Minute)
	require.NotNil(t, b.Day)
	assert.Equal(t, types.Thursday, *b.Day)

	c := res.Activities[2]
	assert.Equal(t, "almonds", c.RawText)
	require.NotNil(t, c.Day)
	assert.Equal(t, types.Friday, *c.Day)
}

func TestExtract_NoDayHeaders(t *testing.T) {
	res := Extract(Normalize("6 AM- almonds\n1 PM- lunch"))
	require.Len(t, res.Activities, 2)
	assert.Nil(t, res.Activities[0].Day)
	assert.Nil(t, res.Activities[1].Day)
	assert.Equal(t, 13, res.Activities[1].Hour)
}

func TestExtract_StopsAtSecondTimeToken(t *testing.T) {
	// Two reminders on one line must not merge into one message.
	res := Extract("6 AM- almonds 8 AM- oats")
	require.Len(t, res.Activities, 1)
	assert.Equal(t, "almonds", res.Activities[0].RawText)
	assert.Equal(t, 6, res.Activities[0].Hour)
}

func TestExtract_StripsParentheticalNoise(t *testing.T) {
	res := Extract("7 AM- green tea (no sugar)")
	require.Len(t, res.Activities, 1)
	assert.Equal(t, "green tea", res.Activities[0].RawText)
}

func TestExtract_UntimedLinesIgnored(t *testing.T) {
	res := Extract(Normalize(`Drink plenty of water
6 AM- almonds
Avoid fried food`))
	require.Len(t, res.Activities, 1)
	assert.Equal(t, "almonds", res.Activities[0].RawText)
}

func TestExtract_EmptyAndMalformed(t *testing.T) {
	for _, in := range []string{"", "   ", "no times anywhere", "}{]["} {
		res := Extract(Normalize(in))
		assert.Empty(t, res.Activities, "input %q", in)
		assert.NotEmpty(t, res.Warnings, "input %q", in)
	}
}

func TestExtract_WarnsOnUnrecognizedTimedLine(t *testing.T) {
	res := Extract("6.30 oclock- almonds\n7 AM- oats")
	require.Len(t, res.Activities, 1)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "line 1")
}

func TestExtract_TimeTokenWithoutText(t *testing.T) {
	res := Extract("6 AM-")
	assert.Empty(t, res.Activities)
	assert.NotEmpty(t, res.Warnings)
}

func TestCleanActivityText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"- almonds", "almonds"},
		{": oats with milk ", "oats with milk"},
		{"– dinner (light)", "dinner"},
		{" , tea - ", "tea"},
		{"", ""},
		{"- ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanActivityText(tt.in), "input %q", tt.in)
	}
}
