package types

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaySet_Normalization(t *testing.T) {
	s := NewDaySet(Friday, Monday, Friday, Weekday(9), Monday)
	assert.Equal(t, DaySet{Monday, Friday}, s)
	assert.Equal(t, "mon,fri", s.String())
	assert.Equal(t, []int{0, 4}, s.Ints())
}

func TestDaySet_UnionAndEqual(t *testing.T) {
	a := NewDaySet(Thursday)
	b := NewDaySet(Friday, Thursday)

	u := a.Union(b)
	assert.Equal(t, DaySet{Thursday, Friday}, u)
	assert.True(t, u.Equal(NewDaySet(Friday, Thursday)))
	assert.False(t, u.Equal(a))

	// Union does not mutate its receivers.
	assert.Equal(t, DaySet{Thursday}, a)
}

func TestDaySet_Empty(t *testing.T) {
	assert.True(t, DaySet{}.IsEmpty())
	assert.True(t, DaySet(nil).IsEmpty())
	assert.True(t, NewDaySet(Weekday(-1), Weekday(7)).IsEmpty())
	assert.False(t, Workweek().IsEmpty())
}

func TestDaySetFromInts(t *testing.T) {
	s := DaySetFromInts([]int{6, 0, 6, 12})
	assert.Equal(t, DaySet{Monday, Sunday}, s)
}

func TestWorkweek(t *testing.T) {
	s := Workweek()
	require.Len(t, s, 5)
	assert.True(t, s.Contains(Monday))
	assert.True(t, s.Contains(Friday))
	assert.False(t, s.Contains(Saturday))
	assert.False(t, s.Contains(Sunday))
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in      string
		want    Weekday
		wantErr bool
	}{
		{"mon", Monday, false},
		{"MONDAY", Monday, false},
		{" thu ", Thursday, false},
		{"Sunday", Sunday, false},
		{"sun", Sunday, false},
		{"noday", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseWeekday(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestTimeOfDay(t *testing.T) {
	assert.True(t, TimeOfDay{Hour: 0, Minute: 0}.Valid())
	assert.True(t, TimeOfDay{Hour: 23, Minute: 59}.Valid())
	assert.False(t, TimeOfDay{Hour: 24, Minute: 0}.Valid())
	assert.False(t, TimeOfDay{Hour: 12, Minute: 60}.Valid())
	assert.Equal(t, "06:05", TimeOfDay{Hour: 6, Minute: 5}.String())
}

func TestRuleFingerprint(t *testing.T) {
	fp1 := RuleFingerprint("almonds", TimeOfDay{Hour: 6, Minute: 0})
	fp2 := RuleFingerprint("almonds", TimeOfDay{Hour: 6, Minute: 0})
	assert.Equal(t, fp1, fp2)

	// Leading/trailing whitespace does not change identity.
	assert.Equal(t, fp1, RuleFingerprint("  almonds ", TimeOfDay{Hour: 6, Minute: 0}))

	assert.NotEqual(t, fp1, RuleFingerprint("almonds", TimeOfDay{Hour: 6, Minute: 30}))
	assert.NotEqual(t, fp1, RuleFingerprint("walnuts", TimeOfDay{Hour: 6, Minute: 0}))
}

func TestInstanceStatus_Terminal(t *testing.T) {
	assert.False(t, InstanceScheduled.Terminal())
	assert.True(t, InstanceSent.Terminal())
	assert.True(t, InstanceFailed.Terminal())
	assert.True(t, InstanceCancelled.Terminal())
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeInvariantEmptyDaySet, http.StatusUnprocessableEntity},
		{ErrCodeInvariantPastOccurrence, http.StatusUnprocessableEntity},
		{ErrCodeNotFoundRule, http.StatusNotFound},
		{ErrCodeConflictConcurrent, http.StatusConflict},
		{ErrCodeTransportTimeout, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.HTTPStatus(), "code %s", tt.code)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := assert.AnError
	err := NewAppError(ErrCodeInternalDB, "query failed", inner)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "internal_database_error: query failed", err.Error())
}
