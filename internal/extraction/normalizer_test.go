package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Empty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("   \n\t\n  "))
}

func TestNormalize_StripsArtifacts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "backslashes",
			in:   `6 AM\- almonds \(soaked\)`,
			want: "6 AM- almonds (soaked)",
		},
		{
			name: "brace annotation",
			in:   "6 AM- almonds {soak overnight}",
			want: "6 AM- almonds",
		},
		{
			name: "bracket annotation",
			in:   "8 AM- oats [use rolled oats] with milk",
			want: "8 AM- oats with milk",
		},
		{
			name: "whitespace runs",
			in:   "6   AM-\t\talmonds",
			want: "6 AM- almonds",
		},
		{
			name: "windows line endings",
			in:   "MONDAY - 1 SEP\r\n6 AM- almonds\r\n",
			want: "MONDAY - 1 SEP\n6 AM- almonds",
		},
		{
			name: "blank line squeeze",
			in:   "a\n\n\n\n\nb",
			want: "a\n\nb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		`6 AM\- almonds {soaked} [note]   extra`,
		"THURSDAY - 14th AUG\n\n\n6 AM- almonds\n8:30 AM- oats",
		"{a {b} c}",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
