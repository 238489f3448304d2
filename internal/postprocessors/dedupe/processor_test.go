package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"single sentence", "Paris is the capital.", "Paris is the capital."},
		{
			"repeat within paragraph",
			"Paris is the capital. Paris is the capital. It is in France.",
			"Paris is the capital. It is in France.",
		},
		{
			"repeat across paragraphs",
			"Paris is the capital.\nParis is the capital.\nIt is large.",
			"Paris is the capital.\n\nIt is large.",
		},
		{
			"whitespace-insensitive comparison",
			"The  answer is 42. The answer   is 42. Done",
			"The  answer is 42. Done",
		},
		{"blank lines dropped", "a\n\n\nb", "a\n\nb"},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Process(tt.input))
		})
	}
}

func TestProcessor_PreservesOrder(t *testing.T) {
	got := New().Process("B first. A second. B first. C third.")

	assert.Equal(t, "B first. A second. C third.", got)
}
