package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizePriority covers the Hebrew report priority labels and pass-through.
func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"נמוכה", "Low"},
		{"בינונית", "Medium"},
		{"גבוהה", "High"},
		{"קריטית", "Critical"},
		{" גבוהה ", "High"},
		{"High", "High"},
		{"Critical", "Critical"},
		{"whatever", "whatever"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePriority(tt.in))
		})
	}
}

func TestPriorityLabel_RoundTrip(t *testing.T) {
	for _, p := range []string{"Low", "Medium", "High", "Critical"} {
		assert.Equal(t, p, NormalizePriority(PriorityLabel(Hebrew, p)))
		assert.Equal(t, p, PriorityLabel(English, p))
	}
}

func TestParse(t *testing.T) {
	assert.Equal(t, English, Parse("EN"))
	assert.Equal(t, Hebrew, Parse("he"))
	assert.Equal(t, Hebrew, Parse(""))
	assert.Equal(t, "rtl", Hebrew.Dir())
	assert.Equal(t, "ltr", English.Dir())
}

func TestHeaders_SameWidth(t *testing.T) {
	assert.Len(t, ScreenHeaders(Hebrew), len(ScreenHeaders(English)))
	assert.Len(t, ExportHeaders(Hebrew), len(ExportHeaders(English)))
}

// TestMessages_Complete makes sure every English key has a Hebrew translation.
func TestMessages_Complete(t *testing.T) {
	for key := range messages[English] {
		_, ok := messages[Hebrew][key]
		assert.True(t, ok, "missing Hebrew message %q", key)
	}
	assert.Equal(t, "no.such.key", T(Hebrew, "no.such.key"))
}
