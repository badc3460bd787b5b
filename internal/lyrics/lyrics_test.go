package lyrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"whitespace and blank lines", "  a  \n\n b \n", []string{"a", "b"}},
		{"empty input", "", []string{}},
		{"only whitespace", " \n\t\n  ", []string{}},
		{"preserves order", "one\ntwo\nthree", []string{"one", "two", "three"}},
		{"windows line endings", "first\r\nsecond\r\n", []string{"first", "second"}},
		{"old mac line endings", "first\rsecond", []string{"first", "second"}},
		{"inner spaces kept", "  hello   world  ", []string{"hello   world"}},
		{"duplicate lines kept", "la\nla\nla", []string{"la", "la", "la"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Strings(Segment(tt.in))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegment_Idempotent(t *testing.T) {
	inputs := []string{
		"  a  \n\n b \n",
		"Verse one\n\n\nChorus\r\n  bridge  \n",
		"",
		"single",
	}

	for _, in := range inputs {
		first := Segment(in)
		second := Segment(Join(first))
		assert.Equal(t, first, second, "input %q", in)
	}
}
