package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSpecificQuestion(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		specific bool
	}{
		{"price question", "What's the PRICE on this one?", true},
		{"bedroom count", "how many bedrooms does it have", true},
		{"address", "Can you give me the address?", true},
		{"showing", "I'd like to book a showing", true},
		{"embedded keyword", "is the neighborhood gated?", true},
		{"greeting", "Hello! Tell me about this home", false},
		{"general", "Is it a nice neighborhood for families?", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.specific, IsSpecificQuestion(tt.msg))
		})
	}
}

func TestFindPhoneNumber(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"us formatted", "call me at (415) 555-2671 thanks", "+14155552671"},
		{"dashed", "my number is 415-555-2671", "+14155552671"},
		{"e164", "reach me on +14155552671", "+14155552671"},
		{"no number", "call me whenever works", ""},
		{"too short", "I have 3 kids and 2 dogs", ""},
		{"zip code only", "the 94110 area", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindPhoneNumber(tt.msg, ""))
		})
	}
}
