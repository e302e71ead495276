package classifier

import (
	"strings"
	"testing"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"clean label", "tech", "tech"},
		{"upper case", "SPORT", "sport"},
		{"surrounding whitespace", "  politics \n", "politics"},
		{"trailing period", "entertainment.", "entertainment"},
		{"quoted", `"other"`, "other"},
		{"chatty prefix", "Label: tech", "tech"},
		{"chatty sentence", "The topic is sport.", "sport"},
		{"unexpected but well-formed label kept", "finance", "finance"},
		{"empty", "", ""},
		{"whitespace only", "   \n\t ", ""},
		{"only punctuation", `"."`, ""},
		{"absurdly long", strings.Repeat("x", 120), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLabel(tt.response); got != tt.want {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.response, got, tt.want)
			}
		})
	}
}
