package evalsvc

import (
	"strings"
	"testing"
)

func TestGenerateRestriction(t *testing.T) {
	tests := []struct {
		name        string
		finalAnswer string
		want        string
	}{
		{
			name:        "numeric answer",
			finalAnswer: "42",
			want:        "Provide only numerical values in your response. No yapping.",
		},
		{
			name:        "numeric answer with spaces",
			finalAnswer: "1 2 3",
			want:        "Provide only numerical values in your response. No yapping.",
		},
		{
			name:        "long answer",
			finalAnswer: "a very long descriptive final answer text with many more words",
			want:        "No yapping.",
		},
		{
			name:        "short textual answer",
			finalAnswer: "right ascension",
			want:        "Restrict your response to 2 words only. No yapping.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generateRestriction(tt.finalAnswer); got != tt.want {
				t.Errorf("generateRestriction(%q) = %q, want %q", tt.finalAnswer, got, tt.want)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	fresh := buildQuestion("What is 6 times 7?", "42", "")
	if !strings.HasPrefix(fresh, "What is 6 times 7?") {
		t.Errorf("fresh question = %q", fresh)
	}
	if strings.Contains(fresh, rectification) {
		t.Error("fresh question carries the rectification preamble")
	}

	retry := buildQuestion("What is 6 times 7?", "42", "multiply the numbers")
	if !strings.HasPrefix(retry, rectification) {
		t.Errorf("retry question = %q", retry)
	}
	if !strings.Contains(retry, "Steps: multiply the numbers") {
		t.Errorf("retry question lacks the corrected steps: %q", retry)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens(""); got != 0 {
		t.Errorf("estimateTokens(\"\") = %d", got)
	}
	if got := estimateTokens("abcd"); got != 1 {
		t.Errorf("estimateTokens(4 chars) = %d, want 1", got)
	}
	if got := estimateTokens("abcde"); got != 2 {
		t.Errorf("estimateTokens(5 chars) = %d, want 2", got)
	}
}

func TestRound4(t *testing.T) {
	if got := round4(0.00123456); got != 0.0012 {
		t.Errorf("round4 = %v", got)
	}
}
