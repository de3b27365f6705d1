package student

import "testing"

func TestLetterGrade(t *testing.T) {
	tests := []struct {
		score, max float64
		want       string
	}{
		{20, 20, "A"},
		{18, 20, "A"},
		{17.9, 20, "B"},
		{16, 20, "B"},
		{15, 20, "C"},
		{12, 20, "D"},
		{11.9, 20, "F"},
		{0, 20, "F"},
		{5, 0, "F"},
	}
	for _, tt := range tests {
		if got := LetterGrade(tt.score, tt.max); got != tt.want {
			t.Errorf("LetterGrade(%v, %v) = %q, want %q", tt.score, tt.max, got, tt.want)
		}
	}
}
