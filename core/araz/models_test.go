package araz

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusSubmitted, StatusUnderReview, true},
		{StatusSubmitted, StatusScheduled, false},
		{StatusUnderReview, StatusApproved, true},
		{StatusApproved, StatusScheduled, true},
		{StatusApproved, StatusCompleted, false},
		{StatusScheduled, StatusCompleted, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusSubmitted, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusSubmitted, false},
		{StatusRejected, StatusApproved, false},
		{"lol", StatusApproved, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
