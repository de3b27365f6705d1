package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/umoorsehhat/sehhat/core"
)

func TestScore(t *testing.T) {
	criteria := []Criterion{
		{ID: "c1", Name: "Punctuality", Weight: 1, MaxScore: 5},
		{ID: "c2", Name: "Care", Weight: 2, MaxScore: 10},
	}

	tests := []struct {
		name    string
		answers []Answer
		want    float64
		wantErr string
	}{
		{name: "full marks", answers: []Answer{{CriterionID: "c1", Score: 5}, {CriterionID: "c2", Score: 10}}, want: 100},
		{name: "weighted", answers: []Answer{{CriterionID: "c1", Score: 5}, {CriterionID: "c2", Score: 5}}, want: 66.67},
		{name: "zero", answers: []Answer{{CriterionID: "c1", Score: 0}, {CriterionID: "c2", Score: 0}}, want: 0},
		{name: "missing criterion", answers: []Answer{{CriterionID: "c1", Score: 5}}, wantErr: "every criterion must be answered"},
		{name: "unknown criterion", answers: []Answer{{CriterionID: "c3", Score: 1}}, wantErr: "unknown criterion c3"},
		{
			name:    "answered twice",
			answers: []Answer{{CriterionID: "c1", Score: 1}, {CriterionID: "c1", Score: 2}},
			wantErr: "criterion Punctuality answered twice",
		},
		{
			name:    "out of bounds",
			answers: []Answer{{CriterionID: "c1", Score: 6}, {CriterionID: "c2", Score: 1}},
			wantErr: "score of Punctuality is out of bounds",
		},
		{
			name:    "negative",
			answers: []Answer{{CriterionID: "c1", Score: 1}, {CriterionID: "c2", Score: -1}},
			wantErr: "score of Care is out of bounds",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(criteria, tt.answers)
			if tt.wantErr != "" {
				verr, ok := err.(*core.ValidationError)
				if assert.True(t, ok, "want *core.ValidationError, got %T", err) {
					assert.Equal(t, tt.wantErr, verr.Fields[0].Error)
				}
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("weightless", func(t *testing.T) {
		got, err := Score([]Criterion{{ID: "c1", Name: "Note", MaxScore: 5}}, []Answer{{CriterionID: "c1", Score: 3}})
		assert.NoError(t, err)
		assert.Zero(t, got)
	})
}

func TestForm_IsOpenAt(t *testing.T) {
	now := time.Now().UTC()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	tests := []struct {
		name string
		form Form
		want bool
	}{
		{name: "inactive", form: Form{}, want: false},
		{name: "no window", form: Form{IsActive: true}, want: true},
		{name: "not started", form: Form{IsActive: true, StartsAt: &future}, want: false},
		{name: "ended", form: Form{IsActive: true, EndsAt: &past}, want: false},
		{name: "within window", form: Form{IsActive: true, StartsAt: &past, EndsAt: &future}, want: true},
		{name: "ends now", form: Form{IsActive: true, EndsAt: &now}, want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.form.IsOpenAt(now))
		})
	}
}

func TestForm_IsOpenTo(t *testing.T) {
	assert.True(t, Form{TargetRole: TargetAll}.IsOpenTo("patient"))
	assert.True(t, Form{TargetRole: "doctor"}.IsOpenTo("doctor"))
	assert.False(t, Form{TargetRole: "doctor"}.IsOpenTo("patient"))
}
