package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoorsehhat/sehhat/core/evaluation"
	"github.com/umoorsehhat/sehhat/core/user"
)

func Test_evaluationApi(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	aamilToken := getToken(t, stack.Conf, c.aamil1)
	memberToken := getToken(t, stack.Conf, c.member1)

	newForm := evaluation.NewForm{
		Title:      "Clinic feedback",
		TargetRole: user.RolePatient,
		Criteria: []evaluation.NewCriterion{
			{Name: "Punctuality", Weight: 2, MaxScore: 5},
			{Name: "Care", Weight: 1, MaxScore: 10},
		},
	}

	tests := []httpTest{
		{
			name:     "staff required",
			method:   http.MethodPost,
			path:     "/v1/evaluations/forms",
			body:     marshalObj(t, newForm),
			token:    memberToken,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name:     "criteria required",
			method:   http.MethodPost,
			path:     "/v1/evaluations/forms",
			body:     marshalObj(t, evaluation.NewForm{Title: "Empty"}),
			token:    aamilToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"criteria": "this field is required"}),
		},
		{
			name:     "invalid target role",
			method:   http.MethodPost,
			path:     "/v1/evaluations/forms",
			body:     marshalObj(t, evaluation.NewForm{Title: "Roles", TargetRole: "janitor", Criteria: newForm.Criteria}),
			token:    aamilToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"target_role": "target role must be 'all' or a valid role"}),
		},
	}
	runHTTPTests(t, app, tests)

	var form evaluation.Form
	rec := do(t, app, http.MethodPost, "/v1/evaluations/forms", aamilToken, newForm, &form)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, evaluation.TypeGeneral, form.EvaluationType)
	assert.True(t, form.IsActive)
	base := "/v1/evaluations/forms/" + form.ID

	var doctorsOnly evaluation.Form
	rec = do(t, app, http.MethodPost, "/v1/evaluations/forms", aamilToken, evaluation.NewForm{
		Title:      "Doctors only",
		TargetRole: user.RoleDoctor,
		Criteria:   []evaluation.NewCriterion{{Name: "Workload"}},
	}, &doctorsOnly)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("visibility", func(t *testing.T) {
		var forms []evaluation.Form
		do(t, app, http.MethodGet, "/v1/evaluations/forms", memberToken, nil, &forms)
		require.Len(t, forms, 1)
		assert.Equal(t, form.ID, forms[0].ID)

		rec := do(t, app, http.MethodGet, "/v1/evaluations/forms/"+doctorsOnly.ID, memberToken, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		do(t, app, http.MethodGet, "/v1/evaluations/forms", aamilToken, nil, &forms)
		assert.Len(t, forms, 2)
	})

	var criteria []evaluation.Criterion
	{
		var f evaluation.Form
		rec := do(t, app, http.MethodGet, base, memberToken, nil, &f)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Len(t, f.Criteria, 2)
		criteria = f.Criteria
	}

	t.Run("submit", func(t *testing.T) {
		rec := do(t, app, http.MethodPost, base+"/submit", memberToken, evaluation.NewSubmission{
			Answers: []evaluation.Answer{{CriterionID: criteria[0].ID, Score: 5}},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "every criterion is answered")

		rec = do(t, app, http.MethodPost, base+"/submit", memberToken, evaluation.NewSubmission{
			Answers: []evaluation.Answer{{CriterionID: criteria[0].ID, Score: 5}, {CriterionID: criteria[1].ID, Score: 11}},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "scores are bounded")

		var sub evaluation.Submission
		answers := []evaluation.Answer{{CriterionID: criteria[0].ID, Score: 5}, {CriterionID: criteria[1].ID, Score: 5}}
		rec = do(t, app, http.MethodPost, base+"/submit", memberToken, evaluation.NewSubmission{Answers: answers}, &sub)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, 83.33, sub.TotalScore)

		rec = do(t, app, http.MethodPost, base+"/submit", memberToken, evaluation.NewSubmission{Answers: answers}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		var mine []evaluation.Submission
		do(t, app, http.MethodGet, "/v1/evaluations/submissions/mine", memberToken, nil, &mine)
		assert.Len(t, mine, 1)
	})

	t.Run("stats", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, base+"/stats", memberToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		var stats evaluation.Stats
		rec = do(t, app, http.MethodGet, base+"/stats", aamilToken, nil, &stats)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, stats.Submissions)
		assert.Equal(t, 83.33, stats.AverageScore)
		require.Len(t, stats.Criteria, 2)
		assert.Equal(t, 5.0, stats.Criteria[0].AverageScore)
	})

	t.Run("update", func(t *testing.T) {
		endsAt := time.Now().Add(24 * time.Hour)
		rec := do(t, app, http.MethodPut, base, aamilToken, evaluation.UpdateForm{EndsAt: &endsAt}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, "the window is frozen once answered")

		title := "Clinic feedback 2026"
		var f evaluation.Form
		rec = do(t, app, http.MethodPut, base, aamilToken, evaluation.UpdateForm{Title: title}, &f)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, title, f.Title)

		rec = do(t, app, http.MethodPut, base, memberToken, evaluation.UpdateForm{Title: "Mine"}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, app, http.MethodDelete, base, memberToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(t, app, http.MethodDelete, base, aamilToken, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
