package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoorsehhat/sehhat/core/araz"
	"github.com/umoorsehhat/sehhat/core/notification"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/tests"
)

func Test_arazApi_workflow(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	doctor := testutil.CreateUser(t, stack.UserRepo, "Dr Taher", "drtaher", "taher@test.local", "", user.RoleDoctor, true)

	memberToken := getToken(t, stack.Conf, c.member1)
	aamilToken := getToken(t, stack.Conf, c.aamil1)
	doctorToken := getToken(t, stack.Conf, doctor)

	rec := do(t, app, http.MethodPost, "/v1/araz", memberToken, araz.NewAraz{Ailment: "Back pain", PreferredDoctorID: c.member2.ID}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "preferred doctor must be a doctor")

	var a araz.Araz
	rec = do(t, app, http.MethodPost, "/v1/araz", memberToken, araz.NewAraz{
		Ailment:           "Back pain",
		Symptoms:          "Since last week",
		Urgency:           "HIGH",
		PreferredDoctorID: doctor.ID,
	}, &a)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, araz.StatusSubmitted, a.Status)
	assert.Equal(t, araz.UrgencyHigh, a.Urgency)
	assert.Equal(t, "Member One", a.PatientName)
	assert.Equal(t, c.moze1, a.MozeID)
	base := "/v1/araz/" + a.ID

	t.Run("visibility", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, base, doctorToken, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code, "preferred doctors see the request")
		rec = do(t, app, http.MethodGet, base, getToken(t, stack.Conf, c.aamil2), nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var list []araz.Araz
		do(t, app, http.MethodGet, "/v1/araz?urgency=high", aamilToken, nil, &list)
		assert.Len(t, list, 1)
		do(t, app, http.MethodGet, "/v1/araz?urgency=low", aamilToken, nil, &list)
		assert.Len(t, list, 0)
		do(t, app, http.MethodGet, "/v1/araz", getToken(t, stack.Conf, c.member2), nil, &list)
		assert.Len(t, list, 0)
	})

	t.Run("update", func(t *testing.T) {
		symptoms := "Since last month"
		var updated araz.Araz
		rec := do(t, app, http.MethodPut, base, memberToken, araz.UpdateAraz{Symptoms: &symptoms}, &updated)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, symptoms, updated.Symptoms)
	})

	t.Run("schedule", func(t *testing.T) {
		future := time.Now().Add(48 * time.Hour)

		rec := do(t, app, http.MethodPost, base+"/schedule", memberToken, araz.Schedule{AppointmentAt: future}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(t, app, http.MethodPost, base+"/schedule", aamilToken, araz.Schedule{AppointmentAt: future}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "submitted requests are approved first")

		rec = do(t, app, http.MethodPost, base+"/status", aamilToken, araz.StatusUpdate{Status: araz.StatusApproved}, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = do(t, app, http.MethodPost, base+"/schedule", aamilToken, araz.Schedule{AppointmentAt: time.Now().Add(-time.Hour)}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "appointments are in the future")

		var scheduled araz.Araz
		rec = do(t, app, http.MethodPost, base+"/schedule", aamilToken, araz.Schedule{AppointmentAt: future}, &scheduled)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, araz.StatusScheduled, scheduled.Status)
		require.NotNil(t, scheduled.AppointmentAt)
		assert.WithinDuration(t, future, *scheduled.AppointmentAt, time.Second)

		var notifications []notification.Notification
		do(t, app, http.MethodGet, "/v1/notifications", memberToken, nil, &notifications)
		kinds := lo.Map(notifications, func(n notification.Notification, _ int) string { return n.Kind })
		assert.Contains(t, kinds, notification.KindSchedule)
		assert.Contains(t, kinds, notification.KindStatus)
	})

	t.Run("assign and complete", func(t *testing.T) {
		rec := do(t, app, http.MethodPost, base+"/assign", doctorToken, araz.NewAssignment{AssigneeID: doctor.ID}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, "doctors do not dispatch")

		rec = do(t, app, http.MethodPost, base+"/assign", aamilToken, araz.NewAssignment{AssigneeID: doctor.ID, Notes: "Please call"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var assignments []araz.Assignment
		do(t, app, http.MethodGet, base+"/assignments", doctorToken, nil, &assignments)
		require.Len(t, assignments, 1)
		assert.True(t, assignments[0].IsActive)

		var done araz.Araz
		rec = do(t, app, http.MethodPost, base+"/status", doctorToken, araz.StatusUpdate{Status: araz.StatusCompleted}, &done)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotNil(t, done.CompletedAt)
		assert.False(t, done.IsOverdue)

		rec = do(t, app, http.MethodPost, base+"/assign", aamilToken, araz.NewAssignment{AssigneeID: doctor.ID}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("comments", func(t *testing.T) {
		rec := do(t, app, http.MethodPost, base+"/comments", doctorToken, araz.NewComment{Content: "Rest for a week", IsInternal: true}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		rec = do(t, app, http.MethodPost, base+"/comments", memberToken, araz.NewComment{Content: "Thank you"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var comments []araz.Comment
		do(t, app, http.MethodGet, base+"/comments", memberToken, nil, &comments)
		assert.Len(t, comments, 1)
		do(t, app, http.MethodGet, base+"/comments", doctorToken, nil, &comments)
		assert.Len(t, comments, 2)
	})

	t.Run("stats", func(t *testing.T) {
		var stats araz.Stats
		rec := do(t, app, http.MethodGet, "/v1/araz/stats", getToken(t, stack.Conf, c.admin), nil, &stats)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.ByStatus[araz.StatusCompleted])
		assert.Equal(t, 1, stats.ByUrgency[araz.UrgencyHigh])
		assert.Equal(t, 0, stats.Unassigned)
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, app, http.MethodDelete, base, memberToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(t, app, http.MethodDelete, base, getToken(t, stack.Conf, c.admin), nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func Test_arazApi_reassign(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	first := testutil.CreateUser(t, stack.UserRepo, "Dr Husain", "drhusain", "husain@test.local", "", user.RoleDoctor, true)
	second := testutil.CreateUser(t, stack.UserRepo, "Dr Zainab", "drzainab", "zainab@test.local", "", user.RoleDoctor, true)
	aamilToken := getToken(t, stack.Conf, c.aamil1)

	var a araz.Araz
	rec := do(t, app, http.MethodPost, "/v1/araz", getToken(t, stack.Conf, c.member1), araz.NewAraz{Ailment: "Migraine"}, &a)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	base := "/v1/araz/" + a.ID

	for _, doc := range []user.User{first, second} {
		rec = do(t, app, http.MethodPost, base+"/assign", aamilToken, araz.NewAssignment{AssigneeID: doc.ID}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var assignments []araz.Assignment
	rec = do(t, app, http.MethodGet, base+"/assignments", aamilToken, nil, &assignments)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, assignments, 2)
	active := lo.Filter(assignments, func(asg araz.Assignment, _ int) bool { return asg.IsActive })
	require.Len(t, active, 1, "earlier assignments are deactivated")
	assert.Equal(t, second.ID, active[0].AssigneeID)

	var got araz.Araz
	rec = do(t, app, http.MethodGet, base, getToken(t, stack.Conf, second), nil, &got)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, second.ID, got.AssigneeID)

	rec = do(t, app, http.MethodGet, base, getToken(t, stack.Conf, first), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "the former assignee no longer sees the request")

	var list []araz.Araz
	do(t, app, http.MethodGet, "/v1/araz?assignee_id="+first.ID, aamilToken, nil, &list)
	assert.Len(t, list, 0)
}

func Test_arazApi_overdue(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	adminToken := getToken(t, stack.Conf, c.admin)
	memberToken := getToken(t, stack.Conf, c.member1)

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := created
	freezeTime(t, &now)

	const day = 24 * time.Hour
	thresholds := map[string]time.Duration{
		araz.UrgencyEmergency: 1 * day,
		araz.UrgencyHigh:      3 * day,
		araz.UrgencyMedium:    7 * day,
		araz.UrgencyLow:       14 * day,
	}
	ids := make(map[string]string, len(thresholds))
	for urgency := range thresholds {
		var a araz.Araz
		rec := do(t, app, http.MethodPost, "/v1/araz", memberToken, araz.NewAraz{Ailment: "Fever " + urgency, Urgency: urgency}, &a)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids[urgency] = a.ID
	}

	var cancelled araz.Araz
	rec := do(t, app, http.MethodPost, "/v1/araz", memberToken, araz.NewAraz{Ailment: "Sprain", Urgency: araz.UrgencyEmergency}, &cancelled)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, app, http.MethodPost, "/v1/araz/"+cancelled.ID+"/status", memberToken, araz.StatusUpdate{Status: araz.StatusCancelled}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("threshold", func(t *testing.T) {
		for urgency, threshold := range thresholds {
			for _, tt := range []struct {
				age  time.Duration
				want bool
			}{
				{threshold - time.Second, false},
				{threshold, false},
				{threshold + time.Second, true},
			} {
				now = created.Add(tt.age)
				var got araz.Araz
				rec := do(t, app, http.MethodGet, "/v1/araz/"+ids[urgency], adminToken, nil, &got)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				assert.Equal(t, tt.want, got.IsOverdue, "%s after %s", urgency, tt.age)

				var list []araz.Araz
				do(t, app, http.MethodGet, "/v1/araz?overdue=true&urgency="+urgency, adminToken, nil, &list)
				ok := lo.ContainsBy(list, func(a araz.Araz) bool { return a.ID == ids[urgency] })
				assert.Equal(t, tt.want, ok, "overdue=true lists %s after %s", urgency, tt.age)
			}
		}
	})

	tests := []struct {
		age                 time.Duration
		wantOverdue, wantOK int
	}{
		{day, 0, 5},
		{day + time.Second, 1, 4},
		{3*day + time.Second, 2, 3},
		{7*day + time.Second, 3, 2},
		{14*day + time.Second, 4, 1},
	}
	for _, tt := range tests {
		t.Run("filter after "+tt.age.String(), func(t *testing.T) {
			now = created.Add(tt.age)

			var list []araz.Araz
			rec := do(t, app, http.MethodGet, "/v1/araz?overdue=true", adminToken, nil, &list)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Len(t, list, tt.wantOverdue)
			assert.False(t, lo.ContainsBy(list, func(a araz.Araz) bool { return a.ID == cancelled.ID }), "cancelled requests are never overdue")

			do(t, app, http.MethodGet, "/v1/araz?overdue=false", adminToken, nil, &list)
			assert.Len(t, list, tt.wantOK)

			var stats araz.Stats
			do(t, app, http.MethodGet, "/v1/araz/stats", adminToken, nil, &stats)
			assert.Equal(t, tt.wantOverdue, stats.Overdue)
		})
	}
}
