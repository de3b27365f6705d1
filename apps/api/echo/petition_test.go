package echoapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/umoorsehhat/sehhat/apps/api/echo"
	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/notification"
	"github.com/umoorsehhat/sehhat/core/petition"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/tests"
)

// community holds two mozes with their aamils and members.
type community struct {
	admin, aamil1, aamil2, member1, member2 user.User
	moze1, moze2                            string
}

func newCommunity(t *testing.T, stack *testutil.Stack) community {
	var c community
	c.admin = testutil.CreateUser(t, stack.UserRepo, "Admin", "admin1", "admin@test.local", "", user.RoleBadriMahalAdmin, true)
	c.aamil1 = testutil.CreateUser(t, stack.UserRepo, "Aamil One", "aamil1", "aamil1@test.local", "", user.RoleAamil, true)
	c.aamil2 = testutil.CreateUser(t, stack.UserRepo, "Aamil Two", "aamil2", "aamil2@test.local", "", user.RoleAamil, true)
	c.moze1 = testutil.CreateMoze(t, stack.MozeRepo, "Saifee Masjid", "SM01", c.aamil1.ID, "").ID
	c.moze2 = testutil.CreateMoze(t, stack.MozeRepo, "Burhani Masjid", "BM02", c.aamil2.ID, "").ID
	c.member1 = testutil.SetMoze(t, stack.UserRepo,
		testutil.CreateUser(t, stack.UserRepo, "Member One", "member1", "member1@test.local", "", user.RolePatient, true), c.moze1)
	c.member2 = testutil.SetMoze(t, stack.UserRepo,
		testutil.CreateUser(t, stack.UserRepo, "Member Two", "member2", "member2@test.local", "", user.RolePatient, true), c.moze2)
	return c
}

func Test_petitionApi_categories(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	adminToken := getToken(t, stack.Conf, c.admin)
	memberToken := getToken(t, stack.Conf, c.member1)

	rec := do(t, app, http.MethodPost, "/v1/petitions/categories", memberToken, petition.NewCategory{Name: "Health"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/petitions/categories", adminToken, petition.NewCategory{Name: " "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var health petition.Category
	rec = do(t, app, http.MethodPost, "/v1/petitions/categories", adminToken, petition.NewCategory{Name: "Health"}, &health)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, health.IsActive)

	inactive := false
	rec = do(t, app, http.MethodPost, "/v1/petitions/categories", adminToken, petition.NewCategory{Name: "Archived", IsActive: &inactive}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var cats []petition.Category
	do(t, app, http.MethodGet, "/v1/petitions/categories", memberToken, nil, &cats)
	assert.Len(t, cats, 1, "members only see active categories")
	do(t, app, http.MethodGet, "/v1/petitions/categories", adminToken, nil, &cats)
	assert.Len(t, cats, 2)

	var updated petition.Category
	rec = do(t, app, http.MethodPut, "/v1/petitions/categories/"+health.ID, adminToken, petition.NewCategory{Name: "Healthcare"}, &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Healthcare", updated.Name)

	rec = do(t, app, http.MethodDelete, "/v1/petitions/categories/"+health.ID, adminToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, app, http.MethodGet, "/v1/petitions/categories/"+health.ID, adminToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_petitionApi_workflow(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	tokens := map[string]string{
		"admin":   getToken(t, stack.Conf, c.admin),
		"aamil1":  getToken(t, stack.Conf, c.aamil1),
		"aamil2":  getToken(t, stack.Conf, c.aamil2),
		"member1": getToken(t, stack.Conf, c.member1),
		"member2": getToken(t, stack.Conf, c.member2),
	}

	rec := do(t, app, http.MethodPost, "/v1/petitions", tokens["member1"], petition.NewPetition{Title: "No title"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var p petition.Petition
	rec = do(t, app, http.MethodPost, "/v1/petitions", tokens["member1"], petition.NewPetition{
		Title:       "Wheelchair ramp",
		Description: "The entrance needs a ramp.",
	}, &p)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, petition.StatusPending, p.Status)
	assert.Equal(t, petition.PriorityMedium, p.Priority)
	assert.Equal(t, c.moze1, p.MozeID, "the moze defaults to the creator's")

	t.Run("visibility", func(t *testing.T) {
		wantLen := map[string]int{"admin": 1, "aamil1": 1, "aamil2": 0, "member1": 1, "member2": 0}
		for who, n := range wantLen {
			var list []petition.Petition
			rec := do(t, app, http.MethodGet, "/v1/petitions", tokens[who], nil, &list)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Len(t, list, n, who)
		}

		rec := do(t, app, http.MethodGet, "/v1/petitions/"+p.ID, tokens["member2"], nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = do(t, app, http.MethodGet, "/v1/petitions/"+p.ID, tokens["aamil1"], nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("filters", func(t *testing.T) {
		var list []petition.Petition
		do(t, app, http.MethodGet, "/v1/petitions?search=RAMP", tokens["admin"], nil, &list)
		assert.Len(t, list, 1)
		do(t, app, http.MethodGet, "/v1/petitions?status=resolved", tokens["admin"], nil, &list)
		assert.Len(t, list, 0)
		do(t, app, http.MethodGet, "/v1/petitions?unassigned=true&ordering=-priority,title", tokens["admin"], nil, &list)
		assert.Len(t, list, 1)
	})

	t.Run("status", func(t *testing.T) {
		rec := do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/status", tokens["member1"], petition.StatusUpdate{Status: petition.StatusResolved}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, "creators may only cancel")

		rec = do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/status", tokens["aamil1"], petition.StatusUpdate{Status: "unknown"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var updated petition.Petition
		rec = do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/status", tokens["aamil1"], petition.StatusUpdate{Status: petition.StatusResolved}, &updated)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, petition.StatusResolved, updated.Status)
		assert.NotNil(t, updated.ResolvedAt)

		rec = do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/status", tokens["aamil1"], petition.StatusUpdate{Status: petition.StatusRejected}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "resolved petitions can only be reopened")

		rec = do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/status", tokens["aamil1"], petition.StatusUpdate{Status: petition.StatusInProgress}, &updated)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Nil(t, updated.ResolvedAt)

		// the creator was notified twice
		var count echoapi.CountResponse
		do(t, app, http.MethodGet, "/v1/notifications/unread-count", tokens["member1"], nil, &count)
		assert.Equal(t, 2, count.Count)
	})

	t.Run("comments", func(t *testing.T) {
		rec := do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/comments", tokens["member1"], petition.NewComment{Content: "Any news?"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		rec = do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/comments", tokens["member1"], petition.NewComment{Content: "secret", IsInternal: true}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/comments", tokens["aamil1"], petition.NewComment{Content: "Budget pending", IsInternal: true}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var comments []petition.Comment
		do(t, app, http.MethodGet, "/v1/petitions/"+p.ID+"/comments", tokens["member1"], nil, &comments)
		assert.Len(t, comments, 1)
		do(t, app, http.MethodGet, "/v1/petitions/"+p.ID+"/comments", tokens["aamil1"], nil, &comments)
		assert.Len(t, comments, 2)
	})

	t.Run("assign", func(t *testing.T) {
		rec := do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/assign", tokens["aamil2"], petition.NewAssignment{AssigneeID: c.aamil2.ID}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "aamil2 cannot see the petition")

		rec = do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/assign", tokens["aamil1"], petition.NewAssignment{AssigneeID: c.member2.ID}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "assignees are staff")

		rec = do(t, app, http.MethodPost, "/v1/petitions/"+p.ID+"/assign", tokens["aamil1"], petition.NewAssignment{AssigneeID: c.aamil2.ID}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		// the assignee now sees the petition
		var got petition.Petition
		rec = do(t, app, http.MethodGet, "/v1/petitions/"+p.ID, tokens["aamil2"], nil, &got)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, c.aamil2.ID, got.AssigneeID)

		var notifications []notification.Notification
		do(t, app, http.MethodGet, "/v1/notifications?unread=true", tokens["aamil2"], nil, &notifications)
		require.Len(t, notifications, 1)
		assert.Equal(t, notification.KindAssignment, notifications[0].Kind)

		var assignments []petition.Assignment
		do(t, app, http.MethodGet, "/v1/petitions/"+p.ID+"/assignments", tokens["admin"], nil, &assignments)
		assert.Len(t, assignments, 1)
	})

	t.Run("stats", func(t *testing.T) {
		var stats petition.Stats
		rec := do(t, app, http.MethodGet, "/v1/petitions/stats", tokens["admin"], nil, &stats)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.ByStatus[petition.StatusInProgress])

		do(t, app, http.MethodGet, "/v1/petitions/stats", tokens["member2"], nil, &stats)
		assert.Equal(t, 0, stats.Total)
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, app, http.MethodDelete, "/v1/petitions/"+p.ID, tokens["member1"], nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, "no longer pending")

		rec = do(t, app, http.MethodDelete, "/v1/petitions/"+p.ID, tokens["admin"], nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = do(t, app, http.MethodGet, "/v1/petitions/"+p.ID, tokens["admin"], nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func upload(t *testing.T, app *echoapi.Server, path, token, filename string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func Test_petitionApi_attachments(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	memberToken := getToken(t, stack.Conf, c.member1)
	otherToken := getToken(t, stack.Conf, c.member2)

	var p petition.Petition
	rec := do(t, app, http.MethodPost, "/v1/petitions", memberToken, petition.NewPetition{Title: "Clinic hours", Description: "Open on Sundays"}, &p)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	base := "/v1/petitions/" + p.ID + "/attachments"

	rec = upload(t, app, base, memberToken, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "file required")
	rec = upload(t, app, base, memberToken, "empty.txt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty file")
	rec = upload(t, app, base, otherToken, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	content := []byte("opening hours: 9-5")
	rec = upload(t, app, base, memberToken, "../hours.txt", content)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var at petition.Attachment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &at))
	assert.Equal(t, "hours.txt", at.Filename)
	assert.Equal(t, int64(len(content)), at.Size)

	var list []petition.Attachment
	rec = do(t, app, http.MethodGet, base, memberToken, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, list, 1)

	req, rec := newAuthRequest(http.MethodGet, base+"/"+at.ID, memberToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="hours.txt"`)

	rec = do(t, app, http.MethodGet, base+"/"+at.ID, otherToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, app, http.MethodDelete, base+"/"+at.ID, memberToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, app, http.MethodGet, base+"/"+at.ID, memberToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_petitionApi_anonymousCreatorFilter(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	memberToken := getToken(t, stack.Conf, c.member1)

	rec := do(t, app, http.MethodPost, "/v1/petitions", memberToken, petition.NewPetition{
		Title:       "Harassment at the clinic",
		Description: "Reported anonymously",
		IsAnonymous: true,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, app, http.MethodPost, "/v1/petitions", memberToken, petition.NewPetition{
		Title:       "Parking",
		Description: "More parking spots",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	path := "/v1/petitions?creator_id=" + c.member1.ID
	tests := []struct {
		name      string
		token     string
		wantLen   int
		wantNamed int // petitions of which the creator is shown
	}{
		{"aamil cannot trace anonymous petitions", getToken(t, stack.Conf, c.aamil1), 1, 1},
		{"admin", getToken(t, stack.Conf, c.admin), 2, 2},
		{"creator", memberToken, 2, 2},
		{"outsider", getToken(t, stack.Conf, c.member2), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var list []petition.Petition
			rec := do(t, app, http.MethodGet, path, tt.token, nil, &list)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Len(t, list, tt.wantLen)
			named := lo.CountBy(list, func(p petition.Petition) bool { return p.CreatorID == c.member1.ID })
			assert.Equal(t, tt.wantNamed, named)
		})
	}

	// without the creator filter the aamil still sees both, the anonymous one without its creator
	var list []petition.Petition
	do(t, app, http.MethodGet, "/v1/petitions", getToken(t, stack.Conf, c.aamil1), nil, &list)
	require.Len(t, list, 2)
	assert.Equal(t, 1, lo.CountBy(list, func(p petition.Petition) bool { return p.CreatorID == "" }))
}

func Test_petitionApi_reassign(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	aamilToken := getToken(t, stack.Conf, c.aamil1)
	adminToken := getToken(t, stack.Conf, c.admin)

	var p petition.Petition
	rec := do(t, app, http.MethodPost, "/v1/petitions", getToken(t, stack.Conf, c.member1), petition.NewPetition{
		Title:       "Water cooler",
		Description: "Broken since Friday",
	}, &p)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	base := "/v1/petitions/" + p.ID

	for _, assignee := range []user.User{c.aamil2, c.admin, c.aamil1} {
		rec = do(t, app, http.MethodPost, base+"/assign", aamilToken, petition.NewAssignment{AssigneeID: assignee.ID}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var assignments []petition.Assignment
	rec = do(t, app, http.MethodGet, base+"/assignments", adminToken, nil, &assignments)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, assignments, 3)
	active := lo.Filter(assignments, func(a petition.Assignment, _ int) bool { return a.IsActive })
	require.Len(t, active, 1, "earlier assignments are deactivated")
	assert.Equal(t, c.aamil1.ID, active[0].AssigneeID)

	var got petition.Petition
	do(t, app, http.MethodGet, base, adminToken, nil, &got)
	assert.Equal(t, c.aamil1.ID, got.AssigneeID)

	// a former assignee outside the moze loses sight of the petition
	rec = do(t, app, http.MethodGet, base, getToken(t, stack.Conf, c.aamil2), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var list []petition.Petition
	do(t, app, http.MethodGet, "/v1/petitions?assignee_id="+c.aamil2.ID, adminToken, nil, &list)
	assert.Len(t, list, 0)
	do(t, app, http.MethodGet, "/v1/petitions?assignee_id="+c.aamil1.ID, adminToken, nil, &list)
	assert.Len(t, list, 1)
}

// freezeTime makes core.NowFunc return *now until the test ends.
func freezeTime(t *testing.T, now *time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return *now }
	t.Cleanup(func() { core.NowFunc = orig })
}

func Test_petitionApi_overdue(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	adminToken := getToken(t, stack.Conf, c.admin)
	memberToken := getToken(t, stack.Conf, c.member1)

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := created
	freezeTime(t, &now)

	const day = 24 * time.Hour
	thresholds := map[string]time.Duration{
		petition.PriorityUrgent: 3 * day,
		petition.PriorityHigh:   3 * day,
		petition.PriorityMedium: 7 * day,
		petition.PriorityLow:    14 * day,
	}
	ids := make(map[string]string, len(thresholds))
	for priority := range thresholds {
		var p petition.Petition
		rec := do(t, app, http.MethodPost, "/v1/petitions", memberToken, petition.NewPetition{
			Title:       "Request " + priority,
			Description: "Needs attention",
			Priority:    priority,
		}, &p)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.True(t, p.CreatedAt.Equal(created))
		ids[priority] = p.ID
	}

	var resolved petition.Petition
	rec := do(t, app, http.MethodPost, "/v1/petitions", memberToken, petition.NewPetition{
		Title: "Old but done", Description: "Resolved", Priority: petition.PriorityUrgent,
	}, &resolved)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, app, http.MethodPost, "/v1/petitions/"+resolved.ID+"/status", adminToken, petition.StatusUpdate{Status: petition.StatusResolved}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("threshold", func(t *testing.T) {
		for priority, threshold := range thresholds {
			for _, tt := range []struct {
				age  time.Duration
				want bool
			}{
				{threshold - time.Second, false},
				{threshold, false},
				{threshold + time.Second, true},
			} {
				now = created.Add(tt.age)
				var got petition.Petition
				rec := do(t, app, http.MethodGet, "/v1/petitions/"+ids[priority], adminToken, nil, &got)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				assert.Equal(t, tt.want, got.IsOverdue, "%s after %s", priority, tt.age)

				var list []petition.Petition
				do(t, app, http.MethodGet, "/v1/petitions?overdue=true&priority="+priority, adminToken, nil, &list)
				ok := lo.ContainsBy(list, func(p petition.Petition) bool { return p.ID == ids[priority] })
				assert.Equal(t, tt.want, ok, "overdue=true lists %s after %s", priority, tt.age)
			}
		}
	})

	tests := []struct {
		age                 time.Duration
		wantOverdue, wantOK int
	}{
		{3 * day, 0, 5},
		{3*day + time.Second, 2, 3},
		{7*day + time.Second, 3, 2},
		{14*day + time.Second, 4, 1},
		{365 * day, 4, 1},
	}
	for _, tt := range tests {
		t.Run("filter after "+tt.age.String(), func(t *testing.T) {
			now = created.Add(tt.age)

			var list []petition.Petition
			rec := do(t, app, http.MethodGet, "/v1/petitions?overdue=true", adminToken, nil, &list)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Len(t, list, tt.wantOverdue)
			assert.False(t, lo.ContainsBy(list, func(p petition.Petition) bool { return p.ID == resolved.ID }), "resolved petitions are never overdue")
			for _, p := range list {
				assert.True(t, p.IsOverdue)
			}

			do(t, app, http.MethodGet, "/v1/petitions?overdue=false", adminToken, nil, &list)
			assert.Len(t, list, tt.wantOK)

			var stats petition.Stats
			do(t, app, http.MethodGet, "/v1/petitions/stats", adminToken, nil, &stats)
			assert.Equal(t, tt.wantOverdue, stats.Overdue)
		})
	}
}
