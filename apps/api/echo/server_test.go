package echoapi_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/umoorsehhat/sehhat/apps/api/echo"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/moze"
	"github.com/umoorsehhat/sehhat/core/notification"
)

func TestServer_home(t *testing.T) {
	app, _ := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Umoor Sehhat API!", rec.Body.String())
}

func TestServer_metrics(t *testing.T) {
	app, _ := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)

	req, rec = newRequest(http.MethodGet, "/metrics")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `sehhat_http_requests_total{code="200",method="GET",route="/"} 1`), rec.Body.String())
}

func Test_notificationApi(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	token := getToken(t, stack.Conf, c.member1)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"First", "Second", "Third"} {
		n, err := stack.NotificationSvc.Notify(ctx, c.member1, notification.Notification{Title: title, Message: title})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	foreign, err := stack.NotificationSvc.Notify(ctx, c.member2, notification.Notification{Title: "Other"})
	require.NoError(t, err)

	var list []notification.Notification
	rec := do(t, app, http.MethodGet, "/v1/notifications", token, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list, 3)
	assert.Equal(t, "Third", list[0].Title, "newest first")
	assert.Equal(t, notification.KindGeneral, list[0].Kind)

	do(t, app, http.MethodGet, "/v1/notifications?limit=2", token, nil, &list)
	assert.Len(t, list, 2)

	rec = do(t, app, http.MethodPost, "/v1/notifications/"+foreign.ID+"/read", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var n notification.Notification
	rec = do(t, app, http.MethodPost, "/v1/notifications/"+ids[0]+"/read", token, nil, &n)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, n.IsRead)

	var count echoapi.CountResponse
	do(t, app, http.MethodGet, "/v1/notifications/unread-count", token, nil, &count)
	assert.Equal(t, 2, count.Count)

	do(t, app, http.MethodGet, "/v1/notifications?unread=true", token, nil, &list)
	assert.Len(t, list, 2)

	rec = do(t, app, http.MethodPost, "/v1/notifications/read-all", token, nil, &count)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, count.Count)

	do(t, app, http.MethodGet, "/v1/notifications/unread-count", token, nil, &count)
	assert.Equal(t, 0, count.Count)
	do(t, app, http.MethodGet, "/v1/notifications/unread-count", getToken(t, stack.Conf, c.member2), nil, &count)
	assert.Equal(t, 1, count.Count)
}

func Test_auditApi(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	adminToken := getToken(t, stack.Conf, c.admin)

	location := "Colpetty"
	rec := do(t, app, http.MethodPut, "/v1/mozes/"+c.moze1, getToken(t, stack.Conf, c.aamil1), moze.UpdateMoze{Location: &location}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tests := []httpTest{
		{
			name:     "token required",
			path:     "/v1/audit",
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		},
		{
			name:     "admin required",
			path:     "/v1/audit",
			token:    getToken(t, stack.Conf, c.aamil1),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name:     "invalid range",
			path:     "/v1/audit?created_to=yesterday",
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"created_to": "invalid date"}),
		},
	}
	runHTTPTests(t, app, tests)

	var entries []audit.Entry
	rec = do(t, app, http.MethodGet, "/v1/audit?entity_type=moze&action=update", adminToken, nil, &entries)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, entries, 1)
	assert.Equal(t, c.aamil1.ID, entries[0].ActorID)
	assert.Equal(t, c.moze1, entries[0].EntityID)
	assert.NotEmpty(t, entries[0].IPAddress)
}
