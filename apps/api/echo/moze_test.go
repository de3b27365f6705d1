package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoorsehhat/sehhat/core/moze"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/tests"
)

func Test_mozeApi_create(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	coordinator := testutil.CreateUser(t, stack.UserRepo, "Coordinator", "coord1", "coord1@test.local", "", user.RoleMozeCoordinator, true)
	adminToken := getToken(t, stack.Conf, c.admin)

	tests := []httpTest{
		{
			name:     "token required",
			method:   http.MethodPost,
			path:     "/v1/mozes",
			body:     marshalObj(t, moze.NewMoze{Name: "Ezzi Masjid", Code: "EM03"}),
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		},
		{
			name:     "admin required",
			method:   http.MethodPost,
			path:     "/v1/mozes",
			body:     marshalObj(t, moze.NewMoze{Name: "Ezzi Masjid", Code: "EM03"}),
			token:    getToken(t, stack.Conf, c.aamil1),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/mozes",
			body:     marshalObj(t, moze.NewMoze{}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"name": "this field is required", "code": "this field is required"}),
		},
		{
			name:     "duplicate code",
			method:   http.MethodPost,
			path:     "/v1/mozes",
			body:     marshalObj(t, moze.NewMoze{Name: "Saifee Masjid 2", Code: "SM01"}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"code": moze.ErrCodeExists.Error()}),
		},
		{
			name:     "aamil must be an aamil",
			method:   http.MethodPost,
			path:     "/v1/mozes",
			body:     marshalObj(t, moze.NewMoze{Name: "Ezzi Masjid", Code: "EM03", AamilID: c.member1.ID}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"aamil_id": "user must have the aamil role"}),
		},
		{
			name:     "unknown coordinator",
			method:   http.MethodPost,
			path:     "/v1/mozes",
			body:     marshalObj(t, moze.NewMoze{Name: "Ezzi Masjid", Code: "EM03", CoordinatorID: "nope"}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"coordinator_id": "user not found"}),
		},
	}
	runHTTPTests(t, app, tests)

	var mz moze.Moze
	rec := do(t, app, http.MethodPost, "/v1/mozes", adminToken, moze.NewMoze{
		Name:          " Ezzi Masjid ",
		Code:          "EM03",
		Location:      "Mumbai",
		AamilID:       c.aamil1.ID,
		CoordinatorID: coordinator.ID,
	}, &mz)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Ezzi Masjid", mz.Name)
	assert.True(t, mz.IsActive)
	assert.Equal(t, coordinator.ID, mz.CoordinatorID)
}

func Test_mozeApi_query(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	token := getToken(t, stack.Conf, c.member1)

	var mozes []moze.Moze
	rec := do(t, app, http.MethodGet, "/v1/mozes", token, nil, &mozes)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, mozes, 2)

	do(t, app, http.MethodGet, "/v1/mozes?search=burhani", token, nil, &mozes)
	require.Len(t, mozes, 1)
	assert.Equal(t, c.moze2, mozes[0].ID)

	do(t, app, http.MethodGet, "/v1/mozes?manager_id="+c.aamil1.ID, token, nil, &mozes)
	require.Len(t, mozes, 1)
	assert.Equal(t, c.moze1, mozes[0].ID)

	do(t, app, http.MethodGet, "/v1/mozes?ordering=-code", token, nil, &mozes)
	require.Len(t, mozes, 2)
	assert.Equal(t, "SM01", mozes[0].Code)

	rec = do(t, app, http.MethodGet, "/v1/mozes/"+c.moze1, token, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, app, http.MethodGet, "/v1/mozes/unknown", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_mozeApi_update(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	path := "/v1/mozes/" + c.moze1
	location := "Colpetty"
	inactive := false

	tests := []httpTest{
		{
			name:     "other aamil",
			method:   http.MethodPut,
			path:     path,
			body:     marshalObj(t, moze.UpdateMoze{Location: &location}),
			token:    getToken(t, stack.Conf, c.aamil2),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "aamil may not deactivate",
			method:   http.MethodPut,
			path:     path,
			body:     marshalObj(t, moze.UpdateMoze{IsActive: &inactive}),
			token:    getToken(t, stack.Conf, c.aamil1),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "aamil updates own moze",
			method:   http.MethodPut,
			path:     path,
			body:     marshalObj(t, moze.UpdateMoze{Location: &location}),
			token:    getToken(t, stack.Conf, c.aamil1),
			wantCode: http.StatusOK,
		},
		{
			name:     "admin deactivates",
			method:   http.MethodPut,
			path:     path,
			body:     marshalObj(t, moze.UpdateMoze{IsActive: &inactive}),
			token:    getToken(t, stack.Conf, c.admin),
			wantCode: http.StatusOK,
		},
	}
	runHTTPTests(t, app, tests)

	var mz moze.Moze
	do(t, app, http.MethodGet, path, getToken(t, stack.Conf, c.admin), nil, &mz)
	assert.Equal(t, location, mz.Location)
	assert.False(t, mz.IsActive)
}

func Test_mozeApi_destroy(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	path := "/v1/mozes/" + c.moze2

	rec := do(t, app, http.MethodDelete, path, getToken(t, stack.Conf, c.aamil2), nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := getToken(t, stack.Conf, c.admin)
	rec = do(t, app, http.MethodDelete, path, adminToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, app, http.MethodGet, path, adminToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
