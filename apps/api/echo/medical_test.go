package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoorsehhat/sehhat/core/medical"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/tests"
)

func Test_medicalApi_directory(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	doctor := testutil.CreateUser(t, stack.UserRepo, "Dr Fatema", "drfatema", "fatema@test.local", "", user.RoleDoctor, true)
	aamilToken := getToken(t, stack.Conf, c.aamil1)
	memberToken := getToken(t, stack.Conf, c.member1)
	doctorToken := getToken(t, stack.Conf, doctor)

	tests := []httpTest{
		{
			name:     "directory managers only",
			method:   http.MethodPost,
			path:     "/v1/medical/hospitals",
			body:     marshalObj(t, medical.NewHospital{Name: "Saifee Hospital"}),
			token:    memberToken,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name:     "invalid email",
			method:   http.MethodPost,
			path:     "/v1/medical/hospitals",
			body:     marshalObj(t, medical.NewHospital{Name: "Saifee Hospital", Email: "nope"}),
			token:    aamilToken,
			wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, app, tests)

	var hospital medical.Hospital
	rec := do(t, app, http.MethodPost, "/v1/medical/hospitals", aamilToken, medical.NewHospital{
		Name: "Saifee Hospital",
		City: "Mumbai",
	}, &hospital)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, hospital.IsActive)

	var hospitals []medical.Hospital
	do(t, app, http.MethodGet, "/v1/medical/hospitals?city=Mumbai", memberToken, nil, &hospitals)
	assert.Len(t, hospitals, 1)

	rec = do(t, app, http.MethodPost, "/v1/medical/doctors", aamilToken, medical.NewDoctor{UserID: c.member1.ID, Specialty: "Cardiology"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "doctor profiles belong to doctors")
	rec = do(t, app, http.MethodPost, "/v1/medical/doctors", aamilToken, medical.NewDoctor{UserID: doctor.ID, Specialty: "Cardiology", HospitalID: "unknown"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var profile medical.Doctor
	nd := medical.NewDoctor{UserID: doctor.ID, Specialty: "Cardiology", HospitalID: hospital.ID, ExperienceYears: 12}
	rec = do(t, app, http.MethodPost, "/v1/medical/doctors", aamilToken, nd, &profile)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Dr Fatema", profile.Name)
	assert.True(t, profile.IsAvailable)

	rec = do(t, app, http.MethodPost, "/v1/medical/doctors", aamilToken, nd, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "one profile per doctor")

	t.Run("doctors edit their own profile", func(t *testing.T) {
		unavailable := false
		nd := nd
		nd.IsAvailable = &unavailable
		rec := do(t, app, http.MethodPut, "/v1/medical/doctors/"+profile.ID, memberToken, nd, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		var d medical.Doctor
		rec = do(t, app, http.MethodPut, "/v1/medical/doctors/"+profile.ID, doctorToken, nd, &d)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.False(t, d.IsAvailable)

		var doctors []medical.Doctor
		do(t, app, http.MethodGet, "/v1/medical/doctors?is_available=true", memberToken, nil, &doctors)
		assert.Len(t, doctors, 0)
		do(t, app, http.MethodGet, "/v1/medical/doctors?specialty=cardiology", memberToken, nil, &doctors)
		assert.Len(t, doctors, 1)
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, app, http.MethodDelete, "/v1/medical/doctors/"+profile.ID, doctorToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(t, app, http.MethodDelete, "/v1/medical/doctors/"+profile.ID, aamilToken, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = do(t, app, http.MethodGet, "/v1/medical/doctors/"+profile.ID, aamilToken, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_medicalApi_patients(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	doctor := testutil.CreateUser(t, stack.UserRepo, "Dr Fatema", "drfatema", "fatema@test.local", "", user.RoleDoctor, true)
	member1Token := getToken(t, stack.Conf, c.member1)
	member2Token := getToken(t, stack.Conf, c.member2)
	doctorToken := getToken(t, stack.Conf, doctor)

	rec := do(t, app, http.MethodPost, "/v1/medical/patients", member1Token, medical.NewPatient{UserID: c.member2.ID}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "members only open their own record")
	rec = do(t, app, http.MethodPost, "/v1/medical/patients", member1Token, medical.NewPatient{BloodGroup: "Z+"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var own medical.Patient
	rec = do(t, app, http.MethodPost, "/v1/medical/patients", member1Token, medical.NewPatient{BloodGroup: "o+", Gender: "Female"}, &own)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "O+", own.BloodGroup)
	assert.Equal(t, "Member One", own.Name)

	rec = do(t, app, http.MethodPost, "/v1/medical/patients", member1Token, medical.NewPatient{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "one record per user")

	var other medical.Patient
	rec = do(t, app, http.MethodPost, "/v1/medical/patients", doctorToken, medical.NewPatient{UserID: c.member2.ID, Allergies: "Penicillin"}, &other)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var patients []medical.Patient
	do(t, app, http.MethodGet, "/v1/medical/patients", member1Token, nil, &patients)
	require.Len(t, patients, 1)
	assert.Equal(t, own.ID, patients[0].ID)
	do(t, app, http.MethodGet, "/v1/medical/patients", doctorToken, nil, &patients)
	assert.Len(t, patients, 2)
	do(t, app, http.MethodGet, "/v1/medical/patients?blood_group=O%2B", doctorToken, nil, &patients)
	assert.Len(t, patients, 1)

	rec = do(t, app, http.MethodGet, "/v1/medical/patients/"+own.ID, member2Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var updated medical.Patient
	rec = do(t, app, http.MethodPut, "/v1/medical/patients/"+own.ID, member1Token, medical.NewPatient{BloodGroup: "O+", Allergies: "Dust"}, &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Dust", updated.Allergies)
	assert.Equal(t, "Member One", updated.Name)

	rec = do(t, app, http.MethodDelete, "/v1/medical/patients/"+own.ID, member1Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, app, http.MethodDelete, "/v1/medical/patients/"+own.ID, getToken(t, stack.Conf, c.aamil1), nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
