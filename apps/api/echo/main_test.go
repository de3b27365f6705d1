package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/umoorsehhat/sehhat/apps/api/echo"
	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/tests"
)

var (
	errMissingToken     = httpErr{Error: "missing or malformed jwt"}
	errPermissionDenied = httpErr{Error: "permission denied"}
)

func setup(t *testing.T) (*echoapi.Server, *testutil.Stack) {
	stack := testutil.NewStack()
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            stack.Conf,
		Logger:          stack.Logger,
		Validate:        stack.Validate,
		Translator:      stack.Translator,
		ITS:             stack.ITS,
		UserSvc:         stack.UserSvc,
		MozeSvc:         stack.MozeSvc,
		PetitionSvc:     stack.PetitionSvc,
		ArazSvc:         stack.ArazSvc,
		EvaluationSvc:   stack.EvaluationSvc,
		MedicalSvc:      stack.MedicalSvc,
		StudentSvc:      stack.StudentSvc,
		NotificationSvc: stack.NotificationSvc,
		AuditSvc:        stack.AuditSvc,
	})
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv, stack
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(conf, echoapi.GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

// do serves the request and decodes the response body into v, when provided.
func do(t *testing.T, app *echoapi.Server, method, path, token string, body interface{}, v interface{}) *httptest.ResponseRecorder {
	var data []byte
	if body != nil {
		data = marshalObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	app.ServeHTTP(rec, req)
	if v != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
			t.Fatalf("do() failed to decode %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *echoapi.Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
