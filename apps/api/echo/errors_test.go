package echoapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/umoorsehhat/sehhat/core"
)

type discardLogger struct{ errs int }

func (l *discardLogger) Debug(string, ...interface{}) {}
func (l *discardLogger) Info(string, ...interface{})  {}
func (l *discardLogger) Warn(string, ...interface{})  {}
func (l *discardLogger) Error(string, ...interface{}) { l.errs++ }
func (l *discardLogger) Fatal(string, ...interface{}) {}

func TestConfig_ExposeErrors(t *testing.T) {
	tests := []struct {
		name string
		conf core.Config
		want bool
	}{
		{"dev debug", core.Config{Env: "DEV", Debug: true}, true},
		{"dev", core.Config{Env: "DEV"}, false},
		{"test mode", core.Config{Env: "TEST", Debug: true, TestMode: true}, false},
		{"prod debug", core.Config{Env: "PROD", Debug: true}, false},
		{"qa debug", core.Config{Env: "QA", Debug: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.conf.ExposeErrors())
		})
	}
}

func Test_appHTTPErrorHandler_internalError(t *testing.T) {
	secret := errors.New("pq: relation \"petitions\" does not exist")

	tests := []struct {
		name         string
		exposeErrors bool
		wantBody     string
	}{
		{"hidden", false, `{"error":"Internal Server Error"}`},
		{"exposed", true, `"pq: relation \"petitions\" does not exist"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := new(discardLogger)
			e := echo.New()
			e.HTTPErrorHandler = newAppHTTPErrorHandler(logger, nil, tt.exposeErrors, func() {})
			e.GET("/boom", func(echo.Context) error { return secret })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, 1, logger.errs)
		})
	}
}
