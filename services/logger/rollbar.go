package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/policy"
	"github.com/umoorsehhat/sehhat/core/user"
)

// RollbarLogger prints to std and reports to Rollbar when a token is configured.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User, policy.Viewer
// The User is reported as the person; its ITS ID stands in for a missing username.
// The role and moze of the User, and the scope of a Viewer, are merged into the custom fields.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		usrSet   bool
		customAt = -1
		custom   = make(map[string]interface{})
		extra    = make(map[string]interface{})
	)
	newArgs := make([]interface{}, 0, len(args)+2)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if usrSet { // only set one User
				continue
			}
			username := a.Username
			if username == "" {
				username = a.ITSID
			}
			rollbar.SetPerson(a.ID, username, a.Email)
			usrSet = true
			if a.Role != "" {
				extra["role"] = a.Role
			}
			if a.MozeID != "" {
				extra["moze_id"] = a.MozeID
			}
			if a.ITSID != "" {
				extra["its_id"] = a.ITSID
			}
		case policy.Viewer:
			extra["viewer_id"] = a.UserID
			extra["viewer_role"] = a.Role
			extra["viewer_admin"] = a.IsAdmin
			if len(a.MozeIDs) > 0 {
				extra["viewer_mozes"] = a.MozeIDs
			}
		case map[string]interface{}:
			if customAt < 0 {
				customAt = len(newArgs)
				newArgs = append(newArgs, nil)
			}
			for k, v := range a {
				custom[k] = v
			}
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}

	for k, v := range extra {
		if _, ok := custom[k]; !ok {
			custom[k] = v
		}
	}
	if len(custom) == 0 {
		if customAt >= 0 {
			newArgs = append(newArgs[:customAt], newArgs[customAt+1:]...)
		}
		return newArgs
	}
	if customAt < 0 {
		return append(newArgs, custom)
	}
	newArgs[customAt] = custom
	return newArgs
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print(msg, args)
	l.std.Fatal(msg)
}
