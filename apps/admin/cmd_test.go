package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/umoorsehhat/sehhat/core/its"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/tests"
)

const strongPwd = "Qz9#vK2!xW"

func setup(t *testing.T) (*commandLine, *testutil.Stack) {
	t.Helper()
	stack := testutil.NewStack()
	return &commandLine{
		db:       new(sql.DB),
		usrRepo:  stack.UserRepo,
		usrSvc:   stack.UserSvc,
		validate: stack.Validate,
		out:      io.Discard,
	}, stack
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "wards", "sql"}},
	}
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	t.Run("in-memory database", func(t *testing.T) {
		memCli := *cli
		memCli.db = nil
		assert.Equal(t, errNoDatabase, memCli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, stack := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no username", args: []string{"adduser", "-name", "Sehhat Admin"}, wantErr: errHelp},
		{name: "no name", args: []string{"adduser", "-username", "sehhatadmin"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Sehhat Admin", "-username", "sehhatadmin"}, wantErr: errHelp},
		{
			name:    "weak password",
			args:    []string{"adduser", "-name", "Sehhat Admin", "-username", "sehhatadmin"},
			extra: extra{pwd: "password"},
		},
		{
			name:  "invalid role",
			args:  []string{"adduser", "-name", "Sehhat Admin", "-username", "sehhatadmin", "-role", "lol"},
			extra: extra{pwd: strongPwd},
		},
		{
			name:  "create",
			args:  []string{"adduser", "-name", "Sehhat Admin", "-username", "sehhatadmin", "-email", "admin@sehhat.test"},
			extra: extra{pwd: strongPwd},
		},
		{
			name:  "update existing",
			args:  []string{"adduser", "-name", "Sehhat Admin", "-username", "sehhatadmin", "-role", user.RoleAamil},
			extra: extra{pwd: "Wx7&pL3@nR"},
		},
	}
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)
		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch tt.name {
			case "weak password", "invalid role":
				assert.Error(t, err)
				_, getErr := stack.UserSvc.GetByUsernameOrEmail(context.Background(), "sehhatadmin")
				assert.Equal(t, user.ErrNotFound, errors.Cause(getErr))
			case "create":
				if assert.NoError(t, err) {
					usr, err := stack.UserSvc.GetByUsernameOrEmail(context.Background(), "sehhatadmin")
					if assert.NoError(t, err) {
						assert.Equal(t, user.RoleBadriMahalAdmin, usr.Role)
						assert.Equal(t, "admin@sehhat.test", usr.Email)
						assert.True(t, usr.IsActive)
						assert.NoError(t, usr.CheckPassword(strongPwd))
					}
				}
			case "update existing":
				if assert.NoError(t, err) {
					usr, err := stack.UserSvc.GetByUsernameOrEmail(context.Background(), "admin@sehhat.test")
					if assert.NoError(t, err) {
						assert.Equal(t, user.RoleAamil, usr.Role)
						assert.NoError(t, usr.CheckPassword("Wx7&pL3@nR"))
					}
				}
			default:
				tt.check(t, err)
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, stack := setup(t)

	usr := testutil.CreateUser(t, stack.UserRepo, "User", "aweuser", "awe@test.cd", "Mdr#2020x", user.RolePatient, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: strongPwd}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: strongPwd}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "Wx7&pL3@nR"}},
	}
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)
		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := stack.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				usr = refreshedUsr
			} else {
				tt.check(t, err)
			}
		})
	}

	t.Run("weak password", func(t *testing.T) {
		readPasswordFunc = func(fd int) ([]byte, error) { return []byte("12345678"), nil }
		err := cli.run([]string{"admin", "resetpassword", "-username", usr.Username})
		assert.Error(t, err)

		refreshedUsr, _ := stack.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
		assert.Equal(t, usr.PasswordHash, refreshedUsr.PasswordHash)
	})
}

func Test_commandLine_itsSync(t *testing.T) {
	cli, stack := setup(t)
	out := new(bytes.Buffer)
	cli.out = out

	tests := []cliTest{
		{name: "no ids", args: []string{"itssync"}, wantErr: errHelp},
		{name: "blank ids", args: []string{"itssync", "-its-ids", " , "}, wantErr: errHelp},
		{name: "sync", args: []string{"itssync", "-its-ids", testutil.AllowedITSIDs[0] + "," + testutil.AllowedITSIDs[1]}},
		{name: "resync", args: []string{"itssync", "-its-ids", testutil.AllowedITSIDs[0]}},
		{
			name:       "unknown id",
			args:       []string{"itssync", "-its-ids", testutil.AllowedITSIDs[2] + ",99999999"},
			wantErrStr: "1 of 2 ITS IDs failed to sync",
		},
	}
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	for _, id := range testutil.AllowedITSIDs[:3] {
		usr, err := stack.UserSvc.GetByITSID(context.Background(), id)
		if assert.NoError(t, err, id) {
			assert.Equal(t, user.RolePatient, usr.Role)
			assert.NotEmpty(t, usr.Name)
		}
	}
	assert.Contains(t, out.String(), "99999999: "+its.ErrProfileNotFound.Error())
}
