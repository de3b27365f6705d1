package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/user"
)

// addUser updates or creates a user.User; an existing user is reactivated with the new role and password.
func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()
	uname := core.CleanString(nu.Username, true /* lower */)

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if err = nu.Validate(cli.validate, cli.usrSvc); err != nil {
			return err
		}
		if usr, err = cli.usrSvc.Create(ctx, nu); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created %s (%s)\n", usr.Username, usr.Role)
		return nil
	}

	active := true
	uu := user.UpdateUser{
		IsActive:        &active,
		Role:            nu.Role,
		Password:        nu.Password,
		PasswordConfirm: nu.PasswordConfirm,
	}
	if err = uu.Validate(usr, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	if usr, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "updated %s (%s)\n", usr.Username, usr.Role)
	return nil
}
