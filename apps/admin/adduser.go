package main

import (
	"context"
	"fmt"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/user"
)

// addUser creates an account with its profile, or resets the password and role of an existing one.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	role := user.RoleStudent
	if isAdmin {
		role = user.RoleAdmin
	}

	acc, err := cli.accounts.Lookup(ctx, email)
	switch err {
	case nil:
		if err := cli.accounts.SetPassword(ctx, email, pwd); err != nil {
			return err
		}
	case user.ErrNotFound:
		if acc, err = cli.accounts.CreateAccount(ctx, email, pwd, name); err != nil {
			return err
		}
	default:
		return err
	}

	usr, err := cli.profiles.Get(ctx, acc.ID)
	switch err {
	case nil:
		usr.Role = role
		if name != "" {
			usr.Name = name
		}
	case user.ErrNotFound:
		usr = user.User{ID: acc.ID, Name: user.NameFor(name, email), Email: email, Role: role}
	default:
		return err
	}
	if err := cli.profiles.Save(ctx, usr); err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("user %s (%s) saved as %s", usr.Email, usr.ID, usr.Role))
	return nil
}
