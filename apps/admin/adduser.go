package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/user"
)

var (
	errInvalidRole  = errors.New("role must be one of admin, professor or aluno")
	errNameRequired = errors.New("-name is required to create a user")
)

// addUser creates a user holding role, or updates the role and password of an existing one.
func (cli *commandLine) addUser(ctx context.Context, email, name string, role user.Role, pwd string) error {
	role = user.Role(core.CleanString(string(role), true /* lower */))
	if !role.Valid() {
		return errInvalidRole
	}

	usr, err := cli.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if name = core.CleanString(name); name == "" {
			return errNameRequired
		}
		usr, err = cli.users.Create(ctx, user.NewUser{
			Email:    core.CleanString(email, true /* lower */),
			Password: pwd,
			Name:     name,
			Role:     role,
		})
		if err != nil {
			return err
		}
		cli.logger.Info("user created", map[string]interface{}{"id": usr.ID, "role": role})
		return nil
	}

	if err = cli.users.SetPassword(ctx, usr.ID, pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if err = cli.users.SetRole(ctx, usr.ID, role); err != nil {
		return errors.Wrap(err, "setting role")
	}
	cli.logger.Info("user updated", map[string]interface{}{"id": usr.ID, "role": role})
	return nil
}
