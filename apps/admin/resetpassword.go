package main

import (
	"context"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return cli.users.SetPassword(ctx, usr.ID, pwd)
}

// revoke deletes the user's role record; its sessions stop working on the next request.
func (cli *commandLine) revoke(ctx context.Context, email string) error {
	usr, err := cli.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return cli.users.RevokeRole(ctx, usr.ID)
}
