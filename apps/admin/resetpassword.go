package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	if err := cli.accounts.SetPassword(context.Background(), email, pwd); err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("password of %s reset", email))
	return nil
}
