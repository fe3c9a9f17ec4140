package system

import (
	"errors"
	"net/url"
	"strings"

	"github.com/julianstephens/habitsync/internal/cli"
	apperrors "github.com/julianstephens/habitsync/internal/errors"
	"github.com/julianstephens/habitsync/internal/keyring"
	"github.com/julianstephens/habitsync/internal/remote"
)

type RemoteCmd struct {
	Set   RemoteSetCmd   `cmd:"" help:"Store the remote connection string in the OS keyring."`
	Show  RemoteShowCmd  `cmd:"" default:"1" help:"Show the effective remote connection string."`
	Clear RemoteClearCmd `cmd:"" help:"Remove the remote connection string from the OS keyring."`
}

type RemoteSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string."`
}

func (cmd *RemoteSetCmd) Run(ctx *cli.Context) error {
	if err := remote.ValidateConnString(cmd.ConnectionString); err != nil {
		return err
	}
	if err := keyring.SetRemoteDSN(cmd.ConnectionString); err != nil {
		return err
	}
	ctx.Println(cli.Success("Remote connection string stored in OS keyring"))
	return nil
}

type RemoteShowCmd struct{}

func (cmd *RemoteShowCmd) Run(ctx *cli.Context) error {
	dsn, source, err := ctx.RemoteDSN()
	if errors.Is(err, apperrors.ErrNoRemote) {
		ctx.Println("No remote configured; changes stay queued locally.")
		return nil
	}
	if err != nil {
		return err
	}
	ctx.Printf("%s %s\n", maskPassword(dsn), cli.Muted("(from %s)", source))
	return nil
}

type RemoteClearCmd struct{}

func (cmd *RemoteClearCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteRemoteDSN(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return err
	}
	ctx.Println(cli.Success("Remote connection string deleted from OS keyring"))
	return nil
}

// maskPassword hides the password in URL or key=value connection strings.
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil || u.User == nil {
			return connStr
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return strings.Replace(u.String(), ":xxxxx@", ":****@", 1)
		}
		return connStr
	}

	fields := strings.Fields(connStr)
	for i, f := range fields {
		if k, _, ok := strings.Cut(f, "="); ok && strings.EqualFold(k, "password") {
			fields[i] = k + "=****"
		}
	}
	return strings.Join(fields, " ")
}
