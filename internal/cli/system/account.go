package system

import (
	"context"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/config"
)

type AccountCmd struct {
	Add  AccountAddCmd  `cmd:"" help:"Register a local account."`
	Show AccountShowCmd `cmd:"" default:"1" help:"Show the current account."`
}

type AccountAddCmd struct {
	Email      string `arg:"" help:"Account email; also the sync identity."`
	Name       string `help:"Display name."`
	Photo      string `help:"Photo URL."`
	SetDefault bool   `help:"Make this the default user in the config file." name:"default"`
}

func (c *AccountAddCmd) Run(ctx *cli.Context) error {
	u, err := ctx.Users.Register(context.Background(), c.Email, c.Name, c.Photo)
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Registered %s", u.UserID))

	if c.SetDefault && ctx.ConfigPath != "" {
		cfg := ctx.Config
		cfg.User = u.UserID
		if err := config.Save(ctx.ConfigPath, cfg); err != nil {
			return err
		}
		ctx.Config = cfg
		ctx.Println(cli.Muted("  default user saved to %s", ctx.ConfigPath))
	}
	return nil
}

type AccountShowCmd struct{}

func (c *AccountShowCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}
	u, err := ctx.Users.Get(context.Background(), user)
	if err != nil {
		return err
	}

	ctx.Println(cli.Header(u.Email))
	if u.Name != "" {
		ctx.Printf("  name:     %s\n", u.Name)
	}
	if u.PhotoURL != "" {
		ctx.Printf("  photo:    %s\n", u.PhotoURL)
	}
	ctx.Printf("  created:  %s\n", cli.FormatMillis(u.CreatedAt))
	return nil
}
