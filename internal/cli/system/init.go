package system

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/config"
)

type InitCmd struct {
	Force bool   `help:"Delete an existing database before initializing."`
	Email string `help:"Register this account and make it the default user."`
	Name  string `help:"Display name for --email."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	dbPath := ctx.Store.Path()

	if c.Force {
		if _, err := os.Stat(dbPath); err == nil {
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
				if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("failed to delete existing database: %w", err)
				}
			}
			ctx.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	ctx.Printf("Initialized habitsync storage at: %s\n", dbPath)

	if c.Email == "" {
		return nil
	}

	u, err := ctx.Users.Register(context.Background(), c.Email, c.Name, "")
	if err != nil {
		return err
	}
	if ctx.ConfigPath != "" {
		cfg := ctx.Config
		cfg.User = u.UserID
		if err := config.Save(ctx.ConfigPath, cfg); err != nil {
			return err
		}
		ctx.Config = cfg
	}
	ctx.Println(cli.Success("Registered %s as the default user", u.UserID))
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	// Load fails on an outdated schema but leaves the database open.
	if err := ctx.Store.Load(); err != nil && ctx.Store.DB() == nil {
		return err
	}

	count, err := ctx.Store.Migrate(func(msg string) {
		ctx.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		ctx.Println("No migrations to apply. Database is up to date.")
	} else {
		ctx.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
