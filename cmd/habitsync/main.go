package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/cli/backups"
	"github.com/julianstephens/habitsync/internal/cli/habits"
	"github.com/julianstephens/habitsync/internal/cli/progress"
	"github.com/julianstephens/habitsync/internal/cli/syncing"
	"github.com/julianstephens/habitsync/internal/cli/system"
	"github.com/julianstephens/habitsync/internal/config"
	"github.com/julianstephens/habitsync/internal/constants"
	apperrors "github.com/julianstephens/habitsync/internal/errors"
	"github.com/julianstephens/habitsync/internal/logger"
)

var CLI struct {
	Version   kong.VersionFlag
	DB        string `help:"Local database path." type:"path" default:"${db}" name:"db"`
	Config    string `help:"Config file path." type:"path" default:"${config}"`
	User      string `help:"Act as this user (email). Overrides HABITSYNC_USER and the config file."`
	RemoteDSN string `help:"Remote PostgreSQL connection string. Overrides HABITSYNC_REMOTE_DSN, the config file and the keyring." name:"remote-dsn"`
	Debug     bool   `help:"Log debug output to stderr."`

	Init     system.InitCmd       `cmd:"" help:"Initialize habitsync storage."`
	Migrate  system.MigrateCmd    `cmd:"" help:"Run database migrations."`
	Doctor   system.DoctorCmd     `cmd:"" help:"Run health checks and diagnostics."`
	Account  system.AccountCmd    `cmd:"" help:"Manage the local account."`
	Habit    habits.HabitCmd      `cmd:"" help:"Manage habits."`
	Progress progress.ProgressCmd `cmd:"" help:"Record and review daily progress."`
	Sync     syncing.SyncCmd      `cmd:"" help:"Push queued changes to the remote store."`
	Queue    syncing.QueueCmd     `cmd:"" help:"Inspect the sync queue."`
	Remote   system.RemoteCmd     `cmd:"" help:"Manage the remote connection string."`
	Backup   backups.BackupCmd    `cmd:"" help:"Manage database backups."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Local-first habit tracker with background sync"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": constants.Version,
			"db":      constants.DefaultDBPath,
			"config":  constants.DefaultConfigFile,
		},
	)

	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: filepath.Dir(CLI.DB),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		apperrors.Fatal(err)
	}

	appCtx := cli.NewContext(CLI.DB, cfg)
	appCtx.ConfigPath = CLI.Config
	appCtx.UserFlag = CLI.User
	appCtx.RemoteFlag = CLI.RemoteDSN

	// These open the database themselves.
	switch ctx.Command() {
	case "init", "doctor", "migrate":
	default:
		if err := appCtx.Store.Load(); err != nil {
			apperrors.Fatal(err)
		}
	}

	err = ctx.Run(appCtx)
	if cerr := appCtx.Close(); cerr != nil {
		logger.Warn("failed to close resources", "err", cerr)
	}
	apperrors.Fatal(err)
}
