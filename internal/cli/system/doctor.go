package system

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/julianstephens/habitsync/internal/backup"
	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/migration"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
	"github.com/julianstephens/habitsync/migrations"
)

type DoctorCmd struct{}

type severity int

const (
	fail severity = iota
	warn
)

type check struct {
	name     string
	severity severity
	needsDB  bool
	run      func(*cli.Context) error
}

// skipped marks a check that could not run for a benign reason.
type skipped string

func (s skipped) Error() string { return string(s) }

var checks = []check{
	{"Database reachable", fail, false, checkDBReachable},
	{"Schema version", fail, true, checkSchemaVersion},
	{"Backups present", warn, false, checkBackupsPresent},
	{"Remote configured", warn, false, checkRemote},
	{"Sync queue", warn, true, checkQueue},
	{"Data validation", fail, true, checkData},
	{"Clock/timezone", fail, false, func(*cli.Context) error { return checkClockTimezone() }},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	dbReachable := true
	for i, c := range checks {
		if c.needsDB && !dbReachable {
			ctx.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}

		err := c.run(ctx)
		var reason skipped
		switch {
		case err == nil:
			ctx.Println(cli.Success("%s: OK", c.name))
		case errors.As(err, &reason):
			ctx.Printf("⊘ %s: SKIPPED (%s)\n", c.name, reason)
		case c.severity == warn:
			ctx.Println(cli.Warning("%s: WARNING", c.name))
			ctx.Printf("   %v\n", err)
		default:
			ctx.Println(cli.Danger("%s: FAIL", c.name))
			ctx.Printf("   Error: %v\n", err)
			hasError = true
			if i == 0 {
				dbReachable = false
			}
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	err := ctx.Store.Load()
	if ctx.Store.DB() == nil {
		if err == nil {
			err = fmt.Errorf("database connection is nil")
		}
		return err
	}
	// A schema mismatch still leaves the database open; the next check reports it.
	var one int
	if err := ctx.Store.DB().QueryRow("SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return err
	}
	return migration.NewRunner(ctx.Store.DB(), sub).ValidateVersion()
}

func checkBackupsPresent(ctx *cli.Context) error {
	backups, err := backup.NewManager(ctx.Store.Path()).List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'habitsync backup create'")
	}
	return nil
}

func checkRemote(ctx *cli.Context) error {
	dsn, _, err := ctx.RemoteDSN()
	if err != nil {
		return err
	}
	return remote.ValidateConnString(dsn)
}

func checkQueue(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return skipped("no user configured")
	}
	skipped, err := ctx.Queue.List(context.Background(), user, []models.TaskStatus{models.StatusSkipped}, 0)
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		return fmt.Errorf("%d task(s) were skipped and will not be delivered; see 'habitsync queue list --status SKIPPED'", len(skipped))
	}
	return nil
}

func checkData(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return skipped("no user configured")
	}
	result, err := ctx.Habits.Check(context.Background(), user)
	if err != nil {
		return err
	}
	if result.HasProblems() {
		return errors.New(result.FormatReport())
	}
	return nil
}

func checkClockTimezone() error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time looks wrong: %s", now.Format(time.RFC3339))
	}
	if time.Local == nil {
		return fmt.Errorf("local timezone is not set")
	}
	return nil
}
