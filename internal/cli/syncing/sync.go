package syncing

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/habitsync/internal/cli"
	apperrors "github.com/julianstephens/habitsync/internal/errors"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/syncer"
	"github.com/julianstephens/habitsync/internal/watch"
)

type SyncCmd struct {
	Now    SyncNowCmd    `cmd:"" default:"1" help:"Drain the sync queue once."`
	Watch  SyncWatchCmd  `cmd:"" help:"Keep draining on an interval and after local changes."`
	Status SyncStatusCmd `cmd:"" help:"Show how many changes are waiting to sync."`
}

type SyncNowCmd struct {
	Timeout time.Duration `help:"Give up after this long." default:"1m"`
}

func (c *SyncNowCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	driver, err := ctx.Driver(runCtx)
	if err != nil {
		return err
	}

	report, err := driver.SyncNow(runCtx, user)
	if errors.Is(err, context.DeadlineExceeded) {
		printReport(ctx, report)
		return errors.New("sync timed out; remaining changes stay queued")
	}
	if err != nil {
		return err
	}
	printReport(ctx, report)
	return nil
}

type SyncWatchCmd struct {
	Interval time.Duration `help:"Drain at least this often. Defaults to the configured watch interval."`
	Debounce time.Duration `help:"Wait this long after the last local change. Defaults to the configured debounce."`
}

func (c *SyncWatchCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := ctx.Driver(runCtx)
	if err != nil {
		return err
	}

	interval := c.Interval
	if interval <= 0 {
		interval = ctx.Config.Sync.WatchInterval.Duration
	}
	debounce := c.Debounce
	if debounce <= 0 {
		debounce = ctx.Config.Sync.WatchDebounce.Duration
	}

	w := watch.New(driver, user,
		watch.WithInterval(interval),
		watch.WithDebounce(debounce),
		watch.WithDatabase(ctx.Store.Path()),
		watch.WithLogger(logger.Get()),
		watch.OnReport(func(r syncer.Report, err error) {
			if err != nil {
				ctx.Println(cli.Danger("sync failed: %v", err))
				return
			}
			if r.Offline || r.Attempted > 0 {
				printReport(ctx, r)
			}
		}),
	)

	ctx.Printf("Watching %s (every %s, debounce %s). Press Ctrl+C to stop.\n", ctx.Store.Path(), interval, debounce)
	err = w.Run(runCtx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type SyncStatusCmd struct{}

func (c *SyncStatusCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}

	n, err := ctx.Queue.PendingCount(context.Background(), user)
	if err != nil {
		return err
	}

	ctx.Printf("User:    %s\n", user)
	switch _, source, err := ctx.RemoteDSN(); {
	case err == nil:
		ctx.Printf("Remote:  configured (%s)\n", source)
	case errors.Is(err, apperrors.ErrNoRemote):
		ctx.Printf("Remote:  %s\n", cli.Muted("not configured"))
	default:
		return err
	}

	if n == 0 {
		ctx.Println(cli.Success("Everything is synced"))
	} else {
		ctx.Println(cli.Warning("%d change(s) waiting to sync", n))
	}
	return nil
}

func printReport(ctx *cli.Context, r syncer.Report) {
	if r.Offline {
		ctx.Println(cli.Warning("Offline: changes stay queued until the remote is reachable"))
		return
	}
	if r.Attempted == 0 {
		ctx.Println(cli.Success("Nothing to sync"))
		return
	}
	ctx.Println(cli.Success("Synced %d of %d change(s) in %s", r.Done, r.Attempted, r.Duration.Round(time.Millisecond)))
	if r.Skipped > 0 {
		ctx.Println(cli.Warning("%d change(s) skipped", r.Skipped))
	}
	if r.Retried > 0 {
		ctx.Println(cli.Warning("%d change(s) failed and will be retried", r.Retried))
	}
}
