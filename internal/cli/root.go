package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/julianstephens/habitsync/internal/config"
	"github.com/julianstephens/habitsync/internal/connectivity"
	"github.com/julianstephens/habitsync/internal/constants"
	apperrors "github.com/julianstephens/habitsync/internal/errors"
	"github.com/julianstephens/habitsync/internal/keyring"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/queue"
	"github.com/julianstephens/habitsync/internal/remote"
	"github.com/julianstephens/habitsync/internal/service"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
	"github.com/julianstephens/habitsync/internal/syncer"
)

// Context is shared by every command.
type Context struct {
	Config     config.Config
	ConfigPath string
	UserFlag   string
	RemoteFlag string

	Store    *sqlite.Store
	Queue    *queue.Queue
	Habits   *service.HabitService
	Progress *service.ProgressService
	Users    *service.UserService

	Out io.Writer
	In  io.Reader

	remote  remote.Store
	checker connectivity.Checker
	closers []func() error
}

func NewContext(dbPath string, cfg config.Config) *Context {
	store := sqlite.NewStore(dbPath)
	q := queue.New(store)
	return &Context{
		Config:   cfg,
		Store:    store,
		Queue:    q,
		Habits:   service.NewHabitService(store, q),
		Progress: service.NewProgressService(store, q),
		Users:    service.NewUserService(store),
		Out:      os.Stdout,
		In:       os.Stdin,
	}
}

// User resolves the acting user from flag, environment or config.
func (c *Context) User() (string, error) {
	if u := c.Config.ResolveUser(c.UserFlag); u != "" {
		return u, nil
	}
	return "", apperrors.ErrNoUser
}

// SetRemote injects an already-open remote store and its connectivity check.
func (c *Context) SetRemote(r remote.Store, checker connectivity.Checker) {
	c.remote = r
	c.checker = checker
}

// RemoteDSN resolves the remote connection string from flag, environment,
// config file, then keyring.
func (c *Context) RemoteDSN() (dsn string, source string, err error) {
	if c.RemoteFlag != "" {
		return c.RemoteFlag, "flag", nil
	}
	if env := os.Getenv(constants.EnvRemoteDSN); env != "" {
		return env, "environment", nil
	}
	if c.Config.RemoteDSN != "" {
		return c.Config.RemoteDSN, "config", nil
	}
	dsn, err = keyring.GetRemoteDSN()
	switch {
	case err == nil:
		return dsn, "keyring", nil
	case errors.Is(err, keyring.ErrNotFound):
		return "", "", apperrors.ErrNoRemote
	default:
		logger.Warn("keyring lookup failed", "err", err)
		return "", "", apperrors.ErrNoRemote
	}
}

// Remote builds the configured remote store once. The store is opened lazily
// by its checker, which keeps retrying while the remote is unreachable, so
// sync commands degrade to an offline no-op and recover when it comes back.
func (c *Context) Remote(ctx context.Context) (remote.Store, connectivity.Checker, error) {
	if c.remote != nil {
		return c.remote, c.checker, nil
	}

	dsn, source, err := c.RemoteDSN()
	if err != nil {
		return nil, nil, err
	}
	if err := remote.ValidateConnString(dsn); err != nil {
		return nil, nil, err
	}

	pg := remote.NewPostgres(dsn)
	c.closers = append(c.closers, pg.Close)
	checker := connectivity.NewOpenChecker(pg, c.Config.Sync.ConnectivityTimeout.Duration, func(err error) {
		logger.Warn("remote unreachable", "source", source, "err", err)
	})
	c.remote, c.checker = pg, checker
	logger.Debug("remote configured", "source", source)
	return c.remote, c.checker, nil
}

// Driver builds a sync driver over the configured remote.
func (c *Context) Driver(ctx context.Context) (*syncer.Driver, error) {
	r, checker, err := c.Remote(ctx)
	if err != nil {
		return nil, err
	}
	return syncer.New(c.Queue, r, checker, syncer.WithLogger(logger.Get())), nil
}

// Close releases the local store and any opened remote.
func (c *Context) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	errs = append(errs, c.Store.Close())
	return errors.Join(errs...)
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

// Confirm asks a yes/no question on In. Anything but y or yes is a no.
func (c *Context) Confirm(prompt string) (bool, error) {
	c.Printf("%s [y/N]: ", prompt)
	response, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
