// Package clitest builds a command context over a throwaway database.
package clitest

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/config"
	"github.com/julianstephens/habitsync/internal/constants"
)

const User = "someone@example.com"

// New returns an initialized context acting as User, with output captured and
// the OS keyring replaced by an in-memory mock.
func New(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()

	gokeyring.MockInit()
	t.Setenv(constants.EnvUser, "")
	t.Setenv(constants.EnvRemoteDSN, "")

	dir := t.TempDir()
	cfg := config.Default()
	cfg.User = User

	ctx := cli.NewContext(filepath.Join(dir, "habitsync.db"), cfg)
	ctx.ConfigPath = filepath.Join(dir, "config.toml")
	if err := ctx.Store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { ctx.Close() })

	out := &bytes.Buffer{}
	ctx.Out = out
	ctx.In = strings.NewReader("")
	return ctx, out
}
