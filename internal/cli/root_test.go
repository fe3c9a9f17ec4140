package cli_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/julianstephens/habitsync/internal/cli/clitest"
	"github.com/julianstephens/habitsync/internal/connectivity"
	apperrors "github.com/julianstephens/habitsync/internal/errors"
)

func TestRemoteUnreachableKeepsRetrying(t *testing.T) {
	ctx, _ := clitest.New(t)
	ctx.RemoteFlag = "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"
	ctx.Config.Sync.ConnectivityTimeout.Duration = 500 * time.Millisecond
	bg := context.Background()

	first, checker, err := ctx.Remote(bg)
	if err != nil {
		t.Fatalf("Remote() failed: %v", err)
	}
	oc, ok := checker.(*connectivity.OpenChecker)
	if !ok {
		t.Fatalf("checker = %T, want *connectivity.OpenChecker", checker)
	}
	if checker.IsConnected(bg) {
		t.Fatal("connected to a closed port")
	}

	second, again, err := ctx.Remote(bg)
	if err != nil {
		t.Fatalf("second Remote() failed: %v", err)
	}
	if second != first || again != checker {
		t.Error("Remote() should return the same store and checker")
	}
	if again.IsConnected(bg) || oc.Opened() {
		t.Error("expected the remote to stay closed")
	}

	if err := ctx.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestRemoteWithoutConfiguration(t *testing.T) {
	ctx, _ := clitest.New(t)

	_, _, err := ctx.Remote(context.Background())
	if !errors.Is(err, apperrors.ErrNoRemote) {
		t.Fatalf("Remote() error = %v, want ErrNoRemote", err)
	}
}

func TestRemoteRejectsBadConnectionString(t *testing.T) {
	ctx, _ := clitest.New(t)
	ctx.RemoteFlag = "postgres://u:p@host:notaport/db"

	if _, _, err := ctx.Remote(context.Background()); err == nil {
		t.Fatal("expected an invalid connection string error")
	}
}
