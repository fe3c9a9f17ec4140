package habits

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/julianstephens/habitsync/internal/cli/clitest"
	apperrors "github.com/julianstephens/habitsync/internal/errors"
	"github.com/julianstephens/habitsync/internal/storage"
)

func TestHabitAddAndList(t *testing.T) {
	ctx, out := clitest.New(t)

	add := &HabitAddCmd{Title: "Read", Icon: "📚", Frequency: "daily", Target: 20}
	if err := add.Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !strings.Contains(out.String(), "Added habit: Read") {
		t.Errorf("unexpected add output: %q", out.String())
	}

	n, err := ctx.Queue.PendingCount(context.Background(), clitest.User)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}

	out.Reset()
	if err := (&HabitListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "Read") || !strings.Contains(out.String(), "target 20") {
		t.Errorf("unexpected list output: %q", out.String())
	}
}

func TestHabitAddRejectsEmptyTitle(t *testing.T) {
	ctx, _ := clitest.New(t)

	if err := (&HabitAddCmd{Title: "   ", Frequency: "daily"}).Run(ctx); err == nil {
		t.Fatal("expected an error for a blank title")
	}
}

func TestHabitEdit(t *testing.T) {
	ctx, out := clitest.New(t)
	bg := context.Background()

	if err := (&HabitAddCmd{Title: "Run", Frequency: "daily"}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	habits, err := ctx.Habits.List(bg, clitest.User)
	if err != nil || len(habits) != 1 {
		t.Fatalf("List() = %v, %v", habits, err)
	}
	id := habits[0].HabitID

	if err := (&HabitEditCmd{ID: id}).Run(ctx); err == nil {
		t.Error("expected an error when nothing changes")
	}

	title := "Run 5k"
	target := 5
	if err := (&HabitEditCmd{ID: id, Title: &title, Target: &target}).Run(ctx); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if !strings.Contains(out.String(), "Updated habit: Run 5k") {
		t.Errorf("unexpected edit output: %q", out.String())
	}

	h, err := ctx.Habits.Get(bg, clitest.User, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if h.Title != title || h.Target != target || h.Frequency != "daily" {
		t.Errorf("edited habit = %+v", h)
	}
}

func TestHabitDelete(t *testing.T) {
	ctx, out := clitest.New(t)
	bg := context.Background()

	if err := (&HabitAddCmd{Title: "Stretch", Frequency: "daily"}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	habits, _ := ctx.Habits.List(bg, clitest.User)
	id := habits[0].HabitID

	if err := (&HabitDeleteCmd{ID: id}).Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	out.Reset()
	if err := (&HabitListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "No habits found.") {
		t.Errorf("deleted habit still listed: %q", out.String())
	}

	n, _ := ctx.Queue.PendingCount(bg, clitest.User)
	if n != 2 {
		t.Errorf("pending = %d, want 2 (upsert and delete)", n)
	}
}

func TestHabitShowMissing(t *testing.T) {
	ctx, _ := clitest.New(t)

	err := (&HabitShowCmd{ID: "nope"}).Run(ctx)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("show missing = %v, want ErrNotFound", err)
	}
}

func TestHabitCommandsNeedUser(t *testing.T) {
	ctx, _ := clitest.New(t)
	ctx.Config.User = ""

	if err := (&HabitListCmd{}).Run(ctx); !errors.Is(err, apperrors.ErrNoUser) {
		t.Errorf("list without user = %v, want ErrNoUser", err)
	}
}
