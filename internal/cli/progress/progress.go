package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/service"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/internal/utils"
)

type ProgressCmd struct {
	Record  ProgressRecordCmd  `cmd:"" help:"Record progress for a habit on a day."`
	Show    ProgressShowCmd    `cmd:"" help:"Show progress for a habit on a day."`
	History ProgressHistoryCmd `cmd:"" help:"Show recent progress for a habit."`
	Streak  ProgressStreakCmd  `cmd:"" help:"Show the current streak for a habit."`
}

type ProgressRecordCmd struct {
	HabitID string `arg:"" help:"Habit id."`
	Value   int    `arg:"" help:"Progress value for the day."`
	Date    string `help:"Day (YYYY-MM-DD). Defaults to today."`
	Note    string `help:"Optional note."`
	Photo   string `help:"Optional photo URI."`
}

func (c *ProgressRecordCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}
	date := c.Date
	if date == "" {
		date = utils.Today()
	}

	p, err := ctx.Progress.Upsert(context.Background(), user, service.ProgressInput{
		HabitID:  c.HabitID,
		Date:     date,
		Value:    c.Value,
		Note:     c.Note,
		PhotoURI: c.Photo,
	})
	if err != nil {
		return err
	}

	if p.Completed {
		ctx.Println(cli.Success("Recorded %d for %s (completed)", p.Value, p.Date))
	} else {
		ctx.Println(cli.Success("Recorded %d for %s", p.Value, p.Date))
	}
	return nil
}

type ProgressShowCmd struct {
	HabitID string `arg:"" help:"Habit id."`
	Date    string `help:"Day (YYYY-MM-DD). Defaults to today."`
}

func (c *ProgressShowCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}
	date := c.Date
	if date == "" {
		date = utils.Today()
	}

	p, err := ctx.Progress.ForDate(context.Background(), user, c.HabitID, date)
	if errors.Is(err, storage.ErrNotFound) {
		ctx.Printf("No progress recorded for %s.\n", date)
		return nil
	}
	if err != nil {
		return err
	}

	ctx.Println(formatEntry(p.Date, p.Value, p.Completed, p.Note))
	ctx.Println(cli.Muted("  updated %s", cli.FormatMillis(p.UpdatedAt)))
	return nil
}

type ProgressHistoryCmd struct {
	HabitID string `arg:"" help:"Habit id."`
	Days    int    `help:"Number of days to show, ending today." default:"14"`
}

func (c *ProgressHistoryCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}
	if c.Days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}

	entries, err := ctx.Progress.History(context.Background(), user, c.HabitID, c.Days)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ctx.Printf("No progress in the last %d day(s).\n", c.Days)
		return nil
	}
	for _, p := range entries {
		ctx.Println(formatEntry(p.Date, p.Value, p.Completed, p.Note))
	}
	return nil
}

type ProgressStreakCmd struct {
	HabitID string `arg:"" help:"Habit id."`
}

func (c *ProgressStreakCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}
	bg := context.Background()

	h, err := ctx.Habits.Get(bg, user, c.HabitID)
	if err != nil {
		return err
	}
	streak, err := ctx.Progress.Streak(bg, user, c.HabitID)
	if err != nil {
		return err
	}

	ctx.Printf("%s: %d day streak\n", h.Title, streak)
	return nil
}

func formatEntry(date string, value int, completed bool, note string) string {
	mark := "·"
	if completed {
		mark = "✓"
	}
	line := fmt.Sprintf("%s %s  %d", mark, date, value)
	if note != "" {
		line += cli.Muted("  %s", note)
	}
	return line
}
