package habits

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/service"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	Edit   HabitEditCmd   `cmd:"" help:"Edit an existing habit."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit (soft delete)."`
	List   HabitListCmd   `cmd:"" help:"List habits."`
	Show   HabitShowCmd   `cmd:"" help:"Show one habit."`
}

type HabitAddCmd struct {
	Title         string `arg:"" help:"Habit title."`
	Icon          string `help:"Emoji or short icon."`
	Frequency     string `help:"daily or weekly." default:"daily" enum:"daily,weekly"`
	Target        int    `help:"Daily target value (0 means any progress counts)." default:"0"`
	Reminder      string `help:"Reminder time (HH:MM)."`
	ReminderEvery int    `help:"Repeat reminder every N hours." name:"reminder-every"`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}

	h, err := ctx.Habits.Add(context.Background(), user, service.HabitInput{
		Title:                 c.Title,
		Icon:                  c.Icon,
		Frequency:             models.Frequency(c.Frequency),
		Target:                c.Target,
		ReminderTime:          c.Reminder,
		ReminderIntervalHours: c.ReminderEvery,
	})
	if err != nil {
		return err
	}

	ctx.Println(cli.Success("Added habit: %s", h.Title))
	ctx.Println(cli.Muted("  id %s (queued for sync)", h.HabitID))
	return nil
}

type HabitEditCmd struct {
	ID            string  `arg:"" help:"Habit id."`
	Title         *string `help:"New title."`
	Icon          *string `help:"New icon."`
	Frequency     *string `help:"daily or weekly."`
	Target        *int    `help:"New target value."`
	Reminder      *string `help:"New reminder time (HH:MM); empty clears it."`
	ReminderEvery *int    `help:"Repeat reminder every N hours." name:"reminder-every"`
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}
	bg := context.Background()

	current, err := ctx.Habits.Get(bg, user, c.ID)
	if err != nil {
		return err
	}

	in := service.InputFrom(current)
	changed := false
	if c.Title != nil {
		in.Title, changed = *c.Title, true
	}
	if c.Icon != nil {
		in.Icon, changed = *c.Icon, true
	}
	if c.Frequency != nil {
		in.Frequency, changed = models.Frequency(*c.Frequency), true
	}
	if c.Target != nil {
		in.Target, changed = *c.Target, true
	}
	if c.Reminder != nil {
		in.ReminderTime, changed = *c.Reminder, true
	}
	if c.ReminderEvery != nil {
		in.ReminderIntervalHours, changed = *c.ReminderEvery, true
	}
	if !changed {
		return fmt.Errorf("nothing to change: pass at least one of --title, --icon, --frequency, --target, --reminder, --reminder-every")
	}

	h, err := ctx.Habits.Update(bg, user, c.ID, in)
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Updated habit: %s", h.Title))
	return nil
}

type HabitDeleteCmd struct {
	ID string `arg:"" help:"Habit id."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}
	if err := ctx.Habits.Delete(context.Background(), user, c.ID); err != nil {
		return err
	}
	ctx.Println(cli.Success("Deleted habit %s", c.ID))
	return nil
}

type HabitListCmd struct{}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}
	habits, err := ctx.Habits.List(context.Background(), user)
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		ctx.Println("No habits found.")
		return nil
	}
	for _, h := range habits {
		ctx.Println(cli.FormatHabit(h))
	}
	return nil
}

type HabitShowCmd struct {
	ID string `arg:"" help:"Habit id."`
}

func (c *HabitShowCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}
	h, err := ctx.Habits.Get(context.Background(), user, c.ID)
	if err != nil {
		return err
	}

	ctx.Println(cli.Header(h.Title))
	ctx.Printf("  id:         %s\n", h.HabitID)
	ctx.Printf("  icon:       %s\n", h.Icon)
	ctx.Printf("  frequency:  %s\n", h.Frequency)
	ctx.Printf("  target:     %d\n", h.Target)
	if h.ReminderTime != "" {
		ctx.Printf("  reminder:   %s", h.ReminderTime)
		if h.ReminderIntervalHours > 0 {
			ctx.Printf(" (every %dh)", h.ReminderIntervalHours)
		}
		ctx.Println()
	}
	ctx.Printf("  created:    %s\n", cli.FormatMillis(h.CreatedAt))
	ctx.Printf("  updated:    %s\n", cli.FormatMillis(h.UpdatedAt))
	return nil
}
