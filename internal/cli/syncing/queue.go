package syncing

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/models"
)

type QueueCmd struct {
	List QueueListCmd `cmd:"" default:"1" help:"List recent sync queue tasks."`
}

type QueueListCmd struct {
	Status []string `help:"Only show tasks with these statuses (PENDING, DONE, SKIPPED)." sep:","`
	Limit  int      `help:"Maximum number of tasks to show (0 for all)." default:"20"`
}

func (c *QueueListCmd) Run(ctx *cli.Context) error {
	user, err := ctx.User()
	if err != nil {
		return err
	}

	statuses := make([]models.TaskStatus, 0, len(c.Status))
	for _, s := range c.Status {
		status := models.TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
		switch status {
		case models.StatusPending, models.StatusDone, models.StatusSkipped:
			statuses = append(statuses, status)
		default:
			return fmt.Errorf("unknown status %q", s)
		}
	}

	tasks, err := ctx.Queue.List(context.Background(), user, statuses, c.Limit)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		ctx.Println("No tasks found.")
		return nil
	}

	ctx.Println(cli.Header(fmt.Sprintf("%-19s  %-8s  %-8s  %-6s  %s", "TIME", "STATUS", "ENTITY", "OP", "DOC")))
	for _, t := range tasks {
		ctx.Printf("%-19s  %-8s  %-8s  %-6s  %s\n",
			cli.FormatMillis(t.Timestamp), cli.FormatStatus(t.Status), t.Entity, t.Operation, t.DocID)
	}
	return nil
}
