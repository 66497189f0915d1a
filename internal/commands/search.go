package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskr/internal/exitcode"
	"taskr/internal/output"
	"taskr/internal/service"
)

func init() {
	Register(&SearchCmd{})
}

// SearchCmd implements the search command.
type SearchCmd struct {
	status string
}

func (c *SearchCmd) Name() string      { return "search" }
func (c *SearchCmd) Aliases() []string { return []string{"find"} }
func (c *SearchCmd) Synopsis() string  { return "Search tasks by text" }
func (c *SearchCmd) Usage() string     { return "taskr search [--status <s>] <query...>" }
func (c *SearchCmd) NeedsAuth() bool   { return true }

func (c *SearchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
}

func (c *SearchCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		fmt.Fprintln(errOut, "error: search query required")
		return exitcode.UserError
	}

	var status service.Status
	if c.status != "" {
		st, err := service.ParseStatus(c.status)
		if err != nil {
			return fail(errOut, err)
		}
		status = st
	}

	tasks, err := env.Tasks.SearchTasks(ctx, query, status)
	if err != nil {
		return fail(errOut, err)
	}

	if len(tasks) == 0 {
		if !env.Config.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	now := env.Clock()
	for _, task := range tasks {
		output.FormatTask(out, 0, task, now)
	}
	return exitcode.Success
}
