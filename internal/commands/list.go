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
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `taskr` (no args) and `taskr list`.
type ListCmd struct {
	page     int
	limit    int
	status   string
	priority string
	sort     string
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "taskr list [--page <n>] [--limit <n>] [--status <s>] [--priority <p>] [--sort <field[:dir]>]"
}
func (c *ListCmd) NeedsAuth() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.page, "page", 1, "")
	fs.IntVar(&c.limit, "limit", 0, "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.priority, "p", "", "")
	fs.StringVar(&c.sort, "sort", "", "")
}

func (c *ListCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if c.page < 1 {
		fmt.Fprintf(errOut, "error: invalid page number: %d\n", c.page)
		return exitcode.UserError
	}

	limit := c.limit
	if limit == 0 {
		limit = env.Config.PageSize
	}
	if limit < 1 {
		fmt.Fprintf(errOut, "error: invalid limit: %d\n", limit)
		return exitcode.UserError
	}

	opts := service.ListOptions{Page: c.page, Limit: limit, Sort: strings.TrimSpace(c.sort)}
	if c.status != "" {
		st, err := service.ParseStatus(c.status)
		if err != nil {
			return fail(errOut, err)
		}
		opts.Status = st
	}
	if c.priority != "" {
		p, err := service.ParsePriority(c.priority)
		if err != nil {
			return fail(errOut, err)
		}
		opts.Priority = p
	}

	page, err := env.Tasks.ListTasks(ctx, opts)
	if err != nil {
		return fail(errOut, err)
	}

	if len(page.Data) == 0 {
		if !env.Config.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	// Row numbers only line up with the resolver when listing unfiltered.
	numbered := opts.Status == "" && opts.Priority == "" && opts.Sort == "" && limit == env.Config.PageSize
	start := (c.page-1)*limit + 1
	now := env.Clock()
	for i, task := range page.Data {
		num := 0
		if numbered {
			num = start + i
		}
		output.FormatTask(out, num, task, now)
	}
	if !env.Config.Quiet {
		output.FormatPageFooter(out, page)
	}
	return exitcode.Success
}
