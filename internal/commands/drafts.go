package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"taskr/internal/exitcode"
	"taskr/internal/output"
	"taskr/internal/service"
	"taskr/internal/session"
)

func init() {
	Register(&DraftsCmd{})
}

// DraftsCmd implements the drafts command and its subcommands. Drafts live
// in local storage and only reach the backend when pushed.
type DraftsCmd struct {
	description string
}

func (c *DraftsCmd) Name() string      { return "drafts" }
func (c *DraftsCmd) Aliases() []string { return []string{"draft"} }
func (c *DraftsCmd) Synopsis() string  { return "Manage local task drafts" }
func (c *DraftsCmd) Usage() string {
	return "taskr drafts [list | add -d <text> <title...> | rm <id> | push <id>]"
}
func (c *DraftsCmd) NeedsAuth() bool { return false }

func (c *DraftsCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "description", "", "")
	fs.StringVar(&c.description, "d", "", "")
}

func (c *DraftsCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list", "ls":
		return c.list(env, out, errOut)
	case "add":
		return c.add(env, args, out, errOut)
	case "rm", "delete":
		return c.remove(env, args, out, errOut)
	case "push":
		return c.push(ctx, env, args, out, errOut)
	default:
		fmt.Fprintf(errOut, "error: unknown drafts subcommand: %s\n", sub)
		return exitcode.UserError
	}
}

func (c *DraftsCmd) list(env *Env, out, errOut io.Writer) int {
	list, err := env.Drafts.List()
	if err != nil {
		return fail(errOut, err)
	}
	if len(list) == 0 {
		if !env.Config.Quiet {
			fmt.Fprintln(out, "no drafts")
		}
		return exitcode.Success
	}
	now := env.Clock()
	for _, d := range list {
		output.FormatDraft(out, d, now)
	}
	return exitcode.Success
}

func (c *DraftsCmd) add(env *Env, args []string, out, errOut io.Writer) int {
	title := strings.Join(args, " ")
	d, err := env.Drafts.Add(title, c.description)
	if err != nil {
		return fail(errOut, err)
	}
	if !env.Config.Quiet {
		fmt.Fprintf(out, "draft %d saved\n", d.ID)
	}
	return exitcode.Success
}

func (c *DraftsCmd) remove(env *Env, args []string, out, errOut io.Writer) int {
	id, err := parseDraftID(args)
	if err != nil {
		return fail(errOut, err)
	}
	if err := env.Drafts.Delete(id); err != nil {
		return fail(errOut, err)
	}
	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// push creates a task from the draft and drops the draft.
func (c *DraftsCmd) push(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	id, err := parseDraftID(args)
	if err != nil {
		return fail(errOut, err)
	}
	if !env.Session.IsAuthenticated() {
		return fail(errOut, session.ErrNotAuthenticated)
	}

	d, err := env.Drafts.Get(id)
	if err != nil {
		return fail(errOut, err)
	}

	task, err := env.Tasks.CreateTask(ctx, service.TaskInput{
		Title:       d.Title,
		Description: d.Description,
		Priority:    service.PriorityMedium,
		Status:      service.StatusPending,
	})
	if err != nil {
		return fail(errOut, err)
	}

	if err := env.Drafts.Delete(id); err != nil {
		env.Log().Warn("failed to remove pushed draft", "draft", id, "error", err)
	}

	if !env.Config.Quiet {
		fmt.Fprintf(out, "created %s\n", output.ShortID(task.ID))
	}
	return exitcode.Success
}

func parseDraftID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, usageError("draft id required")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError("invalid draft id: %s", args[0])
	}
	return id, nil
}
