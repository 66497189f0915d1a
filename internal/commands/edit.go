package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskr/internal/exitcode"
	"taskr/internal/output"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command. Fields not given keep their value.
type EditCmd struct {
	title *string
	flags taskFlags
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return []string{"update"} }
func (c *EditCmd) Synopsis() string  { return "Change a task" }
func (c *EditCmd) Usage() string {
	return "taskr edit [--title <t>] [-d <text>] [-p <p>] [--status <s>] [--due <date>|none] [--estimate <hours>] <ref>"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	c.title = nil
	fs.Func("title", "", c.setTitle)
	fs.Func("t", "", c.setTitle)
	c.flags.register(fs)
}

func (c *EditCmd) setTitle(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("title required")
	}
	c.title = &s
	return nil
}

func (c *EditCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: exactly one task reference required")
		return exitcode.UserError
	}
	ref, err := ParseTaskRef(args[0])
	if err != nil {
		return fail(errOut, invalid(err))
	}
	if c.title == nil && !c.flags.changed() {
		fmt.Fprintln(errOut, "error: nothing to change")
		return exitcode.UserError
	}

	task, err := newTaskResolver(env.Tasks, env.Config.PageSize).resolve(ctx, ref)
	if err != nil {
		return fail(errOut, err)
	}

	in := task.Input()
	if c.title != nil {
		in.Title = *c.title
	}
	c.flags.apply(&in)

	updated, err := env.Tasks.UpdateTask(ctx, task.ID, in)
	if err != nil {
		return fail(errOut, err)
	}

	if !env.Config.Quiet {
		fmt.Fprintf(out, "updated %s\n", output.ShortID(updated.ID))
	}
	return exitcode.Success
}
