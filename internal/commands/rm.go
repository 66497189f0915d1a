package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskr/internal/exitcode"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete tasks" }
func (c *RmCmd) Usage() string     { return "taskr rm <ref>..." }
func (c *RmCmd) NeedsAuth() bool   { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		return fail(errOut, invalid(err))
	}

	tasks, err := newTaskResolver(env.Tasks, env.Config.PageSize).resolveAll(ctx, refs)
	if err != nil {
		return fail(errOut, err)
	}

	for _, task := range tasks {
		if err := env.Tasks.DeleteTask(ctx, task.ID); err != nil {
			return fail(errOut, err)
		}
		env.Log().Debug("task deleted", "id", task.ID)
		if !env.Config.Quiet && len(tasks) > 1 {
			fmt.Fprintf(out, "deleted %s\n", describe(task))
		}
	}

	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
