package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskr/internal/exitcode"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"complete"} }
func (c *DoneCmd) Synopsis() string  { return "Mark tasks completed" }
func (c *DoneCmd) Usage() string     { return "taskr done <ref>..." }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		return fail(errOut, invalid(err))
	}

	// Resolve everything first so row numbers don't shift under us.
	tasks, err := newTaskResolver(env.Tasks, env.Config.PageSize).resolveAll(ctx, refs)
	if err != nil {
		return fail(errOut, err)
	}

	for _, task := range tasks {
		if _, err := env.Tasks.CompleteTask(ctx, task.ID); err != nil {
			return fail(errOut, err)
		}
		env.Log().Debug("task completed", "id", task.ID)
		if !env.Config.Quiet && len(tasks) > 1 {
			fmt.Fprintf(out, "completed %s\n", describe(task))
		}
	}

	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
