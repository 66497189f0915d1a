package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskr/internal/exitcode"
	"taskr/internal/output"
)

func init() {
	Register(&ShowCmd{})
}

// ShowCmd implements the show command.
type ShowCmd struct{}

func (c *ShowCmd) Name() string      { return "show" }
func (c *ShowCmd) Aliases() []string { return []string{"get"} }
func (c *ShowCmd) Synopsis() string  { return "Show task details" }
func (c *ShowCmd) Usage() string     { return "taskr show <ref>" }
func (c *ShowCmd) NeedsAuth() bool   { return true }

func (c *ShowCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ShowCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(errOut, "error: too many arguments")
		return exitcode.UserError
	}
	var arg string
	if len(args) == 1 {
		arg = args[0]
	}
	ref, err := ParseTaskRef(arg)
	if err != nil {
		return fail(errOut, invalid(err))
	}

	task, err := newTaskResolver(env.Tasks, env.Config.PageSize).resolve(ctx, ref)
	if err != nil {
		return fail(errOut, err)
	}

	output.FormatTaskDetail(out, task, env.Clock())
	return exitcode.Success
}
