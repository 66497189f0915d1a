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
	Register(&AddCmd{})
	Register(&CreateCmd{})
}

// taskFlags are the task fields settable from the command line. Pointers
// stay nil for flags not given.
type taskFlags struct {
	description *string
	priority    *service.Priority
	status      *service.Status
	due         *service.Timestamp
	clearDue    bool
	estimate    *float64
}

func (f *taskFlags) register(fs *flag.FlagSet) {
	*f = taskFlags{}
	fs.Func("description", "", func(s string) error { f.description = &s; return nil })
	fs.Func("d", "", func(s string) error { f.description = &s; return nil })
	fs.Func("priority", "", f.setPriority)
	fs.Func("p", "", f.setPriority)
	fs.Func("status", "", f.setStatus)
	fs.Func("due", "", f.setDue)
	fs.Func("estimate", "", f.setEstimate)
}

func (f *taskFlags) setPriority(s string) error {
	p, err := service.ParsePriority(s)
	if err != nil {
		return err
	}
	f.priority = &p
	return nil
}

func (f *taskFlags) setStatus(s string) error {
	st, err := service.ParseStatus(s)
	if err != nil {
		return err
	}
	f.status = &st
	return nil
}

func (f *taskFlags) setDue(s string) error {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		f.due, f.clearDue = nil, true
		return nil
	}
	ts, err := service.ParseTimestamp(s)
	if err != nil {
		return fmt.Errorf("invalid due date: %s", s)
	}
	f.due, f.clearDue = &ts, false
	return nil
}

func (f *taskFlags) setEstimate(s string) error {
	var h float64
	if _, err := fmt.Sscanf(s, "%g", &h); err != nil || h < 0 {
		return fmt.Errorf("invalid estimate: %s", s)
	}
	f.estimate = &h
	return nil
}

// changed reports whether any field flag was given.
func (f *taskFlags) changed() bool {
	return f.description != nil || f.priority != nil || f.status != nil ||
		f.due != nil || f.clearDue || f.estimate != nil
}

// apply copies the given flags onto in.
func (f *taskFlags) apply(in *service.TaskInput) {
	if f.description != nil {
		in.Description = *f.description
	}
	if f.priority != nil {
		in.Priority = *f.priority
	}
	if f.status != nil {
		in.Status = *f.status
	}
	if f.due != nil {
		in.DueDate = f.due
	}
	if f.clearDue {
		in.DueDate = nil
	}
	if f.estimate != nil {
		in.EstimatedHours = f.estimate
	}
}

// AddCmd implements the add command.
type AddCmd struct {
	flags taskFlags
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return nil }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "taskr add [-d <text>] [-p low|medium|high] [--due <date>] [--estimate <hours>] <title...>"
}
func (c *AddCmd) NeedsAuth() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) { c.flags.register(fs) }

func (c *AddCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	return runAdd(ctx, env, &c.flags, args, out, errOut)
}

// CreateCmd is an alias for AddCmd.
type CreateCmd struct {
	flags taskFlags
}

func (c *CreateCmd) Name() string      { return "create" }
func (c *CreateCmd) Aliases() []string { return nil }
func (c *CreateCmd) Synopsis() string  { return "Create a task (alias for add)" }
func (c *CreateCmd) Usage() string {
	return "taskr create [-d <text>] [-p low|medium|high] [--due <date>] [--estimate <hours>] <title...>"
}
func (c *CreateCmd) NeedsAuth() bool { return true }

func (c *CreateCmd) RegisterFlags(fs *flag.FlagSet) { c.flags.register(fs) }

func (c *CreateCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	return runAdd(ctx, env, &c.flags, args, out, errOut)
}

// runAdd is the shared implementation for add and create commands.
func runAdd(ctx context.Context, env *Env, flags *taskFlags, args []string, out, errOut io.Writer) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	in := service.TaskInput{
		Title:    title,
		Priority: service.PriorityMedium,
		Status:   service.StatusPending,
	}
	flags.apply(&in)

	task, err := env.Tasks.CreateTask(ctx, in)
	if err != nil {
		return fail(errOut, err)
	}

	if !env.Config.Quiet {
		fmt.Fprintf(out, "created %s\n", output.ShortID(task.ID))
	}
	return exitcode.Success
}
