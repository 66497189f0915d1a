package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskr/internal/backend/googletasks"
	"taskr/internal/exitcode"
	"taskr/internal/service"
)

func init() {
	Register(&MirrorCmd{})
}

// DefaultMirrorList is the Google Tasks list tasks are mirrored into.
const DefaultMirrorList = "taskr"

// mirrorPageSize is the page size used to walk the backend listing.
const mirrorPageSize = 100

// MirrorCmd copies backend tasks into a Google Tasks list.
type MirrorCmd struct {
	list   string
	status string
}

func (c *MirrorCmd) Name() string      { return "mirror" }
func (c *MirrorCmd) Aliases() []string { return []string{"sync"} }
func (c *MirrorCmd) Synopsis() string  { return "Mirror tasks into Google Tasks" }
func (c *MirrorCmd) Usage() string     { return "taskr mirror [--list <title>] [--status <s>]" }
func (c *MirrorCmd) NeedsAuth() bool   { return true }

func (c *MirrorCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.list, "list", DefaultMirrorList, "")
	fs.StringVar(&c.list, "l", DefaultMirrorList, "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
}

func (c *MirrorCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	title := strings.TrimSpace(c.list)
	if title == "" {
		fmt.Fprintln(errOut, "error: list name required")
		return exitcode.UserError
	}

	opts := service.ListOptions{Limit: mirrorPageSize}
	if c.status != "" {
		st, err := service.ParseStatus(c.status)
		if err != nil {
			return fail(errOut, err)
		}
		opts.Status = st
	}

	if env.OpenMirror == nil {
		fmt.Fprintln(errOut, "error: mirroring is not available")
		return exitcode.UserError
	}

	// Read the backend first so a dead session fails before touching Google.
	tasks, err := collectTasks(ctx, env.Tasks, opts)
	if err != nil {
		return fail(errOut, err)
	}

	mirror, err := env.OpenMirror(ctx)
	if errors.Is(err, googletasks.ErrNoToken) || errors.Is(err, googletasks.ErrNoOAuthClient) {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	if err != nil {
		return fail(errOut, err)
	}
	listID, err := mirror.EnsureList(ctx, title)
	if err != nil {
		return fail(errOut, err)
	}

	for i, task := range tasks {
		if err := mirror.Push(ctx, listID, task); err != nil {
			if i > 0 && !env.Config.Quiet {
				fmt.Fprintf(out, "mirrored %d of %d task(s)\n", i, len(tasks))
			}
			return fail(errOut, err)
		}
		env.Log().Debug("task mirrored", "id", task.ID, "list", listID)
	}

	if !env.Config.Quiet {
		fmt.Fprintf(out, "mirrored %d task(s)\n", len(tasks))
	}
	return exitcode.Success
}

// collectTasks pages through every task matching opts.
func collectTasks(ctx context.Context, svc service.Service, opts service.ListOptions) ([]service.Task, error) {
	var all []service.Task
	for page := 1; ; page++ {
		opts.Page = page
		p, err := svc.ListTasks(ctx, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		if page >= p.TotalPages || len(p.Data) == 0 {
			return all, nil
		}
	}
}
