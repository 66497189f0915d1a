package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskr/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "taskr help [command]" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(out, helpText)
		fmt.Fprintln(out, "\nCommands:")
		for _, cmd := range DefaultRegistry.Commands() {
			fmt.Fprintf(out, "  %-13s %s\n", cmd.Name(), cmd.Synopsis())
		}
		return exitcode.Success
	}

	cmd, ok := DefaultRegistry.Find(args[0])
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", args[0])
		return exitcode.UserError
	}
	fmt.Fprintf(out, "%s\n\nUsage:\n  %s\n", cmd.Synopsis(), cmd.Usage())
	if aliases := cmd.Aliases(); len(aliases) > 0 {
		fmt.Fprintf(out, "\nAliases: %v\n", aliases)
	}
	return exitcode.Success
}

const helpText = `Usage:
  taskr                                              List tasks (page 1)
  taskr list [common flags] [--page <n>] [--limit <n>] [--status <s>] [--priority <p>] [--sort <field[:dir]>]
  taskr show [common flags] <ref>
  taskr add [common flags] [-d <text>] [-p <priority>] [--due <date>] [--estimate <hours>] <title...>
  taskr create [common flags] [-d <text>] [-p <priority>] [--due <date>] [--estimate <hours>] <title...>
  taskr edit [common flags] [--title <t>] [-d <text>] [-p <p>] [--status <s>] [--due <date>|none] <ref>
  taskr done [common flags] <ref>...
  taskr rm [common flags] <ref>...
  taskr search [common flags] [--status <s>] <query...>
  taskr drafts [common flags] [list | add -d <text> <title...> | rm <id> | push <id>]
  taskr login [common flags] [--email <email>] [--password <pw> | --password-stdin]
  taskr register [common flags] --name <name> [--email <email>] [--password <pw> | --password-stdin]
  taskr logout [common flags]
  taskr whoami [common flags]
  taskr refresh [common flags]
  taskr google-login [common flags]
  taskr mirror [common flags] [--list <title>] [--status <s>]
  taskr help [command]
  taskr version

A <ref> is a row number from 'taskr list' or a task id (the short id shown
in listings is enough).

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
