package command

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/config"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
	"github.com/yndnr/kvmesh-go/internal/cli/repl"
	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:      "kvmesh-cli",
		Usage:     "kvmesh command-line client",
		UsageText: "kvmesh-cli [global options] [command [args...]]",
		Version:   buildinfo.String(),
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			StatusCommand(),
			ReadyCommand(),
			ConfigCommand(),
		},
		Before:          applyFileDefaults,
		Action:          rootAction,
		HideHelpCommand: true,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "kvmesh server address (host:port)",
			EnvVars: []string{"KVMESH_ADDR"},
			Value:   def.Addr,
		},
		&cli.StringFlag{
			Name:    "admin",
			Usage:   "admin HTTP address for status and ready",
			EnvVars: []string{"KVMESH_ADMIN_ADDR"},
			Value:   def.AdminAddr,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: text, raw, json, yaml",
			EnvVars: []string{"KVMESH_OUTPUT"},
			Value:   def.Output,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "per-request timeout",
			Value: def.Timeout,
		},
		&cli.StringFlag{
			Name:  "history",
			Usage: "REPL history file (empty keeps history in memory)",
			Value: repl.DefaultHistoryFile(),
		},
		&cli.StringFlag{
			Name:    "cli-config",
			Usage:   "CLI defaults file",
			EnvVars: []string{"KVMESH_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Addr    string
	Admin   string
	Output  output.Format
	Timeout time.Duration
	History string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{
		Addr:    c.String("addr"),
		Admin:   c.String("admin"),
		Output:  format,
		Timeout: c.Duration("timeout"),
		History: c.String("history"),
	}, nil
}

// applyFileDefaults fills flags the user left unset from the CLI config file.
func applyFileDefaults(c *cli.Context) error {
	cfg, err := config.Load(c.String("cli-config"))
	if err != nil {
		return err
	}

	type fileDefault struct {
		flag  string
		value string
	}
	defaults := []fileDefault{
		{"addr", cfg.Addr},
		{"admin", cfg.AdminAddr},
		{"output", cfg.Output},
		{"history", cfg.HistoryFile},
	}
	if cfg.Timeout > 0 {
		defaults = append(defaults, fileDefault{"timeout", cfg.Timeout.String()})
	}
	for _, d := range defaults {
		if d.value == "" || c.IsSet(d.flag) {
			continue
		}
		if err := c.Set(d.flag, d.value); err != nil {
			return fmt.Errorf("apply %s from %s: %w", d.flag, c.String("cli-config"), err)
		}
	}
	return nil
}

func rootAction(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	sess := newSession(flags.Addr, flags.Timeout, output.NewFormatter(flags.Output), c.App.Writer)
	defer sess.Close()

	if c.NArg() > 0 {
		if err := sess.Exec(c.Context, c.Args().Slice()); err != nil && !errors.Is(err, repl.ErrQuit) {
			return err
		}
		return nil
	}

	r := repl.New(sess.Exec,
		repl.WithIO(c.App.Reader, c.App.Writer),
		repl.WithPrompt(flags.Addr+"> "),
		repl.WithHistory(repl.NewHistory(flags.History, repl.DefaultHistorySize)),
	)
	return r.Run(c.Context)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
