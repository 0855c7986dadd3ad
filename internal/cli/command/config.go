package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/config"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or persist CLI defaults",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective settings",
				Action: configShow,
			},
			{
				Name:   "init",
				Usage:  "Write the effective settings to the CLI config file",
				Action: configInit,
			},
		},
	}
}

func effectiveConfig(c *cli.Context) (*config.CLIConfig, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	return &config.CLIConfig{
		Addr:        flags.Addr,
		AdminAddr:   flags.Admin,
		Output:      string(flags.Output),
		Timeout:     flags.Timeout,
		HistoryFile: flags.History,
	}, nil
}

func configShow(c *cli.Context) error {
	cfg, err := effectiveConfig(c)
	if err != nil {
		return err
	}
	format, _ := output.ParseFormat(cfg.Output)
	return output.NewFormatter(format).Format(c.App.Writer, cfg)
}

func configInit(c *cli.Context) error {
	cfg, err := effectiveConfig(c)
	if err != nil {
		return err
	}
	path := c.String("cli-config")
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}
