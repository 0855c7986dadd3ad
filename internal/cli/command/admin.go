package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/connection"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
)

// StatusCommand returns the status subcommand.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show server status from the admin listener",
		Action: adminStatus,
	}
}

// ReadyCommand returns the ready subcommand.
func ReadyCommand() *cli.Command {
	return &cli.Command{
		Name:   "ready",
		Usage:  "Check that the server accepts connections",
		Action: adminReady,
	}
}

func adminStatus(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, flags.Timeout)
	defer cancel()

	st, err := connection.NewAdminClient(flags.Admin, flags.Timeout).Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return output.NewFormatter(flags.Output).Format(c.App.Writer, st)
}

func adminReady(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, flags.Timeout)
	defer cancel()

	client := connection.NewAdminClient(flags.Admin, flags.Timeout)
	if err := client.Ready(ctx); err != nil {
		return fmt.Errorf("not ready: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "ready (%s)\n", client.BaseURL())
	return nil
}
