package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "kvmesh-server",
		Usage:   "Redis-protocol in-memory key-value server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Action:  serveAction,
		Commands: []*cli.Command{
			{
				Name:   "check-config",
				Usage:  "Load and validate the configuration, then print it",
				Action: checkConfigAction,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "kvmesh-server %s\n", buildinfo.String())
					return nil
				},
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML configuration file",
			EnvVars: []string{"KVMESH_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "dotenv",
			Usage: "path to a .env file loaded before environment variables",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "addr",
			Usage: "RESP listen address (server.redis.addr)",
		},
		&cli.StringFlag{
			Name:  "admin-addr",
			Usage: "admin HTTP listen address, empty to disable (server.admin.addr)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (log.level)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "json or text (log.format)",
		},
	}
}

// flagKeys maps flags to the configuration keys they override.
var flagKeys = map[string]string{
	"addr":       "server.redis.addr",
	"admin-addr": "server.admin.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return run(c.Context, cfg, c.String("config"))
}

func checkConfigAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "configuration OK\n%s", describeConfig(cfg))
	return nil
}
