package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"holdings-server/internal/holdings"
	"holdings-server/internal/shared/config"
	"holdings-server/internal/shared/logger"

	"github.com/urfave/cli"
)

type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	backends *holdings.Backends
	asJSON   bool
	w        io.Writer
	e        io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero"

func main() {
	app := cli.NewApp()
	app.Name = "holdings"
	app.Usage = "inspect an EVE Online character's holdings as a location tree"
	app.Version = version
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "json, j",
			Usage: " print JSON instead of a table",
		},
		cli.StringFlag{
			Name:  "policy, p",
			Value: "",
			Usage: " unpack policy `FILE` (overrides HOLDINGS_POLICY_FILE)",
		},
	}

	keyFlag := cli.StringFlag{
		Name:  "key, k",
		Value: "",
		Usage: "*location `KEY`",
	}

	app.Commands = []cli.Command{
		{
			Name:      "roots",
			Usage:     "list top-level locations with their totals",
			ArgsUsage: "\n   (* = required)",
			Action:    runRoots,
		},
		{
			Name:      "dump",
			Usage:     "list the arranged content of a location",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				keyFlag,
				cli.StringFlag{
					Name:  "sort, s",
					Value: "name",
					Usage: " sort `KEY` [name|value|packaged|assembled]",
				},
				cli.StringFlag{
					Name:  "dir, d",
					Value: "none",
					Usage: " sort `DIRECTION` [asc|desc|none]",
				},
			},
			Action: runDump,
		},
		{
			Name:      "route",
			Usage:     "show the chain of containers leading to a location",
			ArgsUsage: "\n   (* = required)",
			Flags:     []cli.Flag{keyFlag},
			Action:    runRoute,
		},
		{
			Name:      "containers",
			Usage:     "list a location and every container below it",
			ArgsUsage: "\n   (* = required)",
			Flags:     []cli.Flag{keyFlag},
			Action:    runContainers,
		},
		{
			Name:      "cargo",
			Usage:     "list every item below a location",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				keyFlag,
				cli.BoolFlag{
					Name:  "assembled, a",
					Usage: " keep assembled items closed",
				},
			},
			Action: runCargo,
		},
	}

	app.Before = func(c *cli.Context) error {
		if err := config.Init(); err != nil {
			return err
		}
		cfg := config.GlobalConfig
		if p := c.GlobalString("policy"); p != "" {
			cfg.Holdings.PolicyFile = p
		}

		log := logger.New(app.ErrWriter, cfg.Logging)
		slog.SetDefault(log)

		backends, err := holdings.OpenBackends(cfg, log)
		if err != nil {
			return err
		}

		app.Metadata = map[string]interface{}{
			"env": &environment{
				cfg:      cfg,
				logger:   log,
				backends: backends,
				asJSON:   c.GlobalBool("json"),
				w:        app.Writer,
				e:        app.ErrWriter,
			},
		}
		return nil
	}

	app.After = func(c *cli.Context) error {
		if env, ok := c.App.Metadata["env"].(*environment); ok {
			env.backends.Close()
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}
