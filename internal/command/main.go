package command

import (
	"fmt"
	"os"
	"sort"

	"github.com/denosaur/dinosaurs/internal/app"
	"github.com/denosaur/dinosaurs/internal/config"
	"github.com/denosaur/dinosaurs/pkg/logger"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const (
	flagEnvFile  = "env-file"
	flagLogLevel = "log-level"
	flagDebug    = "debug"
)

// App assembles the CLI; Main runs it against os.Args.
func App(name, usage string, commands ...*cli.Command) *cli.App {
	a := &cli.App{
		Name:     name,
		Usage:    usage,
		Commands: commands,
		Before: func(ctx *cli.Context) error {
			// flags feed the same variables LoadConfig reads
			if f := ctx.String(flagEnvFile); f != "" {
				if err := os.Setenv("ENV_FILE", f); err != nil {
					return errors.WithStack(err)
				}
			}
			if l := ctx.String(flagLogLevel); l != "" {
				if err := os.Setenv("LOG_LEVEL", l); err != nil {
					return errors.WithStack(err)
				}
			}
			logger.Init(os.Getenv("LOG_LEVEL"))
			return nil
		},
		After: func(ctx *cli.Context) error {
			logger.Sync()
			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagEnvFile,
				EnvVars: []string{"ENV_FILE"},
				Usage:   "dotenv file loaded before reading the environment",
				Value:   ".env",
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				EnvVars: []string{"LOG_LEVEL"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Value:   false,
				EnvVars: []string{"DINOSAURS_DEBUG"},
				Usage:   "Print error stack traces",
			},
		},
	}

	a.ExitErrHandler = func(ctx *cli.Context, err error) {
		if err == nil {
			return
		}
		if ctx.Bool(flagDebug) {
			logger.Errorf("%+v", err)
			return
		}
		logger.Errorf("%s", err.Error())
	}

	sort.Sort(cli.FlagsByName(a.Flags))
	sort.Sort(cli.CommandsByName(a.Commands))
	return a
}

func Main(name, usage string, commands ...*cli.Command) {
	if err := App(name, usage, commands...).Run(os.Args); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}

// loadApp reads the configuration and builds the application context.
func loadApp(ctx *cli.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: backend=%s emulator=%v static=%s redis=%v",
		cfg.Store.Backend, cfg.Emulator.Enabled, cfg.Static.Source, cfg.Redis.Host != "")
	a, err := app.New(ctx.Context, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize application")
	}
	return a, nil
}

func printf(ctx *cli.Context, format string, args ...interface{}) {
	fmt.Fprintf(ctx.App.Writer, format, args...)
}
