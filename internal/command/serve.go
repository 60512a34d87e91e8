package command

import (
	"os/signal"
	"syscall"

	"github.com/denosaur/dinosaurs/pkg/logger"
	"github.com/denosaur/dinosaurs/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// ServeCommand signs in anonymously and then serves the API and the front end
// until SIGINT or SIGTERM.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dinosaurs web server",
		Action: func(cCtx *cli.Context) error {
			ctx, stop := signal.NotifyContext(cCtx.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(cCtx)
			if err != nil {
				return err
			}
			defer a.Close(cCtx.Context)

			// the listener is not bound until the session exists
			if err := a.Identity.EnsureAuth(ctx); err != nil {
				return errors.Wrap(err, "anonymous sign-in failed")
			}

			metrics.RegisterCollectors(prometheus.DefaultRegisterer)

			if err := a.Server().ListenAndServe(ctx, a.Config.Addr()); err != nil {
				return errors.Wrap(err, "server failed")
			}
			logger.Infof("server stopped")
			return nil
		},
	}
}
