package command

import (
	"github.com/denosaur/dinosaurs/internal/demo"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// DemoCommand runs one create, list, query, update and delete pass against
// the configured store and prints each step.
func DemoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Exercise every document store operation once",
		Action: func(cCtx *cli.Context) error {
			a, err := loadApp(cCtx)
			if err != nil {
				return err
			}
			defer a.Close(cCtx.Context)

			if _, err := demo.Run(cCtx.Context, a.Identity, a.Store, cCtx.App.Writer); err != nil {
				return errors.Wrap(err, "demo failed")
			}
			return nil
		},
	}
}
