package command

import (
	"github.com/denosaur/dinosaurs/internal/config"
	"github.com/denosaur/dinosaurs/internal/storage"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

const flagDir = "dir"

// PublishCommand copies the public directory into the object storage bucket
// served when STATIC_SOURCE=minio.
func PublishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Upload the browser front end to the MinIO bucket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagDir,
				Aliases: []string{"d"},
				Usage:   "Directory to upload (defaults to PUBLIC_DIR)",
			},
		},
		Action: func(cCtx *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			dir := cCtx.String(flagDir)
			if dir == "" {
				dir = cfg.Server.PublicDir
			}

			bucket, err := storage.NewBucket(cfg.MinIO)
			if err != nil {
				return errors.WithStack(err)
			}
			if err := bucket.EnsureBucket(cCtx.Context); err != nil {
				return errors.WithStack(err)
			}
			n, err := bucket.Publish(cCtx.Context, afero.NewBasePathFs(afero.NewOsFs(), dir))
			if err != nil {
				return errors.Wrapf(err, "could not publish %s", dir)
			}
			printf(cCtx, "published %d files from %s to %s\n", n, dir, cfg.MinIO.Bucket)
			return nil
		},
	}
}
