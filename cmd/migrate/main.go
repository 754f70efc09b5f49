package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"ms-events/internal/config"
	"ms-events/internal/database"
	"ms-events/internal/database/migrations"
	"ms-events/internal/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.NewWithWriter(os.Stdout)

	app := &cli.App{
		Name:  "migrate",
		Usage: "Manage the ms-events database schema.",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations.",
				Action: func(c *cli.Context) error {
					return withRunner(log, func(r *migrations.Runner) error {
						return r.MigrateUp()
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back every migration.",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Usage: "Confirm dropping all tables."},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("yes") {
						return fmt.Errorf("refusing to roll back without --yes")
					}
					return withRunner(log, func(r *migrations.Runner) error {
						return r.MigrateDown()
					})
				},
			},
			{
				Name:      "goto",
				Usage:     "Migrate up or down to the given version.",
				ArgsUsage: "VERSION",
				Action: func(c *cli.Context) error {
					var version uint
					if _, err := fmt.Sscan(c.Args().First(), &version); err != nil {
						return fmt.Errorf("invalid version %q: %w", c.Args().First(), err)
					}
					return withRunner(log, func(r *migrations.Runner) error {
						return r.MigrateTo(version)
					})
				},
			},
			{
				Name:  "version",
				Usage: "Print the applied schema version.",
				Action: func(c *cli.Context) error {
					return withRunner(log, func(r *migrations.Runner) error {
						version, dirty, err := r.Version()
						if err != nil {
							return err
						}
						fmt.Printf("version=%d dirty=%t\n", version, dirty)
						return nil
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("MIGRATE", err.Error())
		os.Exit(1)
	}
}

func withRunner(log *logger.Logger, fn func(r *migrations.Runner) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, log)
	defer runner.Close()

	return fn(runner)
}
