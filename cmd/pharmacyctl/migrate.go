package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"pharmacy-agent/internal/database"
	"pharmacy-agent/migrations"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Postgres connection string",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			pool, err := database.NewPostgresPool(c.Context, c.String("database-url"))
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := database.RunMigrations(c.Context, pool, migrations.FS)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s %d migration(s) applied\n", okStyle.Render("✓"), applied)
			return nil
		},
	}
}
