package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"pharmacy-agent/internal/database"
	"pharmacy-agent/internal/repository"
)

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the Redis catalog cache",
		Subcommands: []*cli.Command{
			{
				Name:  "flush",
				Usage: "Drop every cached catalog entry",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "redis-url",
						Usage:    "Redis connection string",
						EnvVars:  []string{"REDIS_URL"},
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					client, err := database.NewRedisClient(c.Context, c.String("redis-url"))
					if err != nil {
						return err
					}
					defer client.Close()

					n, err := repository.FlushCatalogCache(c.Context, client)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s %d cache key(s) removed\n", okStyle.Render("✓"), n)
					return nil
				},
			},
		},
	}
}
