// Command pharmacyctl applies migrations and talks to a running agent.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	godotenv.Load()

	app := &cli.App{
		Name:  "pharmacyctl",
		Usage: "Operate the pharmacy agent",
		Commands: []*cli.Command{
			migrateCommand(),
			chatCommand(),
			cacheCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
