// Command dispenser is the command-line client of the smart supplement
// dispenser backend. It keeps the session token and the active dispenser in
// the configured state backend, so commands can be chained across runs:
//
//	dispenser login --email mina@example.com --password ********
//	dispenser register "https://dispenser.example.com/setup?uuid=AB-12"
//	dispenser profiles list
//	dispenser intake request 7
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Debug().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
