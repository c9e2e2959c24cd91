// Command slugdump walks the catalog listing and prints every slug record.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("slugdump failed")
		os.Exit(1)
	}
}
