// Package main renders the event catalog reference artifact.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/storefront/internal/platform/config"
	"github.com/louisbranch/storefront/internal/tools/eventdocgen"
)

func main() {
	cfg, err := eventdocgen.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	if err := eventdocgen.Run(cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
