// Package main provides a one-shot utility for admin API token management.
//
// The keygen subcommand emits the Ed25519 keypair the admin API verifies
// bearer tokens against. The mint subcommand signs a token for an operator.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/storefront/internal/platform/config"
	"github.com/louisbranch/storefront/internal/tools/admintoken"
)

func main() {
	if len(os.Args) < 2 {
		config.Exitf("Usage: admin-token <keygen|mint> [flags]")
	}

	switch os.Args[1] {
	case "keygen":
		if err := admintoken.RunKeygen(os.Stdout, nil); err != nil {
			config.Exitf("generate admin token key: %v", err)
		}
	case "mint":
		fs := flag.NewFlagSet("mint", flag.ExitOnError)
		cfg, err := admintoken.ParseMintConfig(fs, os.Args[2:])
		if err != nil {
			config.Exitf("Error: %v", err)
		}
		if err := admintoken.RunMint(cfg, os.Stdout, nil); err != nil {
			config.Exitf("mint admin token: %v", err)
		}
	default:
		config.Exitf("Usage: admin-token <keygen|mint> [flags]")
	}
}
