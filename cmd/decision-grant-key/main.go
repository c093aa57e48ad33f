// Package main provides a one-shot utility for decision grant key generation.
//
// It emits the asymmetric keypair the ticket subsystem signs appeal decision
// grants with and the engine verifies them against.
package main

import (
	"os"

	"github.com/bongbong-com/modl-panel-sub005/internal/platform/config"
	"github.com/bongbong-com/modl-panel-sub005/internal/tools/decisiongrant"
)

func main() {
	if err := decisiongrant.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate decision grant key: %v", err)
	}
}
