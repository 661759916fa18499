package main

import (
	"log"

	"devquestvault/services/vaultd"
)

func main() {
	if err := vaultd.Main(); err != nil {
		log.Fatalf("vaultd: %v", err)
	}
}
