// Command planctl validates, renders and migrates arrangement plans offline,
// and manages them on a running plans API.
package main

import (
	"fmt"
	"os"

	"github.com/boddenberg/arrangement-plans-go/internal/config"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
