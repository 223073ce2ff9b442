// Package main is the operator CLI for ledgerbook databases: versioned
// migrations, schema optimization runs, and backup housekeeping.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
