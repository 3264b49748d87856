// Package main provides the standalone sync core entry point.
// The same core compiles as:
// - Shared library for mobile (Dart FFI)
// - Embedded localhost server for desktop
// This binary prints the build version and can smoke-check a data
// directory, so packaging pipelines can verify the store opens.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/theonlywayisdigital/donedex-sub004/internal/config"
	"github.com/theonlywayisdigital/donedex-sub004/internal/drafts"
	"github.com/theonlywayisdigital/donedex-sub004/internal/kvstore"
	"github.com/theonlywayisdigital/donedex-sub004/internal/syncqueue"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "run a store smoke check against this config")
	flag.Parse()

	fmt.Printf("DoneDex Sync Core v%s\n", Version)

	if *configPath == "" {
		return
	}
	if err := smoke(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "smoke check failed: %v\n", err)
		os.Exit(1)
	}
}

// smoke opens the store and reads both persisted envelopes.
func smoke(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := kvstore.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	pending, err := syncqueue.New(store).Size()
	if err != nil {
		return err
	}
	all, err := drafts.New(store).ListAll()
	if err != nil {
		return err
	}

	fmt.Printf("store ok: %d queued items, %d drafts\n", pending, len(all))
	return nil
}
