// Package main starts the custody daemon process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/custody.space/internal/cmd/custodiand"
	"github.com/louisbranch/custody.space/internal/platform/config"
)

func main() {
	cfg, err := custodiand.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[CUSTODIAND] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := custodiand.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
