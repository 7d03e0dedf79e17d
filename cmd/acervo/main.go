package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/acervo-cultural/acervo/pkg/acervo"
)

func main() {
	// Cancelled on SIGINT/SIGTERM so the server drains before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := acervo.Main(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
