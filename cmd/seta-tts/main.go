// seta-tts turns the rows of a CSV table into one synthesized, re-encoded
// audio file per row.
//
// Usage:
//
//	seta-tts run cities.csv --text "Prossima fermata {city}" --name "{id}"
//	seta-tts encode --input ./wav --output ./mp3
//	seta-tts voices --expect "Loquendo Paola"
//	seta-tts clean
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func run() error {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd(os.Stdout).ExecuteContext(ctx)
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "seta-tts exited with error: %v\n", err)
		os.Exit(1)
	}
}
