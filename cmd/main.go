package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MimeLyc/bilingual-sub-merger/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			printError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// printError writes err and, for merge errors, a hint on how to resolve it.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, err)
	if advice := service.Advice(err); advice != "" {
		fmt.Fprintln(w, "advice:", advice)
	}
}
