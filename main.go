// go_ytsaver: YouTube transcript saver.
//
// Saves the transcripts of a video or a whole playlist into a per-channel
// workspace, optionally summarizes them with an LLM and delivers the summary
// to the console, by email or via AWS SES. `ytsaver serve` exposes the same
// pipeline as an MCP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	engine.LogMetrics()
	if err != nil {
		var cfgErr *engine.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, cfgErr.Error())
		} else {
			slog.Error("ytsaver failed", slog.Any("error", err))
		}
		os.Exit(1)
	}
}
