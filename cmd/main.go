package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meridian/internal/bootstrap"
)

func main() {
	priority := flag.String("priority", "normal", "Request priority: low, normal, high, critical")
	timeout := flag.Duration("timeout", 5*time.Minute, "Upper bound for the whole analysis")
	serve := flag.Bool("serve", false, "Keep running after the analysis (metrics, feedback consumer) until SIGINT/SIGTERM")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" && !*serve {
		fmt.Fprintln(os.Stderr, "usage: meridian [flags] <query>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	c := bootstrap.NewContainer()
	c.MustInit()
	defer c.Shutdown()

	if err := c.Start(); err != nil {
		c.Log.Errorw("Failed to start", "error", err)
		return
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if query != "" {
		exitCode := runAnalysis(ctx, c, query, *priority, *timeout)
		if !*serve {
			if exitCode != 0 {
				c.Shutdown()
				os.Exit(exitCode)
			}
			return
		}
	}

	c.Log.Info("Serving until interrupted")
	<-ctx.Done()
}

// runAnalysis prints the outcome. Exit code 1 on planning errors, 3 when escalated.
func runAnalysis(ctx context.Context, c *bootstrap.Container, query, priority string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := c.Analyze(ctx, query, priority)
	if err != nil {
		c.Log.Errorw("Analysis failed", "error", err)
		return 1
	}

	if err := outcome.Render(os.Stdout); err != nil {
		c.Log.Warnw("Failed to write report", "error", err)
	}
	if outcome.Escalated() {
		return 3
	}
	return 0
}
