package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regionsched/internal/app"
	"regionsched/pkg/systemd"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./regiond.yaml", "path to config (json or yaml)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.Stop(stopCtx, app.StopFatalError)
		stop()
		os.Exit(1)
	}
	_, _ = systemd.Ready()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	var reason app.StopReason
	select {
	case sig := <-sigs:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = a.Stop(stopCtx, reason)
	if err := a.Err(); err != nil && reason == app.StopFatalError {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
