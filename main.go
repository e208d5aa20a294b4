/*
This is an example of application that will use the
engine package to stream textures in
*/
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spaghettifunk/texstream/engine"
	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/testbed"
)

func init() {
	// The device thread is the main OS thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "texstream.toml", "path to the TOML configuration")
	flag.Parse()

	config, err := engine.LoadApplicationConfig(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("config %s not found, using defaults", *configPath)
		config, err = engine.DefaultApplicationConfig(), nil
	}
	if err != nil {
		core.LogFatal("%s", err)
	}

	tb := testbed.NewTestGame(config)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("%s", err)
	}

	// capture sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := e.Initialize(ctx); err != nil {
		core.LogFatal("%s", err)
	}

	runErr := e.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := errors.Join(runErr, e.Shutdown(shutdownCtx)); err != nil {
		core.LogFatal("%s", err)
	}
}
