package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/BearBump/zapshift/config"
)

func main() {
	flags, err := config.ParseFlags("zapshift-api", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	app := mustBootstrapAPI(flags)
	err = app.Run()
	app.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		app.log.Error().Err(err).Msg("api stopped")
		os.Exit(1)
	}
}
