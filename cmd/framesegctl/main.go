package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adda-Baaj/frameseg/internal/app"
	"github.com/Adda-Baaj/frameseg/internal/config"
	"github.com/Adda-Baaj/frameseg/internal/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "framesegctl: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sugar, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	log := logger.New(sugar)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console, err := app.NewConsole(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize console", "error", err)
		return err
	}
	defer func() {
		if err := console.Close(); err != nil {
			logger.ErrorObj("console close failed", "error", err)
		}
	}()

	return cmd(ctx, console, args[1:], out)
}
