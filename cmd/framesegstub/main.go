package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/Adda-Baaj/frameseg/internal/config"
	"github.com/Adda-Baaj/frameseg/internal/logger"
	"github.com/Adda-Baaj/frameseg/internal/stubserver"
	"github.com/Adda-Baaj/frameseg/pkg/segclient"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "framesegstub: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("framesegstub", pflag.ContinueOnError)
	auto := fs.Bool("auto-complete", false, "mark tasks done as soon as they are queued")
	capacity := fs.Int("queue-capacity", stubserver.DefaultQueueCapacity, "pending tasks accepted before answering 429")
	addr := fs.String("addr", "", "listen address (defaults to STUB_ADDR)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr == "" {
		*addr = cfg.StubAddr
	}

	sugar, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	if cfg.Env != segclient.EnvDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	stub := stubserver.New(stubserver.Options{
		QueueCapacity: *capacity,
		AutoComplete:  *auto,
		Logger:        logger.New(sugar),
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.InfoObj("stub backend listening", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.InfoObj("shutting down stub backend", "signal", ctx.Err())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
