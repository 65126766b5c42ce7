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

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/tictactoe-client/internal/apiclient"
	"github.com/DoyleJ11/tictactoe-client/internal/client"
	"github.com/DoyleJ11/tictactoe-client/internal/config"
	"github.com/DoyleJ11/tictactoe-client/internal/httpapi"
	"github.com/DoyleJ11/tictactoe-client/internal/logging"
	"github.com/DoyleJ11/tictactoe-client/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ch := transport.NewChannel(transport.Options{
		Dialers:      dialers(cfg),
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       log,
	})
	api := apiclient.New(cfg.APIBaseURL, nil, log)
	c := client.New(ch, api, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.SetupRoutes(c.Store(), api, cfg.LeaderboardLimit, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(gctx) })
	g.Go(func() error {
		log.Info("control surface listening", zap.String("addr", cfg.ListenAddr), zap.String("server", cfg.ServerURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	// Leave the queue before the process goes away.
	if err := c.Close(); err != nil {
		log.Warn("teardown", zap.Error(err))
	}
	log.Info("stopped")
	return runErr
}

func dialers(cfg *config.Config) []transport.Dialer {
	hc := &http.Client{}
	out := make([]transport.Dialer, 0, len(cfg.Transports))
	for _, t := range cfg.Transports {
		switch t {
		case config.TransportWebSocket:
			out = append(out, transport.WebSocketDialer{URL: cfg.WebSocketURL(), Client: hc})
		case config.TransportPolling:
			out = append(out, transport.PollingDialer{URL: cfg.PollURL(), Client: hc, PollTimeout: cfg.PollTimeout})
		}
	}
	return out
}
