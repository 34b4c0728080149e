package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/spasys/billing-console/authgateway"
	"github.com/spasys/billing-console/billing"
	"github.com/spasys/billing-console/internal/config"
	"github.com/spasys/billing-console/server"
	"github.com/spasys/billing-console/session"
	"github.com/spasys/billing-console/session/storefile"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running console: %s\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	displayAppname(cfg.AppName)

	log := newLogger(cfg)

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	gateway, err := authgateway.New(cfg.AuthBaseURL,
		authgateway.WithPaths(cfg.AuthLoginPath, cfg.AuthValidatePath, cfg.AuthRefreshPath),
		authgateway.WithLogger(log),
	)
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(store, gateway,
		session.WithRefreshInterval(cfg.RefreshInterval),
		session.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer sessions.Close()

	if _, err := sessions.Restore(); err != nil {
		log.Warn().Err(err).Msg("could not restore persisted session")
	}

	billingClient, err := billing.NewClient(cfg.APIBaseURL, sessions, billing.WithLogger(log))
	if err != nil {
		return err
	}

	srv, err := server.New(sessions, billingClient, server.WithLogger(log))
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("console listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	waitForStopSignal()
	return shutdown(httpServer)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

func newStore(cfg config.Config) (session.Store, error) {
	var options []storefile.Option
	if cfg.SessionKey != "" {
		options = append(options, storefile.WithEncryptionKey([]byte(cfg.SessionKey)))
	}
	return storefile.New(cfg.SessionDir, options...)
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
