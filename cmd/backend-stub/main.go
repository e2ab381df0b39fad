package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/backendstub"
)

const (
	defaultAddr       = ":5000"
	defaultSuccessURL = "http://127.0.0.1:8765/order-success"
	shutdownTimeout   = 5 * time.Second
)

// setupLogger настраивает формат и уровень логирования для заглушки.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// envOr возвращает значение переменной окружения или fallback.
func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	setupLogger()

	var addr, successURL, secret string
	flag.StringVar(&addr, "addr", envOr("STOREFRONT_STUB_ADDR", defaultAddr), "listen address")
	flag.StringVar(&successURL, "success-url", envOr("STOREFRONT_STUB_SUCCESS_URL", defaultSuccessURL), "payment return address")
	flag.StringVar(&secret, "secret", os.Getenv("STOREFRONT_STUB_SECRET"), "token signing key")
	flag.Parse()

	opts := []backendstub.Option{
		backendstub.WithSuccessURL(successURL),
		backendstub.WithLogger(log.WithField("component", "backend-stub")),
	}
	if secret != "" {
		opts = append(opts, backendstub.WithSecret(secret))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).WithField("addr", addr).Fatal("failed to listen")
	}

	log.WithFields(log.Fields{
		"addr":        lis.Addr().String(),
		"success_url": successURL,
	}).Info("starting backend stub")

	if err := serve(ctx, lis, backendstub.New(opts...)); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("backend stub stopped with error")
	}
	log.Info("backend stub stopped")
}

// serve обслуживает заглушку на lis до отмены ctx.
func serve(ctx context.Context, lis net.Listener, stub *backendstub.Server) error {
	srv := &http.Server{
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("backend stub shutdown with error")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
