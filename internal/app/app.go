package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Run собирает зависимости и обслуживает callback-сервер до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, UI{}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close dependencies")
		}
	}()

	return Serve(ctx, deps)
}

// Serve принимает возврат со страницы оплаты и отдаёт служебные endpoints на deps.Config.CallbackAddr.
// Запросы получают контекст ctx, поэтому долгие потоки завершаются вместе с ним.
func Serve(ctx context.Context, deps *Dependencies) error {
	logger := deps.Logger.WithField("layer", "http")

	lis, err := net.Listen("tcp", deps.Config.CallbackAddr)
	if err != nil {
		return fmt.Errorf("listen callback addr %s: %w", deps.Config.CallbackAddr, err)
	}

	handler := newCallbackServer(deps.Checkout, deps.Cart, deps.Health, logger,
		withSessionRestore(deps.Session),
		withBadgePoll(deps.Config.BadgePollInterval),
	).routes()
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		addr := lis.Addr().String()
		logger.Infof("callback server listening on %s", addr)
		logger.Infof("payment return: http://%s/order-success, metrics: http://%s/metrics", addr, addr)
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping callback server")
		shutdownHTTP(srv, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
