package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/audio-decoder/runtime"
)

type workerCmd struct {
	Listen        string `help:"Address to listen on." placeholder:"ADDR"`
	RemoteModules bool   `name:"remote-modules" help:"Let controllers load .wasm decoders by path on this host."`
}

func (c *workerCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, g, runtime.WithRemoteModules(c.RemoteModules))
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	addr := a.cfg.Listen
	if c.Listen != "" {
		addr = c.Listen
	}

	mux := http.NewServeMux()
	mux.Handle("/", a.rt.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("worker listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
