package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/tendril"
	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// Serve exposes the latest pass on addr while watching the feed.
// The listener is opened before returning so that callers see address errors immediately.
func (a *App) Serve(ctx context.Context, addr string, streams *httpAdapter.StreamManager) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.ServeListener(ctx, ln, streams)
}

// ServeListener is Serve over an open listener.
func (a *App) ServeListener(ctx context.Context, ln net.Listener, streams *httpAdapter.StreamManager) error {
	opts := []httpAdapter.Option{
		httpAdapter.WithGatherer(a.Registry),
		httpAdapter.WithVersion(tendril.Version),
		httpAdapter.WithLogger(a.Logger),
	}
	if streams != nil {
		opts = append(opts, httpAdapter.WithStreams(streams))
	}
	srv := &http.Server{
		Handler:           httpAdapter.NewHandler(a.Driver, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.Logger.Info("Starting Tendril Server", "addr", ln.Addr().String(), "dir", a.Config.Dir)
	if !a.quiet {
		printSystemMessage(a.out, "Serving on %s", ln.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := a.Watch(gctx)
		if errors.Is(err, ErrNotWatchable) {
			// Static feeds are served after a single pass.
			a.watchPass(gctx)
			<-gctx.Done()
			return nil
		}
		return handleExecutionError(err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("Graceful shutdown did not complete", "err", err)
			return srv.Close()
		}
		a.Logger.Info("Tendril Server stopped gracefully")
		return nil
	})
	return g.Wait()
}
