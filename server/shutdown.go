package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager handles graceful shutdown
type ShutdownManager struct {
	server     *http.Server
	closers    []namedCloser
	waitGroup  sync.WaitGroup
	shutdownCh chan struct{}
	once       sync.Once
	timeout    time.Duration
	logger     *slog.Logger
}

type namedCloser struct {
	name string
	c    io.Closer
}

// NewShutdownManager creates a new shutdown manager. srv may be nil when
// only resources need releasing.
func NewShutdownManager(srv *http.Server, logger *slog.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:     srv,
		shutdownCh: make(chan struct{}),
		timeout:    30 * time.Second,
		logger:     logger,
	}
}

// Register adds a resource closed after the server stops, in registration order
func (sm *ShutdownManager) Register(name string, c io.Closer) {
	sm.closers = append(sm.closers, namedCloser{name: name, c: c})
}

// HandleGracefulShutdown blocks until SIGINT or SIGTERM, then shuts down
func (sm *ShutdownManager) HandleGracefulShutdown() error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	sig := <-signals
	sm.logger.Info("received signal", "signal", sig.String())
	return sm.Shutdown()
}

// Shutdown stops the server and closes every registered resource. Only the
// first call does any work.
func (sm *ShutdownManager) Shutdown() error {
	var err error
	sm.once.Do(func() {
		close(sm.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
		defer cancel()

		done := make(chan error, 1)
		sm.waitGroup.Add(1)
		go func() {
			defer sm.waitGroup.Done()
			done <- sm.performGracefulShutdown(ctx)
		}()

		select {
		case err = <-done:
			if err == nil {
				sm.logger.Info("graceful shutdown completed")
			}
		case <-ctx.Done():
			err = fmt.Errorf("shutdown timed out: %w", ctx.Err())
		}
	})
	return err
}

// performGracefulShutdown handles the actual shutdown sequence
func (sm *ShutdownManager) performGracefulShutdown(ctx context.Context) error {
	var errs []error

	// Stop accepting new connections
	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("error during server shutdown", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	for _, nc := range sm.closers {
		if err := nc.c.Close(); err != nil {
			sm.logger.Error("error closing resource", "resource", nc.name, "error", err)
			errs = append(errs, fmt.Errorf("%s close error: %w", nc.name, err))
		}
	}

	return errors.Join(errs...)
}

// IsShuttingDown returns true if shutdown has been initiated
func (sm *ShutdownManager) IsShuttingDown() bool {
	select {
	case <-sm.shutdownCh:
		return true
	default:
		return false
	}
}

// WaitForShutdown blocks until shutdown is complete
func (sm *ShutdownManager) WaitForShutdown() {
	sm.waitGroup.Wait()
}
