package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CreateGracefulShutdownChannel returns a channel that receives SIGINT and SIGTERM.
func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	return gracefulShutdown
}

// ListenForShutdown blocks until a signal arrives, then runs fn and waits for it for at
// most timeout.
func ListenForShutdown(gracefulShutdown chan os.Signal, done chan bool, fn func(), timeout time.Duration, l *zap.Logger) {
	sig := <-gracefulShutdown
	l.Sugar().Infow("Received shutdown signal", zap.String("signal", sig.String()))

	go func() {
		fn()
		done <- true
	}()

	select {
	case <-done:
		l.Sugar().Infow("Graceful shutdown complete")
	case <-time.After(timeout):
		l.Sugar().Warnw("Graceful shutdown timed out", zap.Duration("timeout", timeout))
	}
}
