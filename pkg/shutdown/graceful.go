package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// DefaultTimeout bounds how long cleanup may run after a stop signal.
const DefaultTimeout = 10 * time.Second

func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Func releases one resource within the given deadline.
type Func func(ctx context.Context) error

// Run calls every fn in order under a shared timeout, logging failures.
// It keeps going after an error so later resources are still released.
func Run(log *slog.Logger, timeout time.Duration, fns ...Func) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if err := fn(ctx); err != nil {
			log.Error("shutdown step failed", "err", err)
		}
	}
}
