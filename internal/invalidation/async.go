package invalidation

import (
	"context"
	"time"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
)

// runAsync is swapped by tests to publish synchronously
var runAsync = safeAsync

// safeAsync runs fn in a goroutine with a timeout and logs its failure.
func safeAsync(log *logger.Logger, op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.WithComponent("invalidation").WithError(err).WithField("op", op).Error("async operation failed")
		} else {
			log.WithComponent("invalidation").WithField("op", op).Debug("async operation succeeded")
		}
	}()
}
