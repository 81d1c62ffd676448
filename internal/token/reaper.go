package token

import (
	"context"
	"time"

	"bitwise74/file-api/internal/metrics"

	"go.uber.org/zap"
)

// RunReaper periodically removes expired tokens until ctx is done. Validate
// never relies on it; it only keeps the table small.
func (s *Service) RunReaper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	zap.L().Debug("Token cleanup attached", zap.Duration("tick_every", every))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx, s.Now())
			if err != nil {
				if ctx.Err() != nil {
					return
				}

				zap.L().Error("Failed to cleanup expired tokens", zap.Error(err))
				continue
			}

			if n > 0 {
				metrics.TokensPurged.Add(float64(n))
				zap.L().Debug("Cleaned up expired tokens", zap.Int64("count", n))
			}
		}
	}
}
