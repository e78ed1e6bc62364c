package actiontoken

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically purges long-expired action tokens. Redeemed and
// unredeemed tokens alike are kept for PurgeAfterExpiry past their
// expiry so support can answer "why did my link stop working".
type Sweeper struct {
	repo     *Repository
	logger   *slog.Logger
	interval time.Duration
}

func NewSweeper(repo *Repository, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{repo: repo, logger: logger, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-PurgeAfterExpiry)
			n, err := s.repo.DeleteExpiredBefore(ctx, cutoff)
			if err != nil {
				s.logger.Error("action token sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.logger.Info("action tokens purged", "count", n)
			}
		}
	}
}
