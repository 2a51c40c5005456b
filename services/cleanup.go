package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupIdleDrafts удаляет черновики, которые не трогали дольше DraftTTL.
func (b *Bot) CleanupIdleDrafts(ctx context.Context) {
	if b.opts.DraftTTL <= 0 || b.opts.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(b.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.wizard.ExpireIdle(b.opts.DraftTTL); n > 0 {
				b.log.Info("Expired idle drafts", zap.Int("count", n), zap.Duration("ttl", b.opts.DraftTTL))
			}
		}
	}
}
