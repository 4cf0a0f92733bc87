package automation

import (
	"context"

	"igcurator/pkg/config"
	"igcurator/pkg/errors"
	"igcurator/pkg/events"
	"igcurator/pkg/instagram"
	"igcurator/pkg/logger"
	"igcurator/pkg/retry"
)

// UnfollowClient is the slice of the session the bulk runner needs.
type UnfollowClient interface {
	LookupUser(ctx context.Context, username string) (*instagram.ProfileUser, error)
	Unfollow(ctx context.Context, userID string) error
}

// FavoriteChecker answers live protection queries during a run.
type FavoriteChecker interface {
	IsFavorite(ctx context.Context, username string) (bool, error)
}

// Report summarizes one bulk unfollow pass.
type Report struct {
	Processed int  `json:"processed"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
	Cancelled bool `json:"cancelled"`
}

// BulkUnfollower walks a target list and unfollows each account, skipping
// anything that became a favorite since the list was derived. One failing
// target never stops the run; cancellation does.
type BulkUnfollower struct {
	client      UnfollowClient
	favorites   FavoriteChecker
	cfg         config.UnfollowConfig
	broadcaster *events.Broadcaster
	logger      logger.Logger
}

// NewBulkUnfollower creates a runner. broadcaster may be nil.
func NewBulkUnfollower(client UnfollowClient, favorites FavoriteChecker, cfg config.UnfollowConfig, broadcaster *events.Broadcaster, log logger.Logger) *BulkUnfollower {
	if log == nil {
		log = logger.GetLogger()
	}
	return &BulkUnfollower{
		client:      client,
		favorites:   favorites,
		cfg:         cfg,
		broadcaster: broadcaster,
		logger:      log,
	}
}

// Run processes targets in order and returns a report. An empty target list
// completes immediately. The report is always valid, even when the run was
// cancelled partway.
func (b *BulkUnfollower) Run(ctx context.Context, targets []string) Report {
	report := Report{}
	if len(targets) == 0 {
		b.emit(events.KindInfo, map[string]interface{}{"message": "No accounts to unfollow"})
		return report
	}

	log := b.logger.WithField("targets", len(targets))
	log.Info("starting bulk unfollow")
	b.emit(events.KindStatus, map[string]interface{}{
		"message": "Starting unfollow run",
		"total":   len(targets),
	})

	for i, username := range targets {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		// The favorites set may have changed since the target list was
		// derived; a freshly protected account is skipped, not unfollowed.
		fav, err := b.favorites.IsFavorite(ctx, username)
		if err != nil {
			log.WithError(err).Warn("favorite check failed, skipping target")
			report.Skipped++
			continue
		}
		if fav {
			report.Skipped++
			b.emit(events.KindInfo, map[string]interface{}{
				"message":  "Skipping favorite " + username,
				"username": username,
			})
			continue
		}

		if err := b.unfollowOne(ctx, username); err != nil {
			// Failures racing a cancellation are the cancellation's fault.
			if ctx.Err() != nil || errors.IsCancelled(err) {
				report.Cancelled = true
				break
			}
			report.Failed++
			log.WithError(err).WarnWithFields("unfollow failed, continuing", map[string]interface{}{
				"username": username,
			})
			b.emit(events.KindError, map[string]interface{}{
				"message":  "Failed to unfollow " + username,
				"username": username,
				"error":    err.Error(),
			})
			continue
		}

		report.Processed++
		b.emit(events.KindData, map[string]interface{}{
			"message":   "Unfollowed " + username,
			"username":  username,
			"processed": report.Processed,
			"total":     len(targets),
		})

		if i < len(targets)-1 {
			if err := retry.WaitBetween(ctx, b.cfg.MinActionDelay, b.cfg.MaxActionDelay); err != nil {
				report.Cancelled = true
				break
			}
		}
	}

	log.InfoWithFields("bulk unfollow finished", map[string]interface{}{
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"cancelled": report.Cancelled,
	})
	return report
}

func (b *BulkUnfollower) unfollowOne(ctx context.Context, username string) error {
	user, err := b.client.LookupUser(ctx, username)
	if err != nil {
		return err
	}
	return b.client.Unfollow(ctx, user.ID)
}

func (b *BulkUnfollower) emit(kind events.Kind, payload map[string]interface{}) {
	if b.broadcaster == nil {
		return
	}
	b.broadcaster.Broadcast(kind, payload)
}
