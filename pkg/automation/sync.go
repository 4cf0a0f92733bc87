package automation

import (
	"context"
	"time"

	"igcurator/pkg/config"
	"igcurator/pkg/errors"
	"igcurator/pkg/events"
	"igcurator/pkg/instagram"
	"igcurator/pkg/logger"
	"igcurator/pkg/reconcile"
	"igcurator/pkg/scan"
	"igcurator/pkg/store"
)

// SessionClient is everything a sync run needs from an authenticated session.
type SessionClient interface {
	scan.FriendshipsFetcher
	UnfollowClient
	AwaitLogin(ctx context.Context, timeout time.Duration) (*instagram.CurrentUser, error)
	Close()
}

// ClientFactory opens a fresh session for each run.
type ClientFactory func() SessionClient

// Service runs syncs and unfollow passes against the store, one at a time.
type Service struct {
	holder      *Holder
	store       *store.Store
	broadcaster *events.Broadcaster
	cfg         *config.Config
	newClient   ClientFactory
	logger      logger.Logger
}

// NewService wires the automation service. The factory is invoked once per
// run so each run owns (and closes) its session.
func NewService(st *store.Store, broadcaster *events.Broadcaster, cfg *config.Config, factory ClientFactory, log logger.Logger) *Service {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Service{
		holder:      NewHolder(),
		store:       st,
		broadcaster: broadcaster,
		cfg:         cfg,
		newClient:   factory,
		logger:      log,
	}
}

// ActiveRun reports the run currently in flight.
func (s *Service) ActiveRun() RunType {
	return s.holder.Active()
}

// CancelRun aborts the active run, if any.
func (s *Service) CancelRun() bool {
	return s.holder.Cancel()
}

// Wait blocks until the active run finishes. Used on shutdown and in tests.
func (s *Service) Wait() {
	s.holder.Wait()
}

// StartSync launches a sync run in the background, cancelling any run in
// flight. Completion and failure are reported through events.
func (s *Service) StartSync(autoUnfollow bool) {
	ctx, finish := s.holder.Begin(context.Background(), RunSync)
	go func() {
		defer finish()
		if err := s.Sync(ctx, autoUnfollow); err != nil {
			s.reportRunError("Sync", err)
		}
	}()
}

// StartUnfollow launches a bulk unfollow of the current to-unfollow list.
func (s *Service) StartUnfollow() {
	ctx, finish := s.holder.Begin(context.Background(), RunUnfollow)
	go func() {
		defer finish()
		if err := s.UnfollowNonFollowers(ctx); err != nil {
			s.reportRunError("Unfollow", err)
		}
	}()
}

// Sync performs one full scan: resolve identity, collect both relationship
// lists, persist the snapshot, and optionally unfollow the derived list.
func (s *Service) Sync(ctx context.Context, autoUnfollow bool) error {
	client := s.newClient()
	defer client.Close()

	s.broadcaster.Status("Checking session...")
	user, err := client.AwaitLogin(ctx, s.cfg.Scan.LoginTimeout)
	if err != nil {
		return err
	}

	username, userID, err := s.resolveIdentity(ctx, client, user)
	if err != nil {
		return err
	}
	log := s.logger.WithField("username", username)
	log.Info("starting sync")
	s.broadcaster.Status("Scanning followers of " + username)

	collector := scan.NewCollector(client, s.cfg.Scan, s.broadcaster, s.logger)

	followers, err := collector.Collect(ctx, instagram.ModeFollowers, userID)
	if err != nil {
		return err
	}
	s.broadcaster.Status("Scanning accounts " + username + " follows")
	following, err := collector.Collect(ctx, instagram.ModeFollowing, userID)
	if err != nil {
		return err
	}

	snap, err := s.store.AddScan(ctx, username, time.Now(), followers, following)
	if err != nil {
		return err
	}

	favorites, err := s.store.Favorites(ctx)
	if err != nil {
		return err
	}
	stats := reconcile.Summarize(snap, favorites)
	s.broadcaster.Broadcast(events.KindData, map[string]interface{}{
		"message":      "Sync complete",
		"scanId":       snap.ID,
		"followers":    stats.FollowerCount,
		"following":    stats.FollowingCount,
		"nonFollowers": stats.NonFollowers,
		"toUnfollow":   stats.ToUnfollow,
	})
	log.InfoWithFields("sync complete", map[string]interface{}{
		"followers": stats.FollowerCount,
		"following": stats.FollowingCount,
	})

	if !autoUnfollow {
		return nil
	}

	view := reconcile.Derive(snap, favorites)
	return s.runUnfollow(ctx, client, view)
}

// UnfollowNonFollowers runs a bulk unfollow against the latest snapshot's
// derived list, opening its own session.
func (s *Service) UnfollowNonFollowers(ctx context.Context) error {
	snap, err := s.store.LatestScan(ctx, "")
	if err != nil {
		return err
	}
	favorites, err := s.store.Favorites(ctx)
	if err != nil {
		return err
	}
	view := reconcile.Derive(snap, favorites)

	if len(view.ToUnfollow) == 0 {
		// Nothing to do; completing without opening a session.
		s.broadcaster.Info("No accounts to unfollow")
		return nil
	}

	client := s.newClient()
	defer client.Close()

	if _, err := client.AwaitLogin(ctx, s.cfg.Scan.LoginTimeout); err != nil {
		return err
	}
	return s.runUnfollow(ctx, client, view)
}

func (s *Service) runUnfollow(ctx context.Context, client SessionClient, view *reconcile.View) error {
	targets := make([]string, len(view.ToUnfollow))
	for i, account := range view.ToUnfollow {
		targets[i] = account.Username
	}

	runner := NewBulkUnfollower(client, s.store, s.cfg.Unfollow, s.broadcaster, s.logger)
	report := runner.Run(ctx, targets)

	s.broadcaster.Broadcast(events.KindStatus, map[string]interface{}{
		"message":   "Unfollow run finished",
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"cancelled": report.Cancelled,
	})
	if report.Cancelled {
		return errors.New(errors.ErrorTypeCancelled, 0, "unfollow run cancelled")
	}
	return nil
}

// resolveIdentity picks the account to scan: the logged-in identity when the
// probe found one, otherwise the configured username resolved to an id.
func (s *Service) resolveIdentity(ctx context.Context, client SessionClient, user *instagram.CurrentUser) (username, userID string, err error) {
	if user != nil {
		return user.Username, user.ID.String(), nil
	}

	username = s.cfg.Instagram.Username
	if username == "" {
		return "", "", errors.New(errors.ErrorTypeAuth, 0, "no identity: login probe found no user and no username is configured")
	}
	profile, err := client.LookupUser(ctx, username)
	if err != nil {
		return "", "", err
	}
	return username, profile.ID, nil
}

func (s *Service) reportRunError(kind string, err error) {
	if errors.IsCancelled(err) {
		// Aborted runs are an outcome, not a failure.
		s.broadcaster.Status(kind + " run cancelled")
		s.logger.WithError(err).Info("run cancelled")
		return
	}
	s.broadcaster.Error(kind + " run failed: " + err.Error())
	s.logger.WithError(err).Error("run failed")
}
