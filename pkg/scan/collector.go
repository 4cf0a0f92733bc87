package scan

import (
	"context"

	"igcurator/pkg/config"
	"igcurator/pkg/errors"
	"igcurator/pkg/events"
	"igcurator/pkg/instagram"
	"igcurator/pkg/logger"
	"igcurator/pkg/retry"
)

// FriendshipsFetcher is the slice of the session the collector needs.
type FriendshipsFetcher interface {
	FetchFriendships(ctx context.Context, userID string, mode instagram.ListMode, count int, maxID string) (*instagram.FriendshipsPage, error)
}

// Collector pages through a relationship list and accumulates unique
// handles.
type Collector struct {
	client      FriendshipsFetcher
	cfg         config.ScanConfig
	broadcaster *events.Broadcaster
	logger      logger.Logger
}

// NewCollector creates a Collector. broadcaster may be nil when no observer
// cares about progress.
func NewCollector(client FriendshipsFetcher, cfg config.ScanConfig, broadcaster *events.Broadcaster, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Collector{
		client:      client,
		cfg:         cfg,
		broadcaster: broadcaster,
		logger:      log,
	}
}

// Collect scrapes the given relationship list for userID. The returned slice
// preserves API order and contains no duplicate handles.
//
// An auth failure or cancellation is returned as an error together with the
// handles collected so far; the caller decides whether a partial list is
// still useful. Exhausting retries on a page ends the scan the same way.
// An account with zero entries yields an empty list and no error.
func (c *Collector) Collect(ctx context.Context, mode instagram.ListMode, userID string) ([]string, error) {
	collected := make([]string, 0, c.cfg.BatchSize)
	seen := make(map[string]struct{})

	maxID := ""
	requestCount := 0

	log := c.logger.WithFields(map[string]interface{}{
		"mode":    string(mode),
		"user_id": userID,
	})
	log.Info("starting relationship scan")

	for {
		if err := ctx.Err(); err != nil {
			return collected, errors.New(errors.ErrorTypeCancelled, 0, "scan cancelled: %v", err)
		}
		if len(collected) >= c.cfg.MaxAccounts {
			log.WarnWithFields("account cap reached, stopping scan", map[string]interface{}{
				"cap": c.cfg.MaxAccounts,
			})
			break
		}

		page, err := c.fetchPage(ctx, mode, userID, maxID, log)
		if err != nil {
			// Partial data is still usable; surface the error alongside it.
			return collected, err
		}

		added := 0
		for _, user := range page.Users {
			if user.Username == "" {
				continue
			}
			if _, dup := seen[user.Username]; dup {
				continue
			}
			seen[user.Username] = struct{}{}
			collected = append(collected, user.Username)
			added++
		}

		requestCount++
		log.DebugWithFields("page fetched", map[string]interface{}{
			"page":      requestCount,
			"new":       added,
			"collected": len(collected),
			"has_more":  page.HasMore(),
		})
		c.emitProgress(mode, len(collected))

		if !page.HasMore() {
			break
		}
		maxID = page.NextMaxID

		if err := c.pace(ctx, requestCount); err != nil {
			return collected, errors.New(errors.ErrorTypeCancelled, 0, "scan cancelled: %v", err)
		}
	}

	log.InfoWithFields("relationship scan complete", map[string]interface{}{
		"total":    len(collected),
		"requests": requestCount,
	})
	return collected, nil
}

// fetchPage requests a single page, absorbing rate limits and transient
// failures. The cursor never advances on a failed attempt, so a retried page
// is the same page.
func (c *Collector) fetchPage(ctx context.Context, mode instagram.ListMode, userID, maxID string, log logger.Logger) (*instagram.FriendshipsPage, error) {
	attempts := 0

	for {
		page, err := c.client.FetchFriendships(ctx, userID, mode, c.cfg.BatchSize, maxID)
		if err == nil {
			return page, nil
		}

		switch errors.TypeOf(err) {
		case errors.ErrorTypeRateLimit:
			// Long cooldown, same cursor. Attempts do not count against the
			// transient budget; surviving the rate limiter is the priority.
			log.WarnWithFields("rate limited, cooling down", map[string]interface{}{
				"cooldown": c.cfg.RateLimitCooldown,
			})
			c.emitStatus("Rate limit hit. Cooling down...")
			cooldown := c.cfg.RateLimitCooldown
			if werr := retry.WaitBetween(ctx, cooldown, cooldown+cooldown/9); werr != nil {
				return nil, errors.New(errors.ErrorTypeCancelled, 0, "cooldown interrupted: %v", werr)
			}

		case errors.ErrorTypeAuth:
			log.WithError(err).Error("session no longer valid, aborting scan")
			return nil, err

		case errors.ErrorTypeCancelled:
			return nil, err

		default:
			attempts++
			if attempts > c.cfg.MaxRetries {
				log.WithError(err).Error("page retries exhausted")
				return nil, err
			}
			log.WarnWithFields("page fetch failed, backing off", map[string]interface{}{
				"attempt": attempts,
				"error":   err.Error(),
			})
			if werr := retry.WaitBetween(ctx, c.cfg.MinRestDelay, c.cfg.MaxRestDelay); werr != nil {
				return nil, errors.New(errors.ErrorTypeCancelled, 0, "backoff interrupted: %v", werr)
			}
		}
	}
}

// pace sleeps between successful pages. Every RestEvery requests the pause
// stretches to simulate a human stepping away from the scroll.
func (c *Collector) pace(ctx context.Context, requestCount int) error {
	min, max := c.cfg.MinPageDelay, c.cfg.MaxPageDelay
	if c.cfg.RestEvery > 0 && requestCount%c.cfg.RestEvery == 0 {
		min, max = c.cfg.MinRestDelay, c.cfg.MaxRestDelay
		c.logger.Debug("rest pause between pages")
	}
	return retry.WaitBetween(ctx, min, max)
}

func (c *Collector) emitProgress(mode instagram.ListMode, count int) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Broadcast(events.KindData, map[string]interface{}{
		"message": "Scraping " + string(mode),
		"mode":    string(mode),
		"count":   count,
	})
}

func (c *Collector) emitStatus(message string) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Status(message)
}
