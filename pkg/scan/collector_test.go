package scan

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcurator/pkg/config"
	"igcurator/pkg/errors"
	"igcurator/pkg/events"
	"igcurator/pkg/instagram"
	"igcurator/pkg/logger"
)

// fakeFetcher serves a scripted sequence of pages keyed by cursor, with
// optional injected failures.
type fakeFetcher struct {
	pages    map[string]*instagram.FriendshipsPage
	failures map[string][]error // errors returned before the page succeeds, per cursor
	requests []string           // cursors in request order
}

func (f *fakeFetcher) FetchFriendships(ctx context.Context, userID string, mode instagram.ListMode, count int, maxID string) (*instagram.FriendshipsPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.New(errors.ErrorTypeCancelled, 0, "cancelled: %v", err)
	}
	f.requests = append(f.requests, maxID)
	if pending := f.failures[maxID]; len(pending) > 0 {
		err := pending[0]
		f.failures[maxID] = pending[1:]
		return nil, err
	}
	page, ok := f.pages[maxID]
	if !ok {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "no page for cursor %q", maxID)
	}
	return page, nil
}

// pagedSource builds n pages of k unique users each, chained by cursors.
func pagedSource(n, k int) *fakeFetcher {
	f := &fakeFetcher{pages: map[string]*instagram.FriendshipsPage{}, failures: map[string][]error{}}
	cursor := ""
	for p := 0; p < n; p++ {
		users := make([]instagram.AccountSummary, k)
		for i := 0; i < k; i++ {
			users[i] = instagram.AccountSummary{Username: fmt.Sprintf("user_%d_%d", p, i)}
		}
		next := ""
		if p < n-1 {
			next = fmt.Sprintf("cursor-%d", p+1)
		}
		f.pages[cursor] = &instagram.FriendshipsPage{Users: users, NextMaxID: next, Status: "ok"}
		cursor = next
	}
	return f
}

func fastScanConfig() config.ScanConfig {
	cfg := config.DefaultConfig().Scan
	cfg.MinPageDelay = time.Millisecond
	cfg.MaxPageDelay = 2 * time.Millisecond
	cfg.MinRestDelay = time.Millisecond
	cfg.MaxRestDelay = 2 * time.Millisecond
	cfg.RateLimitCooldown = time.Millisecond
	return cfg
}

func TestCollectAllPages(t *testing.T) {
	fetcher := pagedSource(4, 25)
	c := NewCollector(fetcher, fastScanConfig(), nil, logger.NewTestLogger())

	got, err := c.Collect(context.Background(), instagram.ModeFollowers, "111")
	require.NoError(t, err)

	assert.Len(t, got, 100)
	assert.Len(t, fetcher.requests, 4)
	// Order preserved, all unique
	assert.Equal(t, "user_0_0", got[0])
	assert.Equal(t, "user_3_24", got[99])
	unique := map[string]struct{}{}
	for _, u := range got {
		unique[u] = struct{}{}
	}
	assert.Len(t, unique, 100)
}

func TestCollectEmptyList(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]*instagram.FriendshipsPage{
			"": {Users: []instagram.AccountSummary{}, Status: "ok"},
		},
		failures: map[string][]error{},
	}
	c := NewCollector(fetcher, fastScanConfig(), nil, logger.NewTestLogger())

	got, err := c.Collect(context.Background(), instagram.ModeFollowing, "111")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollectRetriesRateLimitedPageWithSameCursor(t *testing.T) {
	fetcher := pagedSource(2, 3)
	fetcher.failures["cursor-1"] = []error{
		errors.New(errors.ErrorTypeRateLimit, 429, "rate limit exceeded"),
	}
	c := NewCollector(fetcher, fastScanConfig(), nil, logger.NewTestLogger())

	got, err := c.Collect(context.Background(), instagram.ModeFollowers, "111")
	require.NoError(t, err)

	// No page skipped, no items duplicated
	assert.Len(t, got, 6)
	assert.Equal(t, []string{"", "cursor-1", "cursor-1"}, fetcher.requests)
}

func TestCollectAbortsOnAuthErrorKeepingPartial(t *testing.T) {
	fetcher := pagedSource(3, 2)
	fetcher.failures["cursor-1"] = []error{
		errors.New(errors.ErrorTypeAuth, 401, "session is no longer valid"),
	}
	c := NewCollector(fetcher, fastScanConfig(), nil, logger.NewTestLogger())

	got, err := c.Collect(context.Background(), instagram.ModeFollowers, "111")
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	// First page was collected before the failure
	assert.Equal(t, []string{"user_0_0", "user_0_1"}, got)
}

func TestCollectTransientFailuresRetriedThenExhausted(t *testing.T) {
	cfg := fastScanConfig()
	cfg.MaxRetries = 2

	fetcher := pagedSource(2, 2)
	serverErr := errors.New(errors.ErrorTypeServerError, 500, "boom")
	fetcher.failures["cursor-1"] = []error{serverErr, serverErr, serverErr}

	c := NewCollector(fetcher, cfg, nil, logger.NewTestLogger())

	got, err := c.Collect(context.Background(), instagram.ModeFollowers, "111")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeServerError, errors.TypeOf(err))
	assert.Len(t, got, 2) // partial kept
	// First page plus three attempts at the second (initial + 2 retries)
	assert.Equal(t, []string{"", "cursor-1", "cursor-1", "cursor-1"}, fetcher.requests)
}

func TestCollectTransientFailureRecovers(t *testing.T) {
	fetcher := pagedSource(2, 2)
	fetcher.failures["cursor-1"] = []error{
		errors.New(errors.ErrorTypeNetwork, 0, "conn reset"),
	}
	c := NewCollector(fetcher, fastScanConfig(), nil, logger.NewTestLogger())

	got, err := c.Collect(context.Background(), instagram.ModeFollowers, "111")
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestCollectDeduplicates(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]*instagram.FriendshipsPage{
			"": {
				Users:     []instagram.AccountSummary{{Username: "a"}, {Username: "b"}},
				NextMaxID: "c2",
				Status:    "ok",
			},
			"c2": {
				// API re-served "b" on the page boundary
				Users:  []instagram.AccountSummary{{Username: "b"}, {Username: "c"}, {Username: ""}},
				Status: "ok",
			},
		},
		failures: map[string][]error{},
	}
	c := NewCollector(fetcher, fastScanConfig(), nil, logger.NewTestLogger())

	got, err := c.Collect(context.Background(), instagram.ModeFollowers, "111")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCollectHonorsAccountCap(t *testing.T) {
	cfg := fastScanConfig()
	cfg.MaxAccounts = 5

	fetcher := pagedSource(10, 3)
	c := NewCollector(fetcher, cfg, nil, logger.NewTestLogger())

	got, err := c.Collect(context.Background(), instagram.ModeFollowers, "111")
	require.NoError(t, err)
	// Cap checked at loop top: stops after the page that crossed it
	assert.Equal(t, 6, len(got))
	assert.Len(t, fetcher.requests, 2)
}

func TestCollectCancelledMidScan(t *testing.T) {
	fetcher := pagedSource(100, 2)
	cfg := fastScanConfig()
	cfg.MinPageDelay = 20 * time.Millisecond
	cfg.MaxPageDelay = 30 * time.Millisecond
	c := NewCollector(fetcher, cfg, nil, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(35 * time.Millisecond)
		cancel()
	}()

	got, err := c.Collect(ctx, instagram.ModeFollowers, "111")
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	assert.NotEmpty(t, got)
	assert.Less(t, len(got), 200)
}

func TestCollectEmitsProgressEvents(t *testing.T) {
	broadcaster := events.New()
	fetcher := pagedSource(3, 2)
	c := NewCollector(fetcher, fastScanConfig(), broadcaster, logger.NewTestLogger())

	_, err := c.Collect(context.Background(), instagram.ModeFollowing, "111")
	require.NoError(t, err)

	var progress []events.Event
	for _, e := range broadcaster.History() {
		if e.Kind == events.KindData {
			progress = append(progress, e)
		}
	}
	require.Len(t, progress, 3)
	assert.Equal(t, 2, progress[0].Payload["count"])
	assert.Equal(t, 6, progress[2].Payload["count"])
	assert.Equal(t, "following", progress[0].Payload["mode"])
}
