package automation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcurator/pkg/config"
	"igcurator/pkg/errors"
	"igcurator/pkg/events"
	"igcurator/pkg/instagram"
	"igcurator/pkg/logger"
	"igcurator/pkg/store"
)

// fakeSession serves one page per relationship list and records unfollows.
type fakeSession struct {
	mu         sync.Mutex
	user       *instagram.CurrentUser
	loginErr   error
	followers  []string
	following  []string
	fetchErr   error
	unfollowed []string
	closed     bool
}

func (f *fakeSession) AwaitLogin(ctx context.Context, timeout time.Duration) (*instagram.CurrentUser, error) {
	return f.user, f.loginErr
}

func (f *fakeSession) FetchFriendships(ctx context.Context, userID string, mode instagram.ListMode, count int, maxID string) (*instagram.FriendshipsPage, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	source := f.followers
	if mode == instagram.ModeFollowing {
		source = f.following
	}
	users := make([]instagram.AccountSummary, len(source))
	for i, u := range source {
		users[i] = instagram.AccountSummary{Username: u}
	}
	return &instagram.FriendshipsPage{Users: users, Status: "ok"}, nil
}

func (f *fakeSession) LookupUser(ctx context.Context, username string) (*instagram.ProfileUser, error) {
	return &instagram.ProfileUser{ID: "id-" + username, Username: username}, nil
}

func (f *fakeSession) Unfollow(ctx context.Context, userID string) error {
	f.mu.Lock()
	f.unfollowed = append(f.unfollowed, userID)
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func fastConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scan.MinPageDelay = time.Millisecond
	cfg.Scan.MaxPageDelay = 2 * time.Millisecond
	cfg.Scan.MinRestDelay = time.Millisecond
	cfg.Scan.MaxRestDelay = 2 * time.Millisecond
	cfg.Scan.LoginTimeout = 10 * time.Millisecond
	cfg.Unfollow.MinActionDelay = time.Millisecond
	cfg.Unfollow.MaxActionDelay = 2 * time.Millisecond
	return cfg
}

func newTestService(t *testing.T, session *fakeSession) (*Service, *store.Store, *events.Broadcaster) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	broadcaster := events.New()
	svc := NewService(st, broadcaster, fastConfig(), func() SessionClient { return session }, logger.NewTestLogger())
	return svc, st, broadcaster
}

func TestSyncStoresSnapshot(t *testing.T) {
	session := &fakeSession{
		user:      &instagram.CurrentUser{ID: json.Number("111"), Username: "alice"},
		followers: []string{"a", "b", "c"},
		following: []string{"a", "b", "d", "e"},
	}
	svc, st, broadcaster := newTestService(t, session)

	require.NoError(t, svc.Sync(context.Background(), false))

	snap, err := st.LatestScan(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, snap.Followers)
	assert.Equal(t, []string{"a", "b", "d", "e"}, snap.Following)

	assert.True(t, session.closed)
	assert.Empty(t, session.unfollowed)

	var completed bool
	for _, e := range broadcaster.History() {
		if e.Kind == events.KindData && e.Payload["message"] == "Sync complete" {
			completed = true
			assert.Equal(t, 3, e.Payload["followers"])
			assert.Equal(t, 2, e.Payload["nonFollowers"])
		}
	}
	assert.True(t, completed)
}

func TestSyncWithAutoUnfollowRespectsFavorites(t *testing.T) {
	session := &fakeSession{
		user:      &instagram.CurrentUser{ID: json.Number("111"), Username: "alice"},
		followers: []string{"a", "b", "c"},
		following: []string{"a", "b", "d", "e"},
	}
	svc, st, _ := newTestService(t, session)
	require.NoError(t, st.AddFavorite(context.Background(), "d"))

	require.NoError(t, svc.Sync(context.Background(), true))

	// d does not follow back but is protected; only e goes.
	assert.Equal(t, []string{"id-e"}, session.unfollowed)
	assert.True(t, session.closed)
}

func TestSyncResolvesConfiguredUsernameWhenProbeFindsNoIdentity(t *testing.T) {
	session := &fakeSession{
		user:      nil, // login probe timed out
		followers: []string{"a"},
		following: []string{"a"},
	}
	svc, st, _ := newTestService(t, session)
	svc.cfg.Instagram.Username = "fallbackuser"

	require.NoError(t, svc.Sync(context.Background(), false))

	snap, err := st.LatestScan(context.Background(), "fallbackuser")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, snap.Followers)
}

func TestSyncFailsWithoutAnyIdentity(t *testing.T) {
	session := &fakeSession{user: nil}
	svc, _, _ := newTestService(t, session)
	svc.cfg.Instagram.Username = ""

	err := svc.Sync(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	assert.True(t, session.closed)
}

func TestSyncScanFailureStoresNothing(t *testing.T) {
	session := &fakeSession{
		user:     &instagram.CurrentUser{ID: json.Number("111"), Username: "alice"},
		fetchErr: errors.New(errors.ErrorTypeAuth, 401, "session is no longer valid"),
	}
	svc, st, _ := newTestService(t, session)

	err := svc.Sync(context.Background(), false)
	require.Error(t, err)

	_, err = st.LatestScan(context.Background(), "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, session.closed)
}

func TestUnfollowNonFollowersWithoutScan(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeSession{})

	err := svc.UnfollowNonFollowers(context.Background())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUnfollowNonFollowersEmptyListSkipsSession(t *testing.T) {
	session := &fakeSession{}
	svc, st, broadcaster := newTestService(t, session)

	// Everyone follows back, so there is nothing to unfollow.
	_, err := st.AddScan(context.Background(), "alice", time.Now(), []string{"a"}, []string{"a"})
	require.NoError(t, err)

	require.NoError(t, svc.UnfollowNonFollowers(context.Background()))

	assert.False(t, session.closed) // no session was opened
	history := broadcaster.History()
	require.NotEmpty(t, history)
	assert.Equal(t, events.KindInfo, history[len(history)-1].Kind)
}

func TestUnfollowNonFollowersProcessesDerivedList(t *testing.T) {
	session := &fakeSession{}
	svc, st, _ := newTestService(t, session)

	_, err := st.AddScan(context.Background(), "alice", time.Now(),
		[]string{"a"}, []string{"a", "x", "y"})
	require.NoError(t, err)
	require.NoError(t, st.AddFavorite(context.Background(), "x"))

	require.NoError(t, svc.UnfollowNonFollowers(context.Background()))

	assert.Equal(t, []string{"id-y"}, session.unfollowed)
	assert.True(t, session.closed)
}

func TestStartSyncReplacesActiveRun(t *testing.T) {
	blocker := &fakeSession{
		user:      &instagram.CurrentUser{ID: json.Number("111"), Username: "alice"},
		followers: []string{"a"},
		following: []string{"a"},
	}
	svc, _, _ := newTestService(t, blocker)

	svc.StartSync(false)
	svc.StartSync(false) // cancels and awaits the first
	svc.Wait()

	assert.Equal(t, RunNone, svc.ActiveRun())
}

func TestCancelRunUnblocksWaitDuringCooldown(t *testing.T) {
	// A sync parked in a rate-limit cooldown must unwind promptly once
	// cancelled, so shutdown (cancel then wait) never hangs behind it.
	session := &fakeSession{
		user:     &instagram.CurrentUser{ID: json.Number("111"), Username: "alice"},
		fetchErr: errors.New(errors.ErrorTypeRateLimit, 429, "rate limit exceeded"),
	}
	svc, _, _ := newTestService(t, session)
	svc.cfg.Scan.RateLimitCooldown = time.Hour

	svc.StartSync(false)
	time.Sleep(30 * time.Millisecond) // let the run reach the cooldown
	require.True(t, svc.CancelRun())

	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after CancelRun")
	}
	assert.Equal(t, RunNone, svc.ActiveRun())
}

func TestCancelRunReportsCancellationAsStatus(t *testing.T) {
	// An unfollow run cancelled mid-flight ends with a status event, not an
	// error event.
	session := &fakeSession{}
	svc, st, broadcaster := newTestService(t, session)

	_, err := st.AddScan(context.Background(), "alice", time.Now(),
		[]string{}, []string{"u1", "u2", "u3", "u4", "u5"})
	require.NoError(t, err)
	svc.cfg.Unfollow.MinActionDelay = 20 * time.Millisecond
	svc.cfg.Unfollow.MaxActionDelay = 30 * time.Millisecond

	svc.StartUnfollow()
	time.Sleep(30 * time.Millisecond)
	assert.True(t, svc.CancelRun())
	svc.Wait()

	var sawErrorEvent bool
	var sawCancelStatus bool
	for _, e := range broadcaster.History() {
		if e.Kind == events.KindError {
			sawErrorEvent = true
		}
		if e.Kind == events.KindStatus && e.Payload["message"] == "Unfollow run cancelled" {
			sawCancelStatus = true
		}
	}
	assert.False(t, sawErrorEvent)
	assert.True(t, sawCancelStatus)
}
