package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"igcurator/pkg/store"
)

func snap(followers, following []string) *store.Snapshot {
	return &store.Snapshot{
		ID:        "scan-1",
		Username:  "alice",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Followers: followers,
		Following: following,
	}
}

func usernames(accounts []Account) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.Username
	}
	return out
}

func TestDerive(t *testing.T) {
	view := Derive(
		snap([]string{"a", "b", "c"}, []string{"a", "b", "d", "e"}),
		[]string{"d"},
	)

	assert.Equal(t, []string{"d", "e"}, usernames(view.NonFollowers))
	assert.Equal(t, []string{"e"}, usernames(view.ToUnfollow))
	assert.Equal(t, []string{"c"}, usernames(view.Fans))
	assert.Equal(t, 3, view.FollowerCount)
	assert.Equal(t, 4, view.FollowingCount)
}

func TestDeriveFavoriteAnnotations(t *testing.T) {
	view := Derive(
		snap([]string{"fan"}, []string{"kept", "dropped"}),
		[]string{"kept", "fan"},
	)

	assert.Equal(t, []Account{
		{Username: "kept", IsFavorite: true},
		{Username: "dropped", IsFavorite: false},
	}, view.NonFollowers)
	assert.Equal(t, []Account{{Username: "dropped"}}, view.ToUnfollow)
	assert.Equal(t, []Account{{Username: "fan", IsFavorite: true}}, view.Fans)
}

func TestDeriveMutualsProduceEmptyViews(t *testing.T) {
	view := Derive(snap([]string{"a", "b"}, []string{"b", "a"}), nil)

	assert.Empty(t, view.NonFollowers)
	assert.Empty(t, view.Fans)
	assert.Empty(t, view.ToUnfollow)
	assert.NotNil(t, view.NonFollowers)
	assert.NotNil(t, view.ToUnfollow)
}

func TestDeriveEmptySnapshot(t *testing.T) {
	view := Derive(snap(nil, nil), []string{"keeper"})

	assert.Empty(t, view.NonFollowers)
	assert.Empty(t, view.Fans)
	assert.Empty(t, view.ToUnfollow)
	assert.Zero(t, view.FollowerCount)
}

func TestDerivePreservesSnapshotOrder(t *testing.T) {
	view := Derive(
		snap([]string{}, []string{"z", "m", "a"}),
		nil,
	)
	assert.Equal(t, []string{"z", "m", "a"}, usernames(view.ToUnfollow))
}

func TestDeriveFavoriteNotInSnapshotIsIgnored(t *testing.T) {
	// A favorite that no longer appears in following simply has no effect.
	view := Derive(snap([]string{"a"}, []string{"a", "b"}), []string{"ghost"})

	assert.Equal(t, []string{"b"}, usernames(view.NonFollowers))
	assert.Equal(t, []string{"b"}, usernames(view.ToUnfollow))
}

func TestSummarize(t *testing.T) {
	stats := Summarize(
		snap([]string{"a", "b", "c"}, []string{"a", "b", "d", "e"}),
		[]string{"d"},
	)

	assert.Equal(t, "alice", stats.Username)
	assert.Equal(t, "scan-1", stats.ScanID)
	assert.Equal(t, "2026-08-01T12:00:00Z", stats.ScannedAt)
	assert.Equal(t, 3, stats.FollowerCount)
	assert.Equal(t, 4, stats.FollowingCount)
	assert.Equal(t, 2, stats.NonFollowers)
	assert.Equal(t, 1, stats.Fans)
	assert.Equal(t, 1, stats.ToUnfollow)
}
