// Package reconcile derives relationship views from a stored snapshot. All
// functions are pure: they read the snapshot and the favorites set and never
// touch the network or the database.
package reconcile

import (
	"time"

	"igcurator/pkg/store"
)

// Account is one handle in a derived view, annotated with its protection
// status so callers never have to re-query the favorites set.
type Account struct {
	Username   string `json:"username"`
	IsFavorite bool   `json:"isFavorite"`
}

// View is the full reconciliation of one snapshot.
type View struct {
	Username       string    `json:"username"`
	ScanID         string    `json:"scanId"`
	FollowerCount  int       `json:"followerCount"`
	FollowingCount int       `json:"followingCount"`
	// NonFollowers are accounts the user follows that do not follow back,
	// favorites included.
	NonFollowers []Account `json:"nonFollowers"`
	// Fans follow the user without being followed back.
	Fans []Account `json:"fans"`
	// ToUnfollow is NonFollowers minus the favorites set. This is the only
	// list the bulk runner acts on.
	ToUnfollow []Account `json:"toUnfollow"`
}

// Derive computes the view for a snapshot against the current favorites set.
// Output order follows the snapshot's list order.
func Derive(snap *store.Snapshot, favorites []string) *View {
	favSet := make(map[string]struct{}, len(favorites))
	for _, f := range favorites {
		favSet[f] = struct{}{}
	}
	followerSet := make(map[string]struct{}, len(snap.Followers))
	for _, f := range snap.Followers {
		followerSet[f] = struct{}{}
	}
	followingSet := make(map[string]struct{}, len(snap.Following))
	for _, f := range snap.Following {
		followingSet[f] = struct{}{}
	}

	view := &View{
		Username:       snap.Username,
		ScanID:         snap.ID,
		FollowerCount:  len(snap.Followers),
		FollowingCount: len(snap.Following),
		NonFollowers:   []Account{},
		Fans:           []Account{},
		ToUnfollow:     []Account{},
	}

	for _, u := range snap.Following {
		if _, follows := followerSet[u]; follows {
			continue
		}
		_, fav := favSet[u]
		account := Account{Username: u, IsFavorite: fav}
		view.NonFollowers = append(view.NonFollowers, account)
		if !fav {
			view.ToUnfollow = append(view.ToUnfollow, account)
		}
	}

	for _, u := range snap.Followers {
		if _, followed := followingSet[u]; followed {
			continue
		}
		_, fav := favSet[u]
		view.Fans = append(view.Fans, Account{Username: u, IsFavorite: fav})
	}

	return view
}

// Stats summarizes a snapshot for the overview endpoint.
type Stats struct {
	Username       string `json:"username"`
	ScanID         string `json:"scanId"`
	ScannedAt      string `json:"scannedAt"`
	FollowerCount  int    `json:"followerCount"`
	FollowingCount int    `json:"followingCount"`
	NonFollowers   int    `json:"nonFollowers"`
	Fans           int    `json:"fans"`
	ToUnfollow     int    `json:"toUnfollow"`
}

// Summarize derives the view and reduces it to counts.
func Summarize(snap *store.Snapshot, favorites []string) *Stats {
	view := Derive(snap, favorites)
	return &Stats{
		Username:       snap.Username,
		ScanID:         snap.ID,
		ScannedAt:      snap.Timestamp.UTC().Format(time.RFC3339),
		FollowerCount:  view.FollowerCount,
		FollowingCount: view.FollowingCount,
		NonFollowers:   len(view.NonFollowers),
		Fans:           len(view.Fans),
		ToUnfollow:     len(view.ToUnfollow),
	}
}
