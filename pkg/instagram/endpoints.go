package instagram

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// BaseURL is the production Instagram origin
	BaseURL = "https://www.instagram.com"

	// AppID is sent as x-ig-app-id on every API request
	AppID = "936619743392459"

	// DefaultBatchSize is the default page size for friendship lists
	DefaultBatchSize = 50

	// MaxBatchSize is the largest page size the friendships API accepts
	MaxBatchSize = 50
)

// ListMode selects which relationship list to page through.
type ListMode string

const (
	ModeFollowers ListMode = "followers"
	ModeFollowing ListMode = "following"
)

// Valid reports whether m is a known list mode.
func (m ListMode) Valid() bool {
	return m == ModeFollowers || m == ModeFollowing
}

// ProfilePath is the path and query for fetching a user's profile.
func ProfilePath(username string) string {
	params := url.Values{}
	params.Set("username", username)
	return "/api/v1/users/web_profile_info/?" + params.Encode()
}

// FriendshipsPath is the path and query for one page of a relationship list.
// maxID is the opaque continuation cursor; empty requests the first page.
func FriendshipsPath(userID string, mode ListMode, count int, maxID string) string {
	if count <= 0 {
		count = DefaultBatchSize
	} else if count > MaxBatchSize {
		count = MaxBatchSize
	}

	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	params.Set("search_surface", "follow_list_page")
	if maxID != "" {
		params.Set("max_id", maxID)
	}

	return fmt.Sprintf("/api/v1/friendships/%s/%s/?%s", userID, mode, params.Encode())
}

// UnfollowPath is the path for destroying the friendship with a user.
func UnfollowPath(userID string) string {
	return fmt.Sprintf("/api/v1/friendships/destroy/%s/", userID)
}

// CurrentUserPath is the path of the session identity endpoint.
const CurrentUserPath = "/api/v1/accounts/current_user/"
