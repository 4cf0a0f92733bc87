package instagram

import (
	"encoding/json"

	"igcurator/pkg/errors"
)

// AccountSummary is one entry of a friendships list page.
type AccountSummary struct {
	ID            json.Number `json:"pk"`
	Username      string      `json:"username"`
	FullName      string      `json:"full_name"`
	ProfilePicURL string      `json:"profile_pic_url"`
	IsPrivate     bool        `json:"is_private"`
	IsVerified    bool        `json:"is_verified"`
}

// FriendshipsPage is one page of the followers/following API.
type FriendshipsPage struct {
	Users     []AccountSummary `json:"users"`
	NextMaxID string           `json:"next_max_id"`
	BigList   bool             `json:"big_list"`
	Status    string           `json:"status"`
}

// HasMore reports whether the API advertised a continuation cursor.
func (p *FriendshipsPage) HasMore() bool {
	return p.NextMaxID != ""
}

// Validate checks the decoded page for the fields the pagination loop relies
// on. The API is an untyped boundary; a page that does not carry a usable
// user list is a parse failure, not an empty result.
func (p *FriendshipsPage) Validate() error {
	if p.Status != "" && p.Status != "ok" {
		return errors.New(errors.ErrorTypeParsing, 0, "friendships page status %q", p.Status)
	}
	if p.Users == nil {
		return errors.New(errors.ErrorTypeParsing, 0, "friendships page missing users list")
	}
	return nil
}

// ProfileResponse is the web_profile_info response.
type ProfileResponse struct {
	RequiresToLogin bool        `json:"requires_to_login"`
	Data            ProfileData `json:"data"`
	Status          string      `json:"status"`
}

// ProfileData wraps the user information in the response.
type ProfileData struct {
	User ProfileUser `json:"user"`
}

// ProfileUser is the subset of profile fields the curator records.
type ProfileUser struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	ProfilePicURL  string    `json:"profile_pic_url"`
	EdgeFollowedBy EdgeCount `json:"edge_followed_by"`
	EdgeFollow     EdgeCount `json:"edge_follow"`
}

// EdgeCount carries a relationship count.
type EdgeCount struct {
	Count int `json:"count"`
}

// CurrentUserResponse is the session identity response.
type CurrentUserResponse struct {
	User   CurrentUser `json:"user"`
	Status string      `json:"status"`
}

// CurrentUser identifies the logged-in account.
type CurrentUser struct {
	ID       json.Number `json:"pk"`
	Username string      `json:"username"`
}

// FriendshipStatus is returned by the destroy endpoint.
type FriendshipStatus struct {
	Following bool `json:"following"`
}

// UnfollowResponse is the friendships destroy response.
type UnfollowResponse struct {
	FriendshipStatus FriendshipStatus `json:"friendship_status"`
	Status           string           `json:"status"`
}
