package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"igcurator/pkg/config"
	"igcurator/pkg/errors"
	"igcurator/pkg/logger"
	"igcurator/pkg/ratelimit"
	"igcurator/pkg/retry"
)

// Client is an authenticated Instagram API session. It impersonates the
// logged-in browser session using its cookies; it owns no concurrency of its
// own and is exclusively held by the active automation run.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// SessionCredentials is the cookie identity of a logged-in session.
type SessionCredentials struct {
	SessionID string
	CSRFToken string
	DSUserID  string
	UserAgent string
}

// CredentialsFromConfig extracts the session identity from configuration.
func CredentialsFromConfig(cfg *config.InstagramConfig) SessionCredentials {
	return SessionCredentials{
		SessionID: cfg.SessionID,
		CSRFToken: cfg.CSRFToken,
		DSUserID:  cfg.DSUserID,
		UserAgent: cfg.UserAgent,
	}
}

// NewClient creates an authenticated API client.
func NewClient(creds SessionCredentials, timeout time.Duration, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	headers := map[string]string{
		"Accept":           "*/*",
		"Accept-Language":  "en-US,en;q=0.9",
		"x-ig-app-id":      AppID,
		"x-asbd-id":        "129477",
		"x-requested-with": "XMLHttpRequest",
		"Referer":          BaseURL + "/",
	}

	var cookies []string
	if creds.SessionID != "" {
		cookies = append(cookies, "sessionid="+creds.SessionID)
	}
	if creds.CSRFToken != "" {
		cookies = append(cookies, "csrftoken="+creds.CSRFToken)
		headers["x-csrftoken"] = creds.CSRFToken
	}
	if creds.DSUserID != "" {
		cookies = append(cookies, "ds_user_id="+creds.DSUserID)
	}
	if len(cookies) > 0 {
		headers["Cookie"] = strings.Join(cookies, "; ")
	}
	if creds.UserAgent != "" {
		headers["User-Agent"] = creds.UserAgent
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		baseURL:    BaseURL,
		limiter:    limiter,
		logger:     log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetBaseURL overrides the API origin. Used by tests to point the session at
// a mock server.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// Close releases the session's idle connections. The session must not be
// used after Close; an in-flight request fails fast when the transport is
// torn down underneath it.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// do performs an HTTP request with the configured headers, honoring the
// proactive request budget first.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req = req.WithContext(ctx)
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.New(errors.ErrorTypeCancelled, 0, "request cancelled: %v", ctx.Err())
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.New(errors.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response into target.
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.decodeJSON(resp, target)
}

// PostFormJSON performs a POST with form values and decodes the JSON
// response into target.
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, target interface{}) error {
	req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.decodeJSON(resp, target)
}

// decodeJSON validates the response status and parses the body. Payloads
// from the API are untrusted; anything that fails to decode is surfaced as a
// structured parsing error rather than propagated as-is.
func (c *Client) decodeJSON(resp *http.Response, target interface{}) error {
	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          resp.Request.URL.String(),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errors.New(errors.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus maps HTTP status codes onto the error taxonomy.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.New(errors.ErrorTypeAuth, resp.StatusCode, "session is no longer valid")
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrorTypeNotFound, resp.StatusCode, "resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.New(errors.ErrorTypeRateLimit, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		return errors.New(errors.ErrorTypeServerError, resp.StatusCode, "server error")
	default:
		return errors.New(errors.ErrorTypeUnknown, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}
}

// FetchFriendships fetches one page of a relationship list. maxID is the
// continuation cursor from the previous page, empty for the first page.
func (c *Client) FetchFriendships(ctx context.Context, userID string, mode ListMode, count int, maxID string) (*FriendshipsPage, error) {
	if !mode.Valid() {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "invalid list mode %q", mode)
	}

	var page FriendshipsPage
	if err := c.GetJSON(ctx, c.baseURL+FriendshipsPath(userID, mode, count, maxID), &page); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchProfile fetches the public profile for a username.
func (c *Client) FetchProfile(ctx context.Context, username string) (*ProfileResponse, error) {
	var response ProfileResponse
	if err := c.GetJSON(ctx, c.baseURL+ProfilePath(username), &response); err != nil {
		return nil, err
	}

	if response.RequiresToLogin {
		c.logger.WarnWithFields("authentication required for profile", map[string]interface{}{
			"username": username,
		})
		return nil, errors.New(errors.ErrorTypeAuth, http.StatusUnauthorized,
			"Instagram requires authentication to view this profile")
	}

	return &response, nil
}

// CurrentUser probes the identity of the session. Succeeds only when the
// stored cookies still belong to a logged-in account.
func (c *Client) CurrentUser(ctx context.Context) (*CurrentUser, error) {
	var response CurrentUserResponse
	if err := c.GetJSON(ctx, c.baseURL+CurrentUserPath, &response); err != nil {
		return nil, err
	}
	if response.User.Username == "" {
		return nil, errors.New(errors.ErrorTypeAuth, 0, "session has no identity")
	}
	return &response.User, nil
}

// AwaitLogin polls the identity endpoint until the session authenticates or
// the bounded timeout elapses. Timing out is not fatal: the caller proceeds
// and lets the first real API call surface the auth failure.
func (c *Client) AwaitLogin(ctx context.Context, timeout time.Duration) (*CurrentUser, error) {
	deadline := time.Now().Add(timeout)

	for {
		user, err := c.CurrentUser(ctx)
		if err == nil {
			c.logger.InfoWithFields("login detected", map[string]interface{}{
				"username": user.Username,
			})
			return user, nil
		}
		if errors.IsCancelled(err) {
			return nil, err
		}

		if time.Now().After(deadline) {
			c.logger.Warn("login wait timed out, proceeding anyway")
			return nil, nil
		}

		if err := retry.WaitBetween(ctx, 3*time.Second, 6*time.Second); err != nil {
			return nil, errors.New(errors.ErrorTypeCancelled, 0, "login wait cancelled: %v", err)
		}
	}
}

// Unfollow destroys the friendship with the given user id.
func (c *Client) Unfollow(ctx context.Context, userID string) error {
	form := url.Values{}
	form.Set("user_id", userID)

	var response UnfollowResponse
	if err := c.PostFormJSON(ctx, c.baseURL+UnfollowPath(userID), form, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return errors.New(errors.ErrorTypeUnknown, 0, "unfollow returned status %q", response.Status)
	}
	if response.FriendshipStatus.Following {
		return errors.New(errors.ErrorTypeUnknown, 0, "unfollow did not take effect")
	}

	c.logger.DebugWithFields("unfollowed user", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}

// LookupUser resolves a username to its numeric user id.
func (c *Client) LookupUser(ctx context.Context, username string) (*ProfileUser, error) {
	response, err := c.FetchProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	if response.Data.User.ID == "" {
		return nil, errors.New(errors.ErrorTypeNotFound, 0, "no user id for %q", username)
	}
	user := response.Data.User
	return &user, nil
}

// String renders the client's identity for logs, without secrets.
func (c *Client) String() string {
	return fmt.Sprintf("instagram.Client(authenticated=%t)", strings.Contains(c.headers["Cookie"], "sessionid="))
}
