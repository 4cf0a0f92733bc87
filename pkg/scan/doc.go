// Package scan collects an account's follower or following list by paging
// the friendships API through an authenticated session.
//
// The loop is strictly sequential: each page depends on the continuation
// cursor of the previous one. Rate limits trigger a long, cancellable
// cooldown and a retry of the same page; auth failures end the scan
// immediately. Whatever was collected before a failure is returned to the
// caller, so a mid-scan error degrades to a partial snapshot instead of
// discarding progress.
//
// Between pages the collector sleeps for a randomized interval, with a
// longer rest pause after every Nth request. A fixed request cadence must
// never occur.
package scan
