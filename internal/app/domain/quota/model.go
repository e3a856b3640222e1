// Package quota defines the per-user API usage ledger model.
package quota

// FreeCallLimit is the number of accounted calls a user gets before the
// max_reached flag is raised. Crossing it does not block requests.
const FreeCallLimit = 20

// Record tracks how many accounted API calls a user has made. A record is
// created on the user's first request and its count only ever increases.
type Record struct {
	UserID    string
	CallCount int
}

// MaxReached reports whether a post-increment count is past the free limit.
func MaxReached(count int) bool {
	return count > FreeCallLimit
}
