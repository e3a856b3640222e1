// Package audit defines the append-only API activity record.
package audit

import "time"

// Record captures one externally observable API call. Records are append
// only; there is no update or delete.
type Record struct {
	ID         string
	UserID     string // empty when the request carried no user id
	HTTPMethod string
	Endpoint   string
	StatusCode int
	CreatedAt  time.Time
}
