// Package auditlog appends the immutable API activity trail.
package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/potipress/insideout/internal/app/domain/audit"
	"github.com/potipress/insideout/internal/app/storage"
	"github.com/potipress/insideout/pkg/logger"
)

const writeTimeout = 5 * time.Second

// Recorder writes one record per terminal API outcome. Failures are logged
// and swallowed so a broken audit store never alters a response.
type Recorder struct {
	store storage.AuditStore
	log   *logger.Logger
}

// New constructs an audit recorder.
func New(store storage.AuditStore, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewDefault("audit")
	}
	return &Recorder{store: store, log: log}
}

// Record appends one audit record. Fire and forget: the write runs on a
// detached context so it survives the request being canceled, and every
// error is absorbed.
func (r *Recorder) Record(userID, method, endpoint string, statusCode int) {
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	rec := audit.Record{
		ID:         uuid.NewString(),
		UserID:     userID,
		HTTPMethod: method,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.store.AppendAudit(ctx, rec); err != nil {
		r.log.WithError(err).WithFields(map[string]interface{}{
			"endpoint": endpoint,
			"status":   statusCode,
		}).Warn("audit write failed")
	}
}
