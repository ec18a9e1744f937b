// Package usage tracks per-organization consumption for billing rollups.
package usage

import (
	"context"

	"github.com/synthome-dev/synthome/internal/domain"
	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/sqlinline"
)

// Recorder counts completed jobs per organization and media type.
type Recorder interface {
	RecordJob(ctx context.Context, organizationID string, mediaType domain.MediaType) error
}

// PostgresRecorder upserts monthly counters.
type PostgresRecorder struct {
	sql infra.SQLExecutor
}

// NewPostgresRecorder builds a recorder over the shared executor.
func NewPostgresRecorder(sql infra.SQLExecutor) *PostgresRecorder {
	return &PostgresRecorder{sql: sql}
}

// RecordJob increments the counter for the current month.
func (r *PostgresRecorder) RecordJob(ctx context.Context, organizationID string, mediaType domain.MediaType) error {
	_, err := r.sql.Exec(ctx, sqlinline.QIncrementUsage, organizationID, string(mediaType))
	return err
}

// NoopRecorder discards usage, for deployments without billing.
type NoopRecorder struct{}

// RecordJob does nothing.
func (NoopRecorder) RecordJob(context.Context, string, domain.MediaType) error { return nil }

var (
	_ Recorder = (*PostgresRecorder)(nil)
	_ Recorder = NoopRecorder{}
)
