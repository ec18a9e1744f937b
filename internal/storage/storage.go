// Package storage persists generated media so executions surface stable URLs
// instead of provider-hosted or inline payloads.
package storage

import "context"

// Store uploads a media artifact and returns the durable URL it will be
// served from.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
