// Package credentials stores per-organization provider API keys, letting
// executions run on the caller's own provider accounts.
package credentials

import (
	"context"

	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/sqlinline"
)

// Store reads and writes organization-scoped provider tokens.
type Store interface {
	// Token returns the stored key for (organization, provider), or "" when
	// none is registered.
	Token(ctx context.Context, organizationID, provider string) (string, error)
	SaveToken(ctx context.Context, organizationID, provider, token string, props map[string]any) error
}

// PostgresStore backs Store with the integration_tokens table.
type PostgresStore struct {
	sql infra.SQLExecutor
}

// NewPostgresStore builds a store over the shared executor.
func NewPostgresStore(sql infra.SQLExecutor) *PostgresStore {
	return &PostgresStore{sql: sql}
}

// Token looks up one credential. A missing row is not an error.
func (s *PostgresStore) Token(ctx context.Context, organizationID, provider string) (string, error) {
	var token string
	err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, organizationID, provider).Scan(&token)
	if err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// SaveToken registers or replaces a credential.
func (s *PostgresStore) SaveToken(ctx context.Context, organizationID, provider, token string, props map[string]any) error {
	if props == nil {
		props = map[string]any{}
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, organizationID, provider, token, props)
	return err
}

var _ Store = (*PostgresStore)(nil)
