package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// AuditStore is the append-only audit_log table. The order service writes
// one row per submission attempt.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore on pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends an audit row; detail is stored as JSONB.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, payload); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit rows newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := withListOpts(`SELECT id, event, detail, created_at FROM audit_log`, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanAuditEntry)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.CollectableRow) (domain.AuditEntry, error) {
	var (
		e      domain.AuditEntry
		detail []byte
	)
	if err := row.Scan(&e.ID, &e.Event, &detail, &e.CreatedAt); err != nil {
		return e, fmt.Errorf("scan audit entry: %w", err)
	}
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshal audit detail %d: %w", e.ID, err)
		}
	}
	return e, nil
}

// withListOpts appends the Since filter, newest-first ordering and paging
// to a SELECT with no WHERE clause. Limit defaults to 50.
func withListOpts(query string, opts domain.ListOpts) (string, []any) {
	var args []any
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" WHERE created_at >= $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

var _ domain.AuditStore = (*AuditStore)(nil)
