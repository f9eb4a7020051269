package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository uses. Tests substitute
// pgxmock through it.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

var _ Repository = (*PostgresRepository)(nil)

const leadColumns = `id, phone, contact_name, status, qualification_data, opted_out, last_inbound_at, created_at, updated_at`

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO leads (id, phone, contact_name, status, qualification_data)
		VALUES ($1, $2, $3, $4, '{}'::jsonb)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		req.Phone,
		req.ContactName,
		StatusNew,
	).Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return &Lead{
		ID:          id.String(),
		Phone:       req.Phone,
		ContactName: req.ContactName,
		Status:      StatusNew,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// GetByID fetches one lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	return scanLead(r.pool.QueryRow(ctx, query, id))
}

// GetByPhone fetches the lead owning a WhatsApp number.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone = $1`
	return scanLead(r.pool.QueryRow(ctx, query, phone))
}

// GetOrCreateByPhone is the webhook entrypoint: every inbound message maps to
// exactly one lead row.
func (r *PostgresRepository) GetOrCreateByPhone(ctx context.Context, phone, contactName string) (*Lead, error) {
	lead, err := r.GetByPhone(ctx, phone)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, ErrLeadNotFound) {
		return nil, err
	}
	lead, err = r.Create(ctx, &CreateLeadRequest{Phone: phone, ContactName: contactName})
	if err != nil {
		// Lost the insert race to a concurrent webhook delivery.
		if existing, getErr := r.GetByPhone(ctx, phone); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return lead, nil
}

// ApplyQualificationUpdate merges engine-produced field paths into the JSONB
// qualification document. Only "qualificationData."-prefixed keys are
// accepted; anything else indicates a programming error upstream.
func (r *PostgresRepository) ApplyQualificationUpdate(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	patch := make(map[string]any, len(fields))
	for path, value := range fields {
		key, ok := strings.CutPrefix(path, "qualificationData.")
		if !ok || key == "" || strings.Contains(key, ".") {
			return fmt.Errorf("leads: unsupported update path %q", path)
		}
		patch[key] = value
	}

	doc, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("leads: encode qualification patch: %w", err)
	}

	query := `
		UPDATE leads
		SET qualification_data = qualification_data || $2::jsonb, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, doc)
	if err != nil {
		return fmt.Errorf("leads: qualification update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// TouchInbound records the timestamp of the latest inbound message.
func (r *PostgresRepository) TouchInbound(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE leads SET last_inbound_at = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("leads: touch inbound failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// SetStatus moves the lead along the funnel.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status) error {
	query := `UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("leads: status update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// SetOptOut flips the messaging opt-out flag.
func (r *PostgresRepository) SetOptOut(ctx context.Context, id string, optedOut bool) error {
	query := `UPDATE leads SET opted_out = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, optedOut)
	if err != nil {
		return fmt.Errorf("leads: opt-out update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// ListGhostCandidates returns non-booked, non-opted-out leads whose last
// inbound message predates the cutoff. The ghost worker applies the scoring
// rules; the query only narrows the scan.
func (r *PostgresRepository) ListGhostCandidates(ctx context.Context, silentSince time.Time, limit int) ([]*Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE opted_out = false
		  AND status NOT IN ($1, $2)
		  AND last_inbound_at IS NOT NULL
		  AND last_inbound_at < $3
		ORDER BY last_inbound_at ASC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, StatusBooked, StatusLost, silentSince, limit)
	if err != nil {
		return nil, fmt.Errorf("leads: ghost candidate query failed: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: ghost candidate scan failed: %w", err)
	}
	return out, nil
}

// CountStatusBetween tallies leads created inside [from, to) by status. Used
// by the ads report to line acquisition up against spend.
func (r *PostgresRepository) CountStatusBetween(ctx context.Context, from, to time.Time) (map[Status]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM leads
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("leads: status count query failed: %w", err)
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("leads: status count scan failed: %w", err)
		}
		out[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: status count rows: %w", err)
	}
	return out, nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		lead          Lead
		qualification []byte
		lastInbound   *time.Time
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Phone,
		&lead.ContactName,
		&lead.Status,
		&qualification,
		&lead.OptedOut,
		&lastInbound,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	if len(qualification) > 0 {
		if err := json.Unmarshal(qualification, &lead.Qualification); err != nil {
			return nil, fmt.Errorf("leads: decode qualification data: %w", err)
		}
	}
	if lastInbound != nil {
		lead.LastInboundAt = *lastInbound
	}
	return &lead, nil
}
