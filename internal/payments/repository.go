package payments

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists PIX charges on Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps the shared database handle.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("payments: db required")
	}
	return &Repository{db: db}
}

const chargeColumns = `id, lead_id, COALESCE(appointment_id, ''), txid, amount_cents, description, qr_code, status, expires_at, paid_at, created_at, updated_at`

// Insert persists a freshly created charge.
func (r *Repository) Insert(ctx context.Context, c *Charge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pix_charges (id, lead_id, appointment_id, txid, amount_cents, description, qr_code, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $10)`,
		c.ID, c.LeadID, c.AppointmentID, c.TxID, c.AmountCents, c.Description,
		c.QRCode, c.Status, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("payments: charge insert failed: %w", err)
	}
	return nil
}

// GetByTxID loads a charge by the PSP transaction id.
func (r *Repository) GetByTxID(ctx context.Context, txid string) (*Charge, error) {
	return r.get(ctx, `SELECT `+chargeColumns+` FROM pix_charges WHERE txid = $1`, txid)
}

// GetByID loads a charge by our identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (*Charge, error) {
	return r.get(ctx, `SELECT `+chargeColumns+` FROM pix_charges WHERE id = $1`, id)
}

func (r *Repository) get(ctx context.Context, query string, arg any) (*Charge, error) {
	var c Charge
	var paidAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.LeadID, &c.AppointmentID, &c.TxID, &c.AmountCents, &c.Description,
		&c.QRCode, &c.Status, &c.ExpiresAt, &paidAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrChargeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payments: charge load failed: %w", err)
	}
	if paidAt.Valid {
		c.PaidAt = &paidAt.Time
	}
	return &c, nil
}

// ListByLead returns a lead's charges, newest first.
func (r *Repository) ListByLead(ctx context.Context, leadID string) ([]Charge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+chargeColumns+` FROM pix_charges
		WHERE lead_id = $1 ORDER BY created_at DESC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("payments: charge list failed: %w", err)
	}
	defer rows.Close()

	var out []Charge
	for rows.Next() {
		var c Charge
		var paidAt sql.NullTime
		if err := rows.Scan(
			&c.ID, &c.LeadID, &c.AppointmentID, &c.TxID, &c.AmountCents, &c.Description,
			&c.QRCode, &c.Status, &c.ExpiresAt, &paidAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("payments: charge scan failed: %w", err)
		}
		if paidAt.Valid {
			c.PaidAt = &paidAt.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkPaid confirms a pending charge. Replayed webhooks are a no-op once the
// charge left pending.
func (r *Repository) MarkPaid(ctx context.Context, txid string, paidAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pix_charges SET status = $2, paid_at = $3, updated_at = $3
		WHERE txid = $1 AND status = $4`,
		txid, StatusConfirmed, paidAt, StatusPending)
	if err != nil {
		return fmt.Errorf("payments: mark paid failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("payments: mark paid result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish replay from unknown txid.
	if _, err := r.GetByTxID(ctx, txid); err != nil {
		return err
	}
	return nil
}

// ExpireDue flips pending charges whose window has closed.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pix_charges SET status = $2, updated_at = $3
		WHERE status = $1 AND expires_at <= $3`,
		StatusPending, StatusExpired, now)
	if err != nil {
		return 0, fmt.Errorf("payments: expire sweep failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("payments: expire sweep result: %w", err)
	}
	return affected, nil
}
