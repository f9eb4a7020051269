package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChargeStore struct {
	byTxID  map[string]*Charge
	expired int64
}

func newFakeChargeStore() *fakeChargeStore {
	return &fakeChargeStore{byTxID: map[string]*Charge{}}
}

func (f *fakeChargeStore) Insert(_ context.Context, c *Charge) error {
	f.byTxID[c.TxID] = c
	return nil
}

func (f *fakeChargeStore) GetByID(_ context.Context, id string) (*Charge, error) {
	for _, c := range f.byTxID {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrChargeNotFound
}

func (f *fakeChargeStore) GetByTxID(_ context.Context, txid string) (*Charge, error) {
	if c, ok := f.byTxID[txid]; ok {
		return c, nil
	}
	return nil, ErrChargeNotFound
}

func (f *fakeChargeStore) ListByLead(_ context.Context, leadID string) ([]Charge, error) {
	var out []Charge
	for _, c := range f.byTxID {
		if c.LeadID == leadID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeChargeStore) MarkPaid(_ context.Context, txid string, paidAt time.Time) error {
	c, ok := f.byTxID[txid]
	if !ok {
		return ErrChargeNotFound
	}
	if c.Status == StatusPending {
		c.Status = StatusConfirmed
		c.PaidAt = &paidAt
	}
	return nil
}

func (f *fakeChargeStore) ExpireDue(context.Context, time.Time) (int64, error) {
	return f.expired, nil
}

func TestService_CreateCharge(t *testing.T) {
	store := newFakeChargeStore()
	svc := NewService(store, NewFakeProvider(nil), nil)

	charge, err := svc.CreateCharge(context.Background(), &CreateChargeRequest{
		LeadID:      "lead-1",
		AmountCents: 18000,
		Description: "Avaliação fonoaudiológica",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, charge.Status)
	assert.NotEmpty(t, charge.TxID)
	assert.NotContains(t, charge.TxID, "-")
	assert.LessOrEqual(t, len(charge.TxID), 35)
	assert.NotEmpty(t, charge.QRCode)
	assert.Contains(t, store.byTxID, charge.TxID)
}

func TestService_CreateCharge_Validation(t *testing.T) {
	svc := NewService(newFakeChargeStore(), NewFakeProvider(nil), nil)

	_, err := svc.CreateCharge(context.Background(), &CreateChargeRequest{AmountCents: 100})
	assert.ErrorIs(t, err, ErrMissingLead)

	_, err = svc.CreateCharge(context.Background(), &CreateChargeRequest{LeadID: "lead-1"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestService_ConfirmPayment_Idempotent(t *testing.T) {
	store := newFakeChargeStore()
	svc := NewService(store, NewFakeProvider(nil), nil)

	charge, err := svc.CreateCharge(context.Background(), &CreateChargeRequest{
		LeadID:      "lead-1",
		AmountCents: 18000,
	})
	require.NoError(t, err)

	paidAt := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	require.NoError(t, svc.ConfirmPayment(context.Background(), charge.TxID, paidAt))
	require.NoError(t, svc.ConfirmPayment(context.Background(), charge.TxID, paidAt.Add(time.Hour)))

	stored := store.byTxID[charge.TxID]
	assert.Equal(t, StatusConfirmed, stored.Status)
	require.NotNil(t, stored.PaidAt)
	assert.Equal(t, paidAt, *stored.PaidAt)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "180.00", formatAmount(18000))
	assert.Equal(t, "0.50", formatAmount(50))
	assert.Equal(t, "1.05", formatAmount(105))
}
