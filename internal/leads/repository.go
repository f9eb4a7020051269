package leads

import (
	"context"
	"time"
)

// Repository is the persistence contract the conversation service depends on.
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	GetByPhone(ctx context.Context, phone string) (*Lead, error)
	GetOrCreateByPhone(ctx context.Context, phone, contactName string) (*Lead, error)
	ApplyQualificationUpdate(ctx context.Context, id string, fields map[string]any) error
	TouchInbound(ctx context.Context, id string, at time.Time) error
	SetStatus(ctx context.Context, id string, status Status) error
	SetOptOut(ctx context.Context, id string, optedOut bool) error
	ListGhostCandidates(ctx context.Context, silentSince time.Time, limit int) ([]*Lead, error)
}
