package store

import (
	"context"

	"cardms/internal/auth"
)

type CapabilityStore struct {
	db DB
}

func NewCapabilityStore(db DB) *CapabilityStore {
	return &CapabilityStore{db: db}
}

func (s *CapabilityStore) Grant(ctx context.Context, tx Execer, userID string, capability auth.Capability, grantedBy *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO capabilities (user_id, capability, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, capability) DO NOTHING
	`, userID, string(capability), grantedBy)
	return err
}

func (s *CapabilityStore) ListForUser(ctx context.Context, userID string) (auth.CapabilitySet, error) {
	var rows []string
	err := s.db.SelectContext(ctx, &rows, `
		SELECT capability FROM capabilities WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	set := make(auth.CapabilitySet, len(rows))
	for _, row := range rows {
		set[auth.Capability(row)] = struct{}{}
	}
	return set, nil
}

// HasAnyAdmin reports whether any admin exists at all; the first registered
// user is bootstrapped as one.
func (s *CapabilityStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM capabilities WHERE capability = $1)
	`, string(auth.CapAdmin))
	return exists, err
}
