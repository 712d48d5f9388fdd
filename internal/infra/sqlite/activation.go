package sqlite

import (
	"context"
	"encoding/json"

	"github.com/stridefit/stride/internal/domain"
)

// ─── Activation Profile Repository ──────────────────────────────────────────

// LoadActivationProfile returns the stored profile or domain.ErrNotFound.
func (d *DB) LoadActivationProfile(ctx context.Context, id string) (domain.ActivationProfile, error) {
	var (
		p        domain.ActivationProfile
		revision int64
		body     string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT revision, profile FROM activation_profiles WHERE id = ?`, id,
	).Scan(&revision, &body)
	if err != nil {
		return p, loadErr("load profile", err)
	}
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return p, domain.NewStorageError("decode profile", err)
	}
	p.Revision = revision
	return p, nil
}

// SaveActivationProfile writes p with the same revision check as streaks.
func (d *DB) SaveActivationProfile(ctx context.Context, id string, p domain.ActivationProfile) error {
	expected := p.Revision
	p.Revision = expected + 1
	body, err := json.Marshal(p)
	if err != nil {
		return domain.NewStorageError("encode profile", err)
	}

	if expected == 0 {
		res, err := d.db.ExecContext(ctx,
			`INSERT INTO activation_profiles (id, revision, anonymous, score, activated, profile, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			id, p.Revision, p.Anonymous, p.ActivationScore, p.IsActivated, string(body), p.UpdatedAt.Unix(),
		)
		return casResult("insert profile", res, err)
	}

	res, err := d.db.ExecContext(ctx,
		`UPDATE activation_profiles
		 SET revision = ?, anonymous = ?, score = ?, activated = ?, profile = ?, updated_at = ?
		 WHERE id = ? AND revision = ?`,
		p.Revision, p.Anonymous, p.ActivationScore, p.IsActivated, string(body), p.UpdatedAt.Unix(),
		id, expected,
	)
	return casResult("update profile", res, err)
}

// DeleteActivationProfile removes a profile (used after a session upgrade).
func (d *DB) DeleteActivationProfile(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM activation_profiles WHERE id = ?`, id)
	if err != nil {
		return domain.NewStorageError("delete profile", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
