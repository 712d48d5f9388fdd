package sqlite

import (
	"context"
	"encoding/json"

	"github.com/stridefit/stride/internal/domain"
)

// ─── Streak State Repository ────────────────────────────────────────────────

// LoadStreakState returns the stored state or domain.ErrNotFound.
func (d *DB) LoadStreakState(ctx context.Context, userID string) (domain.StreakState, error) {
	var (
		st       domain.StreakState
		revision int64
		body     string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT revision, state FROM streak_states WHERE user_id = ?`, userID,
	).Scan(&revision, &body)
	if err != nil {
		return st, loadErr("load streak", err)
	}
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		return st, domain.NewStorageError("decode streak", err)
	}
	st.Revision = revision
	return st, nil
}

// SaveStreakState inserts (revision 0) or updates the row whose revision
// still equals st.Revision, storing st.Revision+1.
func (d *DB) SaveStreakState(ctx context.Context, userID string, st domain.StreakState) error {
	expected := st.Revision
	st.Revision = expected + 1
	body, err := json.Marshal(st)
	if err != nil {
		return domain.NewStorageError("encode streak", err)
	}

	if expected == 0 {
		res, err := d.db.ExecContext(ctx,
			`INSERT INTO streak_states (user_id, revision, current_streak, longest_streak, state, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO NOTHING`,
			userID, st.Revision, st.CurrentStreak, st.LongestStreak, string(body), st.UpdatedAt.Unix(),
		)
		return casResult("insert streak", res, err)
	}

	res, err := d.db.ExecContext(ctx,
		`UPDATE streak_states
		 SET revision = ?, current_streak = ?, longest_streak = ?, state = ?, updated_at = ?
		 WHERE user_id = ? AND revision = ?`,
		st.Revision, st.CurrentStreak, st.LongestStreak, string(body), st.UpdatedAt.Unix(),
		userID, expected,
	)
	return casResult("update streak", res, err)
}
