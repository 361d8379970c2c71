package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/gengine/core/pkg/errors"
)

// pqUniqueViolation is the SQLSTATE PostgreSQL reports for a unique-constraint
// violation (23505). InsertLevel relies on this to translate a race between two
// concurrent Achievement.evaluate calls into an *errors.EngineError Conflict, so
// level awarding stays idempotent across workers.
const pqUniqueViolation = "23505"

// PostgresAchievementUserRepository implements AchievementUserRepository using
// PostgreSQL. The `(user_id, achievement_id, level)` primary key is what makes
// InsertLevel's duplicate-key detection meaningful: it is the durable uniqueness
// constraint concurrent evaluators rely on.
type PostgresAchievementUserRepository struct {
	db *sql.DB
}

// NewPostgresAchievementUserRepository creates a new PostgreSQL-backed repository.
func NewPostgresAchievementUserRepository(db *sql.DB) *PostgresAchievementUserRepository {
	return &PostgresAchievementUserRepository{db: db}
}

// GetMaxLevel returns the highest awarded level for (userID, achievementID), or 0.
func (r *PostgresAchievementUserRepository) GetMaxLevel(ctx context.Context, userID, achievementID string) (int, error) {
	var level sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(level) FROM achievements_users
		WHERE user_id = $1 AND achievement_id = $2
	`, userID, achievementID).Scan(&level)
	if err != nil {
		return 0, errors.NewStoreError("get max achievement level", err)
	}
	if !level.Valid {
		return 0, nil
	}
	return int(level.Int64), nil
}

// GetLevelsAchieved returns level -> awarded-at for every level row of (userID,
// achievementID).
func (r *PostgresAchievementUserRepository) GetLevelsAchieved(ctx context.Context, userID, achievementID string) (map[int]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT level, updated_at FROM achievements_users
		WHERE user_id = $1 AND achievement_id = $2
		ORDER BY level ASC
	`, userID, achievementID)
	if err != nil {
		return nil, errors.NewStoreError("get levels achieved", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[int]time.Time)
	for rows.Next() {
		var level int
		var updatedAt time.Time
		if err := rows.Scan(&level, &updatedAt); err != nil {
			return nil, errors.NewStoreError("scan level row", err)
		}
		result[level] = updatedAt
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate level rows", err)
	}
	return result, nil
}

// InsertLevel inserts a new (userID, achievementID, level) row.
func (r *PostgresAchievementUserRepository) InsertLevel(ctx context.Context, userID, achievementID string, level int, awardedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO achievements_users (user_id, achievement_id, level, updated_at)
		VALUES ($1, $2, $3, $4)
	`, userID, achievementID, level, awardedAt)
	if err != nil {
		return classifyInsertLevelError(userID, achievementID, level, err)
	}
	return nil
}

// classifyInsertLevelError translates the raw driver error from InsertLevel into the
// engine's error taxonomy: a unique-constraint violation means another worker already
// awarded this level, anything else is an opaque store failure.
func classifyInsertLevelError(userID, achievementID string, level int, err error) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
		return errors.NewConflictError(userID, achievementID, level)
	}
	return errors.NewStoreError("insert achievement level", err)
}

// DeleteForUser removes every level row for userID.
func (r *PostgresAchievementUserRepository) DeleteForUser(ctx context.Context, userID string) error {
	return deleteAchievementLevelsForUser(ctx, r.db, userID)
}

// DeleteForUserInTx is DeleteForUser running on an enclosing transaction.
func (r *PostgresAchievementUserRepository) DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error {
	return deleteAchievementLevelsForUser(ctx, tx, userID)
}

func deleteAchievementLevelsForUser(ctx context.Context, ex sqlExecutor, userID string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM achievements_users WHERE user_id = $1`, userID)
	if err != nil {
		return errors.NewStoreError("delete achievement levels for user", err)
	}
	return nil
}
