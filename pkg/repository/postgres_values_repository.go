package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/gengine/core/pkg/errors"
)

// PostgresValuesRepository implements ValuesRepository using PostgreSQL with a single
// atomic upsert-on-conflict statement per increment.
type PostgresValuesRepository struct {
	db *sql.DB
}

// NewPostgresValuesRepository creates a new PostgreSQL-backed values repository.
func NewPostgresValuesRepository(db *sql.DB) *PostgresValuesRepository {
	return &PostgresValuesRepository{db: db}
}

// IncreaseValue upserts (user, variable, bucket_time, key), adding amount to the
// existing value on conflict rather than replacing it.
func (r *PostgresValuesRepository) IncreaseValue(ctx context.Context, userID, variableID string, bucketTime time.Time, key string, amount int64) error {
	query := `
		INSERT INTO values (user_id, variable_id, datetime, key, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, variable_id, datetime, key) DO UPDATE SET
			value = values.value + EXCLUDED.value
	`
	_, err := r.db.ExecContext(ctx, query, userID, variableID, bucketTime, key, amount)
	if err != nil {
		return errors.NewStoreError("increase value", err)
	}
	return nil
}

// BatchIncreaseValues bulk-loads increments via a session-local temp table filled by
// pq.CopyIn, then merges into values with the same upsert-add semantics as
// IncreaseValue.
func (r *PostgresValuesRepository) BatchIncreaseValues(ctx context.Context, increments []ValueIncrement) error {
	if len(increments) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("begin transaction for COPY", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		CREATE TEMP TABLE temp_value_increments (
			user_id VARCHAR(100) NOT NULL,
			variable_id VARCHAR(100) NOT NULL,
			datetime TIMESTAMP NOT NULL,
			key VARCHAR(255) NOT NULL,
			value BIGINT NOT NULL
		) ON COMMIT DROP
	`)
	if err != nil {
		return errors.NewStoreError("create temp table for COPY", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"temp_value_increments",
		"user_id", "variable_id", "datetime", "key", "value",
	))
	if err != nil {
		return errors.NewStoreError("prepare COPY statement", err)
	}
	for _, inc := range increments {
		if _, err = stmt.ExecContext(ctx, inc.UserID, inc.VariableID, inc.BucketTime, inc.Key, inc.Amount); err != nil {
			_ = stmt.Close()
			return errors.NewStoreError("execute COPY row", err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return errors.NewStoreError("flush COPY to temp table", err)
	}
	if err = stmt.Close(); err != nil {
		return errors.NewStoreError("close COPY statement", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO values (user_id, variable_id, datetime, key, value)
		SELECT user_id, variable_id, datetime, key, SUM(value)
		FROM temp_value_increments
		GROUP BY user_id, variable_id, datetime, key
		ON CONFLICT (user_id, variable_id, datetime, key) DO UPDATE SET
			value = values.value + EXCLUDED.value
	`)
	if err != nil {
		return errors.NewStoreError("merge COPY temp table into values", err)
	}

	if err = tx.Commit(); err != nil {
		return errors.NewStoreError("commit COPY merge", err)
	}
	return nil
}

// GetUserValues returns every Value row for userID joined against its variable's name,
// optionally restricted to datetime >= since.
func (r *PostgresValuesRepository) GetUserValues(ctx context.Context, userID string, since *time.Time) ([]ValueRow, error) {
	query := `
		SELECT v.name, vl.datetime, vl.key, vl.value
		FROM values vl
		JOIN variables v ON v.id = vl.variable_id
		WHERE vl.user_id = $1
	`
	args := []any{userID}
	if since != nil {
		query += " AND vl.datetime >= $2"
		args = append(args, *since)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreError("get user values", err)
	}
	defer func() { _ = rows.Close() }()

	var results []ValueRow
	for rows.Next() {
		var row ValueRow
		if err := rows.Scan(&row.VariableName, &row.BucketTime, &row.Key, &row.Value); err != nil {
			return nil, errors.NewStoreError("scan value row", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate value rows", err)
	}
	return results, nil
}

// DeleteForUser removes every Value row for userID.
func (r *PostgresValuesRepository) DeleteForUser(ctx context.Context, userID string) error {
	return deleteValuesForUser(ctx, r.db, userID)
}

// DeleteForUserInTx is DeleteForUser running on an enclosing transaction.
func (r *PostgresValuesRepository) DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error {
	return deleteValuesForUser(ctx, tx, userID)
}

func deleteValuesForUser(ctx context.Context, ex sqlExecutor, userID string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM values WHERE user_id = $1`, userID)
	if err != nil {
		return errors.NewStoreError("delete values for user", err)
	}
	return nil
}
