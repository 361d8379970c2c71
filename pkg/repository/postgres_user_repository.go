package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/gengine/core/pkg/domain"
	"github.com/gengine/core/pkg/errors"
)

// PostgresUserRepository implements UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	db *sql.DB
}

// NewPostgresUserRepository creates a new PostgreSQL-backed user repository.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Get returns the user, or nil if no such user exists.
func (r *PostgresUserRepository) Get(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	var lat, lng sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, timezone, lat, lng, country, region, city
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Timezone, &lat, &lng, &user.Country, &user.Region, &user.City)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("get user", err)
	}
	if lat.Valid {
		user.Lat = &lat.Float64
	}
	if lng.Valid {
		user.Lng = &lng.Float64
	}
	return &user, nil
}

// Upsert creates or updates a user's profile fields.
func (r *PostgresUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	return upsertUser(ctx, r.db, user)
}

// UpsertInTx is Upsert running on an enclosing transaction.
func (r *PostgresUserRepository) UpsertInTx(ctx context.Context, tx *sql.Tx, user *domain.User) error {
	return upsertUser(ctx, tx, user)
}

func upsertUser(ctx context.Context, ex sqlExecutor, user *domain.User) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO users (id, timezone, lat, lng, country, region, city)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			country = EXCLUDED.country,
			region = EXCLUDED.region,
			city = EXCLUDED.city
	`, user.ID, user.Timezone, user.Lat, user.Lng, user.Country, user.Region, user.City)
	if err != nil {
		return errors.NewStoreError("upsert user", err)
	}
	return nil
}

// Delete removes the user row.
func (r *PostgresUserRepository) Delete(ctx context.Context, userID string) error {
	return deleteUser(ctx, r.db, userID)
}

// DeleteInTx is Delete running on an enclosing transaction.
func (r *PostgresUserRepository) DeleteInTx(ctx context.Context, tx *sql.Tx, userID string) error {
	return deleteUser(ctx, tx, userID)
}

func deleteUser(ctx context.Context, ex sqlExecutor, userID string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return errors.NewStoreError("delete user", err)
	}
	return nil
}

// PostgresFriendRepository implements FriendRepository using PostgreSQL.
type PostgresFriendRepository struct {
	db *sql.DB
}

// NewPostgresFriendRepository creates a new PostgreSQL-backed friend repository.
func NewPostgresFriendRepository(db *sql.DB) *PostgresFriendRepository {
	return &PostgresFriendRepository{db: db}
}

// GetFriends returns the user IDs userID has a from->to edge to.
func (r *PostgresFriendRepository) GetFriends(ctx context.Context, userID string) ([]string, error) {
	return r.queryIDs(ctx, `SELECT to_user_id FROM friends WHERE from_user_id = $1`, userID)
}

// GetReverseFriends returns the user IDs that list userID as a friend.
func (r *PostgresFriendRepository) GetReverseFriends(ctx context.Context, userID string) ([]string, error) {
	return r.queryIDs(ctx, `SELECT from_user_id FROM friends WHERE to_user_id = $1`, userID)
}

func (r *PostgresFriendRepository) queryIDs(ctx context.Context, query, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.NewStoreError("query friend edges", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewStoreError("scan friend edge", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate friend edges", err)
	}
	return ids, nil
}

// SetFriends reconciles userID's friend edges to exactly friendIDs via a diff-based
// insert/delete so unchanged edges are left untouched. Standalone calls get their own
// transaction; callers already holding one use SetFriendsInTx instead.
func (r *PostgresFriendRepository) SetFriends(ctx context.Context, userID string, friendIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("begin set friends transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := reconcileFriendEdges(ctx, tx, userID, friendIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("commit set friends transaction", err)
	}
	return nil
}

// SetFriendsInTx is SetFriends running on an enclosing transaction.
func (r *PostgresFriendRepository) SetFriendsInTx(ctx context.Context, tx *sql.Tx, userID string, friendIDs []string) error {
	return reconcileFriendEdges(ctx, tx, userID, friendIDs)
}

func reconcileFriendEdges(ctx context.Context, ex sqlExecutor, userID string, friendIDs []string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM friends WHERE from_user_id = $1 AND to_user_id != ALL($2)`, userID, pq.Array(friendIDs)); err != nil {
		return errors.NewStoreError("delete stale friend edges", err)
	}

	for _, friendID := range friendIDs {
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO friends (from_user_id, to_user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, friendID); err != nil {
			return errors.NewStoreError("insert friend edge", err)
		}
	}
	return nil
}

// DeleteForUser removes every edge naming userID as either endpoint.
func (r *PostgresFriendRepository) DeleteForUser(ctx context.Context, userID string) error {
	return deleteFriendEdgesForUser(ctx, r.db, userID)
}

// DeleteForUserInTx is DeleteForUser running on an enclosing transaction.
func (r *PostgresFriendRepository) DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error {
	return deleteFriendEdgesForUser(ctx, tx, userID)
}

func deleteFriendEdgesForUser(ctx context.Context, ex sqlExecutor, userID string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM friends WHERE from_user_id = $1 OR to_user_id = $1`, userID)
	if err != nil {
		return errors.NewStoreError("delete friend edges for user", err)
	}
	return nil
}

// PostgresGroupRepository implements GroupRepository using PostgreSQL.
type PostgresGroupRepository struct {
	db *sql.DB
}

// NewPostgresGroupRepository creates a new PostgreSQL-backed group repository.
func NewPostgresGroupRepository(db *sql.DB) *PostgresGroupRepository {
	return &PostgresGroupRepository{db: db}
}

// GetGroups returns the group IDs userID belongs to.
func (r *PostgresGroupRepository) GetGroups(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT group_id FROM group_memberships WHERE user_id = $1`, userID)
	if err != nil {
		return nil, errors.NewStoreError("get groups", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewStoreError("scan group membership", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate group memberships", err)
	}
	return ids, nil
}

// SetGroups reconciles userID's group memberships to exactly groupIDs via a
// diff-based insert/delete. Standalone calls get their own transaction; callers
// already holding one use SetGroupsInTx instead.
func (r *PostgresGroupRepository) SetGroups(ctx context.Context, userID string, groupIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("begin set groups transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := reconcileGroupMemberships(ctx, tx, userID, groupIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("commit set groups transaction", err)
	}
	return nil
}

// SetGroupsInTx is SetGroups running on an enclosing transaction.
func (r *PostgresGroupRepository) SetGroupsInTx(ctx context.Context, tx *sql.Tx, userID string, groupIDs []string) error {
	return reconcileGroupMemberships(ctx, tx, userID, groupIDs)
}

func reconcileGroupMemberships(ctx context.Context, ex sqlExecutor, userID string, groupIDs []string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM group_memberships WHERE user_id = $1 AND group_id != ALL($2)`, userID, pq.Array(groupIDs)); err != nil {
		return errors.NewStoreError("delete stale group memberships", err)
	}

	for _, groupID := range groupIDs {
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO group_memberships (user_id, group_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, groupID); err != nil {
			return errors.NewStoreError("insert group membership", err)
		}
	}
	return nil
}

// DeleteForUser removes every membership row for userID.
func (r *PostgresGroupRepository) DeleteForUser(ctx context.Context, userID string) error {
	return deleteGroupMembershipsForUser(ctx, r.db, userID)
}

// DeleteForUserInTx is DeleteForUser running on an enclosing transaction.
func (r *PostgresGroupRepository) DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error {
	return deleteGroupMembershipsForUser(ctx, tx, userID)
}

func deleteGroupMembershipsForUser(ctx context.Context, ex sqlExecutor, userID string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM group_memberships WHERE user_id = $1`, userID)
	if err != nil {
		return errors.NewStoreError("delete group memberships for user", err)
	}
	return nil
}
