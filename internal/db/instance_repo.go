package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations (class 23, integrity constraint violation).
const pgUniqueViolation = "23505"

// InstanceRepository provides data access for the scheduled_instances table.
//
// The single-live-instance guarantee rests on a partial unique index:
//
//	CREATE UNIQUE INDEX uq_instance_live_per_rule
//	    ON scheduled_instances (rule_id) WHERE status = 'scheduled';
//
// Create surfaces a violation of that index as a typed invariant error, and
// every status transition is conditional on status = 'scheduled' so a row can
// leave the live state exactly once.
type InstanceRepository struct {
	db DBTX
}

// NewInstanceRepository creates an InstanceRepository backed by the given
// database connection (pool or transaction).
func NewInstanceRepository(db DBTX) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = `id, rule_id, owner_id, rule_version,
	scheduled_for_utc, status, attempt_count, last_error, sent_at, created_at`

func scanInstance(row pgx.Row) (*types.ScheduledInstance, error) {
	var inst types.ScheduledInstance
	var lastError *string

	err := row.Scan(
		&inst.ID,
		&inst.RuleID,
		&inst.OwnerID,
		&inst.RuleVersion,
		&inst.ScheduledForUTC,
		&inst.Status,
		&inst.AttemptCount,
		&lastError,
		&inst.SentAt,
		&inst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastError != nil {
		inst.LastError = *lastError
	}
	return &inst, nil
}

// Create inserts a new scheduled instance. A second live instance for the
// same rule violates the partial unique index and is reported as
// ErrCodeInvariantDuplicateLive.
func (r *InstanceRepository) Create(ctx context.Context, inst *types.ScheduledInstance) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO scheduled_instances (
			id, rule_id, owner_id, rule_version,
			scheduled_for_utc, status, attempt_count, last_error, sent_at,
			created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			COALESCE($10, NOW())
		)`,
		inst.ID,
		inst.RuleID,
		inst.OwnerID,
		inst.RuleVersion,
		inst.ScheduledForUTC,
		inst.Status,
		inst.AttemptCount,
		nilIfEmpty(inst.LastError),
		inst.SentAt,
		nilIfZeroTime(inst.CreatedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return types.NewAppError(types.ErrCodeInvariantDuplicateLive,
				"rule already has a scheduled instance", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create scheduled instance", err)
	}
	return nil
}

// GetByID retrieves an instance by ID, scoped to the owner.
func (r *InstanceRepository) GetByID(ctx context.Context, ownerID, id string) (*types.ScheduledInstance, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+instanceColumns+`
		 FROM scheduled_instances
		 WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundInstance, "scheduled instance not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve scheduled instance", err)
	}
	return inst, nil
}

// GetScheduledByRule retrieves the single live instance for a rule, if any.
// Returns ErrCodeNotFoundInstance when the rule has no live instance.
func (r *InstanceRepository) GetScheduledByRule(ctx context.Context, ruleID string) (*types.ScheduledInstance, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+instanceColumns+`
		 FROM scheduled_instances
		 WHERE rule_id = $1 AND status = 'scheduled'`,
		ruleID,
	)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundInstance, "rule has no scheduled instance", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve live instance", err)
	}
	return inst, nil
}

// ListByRule retrieves the dispatch history for a rule, newest first.
func (r *InstanceRepository) ListByRule(ctx context.Context, ownerID, ruleID string, limit int) ([]*types.ScheduledInstance, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+instanceColumns+`
		 FROM scheduled_instances
		 WHERE rule_id = $1 AND owner_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		ruleID, ownerID, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list instances", err)
	}
	defer rows.Close()

	var results []*types.ScheduledInstance
	for rows.Next() {
		inst, scanErr := scanInstance(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan instance row", scanErr)
		}
		results = append(results, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating instance rows", err)
	}
	return results, nil
}

// ListDue retrieves live instances whose scheduled time is at or before now,
// oldest first, capped at limit. The dispatcher processes these in order so a
// backlog drains deterministically.
func (r *InstanceRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledInstance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+instanceColumns+`
		 FROM scheduled_instances
		 WHERE status = 'scheduled' AND scheduled_for_utc <= $1
		 ORDER BY scheduled_for_utc ASC
		 LIMIT $2`,
		now.UTC(), limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due instances", err)
	}
	defer rows.Close()

	var results []*types.ScheduledInstance
	for rows.Next() {
		inst, scanErr := scanInstance(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan due instance row", scanErr)
		}
		results = append(results, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating due instance rows", err)
	}
	return results, nil
}

// CancelScheduled cancels the live instance of a rule, if one exists.
// Returns the number of rows cancelled (0 or 1 given the partial unique
// index). Cancelling a rule with no live instance is not an error.
func (r *InstanceRepository) CancelScheduled(ctx context.Context, ruleID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_instances SET status = 'cancelled'
		 WHERE rule_id = $1 AND status = 'scheduled'`,
		ruleID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel scheduled instance", err)
	}
	return tag.RowsAffected(), nil
}

// CancelByID cancels a single live instance. Returns false when the instance
// had already left the scheduled state, which callers treat as someone else
// having won the race rather than an error.
func (r *InstanceRepository) CancelByID(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_instances SET status = 'cancelled'
		 WHERE id = $1 AND status = 'scheduled'`,
		id,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel instance", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CancelScheduledByOwner cancels every live instance belonging to an owner.
// Used by the reschedule-all flow before recomputing fresh occurrences.
func (r *InstanceRepository) CancelScheduledByOwner(ctx context.Context, ownerID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_instances SET status = 'cancelled'
		 WHERE owner_id = $1 AND status = 'scheduled'`,
		ownerID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel owner instances", err)
	}
	return tag.RowsAffected(), nil
}

// MarkSent transitions a live instance to sent. The condition on the current
// status means a cancelled or already-completed instance cannot be completed
// again; that case surfaces as ErrCodeConflictInstanceState.
func (r *InstanceRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_instances SET status = 'sent', sent_at = $1
		 WHERE id = $2 AND status = 'scheduled'`,
		sentAt.UTC(), id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark instance sent", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictInstanceState,
			"instance is no longer in the scheduled state", nil)
	}
	return nil
}

// MarkFailed transitions a live instance to failed after retries are
// exhausted, recording the final error.
func (r *InstanceRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_instances SET status = 'failed', last_error = $1
		 WHERE id = $2 AND status = 'scheduled'`,
		lastError, id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark instance failed", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictInstanceState,
			"instance is no longer in the scheduled state", nil)
	}
	return nil
}

// RecordAttempt increments the attempt counter on a live instance and records
// the delivery error, returning the new count. A zero-row update means the
// instance left the live state mid-dispatch.
func (r *InstanceRepository) RecordAttempt(ctx context.Context, id string, lastError string) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx,
		`UPDATE scheduled_instances SET
			attempt_count = attempt_count + 1,
			last_error = $1
		 WHERE id = $2 AND status = 'scheduled'
		 RETURNING attempt_count`,
		lastError, id,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, types.NewAppError(types.ErrCodeConflictInstanceState,
				"instance is no longer in the scheduled state", nil)
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to record dispatch attempt", err)
	}
	return attempts, nil
}

// DeleteTerminalBefore removes terminal instances created before the cutoff.
// Used by the retention sweep; live instances are never touched.
func (r *InstanceRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM scheduled_instances
		 WHERE status IN ('sent', 'failed', 'cancelled') AND created_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune terminal instances", err)
	}
	return tag.RowsAffected(), nil
}
