package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// RuleRepository provides data access for the notification_rules table.
//
// config_version is incremented inside the UPDATE statements themselves so
// that every mutation observed by a reader carries a new version. Updates are
// conditional on the version the caller read, which turns lost-update races
// into explicit conflicts.
type RuleRepository struct {
	db DBTX
}

// NewRuleRepository creates a RuleRepository backed by the given database
// connection (pool or transaction).
func NewRuleRepository(db DBTX) *RuleRepository {
	return &RuleRepository{db: db}
}

// ruleColumns is the standard column set for rule queries. The scan helpers
// below must match this order.
const ruleColumns = `id, owner_id, message, notify_hour, notify_minute,
	selected_days, is_active, fingerprint, source, config_version,
	created_at, updated_at`

// scanRule scans one rule row. pgx.Rows satisfies pgx.Row, so this works for
// both single-row and iterated queries.
func scanRule(row pgx.Row) (*types.NotificationRule, error) {
	var r types.NotificationRule
	var days []int32
	var source *string

	err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&r.Message,
		&r.Time.Hour,
		&r.Time.Minute,
		&days,
		&r.IsActive,
		&r.Fingerprint,
		&source,
		&r.ConfigVersion,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.SelectedDays = daySetFromInt32(days)
	if source != nil {
		r.Source = *source
	}
	return &r, nil
}

// Create inserts a new rule. The caller must set the ID, fingerprint, and
// initial ConfigVersion before calling. Rules with an empty day set are
// rejected before touching the database.
func (r *RuleRepository) Create(ctx context.Context, rule *types.NotificationRule) error {
	if rule.SelectedDays.IsEmpty() {
		return types.NewAppError(types.ErrCodeInvariantEmptyDaySet, "rule must name at least one weekday", nil)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_rules (
			id, owner_id, message, notify_hour, notify_minute,
			selected_days, is_active, fingerprint, source, config_version,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			COALESCE($11, NOW()), COALESCE($12, NOW())
		)`,
		rule.ID,
		rule.OwnerID,
		rule.Message,
		rule.Time.Hour,
		rule.Time.Minute,
		daySetToInt32(rule.SelectedDays),
		rule.IsActive,
		rule.Fingerprint,
		nilIfEmpty(rule.Source),
		rule.ConfigVersion,
		nilIfZeroTime(rule.CreatedAt),
		nilIfZeroTime(rule.UpdatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create rule", err)
	}
	return nil
}

// GetByID retrieves a rule by ID, scoped to the owner. Returns
// ErrCodeNotFoundRule when no row matches.
func (r *RuleRepository) GetByID(ctx context.Context, ownerID, id string) (*types.NotificationRule, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+ruleColumns+`
		 FROM notification_rules
		 WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRule, "rule not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve rule", err)
	}
	return rule, nil
}

// ListByOwner retrieves all rules for an owner, oldest first so that repeated
// extractions see a stable ordering.
func (r *RuleRepository) ListByOwner(ctx context.Context, ownerID string) ([]*types.NotificationRule, error) {
	return r.list(ctx,
		`SELECT `+ruleColumns+`
		 FROM notification_rules
		 WHERE owner_id = $1
		 ORDER BY created_at ASC, id ASC`,
		ownerID,
	)
}

// ListActiveByOwner retrieves only the active rules for an owner.
func (r *RuleRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]*types.NotificationRule, error) {
	return r.list(ctx,
		`SELECT `+ruleColumns+`
		 FROM notification_rules
		 WHERE owner_id = $1 AND is_active = TRUE
		 ORDER BY created_at ASC, id ASC`,
		ownerID,
	)
}

func (r *RuleRepository) list(ctx context.Context, query string, args ...any) ([]*types.NotificationRule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list rules", err)
	}
	defer rows.Close()

	var results []*types.NotificationRule
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan rule row", scanErr)
		}
		results = append(results, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating rule rows", err)
	}
	return results, nil
}

// Update rewrites the mutable fields of a rule, conditional on the
// ConfigVersion the caller read. On success the passed struct is refreshed
// with the incremented version and new fingerprint/updated_at.
//
// A version mismatch (or a concurrent delete) surfaces as
// ErrCodeConflictConcurrent when the rule still exists, or
// ErrCodeNotFoundRule when it does not.
func (r *RuleRepository) Update(ctx context.Context, rule *types.NotificationRule) error {
	if rule.SelectedDays.IsEmpty() {
		return types.NewAppError(types.ErrCodeInvariantEmptyDaySet, "rule must name at least one weekday", nil)
	}
	row := r.db.QueryRow(ctx,
		`UPDATE notification_rules SET
			message = $1,
			notify_hour = $2,
			notify_minute = $3,
			selected_days = $4,
			is_active = $5,
			fingerprint = $6,
			source = $7,
			config_version = config_version + 1,
			updated_at = NOW()
		 WHERE id = $8 AND owner_id = $9 AND config_version = $10
		 RETURNING config_version, updated_at`,
		rule.Message,
		rule.Time.Hour,
		rule.Time.Minute,
		daySetToInt32(rule.SelectedDays),
		rule.IsActive,
		rule.Fingerprint,
		nilIfEmpty(rule.Source),
		rule.ID,
		rule.OwnerID,
		rule.ConfigVersion,
	)
	if err := row.Scan(&rule.ConfigVersion, &rule.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.classifyMissedUpdate(ctx, rule.OwnerID, rule.ID)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update rule", err)
	}
	return nil
}

// SetActive flips the active flag and bumps the version, returning the
// refreshed rule. Used by both the activate and deactivate flows.
func (r *RuleRepository) SetActive(ctx context.Context, ownerID, id string, active bool) (*types.NotificationRule, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE notification_rules SET
			is_active = $1,
			config_version = config_version + 1,
			updated_at = NOW()
		 WHERE id = $2 AND owner_id = $3
		 RETURNING `+ruleColumns,
		active, id, ownerID,
	)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRule, "rule not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to set rule active flag", err)
	}
	return rule, nil
}

// Delete removes a rule. Instance cleanup is the caller's responsibility and
// happens in the same transaction.
func (r *RuleRepository) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notification_rules WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete rule", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRule, "rule not found", nil)
	}
	return nil
}

// classifyMissedUpdate distinguishes a stale-version conflict from a missing
// row after a conditional UPDATE touched nothing.
func (r *RuleRepository) classifyMissedUpdate(ctx context.Context, ownerID, id string) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notification_rules WHERE id = $1 AND owner_id = $2)`,
		id, ownerID,
	).Scan(&exists)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to classify missed rule update", err)
	}
	if exists {
		return types.NewAppError(types.ErrCodeConflictConcurrent, "rule was modified concurrently", nil)
	}
	return types.NewAppError(types.ErrCodeNotFoundRule, "rule not found", nil)
}

// daySetToInt32 converts a DaySet to the int[] column representation.
func daySetToInt32(s types.DaySet) []int32 {
	out := make([]int32, 0, len(s))
	for _, d := range s {
		out = append(out, int32(d))
	}
	return out
}

// daySetFromInt32 converts the int[] column representation back to a DaySet.
func daySetFromInt32(ints []int32) types.DaySet {
	days := make([]int, 0, len(ints))
	for _, v := range ints {
		days = append(days, int(v))
	}
	return types.DaySetFromInts(days)
}
