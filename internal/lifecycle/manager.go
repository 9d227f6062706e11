// Package lifecycle owns every mutation of notification rules and keeps the
// scheduling invariant intact while doing so: an active rule has exactly one
// scheduled instance, an inactive or deleted rule has none. All mutations run
// inside a single database transaction so observers never see a rule without
// its instance or an instance without its rule.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/schedule"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// RuleStore is the subset of rule persistence the manager needs. Implemented
// by db.RuleRepository.
type RuleStore interface {
	Create(ctx context.Context, rule *types.NotificationRule) error
	GetByID(ctx context.Context, ownerID, id string) (*types.NotificationRule, error)
	ListActiveByOwner(ctx context.Context, ownerID string) ([]*types.NotificationRule, error)
	Update(ctx context.Context, rule *types.NotificationRule) error
	SetActive(ctx context.Context, ownerID, id string, active bool) (*types.NotificationRule, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// InstanceStore is the subset of instance persistence the manager needs.
// Implemented by db.InstanceRepository.
type InstanceStore interface {
	Create(ctx context.Context, inst *types.ScheduledInstance) error
	CancelScheduled(ctx context.Context, ruleID string) (int64, error)
	CancelScheduledByOwner(ctx context.Context, ownerID string) (int64, error)
}

// TxManager abstracts transactional execution for the Manager. The callback
// receives transaction-scoped stores, ensuring all writes within the callback
// participate in the same database transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, txRules RuleStore, txInstances InstanceStore) error) error
}

// Manager applies rule mutations and recomputes scheduled instances.
type Manager struct {
	tx      TxManager
	clock   clock.Clock
	minLead time.Duration
	logger  *slog.Logger
}

// ManagerConfig holds the dependencies for creating a Manager.
type ManagerConfig struct {
	Tx TxManager

	// MinLead is the minimum distance into the future a newly computed
	// occurrence must have. Occurrences closer than this roll forward to the
	// next selected day, which keeps dispatch from racing a just-written row.
	MinLead time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// NewManager creates a Manager. A nil Clock defaults to the real clock; a nil
// Logger defaults to slog.Default.
func NewManager(cfg ManagerConfig) *Manager {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		tx:      cfg.Tx,
		clock:   c,
		minLead: cfg.MinLead,
		logger:  logger,
	}
}

// NewRuleID returns a fresh prefixed rule identifier.
func NewRuleID() string {
	return "rule_" + uuid.NewString()
}

// newInstanceID returns a fresh prefixed instance identifier. ULIDs sort by
// creation time, which keeps instance history listings cheap.
func newInstanceID() string {
	return "inst_" + ulid.Make().String()
}

// Create validates and persists a new rule. When the rule is active, its
// first scheduled instance is computed and written in the same transaction.
// The rule's ID, fingerprint, and version are assigned here.
func (m *Manager) Create(ctx context.Context, rule *types.NotificationRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	rule.ID = NewRuleID()
	rule.Fingerprint = types.RuleFingerprint(rule.Message, rule.Time)
	rule.ConfigVersion = 1

	err := m.tx.RunInTx(ctx, func(ctx context.Context, txRules RuleStore, txInstances InstanceStore) error {
		if err := txRules.Create(ctx, rule); err != nil {
			return err
		}
		if !rule.IsActive {
			return nil
		}
		_, err := m.scheduleInstance(ctx, txInstances, rule)
		return err
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "rule created",
		"rule_id", rule.ID,
		"owner_id", rule.OwnerID,
		"time", rule.Time.String(),
		"days", rule.SelectedDays.String(),
		"active", rule.IsActive,
	)
	return nil
}

// Update rewrites a rule conditional on the version the caller read, cancels
// its live instance, and schedules a fresh one from the new configuration.
// Cancel and recompute happen atomically with the rule write, so a config
// change can never leave an instance computed from stale settings.
func (m *Manager) Update(ctx context.Context, rule *types.NotificationRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	rule.Fingerprint = types.RuleFingerprint(rule.Message, rule.Time)

	err := m.tx.RunInTx(ctx, func(ctx context.Context, txRules RuleStore, txInstances InstanceStore) error {
		if err := txRules.Update(ctx, rule); err != nil {
			return err
		}
		if _, err := txInstances.CancelScheduled(ctx, rule.ID); err != nil {
			return err
		}
		if !rule.IsActive {
			return nil
		}
		_, err := m.scheduleInstance(ctx, txInstances, rule)
		return err
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "rule updated",
		"rule_id", rule.ID,
		"owner_id", rule.OwnerID,
		"config_version", rule.ConfigVersion,
		"active", rule.IsActive,
	)
	return nil
}

// Delete removes a rule after cancelling its live instance. Terminal
// instances are kept for history; the retention sweep prunes them later.
func (m *Manager) Delete(ctx context.Context, ownerID, ruleID string) error {
	err := m.tx.RunInTx(ctx, func(ctx context.Context, txRules RuleStore, txInstances InstanceStore) error {
		if _, err := txInstances.CancelScheduled(ctx, ruleID); err != nil {
			return err
		}
		return txRules.Delete(ctx, ownerID, ruleID)
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "rule deleted", "rule_id", ruleID, "owner_id", ownerID)
	return nil
}

// SetActive flips a rule's active flag. Deactivation cancels the live
// instance; activation computes a fresh one. Both directions are idempotent
// at the instance level because cancel tolerates nothing-to-cancel.
func (m *Manager) SetActive(ctx context.Context, ownerID, ruleID string, active bool) (*types.NotificationRule, error) {
	var rule *types.NotificationRule
	err := m.tx.RunInTx(ctx, func(ctx context.Context, txRules RuleStore, txInstances InstanceStore) error {
		var err error
		rule, err = txRules.SetActive(ctx, ownerID, ruleID, active)
		if err != nil {
			return err
		}
		if _, err := txInstances.CancelScheduled(ctx, ruleID); err != nil {
			return err
		}
		if !active {
			return nil
		}
		_, err = m.scheduleInstance(ctx, txInstances, rule)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "rule active flag changed",
		"rule_id", ruleID,
		"owner_id", ownerID,
		"active", active,
	)
	return rule, nil
}

// ScheduleNext computes and persists the next occurrence for a rule, used by
// the dispatcher after completing an instance. Returns nil without error when
// the rule is inactive, gone, or another writer already scheduled one.
func (m *Manager) ScheduleNext(ctx context.Context, ownerID, ruleID string) (*types.ScheduledInstance, error) {
	var inst *types.ScheduledInstance
	err := m.tx.RunInTx(ctx, func(ctx context.Context, txRules RuleStore, txInstances InstanceStore) error {
		rule, err := txRules.GetByID(ctx, ownerID, ruleID)
		if err != nil {
			return err
		}
		if !rule.IsActive {
			return nil
		}
		inst, err = m.scheduleInstance(ctx, txInstances, rule)
		return err
	})
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case types.ErrCodeNotFoundRule:
				// Deleted between completion and follow-up. Nothing to do.
				return nil, nil
			case types.ErrCodeInvariantDuplicateLive:
				m.logger.WarnContext(ctx, "follow-up instance already scheduled",
					"rule_id", ruleID, "owner_id", ownerID)
				return nil, nil
			}
		}
		return nil, err
	}
	return inst, nil
}

// RescheduleOwner cancels every live instance for the owner and recomputes
// one per active rule from the current clock. Used after bulk imports or to
// recover from operator mistakes. Returns the number of instances scheduled.
func (m *Manager) RescheduleOwner(ctx context.Context, ownerID string) (int, error) {
	if strings.TrimSpace(ownerID) == "" {
		return 0, types.NewAppError(types.ErrCodeValidationMissingField, "owner_id is required", nil)
	}

	scheduled := 0
	err := m.tx.RunInTx(ctx, func(ctx context.Context, txRules RuleStore, txInstances InstanceStore) error {
		cancelled, err := txInstances.CancelScheduledByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		rules, err := txRules.ListActiveByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		for _, rule := range rules {
			if _, err := m.scheduleInstance(ctx, txInstances, rule); err != nil {
				return fmt.Errorf("rescheduling rule %s: %w", rule.ID, err)
			}
			scheduled++
		}
		m.logger.InfoContext(ctx, "owner rescheduled",
			"owner_id", ownerID,
			"cancelled", cancelled,
			"scheduled", scheduled,
		)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return scheduled, nil
}

// scheduleInstance computes the next occurrence for the rule and writes the
// instance row. The clock is advanced by the configured minimum lead before
// computing, so the result is always strictly far enough in the future.
func (m *Manager) scheduleInstance(ctx context.Context, txInstances InstanceStore, rule *types.NotificationRule) (*types.ScheduledInstance, error) {
	next, err := schedule.NextOccurrence(rule.SelectedDays, rule.Time, m.clock.Now().Add(m.minLead))
	if err != nil {
		return nil, err
	}
	inst := &types.ScheduledInstance{
		ID:              newInstanceID(),
		RuleID:          rule.ID,
		OwnerID:         rule.OwnerID,
		RuleVersion:     rule.ConfigVersion,
		ScheduledForUTC: next,
		Status:          types.InstanceScheduled,
	}
	if err := txInstances.Create(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func validateRule(rule *types.NotificationRule) error {
	if strings.TrimSpace(rule.OwnerID) == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "owner_id is required", nil)
	}
	if strings.TrimSpace(rule.Message) == "" {
		return types.NewAppError(types.ErrCodeValidationEmptyMessage, "rule message must not be empty", nil)
	}
	if !rule.Time.Valid() {
		return types.NewAppError(types.ErrCodeValidationInvalidTime,
			fmt.Sprintf("invalid time of day %02d:%02d", rule.Time.Hour, rule.Time.Minute), nil)
	}
	if rule.SelectedDays.IsEmpty() {
		return types.NewAppError(types.ErrCodeInvariantEmptyDaySet, "rule must name at least one weekday", nil)
	}
	return nil
}
