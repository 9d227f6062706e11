package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// RuleReader lists a user's persisted rules for diffing against a fresh
// extraction.
type RuleReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*types.NotificationRule, error)
}

// RuleLifecycle applies rule mutations transactionally with respect to the
// rule's scheduled instances. Implemented by the lifecycle manager.
type RuleLifecycle interface {
	Create(ctx context.Context, rule *types.NotificationRule) error
	Update(ctx context.Context, rule *types.NotificationRule) error
	Delete(ctx context.Context, ownerID, ruleID string) error
}

// Archive persists the extraction audit record together with the submitted
// raw text.
type Archive interface {
	Save(ctx context.Context, rec *types.ExtractionRecord) error
}

// Outcome summarizes one extraction request: the user's resulting rule set
// and what the reconciliation did to reach it.
type Outcome struct {
	ExtractionID string                    `json:"extraction_id"`
	Rules        []*types.NotificationRule `json:"rules"`
	Warnings     []string                  `json:"warnings,omitempty"`
	Created      int                       `json:"created"`
	Updated      int                       `json:"updated"`
	Deleted      int                       `json:"deleted"`
	Unchanged    int                       `json:"unchanged"`
}

// Service runs the full extraction pipeline and reconciles the result into
// the durable rule set via the lifecycle manager.
type Service struct {
	rules     RuleReader
	lifecycle RuleLifecycle
	archive   Archive
	policy    DayPolicy
	clock     clock.Clock
	logger    *slog.Logger
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Rules     RuleReader
	Lifecycle RuleLifecycle
	Archive   Archive
	Policy    DayPolicy
	Clock     clock.Clock
	Logger    *slog.Logger
}

// NewService creates an extraction Service. A nil Clock defaults to the real
// clock; a nil Logger defaults to slog.Default.
func NewService(cfg ServiceConfig) *Service {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Policy
	if policy.Fallback.IsEmpty() {
		policy = DefaultDayPolicy()
	}
	return &Service{
		rules:     cfg.Rules,
		lifecycle: cfg.Lifecycle,
		archive:   cfg.Archive,
		policy:    policy,
		clock:     c,
		logger:    logger,
	}
}

// ExtractAndApply runs the pipeline on rawText and replaces ownerID's
// extraction-sourced rule set with the result. Unchanged rules (matched by
// fingerprint, same days, same active flag) are left untouched so repeated
// submissions of identical text cause no cancel/reschedule churn.
//
// Parse degradation is not an error: text that yields no activities produces
// an Outcome whose Warnings explain why, and deletes any previously
// extracted rules (the plan no longer mentions them).
func (s *Service) ExtractAndApply(ctx context.Context, ownerID, rawText string) (*Outcome, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "owner id is required", nil)
	}

	clean := Normalize(rawText)
	extracted := Extract(clean)
	inferred := InferDays(extracted.Activities, clean, s.policy)

	now := s.clock.Now().UTC()
	desired := BuildRules(ownerID, extracted.Activities, inferred, now)

	existing, err := s.rules.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing rules for owner %s: %w", ownerID, err)
	}

	plan := DiffRules(existing, desired)

	// Deletes first so a changed reminder never briefly coexists with its
	// replacement in the scheduler's view.
	for _, r := range plan.Delete {
		if err := s.lifecycle.Delete(ctx, ownerID, r.ID); err != nil {
			return nil, fmt.Errorf("deleting superseded rule %s: %w", r.ID, err)
		}
	}
	for _, r := range plan.Update {
		if err := s.lifecycle.Update(ctx, r); err != nil {
			return nil, fmt.Errorf("updating rule %s: %w", r.ID, err)
		}
	}
	for _, r := range plan.Create {
		if err := s.lifecycle.Create(ctx, r); err != nil {
			return nil, fmt.Errorf("creating rule %s: %w", r.ID, err)
		}
	}

	outcome := &Outcome{
		ExtractionID: "ext_" + uuid.New().String(),
		Warnings:     extracted.Warnings,
		Created:      len(plan.Create),
		Updated:      len(plan.Update),
		Deleted:      len(plan.Delete),
		Unchanged:    len(plan.Unchanged),
	}
	outcome.Rules = append(outcome.Rules, plan.Unchanged...)
	outcome.Rules = append(outcome.Rules, plan.Update...)
	outcome.Rules = append(outcome.Rules, plan.Create...)

	// The archive is an audit aid, not part of the contract: failure to save
	// degrades to a warning.
	if s.archive != nil {
		rec := &types.ExtractionRecord{
			ID:            outcome.ExtractionID,
			OwnerID:       ownerID,
			RawText:       rawText,
			ActivityCount: len(extracted.Activities),
			RuleCount:     len(desired),
			Warnings:      extracted.Warnings,
			CreatedAt:     now,
		}
		if err := s.archive.Save(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "failed to archive extraction",
				"owner_id", ownerID,
				"extraction_id", rec.ID,
				"error", err,
			)
			outcome.Warnings = append(outcome.Warnings, "extraction archive unavailable")
		}
	}

	s.logger.InfoContext(ctx, "extraction applied",
		"owner_id", ownerID,
		"extraction_id", outcome.ExtractionID,
		"activities", len(extracted.Activities),
		"rules", len(desired),
		"created", outcome.Created,
		"updated", outcome.Updated,
		"deleted", outcome.Deleted,
		"unchanged", outcome.Unchanged,
	)

	return outcome, nil
}
