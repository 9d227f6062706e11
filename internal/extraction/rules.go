package extraction

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// SourceExtraction marks rules produced by the extraction pipeline, as
// opposed to rules created through the CRUD surface.
const SourceExtraction = "extraction"

// BuildRules groups activities into notification rules keyed by
// (message, time-of-day). All activities sharing the key merge into a single
// rule whose day set is the union of each activity's explicit day, or the
// inferred set for untagged activities.
//
// Grouping by message-and-time rather than by day is what keeps "6 AM
// almonds" under two day headers a single two-day rule instead of two
// near-duplicate rules firing for the same logical reminder.
func BuildRules(ownerID string, activities []types.Activity, inferred types.DaySet, now time.Time) []*types.NotificationRule {
	byFingerprint := make(map[string]*types.NotificationRule)
	var order []string

	for _, a := range activities {
		tod := a.Time()
		fp := types.RuleFingerprint(a.RawText, tod)

		rule, ok := byFingerprint[fp]
		if !ok {
			rule = &types.NotificationRule{
				ID:            "rule_" + uuid.New().String(),
				OwnerID:       ownerID,
				Message:       a.RawText,
				Time:          tod,
				IsActive:      true,
				Fingerprint:   fp,
				Source:        SourceExtraction,
				ConfigVersion: 1,
				CreatedAt:     now.UTC(),
				UpdatedAt:     now.UTC(),
			}
			byFingerprint[fp] = rule
			order = append(order, fp)
		}

		if a.Day != nil {
			rule.SelectedDays = rule.SelectedDays.Add(*a.Day)
		} else {
			rule.SelectedDays = rule.SelectedDays.Union(inferred)
		}
	}

	rules := make([]*types.NotificationRule, 0, len(order))
	for _, fp := range order {
		r := byFingerprint[fp]
		if r.SelectedDays.IsEmpty() {
			// Cannot happen with a non-empty inferred set; guard anyway so an
			// invalid rule never leaves this package.
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

// Plan is the reconciliation between a user's existing rule set and the set
// a fresh extraction produced. Applying a plan via the lifecycle manager
// replaces the user's rules atomically with respect to their scheduled
// instances.
type Plan struct {
	// Create holds new rules with no existing fingerprint match.
	Create []*types.NotificationRule
	// Update holds desired rules matched by fingerprint whose day set or
	// active flag differs; each carries the existing rule's ID so the match
	// replaces rather than duplicates.
	Update []*types.NotificationRule
	// Unchanged holds existing rules left exactly as they are — no cancel,
	// no reschedule.
	Unchanged []*types.NotificationRule
	// Delete holds existing extraction-sourced rules whose fingerprint no
	// longer appears.
	Delete []*types.NotificationRule
}

// DiffRules reconciles existing rules against a freshly built set by
// fingerprint. An unchanged fingerprint with an unchanged day set and active
// flag leaves the existing rule untouched, which is what makes re-submitting
// identical text a no-op. Manually created rules are never deleted by an
// extraction pass.
func DiffRules(existing, desired []*types.NotificationRule) Plan {
	var plan Plan

	existingByFp := make(map[string]*types.NotificationRule, len(existing))
	for _, r := range existing {
		existingByFp[r.Fingerprint] = r
	}

	desiredFps := make(map[string]bool, len(desired))
	for _, want := range desired {
		desiredFps[want.Fingerprint] = true

		have, ok := existingByFp[want.Fingerprint]
		if !ok {
			plan.Create = append(plan.Create, want)
			continue
		}
		if have.SelectedDays.Equal(want.SelectedDays) && have.IsActive == want.IsActive {
			plan.Unchanged = append(plan.Unchanged, have)
			continue
		}
		updated := *want
		updated.ID = have.ID
		updated.CreatedAt = have.CreatedAt
		// Carry the stored version so the conditional update matches.
		updated.ConfigVersion = have.ConfigVersion
		plan.Update = append(plan.Update, &updated)
	}

	for _, have := range existing {
		if !desiredFps[have.Fingerprint] && have.Source == SourceExtraction {
			plan.Delete = append(plan.Delete, have)
		}
	}
	sort.Slice(plan.Delete, func(i, j int) bool { return plan.Delete[i].ID < plan.Delete[j].ID })

	return plan
}
