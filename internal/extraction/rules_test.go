package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

var testNow = time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)

func TestBuildRules_GroupsByMessageAndTime(t *testing.T) {
	// The same reminder under two day headers becomes ONE rule carrying both
	// days, never one rule per day.
	activities := []types.Activity{
		{RawText: "almonds", Hour: 6, Day: day(types.Thursday)},
		{RawText: "almonds", Hour: 6, Day: day(types.Friday)},
	}

	rules := BuildRules("user1", activities, nil, testNow)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, "almonds", r.Message)
	assert.Equal(t, types.TimeOfDay{Hour: 6}, r.Time)
	assert.Equal(t, types.NewDaySet(types.Thursday, types.Friday), r.SelectedDays)
	assert.Equal(t, "user1", r.OwnerID)
	assert.True(t, r.IsActive)
	assert.Equal(t, SourceExtraction, r.Source)
	assert.Equal(t, types.RuleFingerprint("almonds", r.Time), r.Fingerprint)
}

func TestBuildRules_DifferentTimesStaySeparate(t *testing.T) {
	activities := []types.Activity{
		{RawText: "almonds", Hour: 6, Day: day(types.Thursday)},
		{RawText: "almonds", Hour: 18, Day: day(types.Thursday)},
	}

	rules := BuildRules("user1", activities, nil, testNow)
	require.Len(t, rules, 2)
	assert.NotEqual(t, rules[0].Fingerprint, rules[1].Fingerprint)
}

func TestBuildRules_UntaggedUseInferredSet(t *testing.T) {
	activities := []types.Activity{
		{RawText: "water", Hour: 7},
	}

	rules := BuildRules("user1", activities, types.Workweek(), testNow)
	require.Len(t, rules, 1)
	assert.Equal(t, types.Workweek(), rules[0].SelectedDays)
}

func TestBuildRules_MixedTaggedAndUntagged(t *testing.T) {
	inferred := types.NewDaySet(types.Monday)
	activities := []types.Activity{
		{RawText: "almonds", Hour: 6, Day: day(types.Thursday)},
		{RawText: "almonds", Hour: 6}, // untagged occurrence of the same reminder
	}

	rules := BuildRules("user1", activities, inferred, testNow)
	require.Len(t, rules, 1)
	assert.Equal(t, types.NewDaySet(types.Monday, types.Thursday), rules[0].SelectedDays)
}

func TestBuildRules_EmptyDaySetNeverEscapes(t *testing.T) {
	// Untagged activity with an empty inferred set: the guard drops the rule
	// rather than emit an invalid one.
	activities := []types.Activity{{RawText: "water", Hour: 7}}
	rules := BuildRules("user1", activities, nil, testNow)
	assert.Empty(t, rules)
}

func existingRule(id, message string, hour int, days types.DaySet) *types.NotificationRule {
	tod := types.TimeOfDay{Hour: hour}
	return &types.NotificationRule{
		ID:           id,
		OwnerID:      "user1",
		Message:      message,
		Time:         tod,
		SelectedDays: days,
		IsActive:     true,
		Fingerprint:  types.RuleFingerprint(message, tod),
		Source:       SourceExtraction,
	}
}

func TestDiffRules_IdenticalSetIsNoOp(t *testing.T) {
	existing := []*types.NotificationRule{
		existingRule("rule_a", "almonds", 6, types.NewDaySet(types.Thursday, types.Friday)),
	}
	desired := BuildRules("user1", []types.Activity{
		{RawText: "almonds", Hour: 6, Day: day(types.Thursday)},
		{RawText: "almonds", Hour: 6, Day: day(types.Friday)},
	}, nil, testNow)

	plan := DiffRules(existing, desired)
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Delete)
	require.Len(t, plan.Unchanged, 1)
	assert.Same(t, existing[0], plan.Unchanged[0])
}

func TestDiffRules_DayChangeBecomesUpdate(t *testing.T) {
	existing := []*types.NotificationRule{
		existingRule("rule_a", "almonds", 6, types.NewDaySet(types.Thursday)),
	}
	existing[0].ConfigVersion = 4
	desired := BuildRules("user1", []types.Activity{
		{RawText: "almonds", Hour: 6, Day: day(types.Thursday)},
		{RawText: "almonds", Hour: 6, Day: day(types.Friday)},
	}, nil, testNow)

	plan := DiffRules(existing, desired)
	require.Len(t, plan.Update, 1)
	assert.Equal(t, "rule_a", plan.Update[0].ID, "update reuses the existing rule ID")
	assert.Equal(t, types.NewDaySet(types.Thursday, types.Friday), plan.Update[0].SelectedDays)
	assert.Equal(t, 4, plan.Update[0].ConfigVersion, "update carries the stored version")
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Delete)
}

func TestDiffRules_NewAndRemoved(t *testing.T) {
	existing := []*types.NotificationRule{
		existingRule("rule_a", "almonds", 6, types.NewDaySet(types.Thursday)),
	}
	desired := BuildRules("user1", []types.Activity{
		{RawText: "oats", Hour: 8, Day: day(types.Thursday)},
	}, nil, testNow)

	plan := DiffRules(existing, desired)
	require.Len(t, plan.Create, 1)
	assert.Equal(t, "oats", plan.Create[0].Message)
	require.Len(t, plan.Delete, 1)
	assert.Equal(t, "rule_a", plan.Delete[0].ID)
}

func TestDiffRules_ManualRulesSurviveExtraction(t *testing.T) {
	manual := existingRule("rule_m", "evening walk", 19, types.AllDays())
	manual.Source = "manual"

	plan := DiffRules([]*types.NotificationRule{manual}, nil)
	assert.Empty(t, plan.Delete, "manually created rules are not swept by re-extraction")
}
