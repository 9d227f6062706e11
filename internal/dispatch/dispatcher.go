package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// InstanceSource is the subset of instance persistence the dispatcher needs.
// Implemented by db.InstanceRepository.
type InstanceSource interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledInstance, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	RecordAttempt(ctx context.Context, id string, lastError string) (int, error)
	CancelByID(ctx context.Context, id string) (bool, error)
}

// RuleSource resolves the rule behind a due instance. Implemented by
// db.RuleRepository.
type RuleSource interface {
	GetByID(ctx context.Context, ownerID, id string) (*types.NotificationRule, error)
}

// FollowUpScheduler computes and persists a rule's next occurrence after a
// successful dispatch. Implemented by lifecycle.Manager.
type FollowUpScheduler interface {
	ScheduleNext(ctx context.Context, ownerID, ruleID string) (*types.ScheduledInstance, error)
}

// PollStats summarizes one poll cycle.
type PollStats struct {
	Due       int `json:"due"`
	Sent      int `json:"sent"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Dispatcher polls for due instances and drives each one to a terminal state
// or a follow-up occurrence. One Dispatcher per deployment; the status
// transitions in InstanceSource are conditional, so even a misconfigured
// second dispatcher cannot double-send an instance.
type Dispatcher struct {
	instances InstanceSource
	rules     RuleSource
	scheduler FollowUpScheduler
	transport PushTransport

	interval    time.Duration
	batchSize   int
	concurrency int
	maxAttempts int
	sendTimeout time.Duration

	clock  clock.Clock
	logger *slog.Logger

	lastPollNanos atomic.Int64
}

// DispatcherConfig holds the dependencies and tuning for a Dispatcher.
type DispatcherConfig struct {
	Instances InstanceSource
	Rules     RuleSource
	Scheduler FollowUpScheduler
	Transport PushTransport

	// Interval between due-scans. Defaults to one minute.
	Interval time.Duration

	// BatchSize caps instances fetched per cycle. Defaults to 100.
	BatchSize int

	// Concurrency bounds parallel dispatches within a cycle. Defaults to 8.
	Concurrency int

	// MaxAttempts is the delivery attempt budget per instance across poll
	// cycles. Once exhausted the instance is marked failed and gets no
	// follow-up occurrence. Defaults to 3.
	MaxAttempts int

	// SendTimeout bounds a single gateway call. Defaults to 15 seconds.
	SendTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil Clock defaults to the real clock;
// a nil Logger defaults to slog.Default.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	return &Dispatcher{
		instances:   cfg.Instances,
		rules:       cfg.Rules,
		scheduler:   cfg.Scheduler,
		transport:   cfg.Transport,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		maxAttempts: cfg.MaxAttempts,
		sendTimeout: cfg.SendTimeout,
		clock:       c,
		logger:      logger,
	}
}

// Run polls until the context is cancelled. Poll errors are logged, never
// fatal; the loop keeps its cadence regardless of individual cycle outcomes.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := d.clock.Ticker(d.interval)
	defer ticker.Stop()

	d.logger.InfoContext(ctx, "dispatcher started",
		"interval", d.interval.String(),
		"batch_size", d.batchSize,
		"max_attempts", d.maxAttempts,
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.PollOnce(ctx); err != nil {
				d.logger.ErrorContext(ctx, "poll cycle failed", "error", err)
			}
		}
	}
}

// PollOnce runs a single due-scan and dispatch fan-out. Per-instance failures
// are logged and counted, never propagated; the returned error covers only
// the due-scan itself.
func (d *Dispatcher) PollOnce(ctx context.Context) (PollStats, error) {
	now := d.clock.Now().UTC()
	d.lastPollNanos.Store(now.UnixNano())

	due, err := d.instances.ListDue(ctx, now, d.batchSize)
	if err != nil {
		return PollStats{}, err
	}

	stats := PollStats{Due: len(due)}
	if len(due) == 0 {
		return stats, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, inst := range due {
		inst := inst
		g.Go(func() error {
			outcome := d.dispatchOne(gctx, inst)
			mu.Lock()
			switch outcome {
			case outcomeSent:
				stats.Sent++
			case outcomeRetried:
				stats.Retried++
			case outcomeFailed:
				stats.Failed++
			case outcomeCancelled:
				stats.Cancelled++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.logger.InfoContext(ctx, "poll cycle complete",
		"due", stats.Due,
		"sent", stats.Sent,
		"retried", stats.Retried,
		"failed", stats.Failed,
		"cancelled", stats.Cancelled,
	)
	return stats, nil
}

// LastPollAt reports when the most recent poll cycle started. Zero before the
// first cycle. Used by health checks to detect a stalled loop.
func (d *Dispatcher) LastPollAt() time.Time {
	nanos := d.lastPollNanos.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos).UTC()
}

type dispatchOutcome int

const (
	outcomeSkipped dispatchOutcome = iota
	outcomeSent
	outcomeRetried
	outcomeFailed
	outcomeCancelled
)

func (d *Dispatcher) dispatchOne(ctx context.Context, inst *types.ScheduledInstance) dispatchOutcome {
	log := d.logger.With(
		"instance_id", inst.ID,
		"rule_id", inst.RuleID,
		"owner_id", inst.OwnerID,
	)

	rule, err := d.rules.GetByID(ctx, inst.OwnerID, inst.RuleID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundRule {
			// Rule vanished underneath its instance. Should not happen given
			// the transactional lifecycle, but a leftover row must not fire.
			d.cancelStale(ctx, log, inst, "rule no longer exists")
			return outcomeCancelled
		}
		log.ErrorContext(ctx, "failed to load rule for due instance", "error", err)
		return outcomeSkipped
	}

	if !rule.IsActive || rule.ConfigVersion != inst.RuleVersion {
		d.cancelStale(ctx, log, inst, "instance is stale for current rule config")
		return outcomeCancelled
	}

	msg := &types.PushMessage{
		DestinationToken: inst.OwnerID,
		Title:            "Diet Reminder",
		Body:             rule.Message,
		Metadata: map[string]string{
			"rule_id":       inst.RuleID,
			"instance_id":   inst.ID,
			"scheduled_for": inst.ScheduledForUTC.Format(time.RFC3339),
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	err = d.transport.Send(sendCtx, msg)
	cancel()

	if err != nil {
		return d.recordDeliveryFailure(ctx, log, inst, err)
	}

	if err := d.instances.MarkSent(ctx, inst.ID, d.clock.Now().UTC()); err != nil {
		// The push went out but the instance left the scheduled state in the
		// meantime. Nothing to repair; the winning writer owns the follow-up.
		log.WarnContext(ctx, "dispatched instance could not be marked sent", "error", err)
		return outcomeSkipped
	}

	next, err := d.scheduler.ScheduleNext(ctx, inst.OwnerID, inst.RuleID)
	if err != nil {
		log.ErrorContext(ctx, "failed to schedule follow-up occurrence", "error", err)
		return outcomeSent
	}
	if next != nil {
		log.InfoContext(ctx, "instance dispatched",
			"next_instance_id", next.ID,
			"next_occurrence", next.ScheduledForUTC.Format(time.RFC3339),
		)
	} else {
		log.InfoContext(ctx, "instance dispatched, no follow-up scheduled")
	}
	return outcomeSent
}

func (d *Dispatcher) recordDeliveryFailure(ctx context.Context, log *slog.Logger, inst *types.ScheduledInstance, sendErr error) dispatchOutcome {
	if IsPermanentDeliveryError(sendErr) {
		if err := d.instances.MarkFailed(ctx, inst.ID, sendErr.Error()); err != nil {
			log.ErrorContext(ctx, "failed to mark rejected instance failed", "error", err)
			return outcomeSkipped
		}
		log.WarnContext(ctx, "dispatch rejected by gateway, instance failed", "error", sendErr)
		return outcomeFailed
	}

	attempts, err := d.instances.RecordAttempt(ctx, inst.ID, sendErr.Error())
	if err != nil {
		log.ErrorContext(ctx, "failed to record delivery attempt", "error", err)
		return outcomeSkipped
	}

	if attempts >= d.maxAttempts {
		if err := d.instances.MarkFailed(ctx, inst.ID, sendErr.Error()); err != nil {
			log.ErrorContext(ctx, "failed to mark exhausted instance failed", "error", err)
			return outcomeSkipped
		}
		// A failed occurrence gets no follow-up. The next lifecycle mutation
		// or reschedule brings the rule back.
		log.ErrorContext(ctx, "delivery attempts exhausted, instance failed",
			"attempts", attempts,
			"error", sendErr,
		)
		return outcomeFailed
	}

	log.WarnContext(ctx, "delivery failed, will retry next cycle",
		"attempts", attempts,
		"max_attempts", d.maxAttempts,
		"error", sendErr,
	)
	return outcomeRetried
}

func (d *Dispatcher) cancelStale(ctx context.Context, log *slog.Logger, inst *types.ScheduledInstance, reason string) {
	cancelled, err := d.instances.CancelByID(ctx, inst.ID)
	if err != nil {
		log.ErrorContext(ctx, "failed to cancel stale instance", "reason", reason, "error", err)
		return
	}
	if cancelled {
		log.WarnContext(ctx, "cancelled stale instance", "reason", reason)
	}
}
