package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// PrunerConfig configures journal retention.
type PrunerConfig struct {
	// RetentionDays is how many days of records to keep. 0 keeps records
	// forever.
	RetentionDays int

	// PruneSchedule is a cron expression for automatic pruning.
	// Example: "0 3 * * *" (daily at 3 AM). Empty disables the schedule.
	PruneSchedule string

	// MaxRecords caps the total record count. 0 means unlimited.
	MaxRecords int64
}

// DefaultPrunerConfig returns the default retention configuration.
func DefaultPrunerConfig() *PrunerConfig {
	return &PrunerConfig{
		RetentionDays: 30,
		PruneSchedule: "0 3 * * *",
		MaxRecords:    0,
	}
}

// Pruner enforces the journal retention policy, manually via Prune or on a
// cron schedule via Start.
type Pruner struct {
	storage Storage
	config  *PrunerConfig
	logger  *slog.Logger

	cron    *cron.Cron
	entryID cron.EntryID
}

// NewPruner creates a pruner. The schedule, when set, is validated here so a
// bad expression fails at startup rather than at 3 AM.
func NewPruner(storage Storage, config *PrunerConfig) (*Pruner, error) {
	if config == nil {
		config = DefaultPrunerConfig()
	}
	if config.PruneSchedule != "" {
		if _, err := cron.ParseStandard(config.PruneSchedule); err != nil {
			return nil, fmt.Errorf("invalid prune schedule %q: %w", config.PruneSchedule, err)
		}
	}

	return &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "journal.pruner"),
		cron:    cron.New(),
	}, nil
}

// Prune applies the retention policy once. Age-based pruning runs first,
// then count-based pruning on what remains. Returns the total number of
// records deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)
		deleted, err := p.storage.Delete(ctx, &Query{Until: &cutoff})
		if err != nil {
			return total, fmt.Errorf("pruning by age: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("pruning by count: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("journal pruning completed",
			"deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	}
	return total, nil
}

// pruneByCount deletes the oldest records when the total exceeds MaxRecords.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &Query{})
	if err != nil {
		return 0, err
	}
	excess := count - p.config.MaxRecords
	if excess <= 0 {
		return 0, nil
	}

	// Walk oldest-first to find the cutoff time covering the excess.
	recs, err := p.storage.Query(ctx, &Query{Limit: int(count)})
	if err != nil {
		return 0, err
	}
	if int64(len(recs)) <= p.config.MaxRecords {
		return 0, nil
	}

	// Query returns newest first; the cutoff is the newest of the excess
	// tail.
	cutoff := recs[p.config.MaxRecords].AcceptedAt
	return p.storage.Delete(ctx, &Query{Until: &cutoff})
}

// Start schedules automatic pruning. A missed or failed run is logged and
// retried at the next tick.
func (p *Pruner) Start(ctx context.Context) error {
	if p.config.PruneSchedule == "" {
		p.logger.Debug("no prune schedule configured, automatic pruning disabled")
		return nil
	}

	id, err := p.cron.AddFunc(p.config.PruneSchedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling journal pruning: %w", err)
	}
	p.entryID = id
	p.cron.Start()

	p.logger.Info("journal pruning scheduled", "schedule", p.config.PruneSchedule)
	return nil
}

// Stop halts scheduled pruning and waits for an in-flight run.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

// NextPruning returns when the next scheduled run fires, or nil when no
// schedule is active.
func (p *Pruner) NextPruning() *time.Time {
	if p.config.PruneSchedule == "" {
		return nil
	}
	entry := p.cron.Entry(p.entryID)
	if entry.ID == 0 {
		return nil
	}
	next := entry.Next
	return &next
}
