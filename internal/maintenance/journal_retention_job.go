package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/thevault/register/pkg/logger"
)

const defaultJournalRetention = 90 * 24 * time.Hour

type journalPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type JournalRetentionJobParams struct {
	Logger    *logger.Logger
	Journal   journalPruner
	Retention time.Duration
}

func NewJournalRetentionJob(params JournalRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Journal == nil {
		return nil, fmt.Errorf("journal required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultJournalRetention
	}
	return &journalRetentionJob{
		logg:      params.Logger,
		journal:   params.Journal,
		retention: retention,
		now:       time.Now,
	}, nil
}

type journalRetentionJob struct {
	logg      *logger.Logger
	journal   journalPruner
	retention time.Duration
	now       func() time.Time
}

func (j *journalRetentionJob) Name() string { return "journal-retention" }

func (j *journalRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.journal.PruneBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("journal retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "journal retention cleanup complete")
	return nil
}
