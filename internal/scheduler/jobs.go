package scheduler

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/PatrikGFX/portfolio-tracker/internal/ledger"
)

// TickJob advances the price simulation one step. It drives the live
// feel of the tracker - every run nudges each simulated position and
// upserts today's history point.
type TickJob struct {
	ledger *ledger.Service
	onTick func()
	log    zerolog.Logger
}

// NewTickJob creates the simulated tick job. onTick is invoked after
// each tick (the server uses it to push updates to stream subscribers);
// pass nil when nothing listens.
func NewTickJob(svc *ledger.Service, onTick func(), log zerolog.Logger) *TickJob {
	return &TickJob{
		ledger: svc,
		onTick: onTick,
		log:    log.With().Str("job", "tick").Logger(),
	}
}

// Name returns the job name
func (j *TickJob) Name() string {
	return "tick"
}

// Run advances every simulated position one price step.
func (j *TickJob) Run() error {
	j.ledger.Tick()
	if j.onTick != nil {
		j.onTick()
	}
	return nil
}

// RefreshJob re-fetches quotes for real-data positions on the slow
// cadence.
type RefreshJob struct {
	ledger *ledger.Service
	log    zerolog.Logger
}

// NewRefreshJob creates the real-quote refresh job.
func NewRefreshJob(svc *ledger.Service, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		ledger: svc,
		log:    log.With().Str("job", "refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "refresh"
}

// Run refreshes real-data positions. A refresh already in flight (for
// example one triggered manually over HTTP) is not an error - the cycle
// is simply skipped.
func (j *RefreshJob) Run() error {
	if !j.ledger.HasRealPositions() {
		j.log.Debug().Msg("No real-data positions, skipping refresh")
		return nil
	}

	if err := j.ledger.RefreshReal(); err != nil {
		if errors.Is(err, ledger.ErrRefreshInFlight) {
			j.log.Debug().Msg("Refresh already running, skipping cycle")
			return nil
		}
		return fmt.Errorf("quote refresh failed: %w", err)
	}
	return nil
}

// BackupRunner uploads a snapshot of the current state to remote
// storage.
type BackupRunner interface {
	Backup() error
}

// BackupJob pushes periodic snapshot backups to remote storage.
type BackupJob struct {
	runner BackupRunner
	log    zerolog.Logger
}

// NewBackupJob creates the remote backup job.
func NewBackupJob(runner BackupRunner, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		runner: runner,
		log:    log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run uploads one snapshot backup.
func (j *BackupJob) Run() error {
	if err := j.runner.Backup(); err != nil {
		return fmt.Errorf("snapshot backup failed: %w", err)
	}
	return nil
}
