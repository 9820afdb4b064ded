// Package jobs holds the scheduled maintenance jobs: run cleanup,
// archive rotation and WAL checkpointing.
package jobs

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/qvarlab/qvar/internal/archive"
	"github.com/qvarlab/qvar/internal/database"
	"github.com/qvarlab/qvar/internal/runs"
)

// RunsCleanup deletes terminal runs older than the retention window.
type RunsCleanup struct {
	Repository *runs.Repository
	TTL        time.Duration
	Log        zerolog.Logger
}

func (j *RunsCleanup) Name() string { return "runs_cleanup" }

func (j *RunsCleanup) Run() error {
	deleted, err := j.Repository.DeleteOlderThan(time.Now().Add(-j.TTL))
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.Log.Info().Int64("deleted", deleted).Msg("Run cleanup finished")
	}
	return nil
}

// ArchiveRotation removes archived snapshots past their retention window.
type ArchiveRotation struct {
	Store *archive.Store
	TTL   time.Duration
	Log   zerolog.Logger
}

func (j *ArchiveRotation) Name() string { return "archive_rotation" }

func (j *ArchiveRotation) Run() error {
	deleted, err := j.Store.Rotate(time.Now().Add(-j.TTL))
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.Log.Info().Int("deleted", deleted).Msg("Archive rotation finished")
	}
	return nil
}

// WALCheckpoint truncates the write-ahead log so it cannot grow without
// bound between restarts.
type WALCheckpoint struct {
	DB  *database.DB
	Log zerolog.Logger
}

func (j *WALCheckpoint) Name() string { return "wal_checkpoint" }

func (j *WALCheckpoint) Run() error {
	if err := j.DB.Checkpoint(); err != nil {
		return err
	}
	j.Log.Debug().Str("database", j.DB.Name()).Msg("WAL checkpoint finished")
	return nil
}
