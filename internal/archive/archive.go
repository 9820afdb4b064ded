// Package archive stores completed run snapshots on disk as msgpack
// files, so the runs database can be cleaned up without losing results.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/qvarlab/qvar/internal/runs"
)

const fileExt = ".qvar"

// Snapshot is the archived form of a run: the run record plus its full
// evaluation trace.
type Snapshot struct {
	Run        runs.Run          `msgpack:"run"`
	Trace      []runs.Evaluation `msgpack:"trace"`
	ArchivedAt time.Time         `msgpack:"archived_at"`
}

// Store reads and writes snapshots under a single directory.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates the archive directory if needed.
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Store{
		dir: dir,
		log: log.With().Str("component", "archive").Logger(),
	}, nil
}

// Save writes a snapshot, overwriting any previous archive of the same
// run. The file is written to a temp name first so readers never see a
// partial snapshot.
func (s *Store) Save(snap Snapshot) error {
	if snap.Run.UUID == "" {
		return fmt.Errorf("snapshot has no run UUID")
	}
	if snap.ArchivedAt.IsZero() {
		snap.ArchivedAt = time.Now()
	}

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	final := s.path(snap.Run.UUID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize snapshot: %w", err)
	}

	s.log.Debug().Str("run", snap.Run.UUID).Msg("Archived run")
	return nil
}

// Load reads one snapshot by run UUID.
func (s *Store) Load(runUUID string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(runUUID))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// List returns archived run UUIDs sorted lexically.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read archive directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(out)
	return out, nil
}

// Rotate deletes snapshots archived before the cutoff and returns how
// many were removed.
func (s *Store) Rotate(cutoff time.Time) (int, error) {
	ids, err := s.List()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, id := range ids {
		snap, err := s.Load(id)
		if err != nil {
			s.log.Warn().Str("run", id).Err(err).Msg("Skipping unreadable snapshot")
			continue
		}
		if !snap.ArchivedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(s.path(id)); err != nil {
			return deleted, fmt.Errorf("remove snapshot %s: %w", id, err)
		}
		deleted++
	}
	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("Rotated archive")
	}
	return deleted, nil
}

func (s *Store) path(runUUID string) string {
	return filepath.Join(s.dir, runUUID+fileExt)
}
