package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gymbody/internal/config"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const (
	snapshotPrefix   = "gymbody_"
	snapshotSuffix   = ".db"
	snapshotStamp    = "20060102_150405.000"
	defaultSnapEvery = 24 * time.Hour
)

// Snapshotter copies the sqlite file into the backup directory on a timer and
// prunes copies older than the retention window.
type Snapshotter struct {
	source string
	cfg    config.BackupConfig
	log    *zerolog.Logger
	now    func() time.Time
}

func NewSnapshotter(source string, cfg config.BackupConfig, logger *zerolog.Logger) *Snapshotter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Snapshotter{source: source, cfg: cfg, log: logger, now: time.Now}
}

// Run takes a snapshot right away and then one per configured period until ctx ends.
func (s *Snapshotter) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info().Msg("Database snapshots disabled")
		return
	}

	every := s.period()
	s.log.Info().Dur("every", every).Str("dir", s.cfg.StoragePath).Msg("Database snapshots scheduled")

	s.cycle(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Snapshotter) cycle(ctx context.Context) {
	path, err := s.Snapshot(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Snapshot failed")
		return
	}
	removed, err := s.Prune()
	if err != nil {
		s.log.Warn().Err(err).Msg("Snapshot pruning failed")
	}
	s.log.Info().Str("path", path).Int("pruned", removed).Msg("Snapshot written")
}

func (s *Snapshotter) period() time.Duration {
	raw := strings.TrimSpace(s.cfg.Schedule)
	if raw == "" {
		return defaultSnapEvery
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		s.log.Warn().Str("schedule", raw).Msg("Unusable snapshot schedule, falling back to 24h")
		return defaultSnapEvery
	}
	return d
}

// Snapshot writes gymbody_<stamp>.db and returns its path. VACUUM INTO is tried
// first; a plain file copy through a temp file is the fallback.
func (s *Snapshotter) Snapshot(ctx context.Context) (string, error) {
	if s.source == "" || s.source == ":memory:" {
		return "", fmt.Errorf("snapshot: database %q has no file", s.source)
	}
	if err := os.MkdirAll(s.cfg.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("snapshot dir: %w", err)
	}

	target := filepath.Join(s.cfg.StoragePath, snapshotPrefix+s.now().Format(snapshotStamp)+snapshotSuffix)

	src, err := sql.Open("sqlite3", s.source)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", s.source, err)
	}
	defer src.Close()

	_, err = src.ExecContext(ctx, `VACUUM INTO ?`, target)
	if err == nil {
		return target, nil
	}
	s.log.Warn().Err(err).Msg("VACUUM INTO unavailable, copying the file")

	if err := copyFile(s.source, target); err != nil {
		return "", fmt.Errorf("copy snapshot: %w", err)
	}
	return target, nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := to + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, to)
}

// Prune deletes snapshots older than RetentionDays and reports how many went.
// Files that do not look like snapshots are left alone.
func (s *Snapshotter) Prune() (int, error) {
	if s.cfg.RetentionDays <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		return 0, fmt.Errorf("read snapshot dir: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.StoragePath, name)); err != nil {
			s.log.Warn().Err(err).Str("file", name).Msg("Could not remove stale snapshot")
			continue
		}
		removed++
	}
	return removed, nil
}
