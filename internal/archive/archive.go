// Package archive periodically snapshots every conversation to JSON files
// under <dbPath>/state/archive. Conversations are never hard-deleted from
// the store, so the scheduled job archives rather than purges; old
// snapshots are pruned by total size.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adhocore/gronx"

	"flux/pkg/config"
	"flux/pkg/logger"
	"flux/pkg/store"
)

const defaultMaxTotalSize = 256 << 20 // 256MB

// Start starts the snapshot scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult) (context.CancelFunc, error) {
	arc := eff.Config.Archive
	if !arc.Enabled {
		logger.Info("archive_disabled")
		return func() {}, nil
	}

	archivePath := filepath.Join(eff.DBPath, "state", "archive")
	if err := os.MkdirAll(archivePath, 0o700); err != nil {
		logger.Error("archive_path_create_failed", "path", archivePath, "error", err)
		return nil, err
	}

	cronExpr := arc.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("archive_invalid_cron", "cron", arc.Cron)
		return nil, fmt.Errorf("invalid archive cron expression: %s", arc.Cron)
	}

	maxBytes := arc.MaxTotalSize.Int64()
	if maxBytes <= 0 {
		maxBytes = defaultMaxTotalSize
	}

	logger.Info("archive_enabled", "cron", cronExpr, "path", archivePath)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, archivePath, cronExpr, maxBytes)
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until it,
// supporting full cron syntax rather than a coarse polling loop.
func runScheduler(ctx context.Context, archivePath, cronExpr string, maxBytes int64) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("archive_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("archive_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(archivePath, maxBytes); err != nil {
				logger.Error("archive_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("archive_scheduler_stopping")
			return
		}
	}
}

// RunOnce writes a snapshot of every conversation and prunes old snapshots
// past the size budget. The snapshot is written to a temp file and renamed
// into place so a crashed run never leaves a partial snapshot.
func RunOnce(archivePath string, maxBytes int64) error {
	convs := store.List()
	data, err := json.MarshalIndent(convs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	name := fmt.Sprintf("snapshot-%d.json", time.Now().UTC().UnixNano())
	f, err := os.CreateTemp(archivePath, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	_ = f.Close()
	final := filepath.Join(archivePath, name)
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	logger.Info("archive_snapshot_written", "path", final, "conversations", len(convs), "bytes", len(data))

	return prune(archivePath, maxBytes)
}

// prune removes the oldest snapshots until the total size fits maxBytes.
func prune(archivePath string, maxBytes int64) error {
	entries, err := os.ReadDir(archivePath)
	if err != nil {
		return err
	}
	type snap struct {
		name string
		size int64
	}
	var snaps []snap
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, snap{name: e.Name(), size: fi.Size()})
		total += fi.Size()
	}
	// snapshot names embed a nanosecond timestamp, so lexicographic order
	// of the zero-free names is not reliable; sort by name length first,
	// then name, which orders the decimal timestamps correctly
	sort.Slice(snaps, func(i, j int) bool {
		if len(snaps[i].name) != len(snaps[j].name) {
			return len(snaps[i].name) < len(snaps[j].name)
		}
		return snaps[i].name < snaps[j].name
	})
	for _, s := range snaps {
		if total <= maxBytes {
			break
		}
		if err := os.Remove(filepath.Join(archivePath, s.name)); err != nil {
			logger.Warn("archive_prune_failed", "name", s.name, "error", err)
			continue
		}
		logger.Info("archive_pruned", "name", s.name, "bytes", s.size)
		total -= s.size
	}
	return nil
}
