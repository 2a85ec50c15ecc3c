package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget selects the regular files in Dir whose names match
// Pattern. An empty Pattern matches every file.
type RetentionTarget struct {
	Dir     string
	Pattern string
}

// PruneOlderThan deletes target files last modified more than days ago and
// returns how many were removed. Symlinks such as the pipcastd.log pointer
// are never touched; days <= 0 disables pruning.
func PruneOlderThan(logger *slog.Logger, days int, targets ...RetentionTarget) int {
	if days <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for _, target := range targets {
		for _, path := range expired(target, cutoff) {
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "retention prune failed; file remains", "retention_prune_failed",
					String("path", path),
					Error(err),
					Hint("check file permissions on the log and output directories"),
					Impact("stale file keeps consuming disk space"),
				)
				continue
			}
			removed++
			logger.Info("stale file pruned", String("path", path), EventType("retention_pruned"))
		}
	}
	return removed
}

func expired(target RetentionTarget, cutoff time.Time) []string {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	pattern := strings.TrimSpace(target.Pattern)
	var out []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	return out
}
