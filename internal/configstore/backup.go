// Where: internal/configstore/backup.go
// What: Pre-save configuration backups with retention.
// Why: Keep a history of config.xml like the appliance does on every save.
package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupPrefix = "config-"
	backupSuffix = ".xml"
)

// backup copies the bytes loaded under the lock, which are what is about to
// be overwritten, then prunes old copies.
func (s *Store) backup(now time.Time) error {
	if s.backupCount <= 0 || len(s.raw) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.backupDir, 0o700); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(s.backupDir, backupPrefix+revisionTime(now)+backupSuffix)
	if err := os.WriteFile(path, s.raw, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	s.logger.Debug("configuration backup written", "path", path)
	return s.pruneBackups()
}

// Backups lists backup files, oldest first.
func (s *Store) Backups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(s.backupDir, name)
	}
	return paths, nil
}

func (s *Store) pruneBackups() error {
	paths, err := s.Backups()
	if err != nil {
		return err
	}
	for len(paths) > s.backupCount {
		if err := os.Remove(paths[0]); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune backup: %w", err)
		}
		s.logger.Debug("configuration backup pruned", "path", paths[0])
		paths = paths[1:]
	}
	return nil
}
