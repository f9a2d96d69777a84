package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionPolicy bounds how many screenshots a LocalStore keeps on disk.
// A zero field disables that bound.
type RetentionPolicy struct {
	MaxAge   time.Duration
	MaxFiles int
	Interval time.Duration
}

// LocalStore writes screenshots into a public static-asset directory.
// It is safe for concurrent use.
type LocalStore struct {
	dir          string
	publicPrefix string
	retention    RetentionPolicy
	now          func() time.Time
}

// NewLocalStore creates dir if needed and returns a store serving files under publicPrefix.
func NewLocalStore(dir, publicPrefix string, retention RetentionPolicy) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &LocalStore{
		dir:          dir,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		retention:    retention,
		now:          time.Now,
	}, nil
}

// Dir returns the directory screenshots are written to.
func (s *LocalStore) Dir() string { return s.dir }

// PublicPrefix returns the URL path the directory is served under.
func (s *LocalStore) PublicPrefix() string { return s.publicPrefix }

// Put writes data to <dir>/<name> via a temp file + rename so readers never
// observe a partially written image. An existing file of the same name is replaced.
func (s *LocalStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("storage: invalid object name %q", name)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("storage: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("storage: rename %s: %w", name, err)
	}

	return path.Join(s.publicPrefix, name), nil
}

// Run sweeps the directory every retention interval until ctx is done.
func (s *LocalStore) Run(ctx context.Context) {
	if s.retention.Interval <= 0 || (s.retention.MaxAge <= 0 && s.retention.MaxFiles <= 0) {
		return
	}
	ticker := time.NewTicker(s.retention.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := s.Sweep(); err != nil {
				slog.Warn("screenshot retention sweep failed", "dir", s.dir, "error", err)
			} else if removed > 0 {
				slog.Info("screenshot retention sweep", "dir", s.dir, "removed", removed)
			}
		}
	}
}

// Exists reports whether a URL returned by Put still resolves to a file on disk.
func (s *LocalStore) Exists(publicURL string) bool {
	name, ok := strings.CutPrefix(publicURL, strings.TrimSuffix(s.publicPrefix, "/")+"/")
	if !ok || name == "" || name != filepath.Base(name) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// groupKey maps a screenshot file to the report it belongs to, so the
// desktop and mobile images of one token share a key.
func groupKey(name string) string {
	for _, suffix := range []string{"_desktop.png", "_mobile.png"} {
		if token, ok := strings.CutSuffix(name, suffix); ok {
			return token
		}
	}
	return name
}

// Sweep evicts screenshots one report at a time: the desktop and mobile
// images of a token are always removed together. A group expires when its
// newest file is older than MaxAge. Groups are then kept newest first while
// their combined file count stays within MaxFiles. It returns how many files
// were removed.
func (s *LocalStore) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("storage: read %s: %w", s.dir, err)
	}

	type group struct {
		names   []string
		modTime time.Time
	}
	byKey := make(map[string]*group)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		key := groupKey(e.Name())
		g, ok := byKey[key]
		if !ok {
			g = &group{}
			byKey[key] = g
		}
		g.names = append(g.names, e.Name())
		if info.ModTime().After(g.modTime) {
			g.modTime = info.ModTime()
		}
	}

	groups := make([]*group, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, g)
	}
	// Newest first.
	sort.Slice(groups, func(i, j int) bool { return groups[i].modTime.After(groups[j].modTime) })

	removed := 0
	kept := 0
	full := false
	cutoff := s.now().Add(-s.retention.MaxAge)
	for _, g := range groups {
		expired := s.retention.MaxAge > 0 && g.modTime.Before(cutoff)
		if !expired && !full {
			if s.retention.MaxFiles <= 0 || kept+len(g.names) <= s.retention.MaxFiles {
				kept += len(g.names)
				continue
			}
			// Older groups go too, even if one would still fit.
			full = true
		}
		for _, name := range g.names {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
				slog.Warn("failed to remove screenshot", "file", name, "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
