// Package filecache provides a directory-backed cache policy whose total
// size is bounded by evicting the oldest files by modification time.
package filecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/axonops/fact-resolver/internal/cache"
	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
)

// Policy caches resolver outputs as one file per cache key. The engine
// relies only on file size and mtime; the extension is caller-chosen.
type Policy struct {
	dir           string
	ext           string
	maxTotalBytes int64
}

// New creates the cache directory if needed. maxTotalBytes bounds the total
// on-disk size enforced by EnforceLimit; zero means unbounded.
func New(dir, ext string, maxTotalBytes int64) (*Policy, error) {
	if ext == "" {
		ext = ".json"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Policy{dir: dir, ext: ext, maxTotalBytes: maxTotalBytes}, nil
}

// BuildCacheKey implements cache.Policy using the canonical key.
func (p *Policy) BuildCacheKey(rctx *resolution.Context, inputFacts []facts.ID) (string, error) {
	return cache.BuildKey(rctx, inputFacts)
}

// Fetch reads the payload file for a key, refreshing its mtime so recently
// used entries survive eviction. Missing and corrupt files are misses.
func (p *Policy) Fetch(_ context.Context, key string) ([]resolution.Output, error) {
	path := p.path(key)
	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	outputs, err := cache.DecodeOutputs(payload)
	if err != nil {
		return nil, nil
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return outputs, nil
}

// Store writes the payload file for a key and enforces the size limit.
func (p *Policy) Store(_ context.Context, key string, outputs []resolution.Output) error {
	payload, err := cache.EncodeOutputs(outputs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.path(key), payload, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return p.EnforceLimit()
}

// Clear removes every cache file.
func (p *Policy) Clear(_ context.Context) error {
	files, err := p.list()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cache file: %w", err)
		}
	}
	return nil
}

// EnforceLimit evicts the oldest-mtime cache files one at a time until the
// directory's total size is within the configured bound. Files that vanish
// mid-scan are tolerated.
func (p *Policy) EnforceLimit() error {
	if p.maxTotalBytes <= 0 {
		return nil
	}
	files, err := p.list()
	if err != nil {
		return err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })

	var total int64
	for _, f := range files {
		total += f.size
	}
	for _, f := range files {
		if total <= p.maxTotalBytes {
			break
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to evict cache file: %w", err)
		}
		total -= f.size
	}
	return nil
}

// Watch enforces the size limit whenever new cache files land in the
// directory, until ctx is cancelled. It is an opt-in convenience; concurrent
// writers that need strict bounds must serialise EnforceLimit themselves.
func (p *Policy) Watch(ctx context.Context, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create cache watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(p.dir); err != nil {
		return fmt.Errorf("failed to watch cache directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if err := p.EnforceLimit(); err != nil && logger != nil {
					logger.Warn("cache limit enforcement failed", slog.String("error", err.Error()))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if logger != nil {
				logger.Warn("cache watcher error", slog.String("error", err.Error()))
			}
		}
	}
}

// Dir returns the cache directory.
func (p *Policy) Dir() string {
	return p.dir
}

type cacheFile struct {
	path  string
	size  int64
	mtime time.Time
}

func (p *Policy) list() ([]cacheFile, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}
	files := make([]cacheFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), p.ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat cache file: %w", err)
		}
		files = append(files, cacheFile{
			path:  filepath.Join(p.dir, entry.Name()),
			size:  info.Size(),
			mtime: info.ModTime(),
		})
	}
	return files, nil
}

func (p *Policy) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(p.dir, hex.EncodeToString(sum[:])+p.ext)
}
