// Package assets resolves chart-referenced keysound paths against a
// directory on disk. BMS charts are frequently wrong about both filename
// case and extension, so lookup is case-insensitive and falls back across
// the common audio extensions.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var audioExts = []string{".wav", ".ogg", ".mp3", ".flac"}

// Loader maps chart asset references to files under a single directory.
type Loader struct {
	dir    string
	names  map[string]string // lowercased name -> actual name on disk
	logger *slog.Logger
}

// NewLoader scans dir once and builds the case-insensitive name index.
func NewLoader(dir string, logger *slog.Logger) (*Loader, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read asset directory %s: %w", dir, err)
	}
	names := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names[strings.ToLower(e.Name())] = e.Name()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{dir: dir, names: names, logger: logger}, nil
}

// Resolve finds the on-disk path for a chart reference, trying the exact
// name first and then the same stem with each known audio extension.
func (l *Loader) Resolve(name string) (string, bool) {
	name = strings.ToLower(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if actual, ok := l.names[name]; ok {
		return filepath.Join(l.dir, actual), true
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, ext := range audioExts {
		if actual, ok := l.names[stem+ext]; ok {
			return filepath.Join(l.dir, actual), true
		}
	}
	return "", false
}

// Fetch reads the requested assets, one result per path in order. Missing
// or unreadable files yield nil entries so the render degrades to silence
// instead of failing.
func (l *Loader) Fetch(ctx context.Context, paths []string) ([][]byte, error) {
	out := make([][]byte, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		full, ok := l.Resolve(p)
		if !ok {
			l.logger.Warn("keysound not found", "ref", p)
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			l.logger.Warn("keysound unreadable", "path", full, "err", err)
			continue
		}
		out[i] = data
	}
	return out, nil
}
