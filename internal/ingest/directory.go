package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileResult records a path that could not be collected.
type FileResult struct {
	Path string
	Err  string
}

type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// Collect expands args into a list of files. Plain file arguments are kept as given, whatever
// their extension, so the pipeline can report unsupported formats. Directories are walked and
// only supported extensions are kept; hidden entries are skipped when skipHidden is set.
func Collect(args []string, skipHidden bool) ([]string, []FileResult, DirStats, error) {
	var (
		files    []string
		failures []FileResult
		stats    DirStats
	)
	for _, arg := range args {
		if strings.TrimSpace(arg) == "" {
			return nil, nil, stats, errors.New("empty path")
		}
		info, err := os.Stat(arg)
		if err != nil {
			failures = append(failures, FileResult{Path: arg, Err: err.Error()})
			stats.Failed++
			continue
		}
		if !info.IsDir() {
			stats.Scanned++
			stats.Matched++
			files = append(files, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, walkErr error) error {
			stats.Scanned++
			if walkErr != nil {
				failures = append(failures, FileResult{Path: path, Err: walkErr.Error()})
				stats.Failed++
				return nil // continue walking
			}
			if skipHidden && path != arg && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
				return nil
			}
			stats.Matched++
			files = append(files, path)
			return nil
		})
		if err != nil {
			return files, failures, stats, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return files, failures, stats, nil
}
