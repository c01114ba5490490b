// Package fileset expands a mixed list of files and directories into a flat list of regular files.
package fileset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Resolve expands paths into absolute regular file paths. Directories are walked
// recursively; files pass through unchanged. The result is deduplicated and
// sorted lexicographically so the same set always yields the same order,
// independent of how the filesystem enumerates entries.
//
// A directory nested inside another input directory is walked once. A missing
// input path is an error; unreadable entries found while walking are errors too.
// No extension filtering happens here.
func Resolve(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	visitedDirs := make(map[string]struct{})
	var out []string

	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("absolute path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat input: %w", err)
		}
		if !info.IsDir() {
			if info.Mode().IsRegular() {
				add(abs)
			}
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if _, ok := visitedDirs[path]; ok {
					return filepath.SkipDir
				}
				visitedDirs[path] = struct{}{}
				return nil
			}
			// Resolve symlinks so only regular files are returned
			finfo, statErr := os.Stat(path)
			if statErr != nil || !finfo.Mode().IsRegular() {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", abs, err)
		}
	}
	sort.Strings(out)
	return out, nil
}
