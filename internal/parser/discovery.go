package parser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/armalogs/backend/internal/models"
)

// AddonsDirName marks an Arma server installation: its parent directory is the
// server root.
const AddonsDirName = "addons"

// DefaultLogPattern matches the server logs inside an installation.
const DefaultLogPattern = "*.log"

// FindServerDirs walks the roots and returns every directory that contains an
// "addons" directory, in walk order without duplicates.
func FindServerDirs(roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	var dirs []string

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				fmt.Printf("[Discover] Skipping %s: %v\n", path, err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() || d.Name() != AddonsDirName {
				return nil
			}

			dir := filepath.Clean(filepath.Dir(path))
			if _, ok := seen[dir]; !ok {
				seen[dir] = struct{}{}
				dirs = append(dirs, dir)
			}
			// mods keep their own addons folders below this one
			return filepath.SkipDir
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	return dirs, nil
}

// FindLogFiles returns the files below dir whose base name matches pattern.
func FindLogFiles(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultLogPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid log pattern %q: %w", pattern, err)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, filepath.Clean(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	return files, nil
}

// Discover finds the log files of every server installation below the roots
// and stats them for their access time. onServer, if set, is called for each
// installation before its logs are listed. Files are returned once even when
// installations are nested.
func Discover(roots []string, pattern string, onServer func(dir string)) ([]models.LogFile, error) {
	dirs, err := FindServerDirs(roots)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var files []models.LogFile
	for _, dir := range dirs {
		if onServer != nil {
			onServer(dir)
		}

		paths, err := FindLogFiles(dir, pattern)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}

			fi, err := os.Stat(path)
			if err != nil {
				fmt.Printf("[Discover] Skipping %s: %v\n", path, err)
				continue
			}
			files = append(files, models.LogFile{Path: path, Anchor: AccessTime(fi)})
		}
	}

	return files, nil
}
