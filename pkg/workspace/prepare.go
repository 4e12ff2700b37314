// Package workspace owns the on-disk layout of a run: the scripts directory
// with its submit and log subdirectories, and the normalization directory
// where DTI-TK works on linked subject inputs.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sameehj/dtitk-condor/pkg/subject"
)

// Prepare creates the run directories and clears what a previous run left
// behind: every file in the normalization directory, every script in the
// scripts directory, and the submit and log directories, which are rotated
// to an _archived copy.
func Prepare(l Layout, logger *slog.Logger) error {
	for _, dir := range []string{l.NormDir, l.ScriptsDir} {
		if err := ensureDir(dir, logger); err != nil {
			return err
		}
	}
	if err := cleanNorm(l.NormDir, logger); err != nil {
		return err
	}
	if err := cleanScripts(l.ScriptsDir, logger); err != nil {
		return err
	}
	for _, sub := range []string{LogsDir, SubmitDir} {
		if err := rotate(l.ScriptsDir, sub, logger); err != nil {
			return err
		}
	}
	return nil
}

// LinkSubjects symlinks each subject's input into the normalization directory.
func LinkSubjects(l Layout, subjects []subject.Subject, logger *slog.Logger) error {
	for _, s := range subjects {
		link := l.Norm(LinkedInput(s.ID))
		if err := os.Symlink(s.Path, link); err != nil {
			return fmt.Errorf("link subject %s: %w", s.ID, err)
		}
		logger.Debug("subject linked", "subject", s.ID, "target", s.Path, "link", link)
	}
	return nil
}

func ensureDir(dir string, logger *slog.Logger) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		logger.Info("directory already exists", "dir", dir)
		return nil
	case err == nil:
		return fmt.Errorf("%s exists and is not a directory", dir)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	logger.Info("directory does not exist, creating", "dir", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

func cleanNorm(dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			logger.Debug("leaving directory in place", "dir", filepath.Join(dir, entry.Name()))
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}
	logger.Info("normalization directory cleared", "dir", dir, "removed", removed)
	return nil
}

func cleanScripts(dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), scriptExt) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}
	logger.Info("previous scripts removed", "dir", dir, "removed", removed)
	return nil
}

func rotate(root, name string, logger *slog.Logger) error {
	current := filepath.Join(root, name)
	archived := current + archivedDirSuffix
	if _, err := os.Stat(current); err == nil {
		if err := os.RemoveAll(archived); err != nil {
			return fmt.Errorf("remove %s: %w", archived, err)
		}
		if err := os.Rename(current, archived); err != nil {
			return fmt.Errorf("archive %s: %w", current, err)
		}
		logger.Info("previous directory archived", "from", current, "to", archived)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", current, err)
	}
	if err := os.Mkdir(current, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", current, err)
	}
	return nil
}
