package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	markerFile     = "current-branch"
	originFile     = "commit-origin"
	preMergeFile   = "pre-merge-ref"
	branchesDir    = "branches"
	mergeMsgSource = ".git/MERGE_MSG"
	mergeType      = "merge"
)

// Store persists badgehook's cross-invocation breadcrumbs under a private
// directory inside the repository's control directory. Because everything
// lives below .git, none of it is ever tracked by git itself.
//
// Layout:
//
//	<gitdir>/badgehook/current-branch              last synchronized branch
//	<gitdir>/badgehook/branches/<branch>/commit-origin   "<source>\n<type>\n"
//	<gitdir>/badgehook/branches/<branch>/pre-merge-ref   pre-merge head hash
type Store struct {
	dir string
}

// New creates a store rooted at <gitDir>/badgehook, creating the directory
// if needed.
func New(gitDir string) (*Store, error) {
	dir := filepath.Join(gitDir, "badgehook")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) branchDir(branch string) string {
	return filepath.Join(s.dir, branchesDir, filepath.FromSlash(branch))
}

// RecordPrepare remembers what kind of commit is in flight for branch. Any
// stale record is pruned first. For merge commits the pre-merge head hash
// is persisted as well, so a later invocation can tell the merge apart from
// a normal commit.
func (s *Store) RecordPrepare(branch, source, commitType, headHash string) error {
	dir := s.branchDir(branch)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to prune stale state for %s: %w", branch, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state for %s: %w", branch, err)
	}
	origin := source + "\n" + commitType + "\n"
	if err := writeAtomic(filepath.Join(dir, originFile), []byte(origin)); err != nil {
		return fmt.Errorf("failed to record commit origin for %s: %w", branch, err)
	}
	if source == mergeMsgSource && commitType == mergeType {
		if err := writeAtomic(filepath.Join(dir, preMergeFile), []byte(headHash+"\n")); err != nil {
			return fmt.Errorf("failed to record pre-merge ref for %s: %w", branch, err)
		}
	}
	return nil
}

// IsMerge reports whether the commit in flight for branch was recorded as a
// merge. A missing record means "not a merge"; that is the defensive
// default for commits made without a prepare-commit-msg invocation.
func (s *Store) IsMerge(branch string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.branchDir(branch), originFile))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read commit origin for %s: %w", branch, err)
	}
	lines := strings.Split(string(data), "\n")
	return len(lines) >= 2 && lines[1] == mergeType, nil
}

// PreMergeRef returns the recorded pre-merge head hash, or "" when none was
// recorded.
func (s *Store) PreMergeRef(branch string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.branchDir(branch), preMergeFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read pre-merge ref for %s: %w", branch, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Clear removes the commit record for branch, leaving an empty state
// directory behind so stale merge markers never leak into the next cycle.
func (s *Store) Clear(branch string) error {
	dir := s.branchDir(branch)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear state for %s: %w", branch, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to recreate state for %s: %w", branch, err)
	}
	return nil
}

// CurrentBranch returns the last branch badgehook synchronized, or "" when
// no synchronization has happened yet.
func (s *Store) CurrentBranch() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, markerFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read current-branch marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetCurrentBranch overwrites the current-branch marker.
func (s *Store) SetCurrentBranch(branch string) error {
	if err := writeAtomic(filepath.Join(s.dir, markerFile), []byte(branch+"\n")); err != nil {
		return fmt.Errorf("failed to update current-branch marker: %w", err)
	}
	return nil
}

// writeAtomic writes data to path via a temp file and rename, so a
// concurrent reader never observes a half-written record.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".badgehook-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
