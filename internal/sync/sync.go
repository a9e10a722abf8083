package sync

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/schaermu/badgehook/internal/badge"
	"github.com/schaermu/badgehook/internal/config"
	"github.com/schaermu/badgehook/internal/gitx"
	"github.com/schaermu/badgehook/internal/state"
)

// Engine orchestrates branch synchronization: it detects branch changes,
// rewrites badge references in the tracked files, and commits or amends the
// result depending on the commit context recorded at prepare-commit-msg
// time. One Engine is built per hook invocation; there is no shared global
// state beyond what Store persists on disk.
type Engine struct {
	cfg      *config.Config
	repo     *gitx.Repo
	store    *state.Store
	rewriter *badge.Rewriter
	logger   *slog.Logger
}

// NewEngine creates a new sync engine.
func NewEngine(cfg *config.Config, repo *gitx.Repo, store *state.Store, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		repo:     repo,
		store:    store,
		rewriter: badge.NewRewriter(cfg.BadgeSites()),
		logger:   logger,
	}
}

// RecordPrepare persists the source and type of the commit being prepared,
// keyed by the current branch. No badge processing happens here; the record
// only lets the post-commit and post-merge hooks recover this context.
func (e *Engine) RecordPrepare(source, commitType string) error {
	head, err := e.repo.Head()
	if err != nil {
		// Unborn branch: the initial commit is never a merge, nothing to record.
		e.logger.Debug("cannot resolve HEAD, not recording commit context", "error", err)
		return nil
	}
	if head.Detached {
		e.logger.Debug("detached HEAD, not recording commit context", "commit", head.Hash.String())
		return nil
	}
	e.logger.Debug("recording commit context",
		"branch", head.Branch,
		"source", source,
		"type", commitType)
	return e.store.RecordPrepare(head.Branch, source, commitType, head.Hash.String())
}

// SyncBranch runs the synchronization pipeline: skip detached checkouts,
// skip if the branch was already synchronized (unless forceCheck), rewrite
// badges in the tracked files, and commit or amend when anything changed.
// The current-branch marker is updated whether or not a commit happened.
func (e *Engine) SyncBranch(forceFreshCommit, forceCheck bool) error {
	head, err := e.repo.Head()
	if err != nil {
		e.logger.Warn("cannot resolve HEAD, skipping synchronization", "error", err)
		return nil
	}

	if head.Detached {
		// A commit made now would advance the detached HEAD, not any branch
		// reference, leaving the fix orphaned. The reference index only
		// sharpens the diagnostic.
		index, err := e.repo.BranchIndex()
		if err != nil {
			return err
		}
		if names := index[head.Hash]; len(names) > 0 {
			e.logger.Warn("detached HEAD on a branch tip, skipping synchronization",
				"commit", head.Hash.String(),
				"branches", strings.Join(names, " "))
		} else {
			e.logger.Warn("checked-out commit does not correspond to any branch, skipping synchronization",
				"commit", head.Hash.String())
		}
		return nil
	}

	branch := head.Branch

	if !forceCheck {
		current, err := e.store.CurrentBranch()
		if err != nil {
			return err
		}
		if current == branch {
			e.logger.Debug("branch unchanged, nothing to do", "branch", branch)
			return nil
		}
	}

	changed, err := e.cleanAll(branch)
	if err != nil {
		return err
	}
	if changed {
		message := "Ensure badges point to " + branch
		if err := e.commitOrAmend(branch, message, forceFreshCommit); err != nil {
			return err
		}
	}

	return e.store.SetCurrentBranch(branch)
}

// cleanAll rewrites badges in every tracked file and reports whether any of
// them changed.
func (e *Engine) cleanAll(branch string) (bool, error) {
	changed := false
	for _, path := range e.cfg.Files {
		fileChanged, err := e.cleanFile(branch, path)
		if err != nil {
			return false, err
		}
		changed = changed || fileChanged
	}
	return changed, nil
}

// cleanFile compares the committed content of path (as recorded in the
// index, immune to unrelated working-tree edits) against its rewritten
// form. Only when the blob hashes differ is the working tree touched and
// the result staged.
func (e *Engine) cleanFile(branch, path string) (bool, error) {
	fileState, err := e.repo.FileStatus(path)
	if err != nil {
		return false, err
	}
	if fileState == gitx.StateConflicted {
		return false, fmt.Errorf("%s has merge conflicts, refusing to rewrite badges", path)
	}

	content, hash, ok, err := e.repo.IndexBlob(path)
	if err != nil {
		return false, err
	}
	if !ok {
		e.logger.Info("tracked file not in index, skipping", "file", path)
		return false, nil
	}

	if !e.rewriter.Matches(string(content)) {
		e.logger.Debug("no badge references", "file", path)
		return false, nil
	}

	rewritten := e.rewriter.Rewrite(string(content), branch)
	newHash := gitx.BlobHash([]byte(rewritten))
	if newHash == hash {
		e.logger.Debug("badges already point at branch", "file", path, "branch", branch)
		return false, nil
	}

	if err := e.repo.WriteAndStage(path, []byte(rewritten)); err != nil {
		return false, err
	}
	e.logger.Info("repointed badges", "file", path, "branch", branch)
	return true, nil
}

// commitOrAmend turns the staged badge fixes into history. A recorded merge
// is amended so the fixes fold into the merge commit itself; everything
// else becomes a fresh commit. The commit record is cleared afterwards in
// both cases.
func (e *Engine) commitOrAmend(branch, message string, freshCommitForced bool) error {
	merge, err := e.store.IsMerge(branch)
	if err != nil {
		return err
	}

	if merge && !freshCommitForced {
		if err := e.amend(branch); err != nil {
			return err
		}
	} else {
		if err := e.freshCommit(branch, message); err != nil {
			return err
		}
	}

	return e.store.Clear(branch)
}

// amend replaces the branch tip with a commit carrying the original author,
// message and parent list, the staged tree, and the scripted committer
// identity. Re-parenting onto the full original parent list keeps the merge
// shape intact even for commits with more than two parents.
func (e *Engine) amend(branch string) error {
	tip, err := e.repo.TipCommit(branch)
	if err != nil {
		return err
	}
	if tip.Author.Name == "" || tip.Message == "" || tip.NumParents() == 0 {
		return fmt.Errorf("cannot safely amend %s, changes are staged but unmerged", tip.Hash)
	}

	preMerge, err := e.store.PreMergeRef(branch)
	if err != nil {
		return err
	}
	if preMerge != "" {
		// The recorded pre-merge head must be the first parent of the tip;
		// anything else means the record belongs to a different (likely
		// aborted) merge and amending would rewrite the wrong commit.
		if tip.Hash.String() == preMerge {
			return fmt.Errorf("merge record for %s still points at the branch tip %s, refusing to amend", branch, tip.Hash)
		}
		if tip.ParentHashes[0].String() != preMerge {
			return fmt.Errorf("merge record for %s does not match the first parent of %s, refusing to amend", branch, tip.Hash)
		}
		e.logger.Debug("amending merge commit", "branch", branch, "pre_merge_head", preMerge)
	}

	committer := gitx.Signature(e.cfg.Identity.Name, e.cfg.Identity.Email)
	hash, err := e.repo.Commit(tip.Message, tip.Author, committer, tip.ParentHashes)
	if err != nil {
		return err
	}
	e.logger.Info("amended commit with badge fixes",
		"branch", branch,
		"old", tip.Hash.String(),
		"new", hash.String())
	return nil
}

// freshCommit creates a new commit on top of the branch tip. The committer
// comes from the local identity configuration (exactly one value per key,
// anything else is a fatal configuration error); the author is the scripted
// identity shared by all automated commits.
func (e *Engine) freshCommit(branch, message string) error {
	name, email, err := e.repo.UserIdentity()
	if err != nil {
		return err
	}
	tip, err := e.repo.TipCommit(branch)
	if err != nil {
		return err
	}

	author := gitx.Signature(e.cfg.Identity.Name, e.cfg.Identity.Email)
	committer := gitx.Signature(name, email)
	hash, err := e.repo.Commit(message, author, committer, []plumbing.Hash{tip.Hash})
	if err != nil {
		return err
	}
	e.logger.Info("committed badge fixes", "branch", branch, "commit", hash.String())
	return nil
}
