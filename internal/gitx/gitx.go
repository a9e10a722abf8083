package gitx

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

var (
	// ErrNoIdentity is returned when user.name or user.email is not set in
	// the repository-local configuration.
	ErrNoIdentity = errors.New("user identity is not configured")

	// ErrAmbiguousIdentity is returned when user.name or user.email carries
	// more than one value; badgehook must not guess which one to use.
	ErrAmbiguousIdentity = errors.New("user identity is ambiguous")
)

// Repo wraps a git repository with the narrow set of plumbing operations
// badgehook needs: head and branch resolution, index blob reads, staging,
// and commit creation with explicit identities and parents.
type Repo struct {
	repo *gogit.Repository
	wt   *gogit.Worktree
}

// Open opens the repository containing dir, walking up to find the .git
// directory the same way the git command does.
func Open(dir string) (*Repo, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %q: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	return &Repo{repo: repo, wt: wt}, nil
}

// GitDir returns the path of the repository's control directory (.git).
func (r *Repo) GitDir() (string, error) {
	st, ok := r.repo.Storer.(*filesystem.Storage)
	if !ok {
		return "", fmt.Errorf("repository storage is not filesystem-backed")
	}
	return st.Filesystem().Root(), nil
}

// Head identifies the currently checked-out commit.
type Head struct {
	Hash     plumbing.Hash
	Branch   string // shorthand name, empty when detached
	Detached bool
}

// Head resolves the current HEAD commit and, when HEAD is symbolic, the
// branch shorthand it points through.
func (r *Repo) Head() (Head, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Head{}, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	h := Head{Hash: ref.Hash()}
	if ref.Name().IsBranch() {
		h.Branch = ref.Name().Short()
	} else {
		h.Detached = true
	}
	return h, nil
}

// BranchIndex scans all local branch references and groups their shorthand
// names by the commit they point at. Remote and tag refs are excluded.
// The name lists are sorted for deterministic lookups.
func (r *Repo) BranchIndex() (map[plumbing.Hash][]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate branches: %w", err)
	}
	idx := make(map[plumbing.Hash][]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		idx[ref.Hash()] = append(idx[ref.Hash()], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan branches: %w", err)
	}
	for _, names := range idx {
		sort.Strings(names)
	}
	return idx, nil
}

// IndexBlob returns the content and blob hash of path as recorded in the
// index (staging area). ok is false when the path has no index entry, which
// callers treat as "nothing to synchronize" rather than an error.
func (r *Repo) IndexBlob(path string) (content []byte, hash plumbing.Hash, ok bool, err error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return nil, plumbing.ZeroHash, false, fmt.Errorf("failed to read index: %w", err)
	}
	entry, err := idx.Entry(path)
	if err != nil {
		if errors.Is(err, index.ErrEntryNotFound) {
			return nil, plumbing.ZeroHash, false, nil
		}
		return nil, plumbing.ZeroHash, false, fmt.Errorf("failed to look up %s in index: %w", path, err)
	}
	blob, err := object.GetBlob(r.repo.Storer, entry.Hash)
	if err != nil {
		return nil, plumbing.ZeroHash, false, fmt.Errorf("failed to read blob for %s: %w", path, err)
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, plumbing.ZeroHash, false, fmt.Errorf("failed to open blob for %s: %w", path, err)
	}
	defer func() {
		_ = reader.Close()
	}()
	content, err = io.ReadAll(reader)
	if err != nil {
		return nil, plumbing.ZeroHash, false, fmt.Errorf("failed to read blob for %s: %w", path, err)
	}
	return content, entry.Hash, true, nil
}

// BlobHash computes the hash git would assign to content stored as a blob.
func BlobHash(content []byte) plumbing.Hash {
	return plumbing.ComputeHash(plumbing.BlobObject, content)
}

// WriteAndStage writes content to path in the working tree and stages it.
func (r *Repo) WriteAndStage(path string, content []byte) error {
	if err := util.WriteFile(r.wt.Filesystem, path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if _, err := r.wt.Add(path); err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}
	return nil
}

// Commit creates a commit from the staged index with explicit author,
// committer and parent list, and advances the current branch reference.
func (r *Repo) Commit(message string, author, committer object.Signature, parents []plumbing.Hash) (plumbing.Hash, error) {
	hash, err := r.wt.Commit(message, &gogit.CommitOptions{
		Author:    &author,
		Committer: &committer,
		Parents:   parents,
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create commit: %w", err)
	}
	return hash, nil
}

// TipCommit resolves a branch shorthand to the commit it points at.
func (r *Repo) TipCommit(branch string) (*object.Commit, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve branch %s: %w", branch, err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read tip commit of %s: %w", branch, err)
	}
	return commit, nil
}

// UserIdentity reads user.name and user.email from the repository-local
// configuration. Exactly one value per key is required: zero values yield
// ErrNoIdentity, multiple values ErrAmbiguousIdentity.
func (r *Repo) UserIdentity() (name, email string, err error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return "", "", fmt.Errorf("failed to read repository config: %w", err)
	}
	user := cfg.Raw.Section("user")

	name, err = singleOption(user.OptionAll("name"), "user.name")
	if err != nil {
		return "", "", err
	}
	email, err = singleOption(user.OptionAll("email"), "user.email")
	if err != nil {
		return "", "", err
	}
	return name, email, nil
}

func singleOption(values []string, key string) (string, error) {
	switch len(values) {
	case 0:
		return "", fmt.Errorf("%w: %s is not set", ErrNoIdentity, key)
	case 1:
		return values[0], nil
	default:
		return "", fmt.Errorf("%w: %s has %d values", ErrAmbiguousIdentity, key, len(values))
	}
}

// FileState classifies a path's working-tree and index status.
type FileState int

const (
	StateClean FileState = iota
	StateDirty
	StateConflicted
)

// FileStatus reports the state of a single path.
func (r *Repo) FileStatus(path string) (FileState, error) {
	status, err := r.wt.Status()
	if err != nil {
		return StateClean, fmt.Errorf("failed to read worktree status: %w", err)
	}
	fs := status.File(path)
	if fs.Staging == gogit.UpdatedButUnmerged || fs.Worktree == gogit.UpdatedButUnmerged {
		return StateConflicted, nil
	}
	if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
		return StateClean, nil
	}
	return StateDirty, nil
}

// Signature builds a commit signature with the current time.
func Signature(name, email string) object.Signature {
	return object.Signature{Name: name, Email: email, When: time.Now()}
}
