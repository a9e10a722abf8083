package gittest

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Fixture repositories are built through go-git itself so tests need no git
// binary on the host.

// Author is the human identity used for fixture commits.
func Author() object.Signature {
	return object.Signature{Name: "Jane Dev", Email: "jane@example.com", When: time.Now()}
}

// Init creates a non-bare repository at dir with HEAD pointing at the given
// (still unborn) branch.
func Init(t *testing.T, dir, branch string) *gogit.Repository {
	t.Helper()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := repo.Storer.SetReference(head); err != nil {
		t.Fatalf("set HEAD: %v", err)
	}
	return repo
}

// SetIdentity writes user.name and user.email into the repository-local
// configuration.
func SetIdentity(t *testing.T, repo *gogit.Repository, name, email string) {
	t.Helper()
	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	cfg.User.Name = name
	cfg.User.Email = email
	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// Commit writes the given files into the worktree, stages them, and commits
// with the fixture author. Extra parents turn the commit into a merge.
func Commit(t *testing.T, repo *gogit.Repository, message string, files map[string]string, parents ...plumbing.Hash) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for path, content := range files {
		if err := util.WriteFile(wt.Filesystem, path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		if _, err := wt.Add(path); err != nil {
			t.Fatalf("stage %s: %v", path, err)
		}
	}
	sig := Author()
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author:    &sig,
		Committer: &sig,
		Parents:   parents,
	})
	if err != nil {
		t.Fatalf("commit %q: %v", message, err)
	}
	return hash
}

// Checkout switches the worktree to branch, optionally creating it at the
// current HEAD.
func Checkout(t *testing.T, repo *gogit.Repository, branch string, create bool) {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	err = wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
	})
	if err != nil {
		t.Fatalf("checkout %s: %v", branch, err)
	}
}
