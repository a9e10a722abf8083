package gitx

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/schaermu/badgehook/internal/gittest"
)

func TestHead(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.Init(t, dir, "main")
	hash := gittest.Commit(t, repo, "Initial commit", map[string]string{"README.md": "hello\n"})

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head returned error: %v", err)
	}
	if head.Hash != hash {
		t.Errorf("Head hash = %s, want %s", head.Hash, hash)
	}
	if head.Branch != "main" {
		t.Errorf("Head branch = %q, want main", head.Branch)
	}
	if head.Detached {
		t.Error("expected Head not to be detached")
	}
}

func TestHead_Detached(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.Init(t, dir, "main")
	first := gittest.Commit(t, repo, "First", map[string]string{"README.md": "one\n"})
	gittest.Commit(t, repo, "Second", map[string]string{"README.md": "two\n"})

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: first}); err != nil {
		t.Fatalf("detached checkout: %v", err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head returned error: %v", err)
	}
	if !head.Detached {
		t.Error("expected detached head")
	}
	if head.Branch != "" {
		t.Errorf("expected empty branch name, got %q", head.Branch)
	}
}

func TestBranchIndex(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.Init(t, dir, "main")
	tip := gittest.Commit(t, repo, "Initial commit", map[string]string{"README.md": "hello\n"})

	// Second branch pointing at the same commit.
	gittest.Checkout(t, repo, "feature-1", true)

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	index, err := r.BranchIndex()
	if err != nil {
		t.Fatalf("BranchIndex returned error: %v", err)
	}

	names := index[tip]
	if len(names) != 2 {
		t.Fatalf("expected 2 branches at tip, got %v", names)
	}
	// Sorted for deterministic lookups.
	if names[0] != "feature-1" || names[1] != "main" {
		t.Errorf("expected sorted [feature-1 main], got %v", names)
	}
}

func TestIndexBlob(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.Init(t, dir, "main")
	gittest.Commit(t, repo, "Initial commit", map[string]string{"README.md": "hello badges\n"})

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	content, hash, ok, err := r.IndexBlob("README.md")
	if err != nil {
		t.Fatalf("IndexBlob returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected README.md to be present in the index")
	}
	if string(content) != "hello badges\n" {
		t.Errorf("unexpected content: %q", content)
	}
	if got := BlobHash(content); got != hash {
		t.Errorf("BlobHash = %s, index records %s", got, hash)
	}

	_, _, ok, err = r.IndexBlob("MISSING.md")
	if err != nil {
		t.Fatalf("IndexBlob for missing path returned error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a path without an index entry")
	}
}

func TestIndexBlob_IgnoresWorkingTreeEdits(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.Init(t, dir, "main")
	gittest.Commit(t, repo, "Initial commit", map[string]string{"README.md": "committed\n"})

	// An unstaged working-tree edit must not affect the index read.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("dirty edit\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	content, _, ok, err := r.IndexBlob("README.md")
	if err != nil || !ok {
		t.Fatalf("IndexBlob: ok=%v err=%v", ok, err)
	}
	if string(content) != "committed\n" {
		t.Errorf("index read picked up working-tree edit: %q", content)
	}
}

func TestWriteAndStage(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.Init(t, dir, "main")
	gittest.Commit(t, repo, "Initial commit", map[string]string{"README.md": "old\n"})

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.WriteAndStage("README.md", []byte("new\n")); err != nil {
		t.Fatalf("WriteAndStage returned error: %v", err)
	}

	content, hash, ok, err := r.IndexBlob("README.md")
	if err != nil || !ok {
		t.Fatalf("IndexBlob: ok=%v err=%v", ok, err)
	}
	if string(content) != "new\n" {
		t.Errorf("index content = %q, want staged content", content)
	}
	if hash != BlobHash([]byte("new\n")) {
		t.Error("index hash does not match staged content")
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != "new\n" {
		t.Errorf("working tree = %q, want new content", onDisk)
	}
}

func TestCommit(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.Init(t, dir, "main")
	first := gittest.Commit(t, repo, "Initial commit", map[string]string{"README.md": "old\n"})

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.WriteAndStage("README.md", []byte("new\n")); err != nil {
		t.Fatal(err)
	}

	author := Signature("badgehook", "badgehook@invalid")
	committer := Signature("Jane Dev", "jane@example.com")
	hash, err := r.Commit("Ensure badges point to main", author, committer, []plumbing.Hash{first})
	if err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}

	c, err := repo.CommitObject(hash)
	if err != nil {
		t.Fatal(err)
	}
	if c.Author.Name != "badgehook" || c.Committer.Name != "Jane Dev" {
		t.Errorf("identities not preserved: author=%s committer=%s", c.Author.Name, c.Committer.Name)
	}
	if c.NumParents() != 1 || c.ParentHashes[0] != first {
		t.Errorf("expected single parent %s, got %v", first, c.ParentHashes)
	}

	tip, err := r.TipCommit("main")
	if err != nil {
		t.Fatalf("TipCommit returned error: %v", err)
	}
	if tip.Hash != hash {
		t.Errorf("branch tip = %s, want new commit %s", tip.Hash, hash)
	}
}

func TestUserIdentity(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.Init(t, dir, "main")
	gittest.SetIdentity(t, repo, "Jane Dev", "jane@example.com")

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	name, email, err := r.UserIdentity()
	if err != nil {
		t.Fatalf("UserIdentity returned error: %v", err)
	}
	if name != "Jane Dev" || email != "jane@example.com" {
		t.Errorf("UserIdentity = %q/%q", name, email)
	}
}

func TestUserIdentity_NotConfigured(t *testing.T) {
	dir := t.TempDir()
	gittest.Init(t, dir, "main")

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = r.UserIdentity()
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("expected ErrNoIdentity, got %v", err)
	}
}

func TestUserIdentity_Ambiguous(t *testing.T) {
	dir := t.TempDir()
	gittest.Init(t, dir, "main")

	// go-git's typed config API collapses duplicates, so write the multivar
	// directly the way a stray `git config --add` would leave it.
	cfgPath := filepath.Join(dir, ".git", "config")
	raw := "[core]\n\trepositoryformatversion = 0\n\tfilemode = true\n" +
		"[user]\n\tname = Jane Dev\n\tname = J. Developer\n\temail = jane@example.com\n"
	if err := os.WriteFile(cfgPath, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = r.UserIdentity()
	if !errors.Is(err, ErrAmbiguousIdentity) {
		t.Errorf("expected ErrAmbiguousIdentity, got %v", err)
	}
}

func TestFileStatus(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.Init(t, dir, "main")
	gittest.Commit(t, repo, "Initial commit", map[string]string{"README.md": "clean\n"})

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	st, err := r.FileStatus("README.md")
	if err != nil {
		t.Fatalf("FileStatus returned error: %v", err)
	}
	if st != StateClean {
		t.Errorf("expected clean state, got %v", st)
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err = r.FileStatus("README.md")
	if err != nil {
		t.Fatalf("FileStatus returned error: %v", err)
	}
	if st != StateDirty {
		t.Errorf("expected dirty state, got %v", st)
	}
}
