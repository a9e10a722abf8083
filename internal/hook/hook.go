package hook

import "log/slog"

// Kind enumerates the git lifecycle hooks badgehook understands. Unknown
// hook names map to Ignored rather than an error so the enclosing git
// operation never fails on hooks badgehook does not implement.
type Kind int

const (
	Ignored Kind = iota
	PrepareCommitMsg
	PostCommit
	PostMerge
	PostCheckout
)

// ParseKind maps a hook name to its Kind. It never fails.
func ParseKind(name string) Kind {
	switch name {
	case "prepare-commit-msg":
		return PrepareCommitMsg
	case "post-commit":
		return PostCommit
	case "post-merge":
		return PostMerge
	case "post-checkout":
		return PostCheckout
	default:
		return Ignored
	}
}

func (k Kind) String() string {
	switch k {
	case PrepareCommitMsg:
		return "prepare-commit-msg"
	case PostCommit:
		return "post-commit"
	case PostMerge:
		return "post-merge"
	case PostCheckout:
		return "post-checkout"
	default:
		return "ignored"
	}
}

// Known returns the hook names badgehook implements, in install order.
func Known() []string {
	return []string{"prepare-commit-msg", "post-commit", "post-merge", "post-checkout"}
}

// Syncer is the engine surface the dispatcher drives.
type Syncer interface {
	RecordPrepare(source, commitType string) error
	SyncBranch(forceFreshCommit, forceCheck bool) error
}

// Dispatch routes one hook invocation to the matching engine behavior.
//
// prepare-commit-msg receives (source, type[, sha]) from git; only source
// and type matter here. post-commit runs a plain sync, post-merge forces
// the check even when the branch is unchanged, and post-checkout forces a
// fresh commit so a checkout right after a merge never amends.
func Dispatch(logger *slog.Logger, syncer Syncer, name string, args []string) error {
	switch ParseKind(name) {
	case PrepareCommitMsg:
		var source, commitType string
		if len(args) > 0 {
			source = args[0]
		}
		if len(args) > 1 {
			commitType = args[1]
		}
		return syncer.RecordPrepare(source, commitType)
	case PostCommit:
		return syncer.SyncBranch(false, false)
	case PostMerge:
		return syncer.SyncBranch(false, true)
	case PostCheckout:
		return syncer.SyncBranch(true, false)
	default:
		logger.Debug("ignoring unsupported hook", "hook", name)
		return nil
	}
}
