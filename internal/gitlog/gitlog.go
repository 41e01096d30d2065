// Package gitlog walks git history for the event log path, grounded
// in the teacher's internal/git (worktree-aware `git rev-parse`
// wrapping) and internal/compact's swappable gitExec hook, generalized
// into a small Runner seam for commit enumeration and file-at-commit
// reads (spec.md 4.6). Per Design Notes 9, git is shelled out to with a
// conservative allowlist on any interpolated branch name.
package gitlog

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tixhq/tix/internal/tixerr"
	"github.com/tixhq/tix/internal/types"
)

// Runner executes a git subcommand and returns its stdout. Swappable
// for tests, mirroring the teacher's gitExec hook.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// DefaultRunner shells out to the system git binary.
func DefaultRunner(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, tixerr.New(tixerr.KindGit, "gitlog.DefaultRunner", "git %s: %v", strings.Join(args, " "), err)
	}
	return out, nil
}

// branchAllowlist conservatively restricts interpolated branch names
// to the characters git refs actually allow, per Design Notes 9's
// "the allowlist check must remain" directive.
var branchAllowlist = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,255}$`)

// ValidateBranch rejects anything that is not a plausible ref name
// before it is ever passed to exec.Command.
func ValidateBranch(branch string) error {
	if branch == "" || branch == "all" {
		return nil
	}
	if !branchAllowlist.MatchString(branch) || strings.Contains(branch, "..") {
		return tixerr.New(tixerr.KindInvalidArg, "gitlog.ValidateBranch", "branch %q is not a valid ref name", branch)
	}
	return nil
}

// Commit is one history point touching the log path.
type Commit struct {
	Hash      string
	Timestamp int64
}

// CommitsTouching lists, oldest-first, the hashes of every commit
// that touched path on the given scope ("" = current branch, "all" =
// all branches, otherwise an explicit branch name), bounded at
// types.MaxCommits (spec.md 4.6/5). Overflow truncates and is left for
// the caller to log, not fatal.
func CommitsTouching(ctx context.Context, run Runner, path, scope string) ([]Commit, bool, error) {
	if err := ValidateBranch(scope); err != nil {
		return nil, false, err
	}

	args := []string{"log", "--follow", "--format=%H %ct", "--reverse"}
	switch scope {
	case "", "HEAD":
		args = append(args, "HEAD")
	case "all":
		args = append(args, "--all")
	default:
		args = append(args, scope)
	}
	args = append(args, "--", path)

	out, err := run(ctx, args...)
	if err != nil {
		return nil, false, err
	}

	var commits []Commit
	overflow := false
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		ts, convErr := strconv.ParseInt(parts[1], 10, 64)
		if convErr != nil {
			continue
		}
		if len(commits) >= types.MaxCommits {
			overflow = true
			break
		}
		commits = append(commits, Commit{Hash: parts[0], Timestamp: ts})
	}
	return commits, overflow, nil
}

// ReadAtCommit reads path's content as it existed at the given
// commit, or (nil, false, nil) if the path did not exist there.
func ReadAtCommit(ctx context.Context, run Runner, commitHash, path string) ([]byte, bool, error) {
	out, err := run(ctx, "show", commitHash+":"+path)
	if err != nil {
		// git show exits non-zero both for "no such path at this
		// commit" and for transport errors; either way treat as absent
		// rather than fatal, since spec.md 4.6 only needs the snapshot.
		return nil, false, nil
	}
	return out, true, nil
}

// ReadAtCommits fetches content for many commits concurrently, bounded
// by errgroup (SPEC_FULL.md 4.0/§4.6's "bounded-concurrency commit
// content fetch"), preserving input order in the result slice.
func ReadAtCommits(ctx context.Context, run Runner, commits []Commit, path string, maxConcurrency int) ([][]byte, error) {
	results := make([][]byte, len(commits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for i, c := range commits {
		i, c := i, c
		g.Go(func() error {
			content, ok, err := ReadAtCommit(gctx, run, c.Hash, path)
			if err != nil {
				return err
			}
			if ok {
				results[i] = content
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CurrentCommitHash returns HEAD's hash, or "" if unavailable.
func CurrentCommitHash(ctx context.Context, run Runner) string {
	out, err := run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// ReadAtHEAD reads path's content as committed at HEAD.
func ReadAtHEAD(ctx context.Context, run Runner, path string) ([]byte, bool, error) {
	return ReadAtCommit(ctx, run, "HEAD", path)
}
